/*
Package formstate provides a form-state controller: it tracks field values
against a baseline, derives per-field error messages from pluggable rule
chains, decides whether saving is currently allowed, and drives an
asynchronous save with a busy flag and optional cleanup.

formstate is an in-process state machine with no rendering, transport or
persistence of its own. It is meant to be embedded behind whatever surface
collects edits (an HTTP handler, a TUI, a message consumer).

# Basic Usage

	ctrl := formstate.New(formstate.Settings{
	    InitialState: formstate.Record{"name": "", "email": ""},
	    Validators: formstate.Validators{
	        "name":  {rules.Required("Name is required"), rules.MinLength(3, "Too short")},
	        "email": {rules.EmailValid("Invalid email")},
	    },
	    Policy: &formstate.SavePolicy{RequireChange: true},
	    Save: &formstate.SaveEffect{
	        Trigger:        client.SaveProfile,
	        ResetOnSuccess: true,
	    },
	})

	ctrl.Change(ctx, "name", "Ada")
	ctrl.ChangeMany(ctx,
	    formstate.Change{Name: "email", Value: "ada@example.com"},
	)

	if ctrl.Eligibility() != formstate.Forbidden {
	    err := ctrl.Submit(ctx)
	}

# Validation

Each field may carry an ordered chain of rules. A rule returns an error
message or the empty string; the first non-empty message wins and later rules
are not run. Only fields with a chain ever appear in the error map. Changes
re-validate exactly the fields they touch.

# Save Eligibility

Eligibility is one of NotConfigured, Permitted or Forbidden and is recomputed
after every edit, override change or refresh. Without a SavePolicy it is
NotConfigured, which never blocks a submit. With a policy, the named checks
default_validation, unchanged_check and custom_check must all hold, unless
the manual override is on.

# Submission

Submit snapshots the record, marks the controller busy, invokes the save
effect and releases the busy flag on every path. A submit while busy returns
ErrBusy without invoking the effect. Save failures are returned to the caller.

# Epochs

Refresh re-seeds the record and errors whenever the baseline or the supplied
dependency values change. The definition package can drive Refresh from a
watched YAML or JSON file.

# Observability

Lifecycle, edit and submission events are emitted as capitan signals (see
signals.go). Metrics hook in through MetricsProvider; pkg/prom provides a
Prometheus implementation.
*/
package formstate
