package formstate

import "github.com/zoobzio/capitan"

// Epoch lifecycle signals.
var (
	// FormSeeded is emitted when a new epoch starts and the record and error
	// map are re-initialized from the baseline.
	FormSeeded = capitan.NewSignal(
		"formstate.seeded",
		"Record and errors seeded from baseline",
	)

	// FormReset is emitted when cleanup clears the record and errors.
	FormReset = capitan.NewSignal(
		"formstate.reset",
		"Record and errors cleared",
	)
)

// Edit signals.
var (
	// FormChanged is emitted after a batch of field changes is merged.
	FormChanged = capitan.NewSignal(
		"formstate.changed",
		"Field changes applied",
	)

	// FieldInvalid is emitted when a touched field fails its rule chain.
	FieldInvalid = capitan.NewSignal(
		"formstate.field.invalid",
		"Field failed validation",
	)

	// EligibilityChanged is emitted when the save verdict changes.
	EligibilityChanged = capitan.NewSignal(
		"formstate.eligibility.changed",
		"Save eligibility transition",
	)

	// OverrideChanged is emitted when the manual override is set or cleared.
	OverrideChanged = capitan.NewSignal(
		"formstate.override.changed",
		"Manual override changed",
	)
)

// Submission signals.
var (
	// SaveStarted is emitted when a submission passes the guard.
	SaveStarted = capitan.NewSignal(
		"formstate.save.started",
		"Save invocation started",
	)

	// SaveSucceeded is emitted when the save effect returns without error.
	SaveSucceeded = capitan.NewSignal(
		"formstate.save.succeeded",
		"Save invocation succeeded",
	)

	// SaveFailed is emitted when the save effect returns an error.
	SaveFailed = capitan.NewSignal(
		"formstate.save.failed",
		"Save invocation failed",
	)

	// SaveRejected is emitted when a submission is refused by the guard.
	SaveRejected = capitan.NewSignal(
		"formstate.save.rejected",
		"Submission refused",
	)

	// StateChanged is emitted when the controller moves between idle and saving.
	StateChanged = capitan.NewSignal(
		"formstate.state.changed",
		"Submission state transition",
	)
)
