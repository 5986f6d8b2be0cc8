// Package definition loads declarative form definitions and keeps a
// formstate.Controller in step with them.
//
// A definition document carries the baseline record, the rule chain for each
// field, the save policy and cleanup behaviour:
//
//	initial_state:
//	  name: ""
//	  email: ""
//	validators:
//	  name:
//	    - {rule: required, message: "Name is required"}
//	    - {rule: min_length, arg: 3, message: "Too short"}
//	  email:
//	    - {rule: email, message: "Invalid email"}
//	save:
//	  reset_on_success: true
//	save_policy:
//	  require_change: true
//	  when: 'record.name != "admin"'
//
// Rule names resolve through a Registry; `when` is an expr-lang expression
// over `record`, `errors` and `baseline` that must evaluate to a bool.
//
// Binding watches a source (a file via fsnotify, or any Watcher) and calls
// Controller.Refresh on every valid document, so a new baseline starts a new
// epoch while a bad document leaves the controller untouched.
package definition

import (
	"fmt"
	"sort"

	"github.com/zoobzio/formstate"
)

// Definition is a declarative form configuration.
type Definition struct {
	InitialState map[string]any        `json:"initial_state" yaml:"initial_state"`
	Validators   map[string][]RuleSpec `json:"validators,omitempty" yaml:"validators,omitempty"`
	Save         *SaveSpec             `json:"save,omitempty" yaml:"save,omitempty"`
	Policy       *PolicySpec           `json:"save_policy,omitempty" yaml:"save_policy,omitempty"`
}

// RuleSpec names a registered rule, its optional argument and its message.
type RuleSpec struct {
	Rule    string `json:"rule" yaml:"rule"`
	Arg     any    `json:"arg,omitempty" yaml:"arg,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// SaveSpec holds the declarative part of the save effect. The trigger itself
// is code and is supplied when the definition is compiled.
type SaveSpec struct {
	ResetOnSuccess bool `json:"reset_on_success" yaml:"reset_on_success"`
}

// PolicySpec is the declarative save policy.
type PolicySpec struct {
	SkipDefaultValidation bool   `json:"skip_default_validation,omitempty" yaml:"skip_default_validation,omitempty"`
	RequireChange         bool   `json:"require_change,omitempty" yaml:"require_change,omitempty"`
	Permission            *bool  `json:"permission,omitempty" yaml:"permission,omitempty"`
	When                  string `json:"when,omitempty" yaml:"when,omitempty"`
}

// Decode parses a definition document with the given codec.
func Decode(data []byte, codec Codec) (*Definition, error) {
	if codec == nil {
		codec = YAMLCodec{}
	}
	var def Definition
	if err := codec.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode %s definition: %w", codec.ContentType(), err)
	}
	return &def, nil
}

// Settings compiles the definition into controller settings. Rules resolve
// through reg (DefaultRegistry when nil). effect supplies the save trigger
// and success callback; the definition's save block sets cleanup. Without an
// effect the settings carry no save target.
func (d *Definition) Settings(reg *Registry, effect *formstate.SaveEffect) (formstate.Settings, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}

	settings := formstate.Settings{
		InitialState: formstate.Record(d.InitialState),
	}

	if d.Validators != nil {
		settings.Validators = make(formstate.Validators, len(d.Validators))
		fields := make([]string, 0, len(d.Validators))
		for field := range d.Validators {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			specs := d.Validators[field]
			chain := make([]formstate.Rule, 0, len(specs))
			for i, spec := range specs {
				rule, err := reg.Build(spec)
				if err != nil {
					return formstate.Settings{}, fmt.Errorf("field %q rule %d: %w", field, i, err)
				}
				chain = append(chain, rule)
			}
			settings.Validators[field] = chain
		}
	}

	if d.Policy != nil {
		policy, err := d.Policy.compile()
		if err != nil {
			return formstate.Settings{}, err
		}
		settings.Policy = policy
	}

	if effect != nil {
		save := *effect
		if d.Save != nil {
			save.ResetOnSuccess = d.Save.ResetOnSuccess
		}
		settings.Save = &save
	}

	return settings, nil
}

func (p *PolicySpec) compile() (*formstate.SavePolicy, error) {
	policy := &formstate.SavePolicy{
		SkipDefaultValidation: p.SkipDefaultValidation,
		RequireChange:         p.RequireChange,
	}
	if p.Permission != nil {
		policy.Permission = formstate.ToggleOf(*p.Permission)
	}
	if p.When != "" {
		predicate, err := CompilePredicate(p.When)
		if err != nil {
			return nil, err
		}
		policy.Predicate = predicate
	}
	return policy, nil
}
