package formstate

// Toggle is an optional boolean: unset, on, or off.
type Toggle int8

const (
	// ToggleUnset means no value was given.
	ToggleUnset Toggle = iota
	// ToggleOn is an explicit true.
	ToggleOn
	// ToggleOff is an explicit false.
	ToggleOff
)

// ToggleOf converts a bool into an explicit Toggle.
func ToggleOf(b bool) Toggle {
	if b {
		return ToggleOn
	}
	return ToggleOff
}

// String returns the string representation of the toggle.
func (t Toggle) String() string {
	switch t {
	case ToggleUnset:
		return "unset"
	case ToggleOn:
		return "on"
	case ToggleOff:
		return "off"
	default:
		return "unknown"
	}
}

// Predicate is a caller-defined save check over the current record, the
// current errors and the baseline.
type Predicate func(record Record, errs Errors, baseline Record) bool

// SavePolicy controls how save eligibility is decided. A nil policy means
// eligibility is not configured.
type SavePolicy struct {
	// SkipDefaultValidation removes the built-in "every configured field is
	// present in the error map and none fails" check.
	SkipDefaultValidation bool

	// RequireChange forbids saving while the configured fields still equal
	// the baseline.
	RequireChange bool

	// Permission set to ToggleOff turns eligibility off entirely (not
	// configured). ToggleOn and ToggleUnset have no effect.
	Permission Toggle

	// Predicate, when set, contributes its result as an extra check. It runs
	// while the controller's lock is held and must not call the Controller.
	Predicate Predicate
}

// requiresChange reports whether the policy is set and asks for a change.
func (p *SavePolicy) requiresChange() bool {
	return p != nil && p.RequireChange
}

// zero reports whether the policy carries no configuration at all.
func (p *SavePolicy) zero() bool {
	return !p.SkipDefaultValidation &&
		!p.RequireChange &&
		p.Permission == ToggleUnset &&
		p.Predicate == nil
}
