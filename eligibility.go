package formstate

// Eligibility is the tri-state save verdict.
type Eligibility int32

const (
	// NotConfigured means no save policy applies. It never blocks a submit.
	NotConfigured Eligibility = iota

	// Permitted means every accumulated check passed, or the manual
	// override is on.
	Permitted

	// Forbidden means at least one accumulated check failed.
	Forbidden
)

// String returns the string representation of the eligibility.
func (e Eligibility) String() string {
	switch e {
	case NotConfigured:
		return "not-configured"
	case Permitted:
		return "permitted"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Names of the accumulated checks.
const (
	CheckDefaultValidation = "default_validation"
	CheckUnchanged         = "unchanged_check"
	CheckCustom            = "custom_check"
)

// Inputs is everything eligibility depends on.
type Inputs struct {
	Record     Record
	Baseline   Record
	Errors     Errors
	Validators Validators
	Policy     *SavePolicy
	Override   Toggle
}

// Verdict is the result of an evaluation along with the named checks that
// were accumulated. Checks is nil when no checks ran: the verdict is
// NotConfigured, or the manual override forced it.
type Verdict struct {
	Eligibility Eligibility
	Checks      map[string]bool
}

// Evaluate decides save eligibility. It is a pure function of its inputs.
func Evaluate(in Inputs) Verdict {
	p := in.Policy
	if p == nil {
		return Verdict{Eligibility: NotConfigured}
	}
	if (len(in.Validators) == 0 && p.zero()) || p.Permission == ToggleOff {
		return Verdict{Eligibility: NotConfigured}
	}

	if in.Override == ToggleOn {
		return Verdict{Eligibility: Permitted}
	}

	checks := make(map[string]bool, 3)
	if !p.SkipDefaultValidation {
		checks[CheckDefaultValidation] = in.Errors.covers(in.Validators) && !in.Errors.Failing()
	}
	if p.RequireChange && in.Record != nil && in.Baseline != nil {
		checks[CheckUnchanged] = !in.Record.Only(in.Validators).Equal(in.Baseline.Only(in.Validators))
	}
	if p.Predicate != nil {
		checks[CheckCustom] = p.Predicate(in.Record.Clone(), in.Errors.Clone(), in.Baseline.Clone())
	}

	for _, ok := range checks {
		if !ok {
			return Verdict{Eligibility: Forbidden, Checks: checks}
		}
	}
	return Verdict{Eligibility: Permitted, Checks: checks}
}
