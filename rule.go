package formstate

import "reflect"

// Rule checks a candidate field value and returns an error message, or the
// empty string when the value is valid. The record is the full current
// record, for cross-field checks. Rules must not mutate the record.
type Rule func(value any, record Record) string

// Validators maps field names to ordered rule chains. A field present with an
// empty chain is still a configured field.
type Validators map[string][]Rule

// Has reports whether field has a configured chain.
func (v Validators) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// Validate runs the chain for field in declared order and returns the first
// non-empty message. Remaining rules are not invoked. Fields without a chain
// are always valid.
func (v Validators) Validate(field string, value any, record Record) string {
	for _, rule := range v[field] {
		if rule == nil {
			continue
		}
		if msg := rule(value, record); msg != "" {
			return msg
		}
	}
	return ""
}

// Errors maps configured field names to their current message. An empty
// message means the field is valid.
type Errors map[string]string

// Clone returns a copy of the error map.
func (e Errors) Clone() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Failing reports whether any field currently carries a message.
func (e Errors) Failing() bool {
	for _, msg := range e {
		if msg != "" {
			return true
		}
	}
	return false
}

// covers reports whether the error map holds exactly the validator fields.
func (e Errors) covers(validators Validators) bool {
	if len(e) != len(validators) {
		return false
	}
	for field := range validators {
		if _, ok := e[field]; !ok {
			return false
		}
	}
	return true
}

// seedErrors computes the error map for a fresh epoch.
//
// For each configured field:
//   - require-change mode with a non-empty baseline value: recorded as valid
//     without running the chain, so untouched fields start clean.
//   - non-empty baseline value: recorded with the chain's result.
//   - exactly empty baseline value: recorded only when the chain fails.
//   - nil or missing baseline value: not recorded.
func seedErrors(baseline Record, validators Validators, policy *SavePolicy) Errors {
	errs := make(Errors)
	view := baseline.Clone()
	requireChange := policy.requiresChange()
	for field := range validators {
		if msg, ok := seedError(field, baseline[field], view, validators, requireChange); ok {
			errs[field] = msg
		}
	}
	return errs
}

// seedError applies the seeding rules to one field. ok is false when the
// field stays out of the error map.
func seedError(field string, value any, view Record, validators Validators, requireChange bool) (msg string, ok bool) {
	switch presenceOf(value) {
	case filled:
		if requireChange {
			return "", true
		}
		return validators.Validate(field, value, view), true
	case empty:
		if msg := validators.Validate(field, value, view); msg != "" {
			return msg, true
		}
	}
	return "", false
}

// reconcileErrors rebuilds the error map when the configuration changes
// within an epoch. The result holds only fields of next.
//
// Edited fields (value differs from the baseline) are validated against the
// current record with the new chain. Untouched fields keep their entry when
// they were already configured and require-change mode did not flip;
// otherwise they are seeded again.
func reconcileErrors(errs Errors, record, baseline Record, prev, next Validators, prevPolicy, nextPolicy *SavePolicy) Errors {
	out := make(Errors, len(next))
	requireChange := nextPolicy.requiresChange()
	flipped := prevPolicy.requiresChange() != requireChange
	view := record.Clone()
	for field := range next {
		value := record[field]
		if !reflect.DeepEqual(value, baseline[field]) {
			out[field] = next.Validate(field, value, view)
			continue
		}
		if prev.Has(field) && !flipped {
			if msg, ok := errs[field]; ok {
				out[field] = msg
			}
			continue
		}
		if msg, ok := seedError(field, value, view, next, requireChange); ok {
			out[field] = msg
		}
	}
	return out
}
