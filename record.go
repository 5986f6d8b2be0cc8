package formstate

import (
	"reflect"
	"sort"
)

// Record is an open, string-keyed bag of field values. No schema is imposed:
// unknown keys are accepted and stored as-is.
type Record map[string]any

// Clone returns a shallow copy of the record. A nil record clones to nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Only returns the subset of fields that also appear in validators.
// Fields missing from r are not added.
func (r Record) Only(validators Validators) Record {
	out := make(Record)
	for k, v := range r {
		if _, ok := validators[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Equal reports whether both records hold structurally equal values.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// Change is a single field update.
type Change struct {
	Name  string
	Value any
}

// merge applies changes onto a copy of r. Last write wins for duplicate names.
// The returned slice lists each touched field once, in first-seen order,
// paired with its final value.
func (r Record) merge(changes []Change) (Record, []Change) {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(changes))
	}
	index := make(map[string]int, len(changes))
	touched := make([]Change, 0, len(changes))
	for _, c := range changes {
		out[c.Name] = c.Value
		if i, ok := index[c.Name]; ok {
			touched[i].Value = c.Value
			continue
		}
		index[c.Name] = len(touched)
		touched = append(touched, c)
	}
	return out, touched
}

// presence classifies a value for seeding: values with a length (strings,
// slices, arrays, maps) are empty at length zero; other non-nil values are
// non-empty; nil is absent.
type presence int

const (
	absent presence = iota
	empty
	filled
)

func presenceOf(v any) presence {
	if v == nil {
		return absent
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		if rv.Len() == 0 {
			return empty
		}
		return filled
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return absent
		}
	}
	return filled
}
