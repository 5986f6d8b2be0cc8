// Package rules provides stock field rules for formstate controllers.
//
// Every constructor takes the message to report on failure and returns a
// formstate.Rule. Rules return the empty string when the value is valid.
//
//	validators := formstate.Validators{
//	    "name":  {rules.Required("Name is required"), rules.MinLength(3, "Too short")},
//	    "email": {rules.EmailValid("Invalid email")},
//	}
package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zoobzio/formstate"
)

// validate is the shared validator instance.
var validate = validator.New()

// phonePattern matches North American numbers in common punctuations.
var phonePattern = regexp.MustCompile(`(?:(?:(\s*\(?([2-9]1[02-9]|[2-9][02-8]1|[2-9][02-8][02-9])\s*)|([2-9]1[02-9]|[2-9][02-8]1|[2-9][02-8][02-9]))\)?\s*(?:[.-]\s*)?)([2-9]1[02-9]|[2-9][02-9]1|[2-9][02-9]{2})\s*(?:[.-]\s*)?([0-9]{4})`)

// Required fails for nil, empty strings, zero numbers and false.
// Empty slices and maps that are non-nil pass.
func Required(message string) formstate.Rule {
	return func(value any, _ formstate.Record) string {
		if value == nil {
			return message
		}
		if err := validate.Var(value, "required"); err != nil {
			return message
		}
		return ""
	}
}

// MinLength fails when the value, with spaces removed, has fewer than n
// characters. Nil passes.
func MinLength(n int, message string) formstate.Rule {
	tag := fmt.Sprintf("min=%d", n)
	return func(value any, _ formstate.Record) string {
		if value == nil {
			return ""
		}
		if err := validate.Var(stripSpaces(value), tag); err != nil {
			return message
		}
		return ""
	}
}

// MaxLength fails when the value, with spaces removed, has more than n
// characters. Nil passes.
func MaxLength(n int, message string) formstate.Rule {
	tag := fmt.Sprintf("max=%d", n)
	return func(value any, _ formstate.Record) string {
		if value == nil {
			return ""
		}
		if err := validate.Var(stripSpaces(value), tag); err != nil {
			return message
		}
		return ""
	}
}

// NotZero fails when the value reads as the number zero.
// Nil and empty strings count as zero.
func NotZero(message string) formstate.Rule {
	return func(value any, _ formstate.Record) string {
		if f, ok := number(value); ok && f == 0 {
			return message
		}
		return ""
	}
}

// ValueEqual fails unless the value equals the record's value for field.
// Use it for confirmation fields.
func ValueEqual(field, message string) formstate.Rule {
	return func(value any, record formstate.Record) string {
		if reflect.DeepEqual(record[field], value) {
			return ""
		}
		return message
	}
}

// EmailValid fails unless the value is an email address.
func EmailValid(message string) formstate.Rule {
	return func(value any, _ formstate.Record) string {
		if err := validate.Var(strings.ToLower(text(value)), "email"); err != nil {
			return message
		}
		return ""
	}
}

// PhoneValid fails unless the value contains a North American phone number.
func PhoneValid(message string) formstate.Rule {
	return func(value any, _ formstate.Record) string {
		if phonePattern.MatchString(text(value)) {
			return ""
		}
		return message
	}
}

// ValidHex fails unless the value is a 3, 6 or 8 digit hex colour, with or
// without a leading '#'. Empty values pass.
func ValidHex(message string) formstate.Rule {
	return func(value any, _ formstate.Record) string {
		color := strings.TrimPrefix(text(value), "#")
		if text(value) == "" {
			return ""
		}
		switch len(color) {
		case 3, 6, 8:
		default:
			return message
		}
		if strings.HasPrefix(strings.ToLower(color), "0x") {
			return message
		}
		if err := validate.Var(color, "hexadecimal"); err != nil {
			return message
		}
		return ""
	}
}

// text renders a value as a string. Nil renders empty.
func text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func stripSpaces(value any) string {
	return strings.ReplaceAll(text(value), " ", "")
}

// number reads a value as a float. Non-numeric strings report false.
func number(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
