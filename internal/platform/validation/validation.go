// Package validation applies declarative field constraint tables to forms.
//
// Each resource declares its constraints once as Rules, a table of
// (field, kind, rule) rows built on ozzo-validation rules. Forms expose their
// fields as Values and the table is evaluated in full, so a single error
// reports every offending field.
package validation

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/itrust/itrust/internal/platform/apperr"
)

type Kind string

const (
	KindRequired  Kind = "required"
	KindMaxLength Kind = "maxLength"
	KindLength    Kind = "length"
	KindRange     Kind = "range"
	KindScale     Kind = "scale"
	KindOneOf     Kind = "oneOf"
	KindPattern   Kind = "pattern"
	KindTimestamp Kind = "timestamp"
)

// Constraint is one row of a rules table.
type Constraint struct {
	Field string
	Kind  Kind
	Rule  ozzo.Rule
}

// Rules is the constraint table for one form type.
type Rules []Constraint

// Values maps form field names to their raw values. Supported value types are
// strings, bools, integers, floats and pointers to any of those; a nil
// pointer counts as absent.
type Values map[string]any

func Required(field string) Constraint {
	return Constraint{Field: field, Kind: KindRequired, Rule: ozzo.Required.Error("is required")}
}

// MaxLength counts characters.
func MaxLength(field string, max int) Constraint {
	return Constraint{
		Field: field,
		Kind:  KindMaxLength,
		Rule:  ozzo.RuneLength(0, max).Error(fmt.Sprintf("must be at most %d characters", max)),
	}
}

// ByteLength bounds the encoded length in bytes, for values handed to
// byte-limited consumers such as bcrypt.
func ByteLength(field string, min, max int) Constraint {
	return Constraint{
		Field: field,
		Kind:  KindLength,
		Rule:  ozzo.Length(min, max).Error(fmt.Sprintf("must be between %d and %d bytes long", min, max)),
	}
}

// Range bounds are inclusive. Zero is checked like any other value.
func Range(field string, lo, hi float64) Constraint {
	return Constraint{Field: field, Kind: KindRange, Rule: rangeRule{lo: lo, hi: hi}}
}

// Scale limits the number of decimal places, matching a NUMERIC(p, digits)
// column so stored values read back unchanged.
func Scale(field string, digits int) Constraint {
	return Constraint{Field: field, Kind: KindScale, Rule: scaleRule{digits: digits}}
}

func OneOf(field string, options ...string) Constraint {
	in := make([]interface{}, len(options))
	for i, o := range options {
		in[i] = o
	}
	return Constraint{
		Field: field,
		Kind:  KindOneOf,
		Rule:  ozzo.In(in...).Error("must be one of " + strings.Join(options, ", ")),
	}
}

// Pattern compiles expr eagerly; rules tables are package-level so a bad
// expression fails at init.
func Pattern(field, expr, hint string) Constraint {
	if hint == "" {
		hint = "has an invalid format"
	}
	return Constraint{Field: field, Kind: KindPattern, Rule: ozzo.Match(regexp.MustCompile(expr)).Error(hint)}
}

func Timestamp(field string) Constraint {
	return Constraint{
		Field: field,
		Kind:  KindTimestamp,
		Rule:  ozzo.Date(time.RFC3339).Error("must be an RFC 3339 timestamp"),
	}
}

// Check evaluates every row against v and returns an *apperr.Error of kind
// validation listing all violations, or nil.
func (r Rules) Check(v Values) error {
	var violations []apperr.Violation
	failed := make(map[string]bool)
	for _, c := range r {
		// One violation per field keeps messages readable; required wins
		// because it is listed first in every table.
		if failed[c.Field] {
			continue
		}
		if err := ozzo.Validate(normalize(v[c.Field]), c.Rule); err != nil {
			failed[c.Field] = true
			violations = append(violations, apperr.Violation{
				Field:      c.Field,
				Constraint: string(c.Kind),
				Message:    err.Error(),
			})
		}
	}
	if len(violations) > 0 {
		return apperr.Invalid(violations...)
	}
	return nil
}

// Merge concatenates tables, for forms that extend another form.
func Merge(tables ...Rules) Rules {
	var out Rules
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}

// normalize dereferences raw and turns named string types into plain
// strings; whitespace-only strings count as empty.
func normalize(raw any) any {
	val, isNil := ozzo.Indirect(raw)
	if isNil {
		return nil
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.String {
		s := rv.String()
		if strings.TrimSpace(s) == "" {
			return ""
		}
		return s
	}
	return val
}

// number converts an integer, float or numeric string. ok is false for
// anything else.
func number(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := ozzo.ToInt(value)
		return float64(n), err == nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := ozzo.ToUint(value)
		return float64(n), err == nil
	case reflect.Float32, reflect.Float64:
		n, err := ozzo.ToFloat(value)
		return n, err == nil && !math.IsNaN(n)
	case reflect.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		return n, err == nil
	}
	return 0, false
}

func isAbsent(value any) bool {
	value, isNil := ozzo.Indirect(value)
	if isNil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

var errNotNumber = ozzo.NewError("validation_not_a_number", "must be a number")

// rangeRule differs from ozzo.Min/Max in that it does not skip zero.
type rangeRule struct{ lo, hi float64 }

func (r rangeRule) Validate(value interface{}) error {
	if isAbsent(value) {
		return nil
	}
	n, ok := number(value)
	if !ok {
		return errNotNumber
	}
	if n < r.lo || n > r.hi {
		return ozzo.NewError("validation_out_of_range",
			fmt.Sprintf("must be between %s and %s", formatBound(r.lo), formatBound(r.hi)))
	}
	return nil
}

type scaleRule struct{ digits int }

func (r scaleRule) Validate(value interface{}) error {
	if isAbsent(value) {
		return nil
	}
	n, ok := number(value)
	if !ok {
		return errNotNumber
	}
	scaled := n * math.Pow10(r.digits)
	if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
		return ozzo.NewError("validation_scale",
			fmt.Sprintf("must have at most %d decimal places", r.digits))
	}
	return nil
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
