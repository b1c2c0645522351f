// Package schema declares and validates action input payloads.
//
// Validation is all-or-nothing: every declared constraint is checked and
// every violation is reported in one error, or the normalized payload is
// returned with defaults applied. Unknown fields are violations.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Rule is a cross-field check over the named top-level fields. It runs
// whenever none of its fields failed on their own, and sees the normalized
// values.
type Rule struct {
	Fields []string
	Check  func(values map[string]any) []dErrors.Violation
}

// Schema is an object schema for an action's input.
type Schema struct {
	fields []Field
	rules  []Rule
}

func New(fields ...Field) Schema {
	return Schema{fields: fields}
}

// With adds cross-field rules.
func (s Schema) With(rules ...Rule) Schema {
	s.rules = append(append([]Rule(nil), s.rules...), rules...)
	return s
}

func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Validate checks raw against the schema. On success it returns a new map
// holding only declared fields: integers as int64, numbers as float64,
// arrays as []any, objects as map[string]any.
func (s Schema) Validate(raw map[string]any) (map[string]any, error) {
	var violations []dErrors.Violation
	out := validateObject("", s.fields, raw, &violations)
	failed := make(map[string]bool, len(violations))
	for _, v := range violations {
		top, _, _ := strings.Cut(v.Field, ".")
		failed[top] = true
	}
	for _, rule := range s.rules {
		if slices.ContainsFunc(rule.Fields, func(f string) bool { return failed[f] }) {
			continue
		}
		violations = append(violations, rule.Check(out)...)
	}
	if len(violations) > 0 {
		return nil, dErrors.Validation(summarize(violations), violations)
	}
	return out, nil
}

func summarize(vs []dErrors.Violation) string {
	if len(vs) == 1 {
		return fmt.Sprintf("invalid input: %s %s", vs[0].Field, vs[0].Message)
	}
	return fmt.Sprintf("invalid input: %d violations", len(vs))
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func validateObject(path string, fields []Field, raw map[string]any, vs *[]dErrors.Violation) map[string]any {
	out := make(map[string]any, len(fields))
	known := make(map[string]struct{}, len(fields))

	for _, f := range fields {
		known[f.name] = struct{}{}
		fieldPath := join(path, f.name)
		v, present := raw[f.name]
		if !present || v == nil {
			switch {
			case f.hasDefault:
				out[f.name] = f.def
			case f.required:
				*vs = append(*vs, dErrors.Violation{Field: fieldPath, Rule: "required", Message: "is required"})
			}
			continue
		}
		if nv, ok := validateValue(fieldPath, f, v, vs); ok {
			out[f.name] = nv
		}
	}

	var unknown []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		*vs = append(*vs, dErrors.Violation{Field: join(path, k), Rule: "unknown", Message: "is not an accepted field"})
	}
	return out
}

func validateValue(path string, f Field, v any, vs *[]dErrors.Violation) (any, bool) {
	fail := func(rule, msg string) {
		*vs = append(*vs, dErrors.Violation{Field: path, Rule: rule, Message: msg})
	}
	before := len(*vs)

	switch f.typ {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			fail("type", "must be a string")
			return nil, false
		}
		n := utf8.RuneCountInString(s)
		if f.minLen != nil && n < *f.minLen {
			fail("min_length", fmt.Sprintf("must be at least %d characters", *f.minLen))
		}
		if f.maxLen != nil && n > *f.maxLen {
			fail("max_length", fmt.Sprintf("must be at most %d characters", *f.maxLen))
		}
		if f.pattern != nil && !f.pattern.MatchString(s) {
			fail("pattern", "must match "+f.pattern.String())
		}
		switch f.format {
		case FormatDate:
			if !datePattern.MatchString(s) {
				fail("format", "must match YYYY-MM-DD")
			} else if _, err := time.Parse(time.DateOnly, s); err != nil {
				fail("format", "must be a valid calendar date")
			}
		case FormatTime:
			if !timePattern.MatchString(s) {
				fail("format", "must match HH:MM")
			}
		}
		if len(f.enum) > 0 && !contains(f.enum, s) {
			fail("enum", "must be one of "+strings.Join(f.enum, ", "))
		}
		return s, len(*vs) == before

	case TypeInteger:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) || math.IsInf(n, 0) {
			fail("type", "must be an integer")
			return nil, false
		}
		// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			fail("type", "must be a 64-bit integer")
			return nil, false
		}
		checkRange(f, n, fail)
		return int64(n), len(*vs) == before

	case TypeNumber:
		n, ok := toFloat(v)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			fail("type", "must be a number")
			return nil, false
		}
		checkRange(f, n, fail)
		return n, len(*vs) == before

	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			fail("type", "must be a boolean")
			return nil, false
		}
		return b, true

	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			fail("type", "must be an object")
			return nil, false
		}
		out := validateObject(path, f.props, m, vs)
		return out, len(*vs) == before

	case TypeArray:
		items, ok := toSlice(v)
		if !ok {
			fail("type", "must be an array")
			return nil, false
		}
		if f.minLen != nil && len(items) < *f.minLen {
			fail("min_items", fmt.Sprintf("must contain at least %d items", *f.minLen))
		}
		if f.maxLen != nil && len(items) > *f.maxLen {
			fail("max_items", fmt.Sprintf("must contain at most %d items", *f.maxLen))
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := path + "[" + strconv.Itoa(i) + "]"
			if item == nil {
				*vs = append(*vs, dErrors.Violation{Field: itemPath, Rule: "required", Message: "must not be null"})
				continue
			}
			if nv, ok := validateValue(itemPath, *f.items, item, vs); ok {
				out = append(out, nv)
			}
		}
		return out, len(*vs) == before
	}

	fail("type", "has an unsupported type")
	return nil, false
}

func checkRange(f Field, n float64, fail func(rule, msg string)) {
	if f.min != nil && n < *f.min {
		fail("minimum", "must be >= "+strconv.FormatFloat(*f.min, 'f', -1, 64))
	}
	if f.max != nil && n > *f.max {
		fail("maximum", "must be <= "+strconv.FormatFloat(*f.max, 'f', -1, 64))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}
	return nil, false
}

func contains(values []string, v string) bool {
	for _, e := range values {
		if e == v {
			return true
		}
	}
	return false
}
