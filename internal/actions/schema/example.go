package schema

import (
	"math"
	"strings"
)

// Example builds a payload that passes every field constraint. Every
// optional field is filled and dates share one value, so the built-in
// cross-field rules hold too.
func (s Schema) Example() map[string]any {
	return exampleObject(s.fields)
}

func exampleObject(fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.name] = exampleValue(f)
	}
	return out
}

func exampleValue(f Field) any {
	if f.example != nil {
		return f.example
	}
	if f.hasDefault {
		return f.def
	}
	switch f.typ {
	case TypeString:
		switch {
		case len(f.enum) > 0:
			return f.enum[0]
		case f.format == FormatDate:
			return "2025-01-01"
		case f.format == FormatTime:
			return "08:00"
		}
		return strings.Repeat("x", clampLen(f, 1))
	case TypeInteger:
		return int64(math.Ceil(exampleNumber(f)))
	case TypeNumber:
		return exampleNumber(f)
	case TypeBoolean:
		return false
	case TypeObject:
		return exampleObject(f.props)
	case TypeArray:
		items := make([]any, clampLen(f, 1))
		for i := range items {
			items[i] = exampleValue(*f.items)
		}
		return items
	}
	return nil
}

func exampleNumber(f Field) float64 {
	v := 1.0
	if f.min != nil && v < *f.min {
		v = *f.min
	}
	if f.max != nil && v > *f.max {
		v = *f.max
	}
	return v
}

func clampLen(f Field, n int) int {
	if f.minLen != nil && n < *f.minLen {
		n = *f.minLen
	}
	if f.maxLen != nil && n > *f.maxLen {
		n = *f.maxLen
	}
	return n
}
