package schema

import (
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// DateNotBefore rejects end < start when both are present. Dates are
// YYYY-MM-DD so lexical order is calendar order.
func DateNotBefore(start, end string) Rule {
	return Rule{Fields: []string{start, end}, Check: func(values map[string]any) []dErrors.Violation {
		s, ok1 := values[start].(string)
		e, ok2 := values[end].(string)
		if !ok1 || !ok2 || e >= s {
			return nil
		}
		return []dErrors.Violation{{Field: end, Rule: "date_order", Message: "must not be before " + start}}
	}}
}

// AtLeastOne requires at least one of the named fields to be present.
func AtLeastOne(names ...string) Rule {
	return Rule{Fields: names, Check: func(values map[string]any) []dErrors.Violation {
		for _, n := range names {
			if _, ok := values[n]; ok {
				return nil
			}
		}
		return []dErrors.Violation{{Field: names[0], Rule: "one_of_required", Message: "one of the alternative fields is required"}}
	}}
}
