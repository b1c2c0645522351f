package actions

import (
	"strings"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// Authorize is the coarse gate: the caller's resolved set must contain the
// definition's permission. A denial here is KindPermissionDenied.
func Authorize(def Definition, ec *ExecutionContext) error {
	if ec.Principal.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	if !ec.Permissions.Has(def.Permission) {
		return dErrors.Newf(dErrors.CodeForbidden, "missing permission %s for %s", def.Permission, def.ID)
	}
	return nil
}

// Predicate is a fine-grained rule a handler evaluates against the loaded
// aggregate. Denials are business rules, kept apart from gate denials so the
// audit trail can tell them apart.
type Predicate[T any] struct {
	Name string
	Test func(ec *ExecutionContext, subject T) bool
}

// NewPredicate names a test.
func NewPredicate[T any](name string, test func(ec *ExecutionContext, subject T) bool) Predicate[T] {
	return Predicate[T]{Name: name, Test: test}
}

// HasPermission holds when the caller holds any of perms.
func HasPermission[T any](name string, perms ...string) Predicate[T] {
	return Predicate[T]{Name: name, Test: func(ec *ExecutionContext, _ T) bool {
		return ec.Permissions.HasAny(perms...)
	}}
}

// AnyOf holds when at least one predicate holds.
func AnyOf[T any](preds ...Predicate[T]) Predicate[T] {
	names := make([]string, len(preds))
	for i, p := range preds {
		names[i] = p.Name
	}
	return Predicate[T]{
		Name: strings.Join(names, "|"),
		Test: func(ec *ExecutionContext, subject T) bool {
			for _, p := range preds {
				if p.Test(ec, subject) {
					return true
				}
			}
			return false
		},
	}
}

// AllOf holds when every predicate holds.
func AllOf[T any](preds ...Predicate[T]) Predicate[T] {
	names := make([]string, len(preds))
	for i, p := range preds {
		names[i] = p.Name
	}
	return Predicate[T]{
		Name: strings.Join(names, "&"),
		Test: func(ec *ExecutionContext, subject T) bool {
			for _, p := range preds {
				if !p.Test(ec, subject) {
					return false
				}
			}
			return true
		},
	}
}

// Not inverts a predicate.
func Not[T any](p Predicate[T]) Predicate[T] {
	return Predicate[T]{Name: "!" + p.Name, Test: func(ec *ExecutionContext, subject T) bool {
		return !p.Test(ec, subject)
	}}
}

// Require evaluates every predicate and returns an access-denied error
// naming the first that fails.
func Require[T any](ec *ExecutionContext, subject T, preds ...Predicate[T]) error {
	for _, p := range preds {
		if !p.Test(ec, subject) {
			return dErrors.Newf(dErrors.CodeAccessDenied, "access denied: requires %s", p.Name)
		}
	}
	return nil
}

// Holds reports which named predicates hold, for handlers that branch on
// them (e.g. redaction) after access was granted.
func Holds[T any](ec *ExecutionContext, subject T, preds ...Predicate[T]) map[string]bool {
	out := make(map[string]bool, len(preds))
	for _, p := range preds {
		out[p.Name] = p.Test(ec, subject)
	}
	return out
}
