package actions

import (
	"errors"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// Kind is the closed set of failure kinds a dispatch can surface.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindBusinessRule     Kind = "business_rule"
	KindInfra            Kind = "infra"
)

// Error is returned by Dispatch for every failure. Its message is the
// underlying message verbatim.
type Error struct {
	Kind     Kind
	ActionID string
	Err      error
}

func (e *Error) Error() string  { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a dispatch error. Errors that did not come from
// Dispatch are classified by their domain code.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return KindValidation
	case dErrors.CodeNotFound:
		return KindNotFound
	case dErrors.CodeForbidden, dErrors.CodeUnauthorized:
		return KindPermissionDenied
	case dErrors.CodeInternal, dErrors.CodeTimeout, dErrors.CodeUnavailable:
		return KindInfra
	default:
		return KindBusinessRule
	}
}

// handlerKind classifies an error raised inside a handler. Validation,
// lookup and authorization all happen before the handler runs, so anything
// a handler raises is either a business rule or an infrastructure failure.
func handlerKind(err error) Kind {
	de, ok := dErrors.As(err)
	if !ok {
		return KindInfra
	}
	switch de.Code {
	case dErrors.CodeInternal, dErrors.CodeTimeout, dErrors.CodeUnavailable:
		return KindInfra
	default:
		return KindBusinessRule
	}
}
