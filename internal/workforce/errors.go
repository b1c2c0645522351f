package workforce

import (
	"errors"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

// Translate maps store sentinels onto domain errors for handlers. Anything
// unrecognized is an infrastructure failure.
func Translate(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrVersionMismatch), errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeBusinessRule, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		if _, ok := dErrors.As(err); ok {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// IsNotFound reports a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
