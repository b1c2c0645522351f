package httptransport

import (
	"net/http"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/httputil"
)

type actionErrorBody struct {
	Error       actions.Kind        `json:"error"`
	Description string              `json:"error_description"`
	Violations  []dErrors.Violation `json:"violations,omitempty"`
}

// StatusForKind maps a dispatch error kind to an HTTP status.
func StatusForKind(kind actions.Kind) int {
	switch kind {
	case actions.KindValidation:
		return http.StatusBadRequest
	case actions.KindNotFound:
		return http.StatusNotFound
	case actions.KindPermissionDenied:
		return http.StatusForbidden
	case actions.KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeActionError surfaces the handler's message verbatim, except for
// uncoded infrastructure failures whose text may carry driver internals.
func writeActionError(w http.ResponseWriter, err error) {
	kind := actions.KindOf(err)
	body := actionErrorBody{
		Error:       kind,
		Description: err.Error(),
		Violations:  dErrors.ViolationsOf(err),
	}
	status := StatusForKind(kind)
	if kind == actions.KindInfra {
		switch code := dErrors.CodeOf(err); code {
		case dErrors.CodeUnavailable:
			status = http.StatusServiceUnavailable
		case dErrors.CodeTimeout:
			status = http.StatusGatewayTimeout
		case dErrors.CodeInternal:
			if de, ok := dErrors.As(err); ok {
				body.Description = de.Message
			} else {
				body.Description = "internal error"
			}
		}
	}
	httputil.WriteJSON(w, status, body)
}
