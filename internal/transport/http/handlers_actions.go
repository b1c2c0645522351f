package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/httputil"
	"github.com/InteriMed/Medishift-sub005/pkg/requestcontext"
)

// ActionDispatcher runs one action for a caller.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, caller actions.Caller, actionID string, raw map[string]any) (*actions.Result, error)
}

// Catalog lists the registered actions.
type Catalog interface {
	Catalog() []actions.CatalogEntry
}

// ActionHandler is the thin HTTP layer over the dispatcher. It holds no
// business logic: validation, authorization and audit all happen inside
// Dispatch.
type ActionHandler struct {
	dispatcher ActionDispatcher
	catalog    Catalog
	logger     *slog.Logger
}

func NewActionHandler(dispatcher ActionDispatcher, catalog Catalog, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{dispatcher: dispatcher, catalog: catalog, logger: logger}
}

// Register mounts the action routes on r.
func (h *ActionHandler) Register(r chi.Router) {
	r.Get("/v1/actions", h.HandleCatalog)
	r.Post("/v1/actions/{actionID}", h.HandleDispatch)
}

type catalogResponse struct {
	Actions []actions.CatalogEntry `json:"actions"`
	Total   int                    `json:"total"`
}

func (h *ActionHandler) HandleCatalog(w http.ResponseWriter, _ *http.Request) {
	entries := h.catalog.Catalog()
	httputil.WriteJSON(w, http.StatusOK, catalogResponse{Actions: entries, Total: len(entries)})
}

func (h *ActionHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actionID := chi.URLParam(r, "actionID")

	// An empty body is an empty payload.
	raw := map[string]any{}
	if err := httputil.DecodeJSON(r, &raw); err != nil && r.ContentLength != 0 {
		h.logger.WarnContext(ctx, "invalid action payload",
			"action_id", actionID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	if raw == nil {
		raw = map[string]any{}
	}

	caller := actions.Caller{
		Principal: requestcontext.PrincipalID(ctx),
		Facility:  requestcontext.FacilityID(ctx),
	}
	res, err := h.dispatcher.Dispatch(ctx, caller, actionID, raw)
	if err != nil {
		writeActionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
