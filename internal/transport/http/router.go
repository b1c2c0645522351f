// Package httptransport exposes the action dispatcher over HTTP.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/InteriMed/Medishift-sub005/pkg/platform/httputil"
	adminmw "github.com/InteriMed/Medishift-sub005/pkg/platform/middleware/admin"
	authmw "github.com/InteriMed/Medishift-sub005/pkg/platform/middleware/auth"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/middleware/metadata"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/middleware/request"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/middleware/requesttime"
)

// RouterConfig carries what the router needs beyond the action handler.
type RouterConfig struct {
	Validator  authmw.JWTValidator
	Blocks     authmw.BlockChecker
	Gatherer   prometheus.Gatherer
	AdminToken string
	// ReplayAudit re-appends events held by the fallback ring. Nil disables
	// the replay route.
	ReplayAudit func(ctx context.Context) (int, error)
	Logger      *slog.Logger
}

// NewRouter wires the public endpoints. /healthz is open, /metrics and the
// audit replay need the admin token, everything under /v1 needs a bearer
// token.
func NewRouter(h *ActionHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		if cfg.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
		}
		if cfg.ReplayAudit != nil {
			r.Post("/admin/audit/replay", replayHandler(cfg.ReplayAudit, cfg.Logger))
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Validator, cfg.Blocks, cfg.Logger))
		h.Register(r)
	})
	return r
}

func replayHandler(replay func(ctx context.Context) (int, error), logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := replay(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "audit replay stopped", "replayed", n, "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":    "unavailable",
				"replayed": n,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]int{"replayed": n})
	}
}
