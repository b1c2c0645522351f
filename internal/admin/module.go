// Package admin holds operator actions: reading the audit trail and driving
// stuck saga intents to completion or compensation.
package admin

import (
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type Module struct {
	audit  audit.Store
	sagas  *saga.Runner
	logger *slog.Logger
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

func New(store audit.Store, runner *saga.Runner, opts ...Option) *Module {
	m := &Module{
		audit:  store,
		sagas:  runner,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Actions() []actions.Definition {
	return []actions.Definition{
		m.resumeIntent(),
		m.listAudit(),
	}
}
