package education

import (
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
)

// DefaultRequiredAnnualCredits applies when configuration sets none.
const DefaultRequiredAnnualCredits = 20

type Module struct {
	store     Store
	workforce workforce.Store
	logger    *slog.Logger
	required  int
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

func WithRequiredAnnualCredits(credits int) Option {
	return func(m *Module) {
		if credits > 0 {
			m.required = credits
		}
	}
}

func New(store Store, wf workforce.Store, opts ...Option) *Module {
	m := &Module{
		store:     store,
		workforce: wf,
		logger:    slog.New(slog.DiscardHandler),
		required:  DefaultRequiredAnnualCredits,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Actions() []actions.Definition {
	return []actions.Definition{
		m.logCredits(),
		m.complianceStatus(),
	}
}
