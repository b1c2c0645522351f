package risk

import (
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

type Module struct {
	store     Store
	workforce workforce.Store
	blocklist Blocklist
	sagas     *saga.Runner
	locker    *serial.Locker
	logger    *slog.Logger
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// New builds the module and registers the block saga on runner.
func New(store Store, wf workforce.Store, blocklist Blocklist, runner *saga.Runner, locker *serial.Locker, opts ...Option) *Module {
	m := &Module{
		store:     store,
		workforce: wf,
		blocklist: blocklist,
		sagas:     runner,
		locker:    locker,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	runner.Register(BlockSaga, saga.Funcs{Do: m.blockStep})
	return m
}

func (m *Module) Actions() []actions.Definition {
	return []actions.Definition{
		m.blockUser(),
		m.reportIncident(),
	}
}
