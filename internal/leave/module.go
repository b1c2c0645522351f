package leave

import (
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/notify"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

// DefaultAnnualEntitlement applies when neither configuration nor a
// per-principal override sets one.
const DefaultAnnualEntitlement = 25

// Module owns the leave and swap actions.
type Module struct {
	store       Store
	workforce   workforce.Store
	locker      *serial.Locker
	notifier    notify.Notifier
	logger      *slog.Logger
	entitlement int
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// WithNotifier tells requesters about decisions.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Module) {
		m.notifier = n
	}
}

func WithAnnualEntitlement(days int) Option {
	return func(m *Module) {
		if days > 0 {
			m.entitlement = days
		}
	}
}

func New(store Store, wf workforce.Store, locker *serial.Locker, opts ...Option) *Module {
	m := &Module{
		store:       store,
		workforce:   wf,
		locker:      locker,
		logger:      slog.New(slog.DiscardHandler),
		entitlement: DefaultAnnualEntitlement,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Actions returns the module's definitions for registration.
func (m *Module) Actions() []actions.Definition {
	return []actions.Definition{
		m.requestLeave(),
		m.approveLeave(),
		m.leaveBalance(),
		m.postSwapRequest(),
		m.acceptSwap(),
	}
}
