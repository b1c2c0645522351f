package payroll

import (
	"context"
	"log/slog"
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/leave"
	"github.com/InteriMed/Medishift-sub005/internal/notify"
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

// Absences reports approved leave overlapping a date range.
type Absences interface {
	ApprovedDays(ctx context.Context, principal id.PrincipalID, t leave.Type, from, to time.Time) (int, error)
}

type Module struct {
	store     Store
	workforce workforce.Store
	absences  Absences
	remote    remote.Caller
	notifier  notify.Notifier
	locker    *serial.Locker
	logger    *slog.Logger
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(m *Module) {
		m.notifier = n
	}
}

func New(store Store, wf workforce.Store, absences Absences, rc remote.Caller, locker *serial.Locker, opts ...Option) *Module {
	m := &Module{
		store:     store,
		workforce: wf,
		absences:  absences,
		remote:    rc,
		locker:    locker,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Actions() []actions.Definition {
	return []actions.Definition{
		m.addManualEntry(),
		m.listEntries(),
		m.calculateVariables(),
		m.lockPeriod(),
		m.approveGlobal(),
		m.exportData(),
		m.publishPayslips(),
	}
}
