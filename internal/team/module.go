// Package team holds the skill catalog actions: tagging professionals with
// skills and searching the workforce by them.
package team

import (
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

type Module struct {
	workforce workforce.Store
	locker    *serial.Locker
	logger    *slog.Logger
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

func New(wf workforce.Store, locker *serial.Locker, opts ...Option) *Module {
	m := &Module{
		workforce: wf,
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
		m.addSkill(),
		m.searchBySkill(),
	}
}
