// Package org holds organization-wide governance actions: the compliance
// score crawl and role standardization across every facility.
package org

import (
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/contracts"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

const (
	DefaultExpiredCertificationPenalty = 10
	DefaultMissingContractPenalty      = 15

	// crawlConcurrency bounds how many facilities are scored at once.
	crawlConcurrency = 8
)

type Module struct {
	workforce workforce.Store
	contracts contracts.Store
	sagas     *saga.Runner
	locker    *serial.Locker
	logger    *slog.Logger

	expiredPenalty  int
	contractPenalty int
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// WithPenalties overrides the score deductions; non-positive values keep
// the defaults.
func WithPenalties(expiredCertification, missingContract int) Option {
	return func(m *Module) {
		if expiredCertification > 0 {
			m.expiredPenalty = expiredCertification
		}
		if missingContract > 0 {
			m.contractPenalty = missingContract
		}
	}
}

func New(wf workforce.Store, cs contracts.Store, runner *saga.Runner, locker *serial.Locker, opts ...Option) *Module {
	m := &Module{
		workforce:       wf,
		contracts:       cs,
		sagas:           runner,
		locker:          locker,
		logger:          slog.New(slog.DiscardHandler),
		expiredPenalty:  DefaultExpiredCertificationPenalty,
		contractPenalty: DefaultMissingContractPenalty,
	}
	for _, opt := range opts {
		opt(m)
	}
	runner.Register(StandardizeSaga, saga.Funcs{Do: m.standardizeStep})
	return m
}

func (m *Module) Actions() []actions.Definition {
	return []actions.Definition{
		m.complianceScore(),
		m.standardizeRoles(),
	}
}
