package main

import (
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/admin"
	"github.com/InteriMed/Medishift-sub005/internal/contracts"
	"github.com/InteriMed/Medishift-sub005/internal/education"
	"github.com/InteriMed/Medishift-sub005/internal/leave"
	"github.com/InteriMed/Medishift-sub005/internal/notify"
	"github.com/InteriMed/Medishift-sub005/internal/org"
	"github.com/InteriMed/Medishift-sub005/internal/payroll"
	"github.com/InteriMed/Medishift-sub005/internal/platform/config"
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/risk"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/team"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

// catalogDeps are the collaborators the domain modules share.
type catalogDeps struct {
	workforce workforce.Store
	audit     audit.Store
	runner    *saga.Runner
	blocks    risk.Blocklist
	remote    remote.Caller
	notifier  notify.Notifier
	locker    *serial.Locker
	cfg       *config.Config
	logger    *slog.Logger
}

// definitions builds every module and returns its actions in registration
// order. Module-owned state lives in memory.
func definitions(d catalogDeps) []actions.Definition {
	leaveMod := leave.New(leave.NewInMemoryStore(), d.workforce, d.locker,
		leave.WithNotifier(d.notifier),
		leave.WithAnnualEntitlement(d.cfg.Leave.AnnualEntitlementDays),
		leave.WithLogger(d.logger),
	)
	payrollMod := payroll.New(payroll.NewInMemoryStore(), d.workforce, leaveMod, d.remote, d.locker,
		payroll.WithNotifier(d.notifier),
		payroll.WithLogger(d.logger),
	)
	contractStore := contracts.NewInMemoryStore()
	contractsMod := contracts.New(contractStore, d.workforce, d.remote, d.runner, d.locker, contracts.WithLogger(d.logger))
	riskMod := risk.New(risk.NewInMemoryStore(), d.workforce, d.blocks, d.runner, d.locker, risk.WithLogger(d.logger))
	orgMod := org.New(d.workforce, contractStore, d.runner, d.locker,
		org.WithPenalties(d.cfg.Compliance.ExpiredCertificationPenalty, d.cfg.Compliance.MissingContractPenalty),
		org.WithLogger(d.logger),
	)
	educationMod := education.New(education.NewInMemoryStore(), d.workforce,
		education.WithRequiredAnnualCredits(d.cfg.Education.RequiredAnnualCredits),
		education.WithLogger(d.logger),
	)
	teamMod := team.New(d.workforce, d.locker, team.WithLogger(d.logger))
	adminMod := admin.New(d.audit, d.runner, admin.WithLogger(d.logger))

	var defs []actions.Definition
	for _, mod := range [][]actions.Definition{
		leaveMod.Actions(),
		payrollMod.Actions(),
		contractsMod.Actions(),
		riskMod.Actions(),
		orgMod.Actions(),
		educationMod.Actions(),
		teamMod.Actions(),
		adminMod.Actions(),
	} {
		defs = append(defs, mod...)
	}
	return defs
}
