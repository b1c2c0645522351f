package payroll

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

func periodFields(extra ...schema.Field) []schema.Field {
	return append([]schema.Field{
		schema.String("facilityId").Len(1, 128),
		schema.Integer("month").Required().Range(1, 12),
		schema.Integer("year").Required().Range(2000, 2100),
	}, extra...)
}

type periodInput struct {
	FacilityID string `json:"facilityId"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
}

type periodResult struct {
	PeriodID string       `json:"periodId"`
	Status   PeriodStatus `json:"status"`
	Version  int          `json:"version"`
}

func result(p Period) periodResult {
	return periodResult{PeriodID: p.ID, Status: p.Status, Version: p.Version}
}

// facilityOf resolves the period's facility. Permissions are resolved for
// the scoped facility, so another facility needs org-level grants in the
// same organization.
func (m *Module) facilityOf(ctx context.Context, ec *actions.ExecutionContext, given string) (id.FacilityID, error) {
	f, err := access.TargetFacility(ctx, m.workforce, ec, given)
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

func lockKey(periodID string) string {
	return "payroll:" + periodID
}

// load returns the stored period, or a fresh DRAFT one with Version 0 when
// none exists yet.
func (m *Module) load(ctx context.Context, ec *actions.ExecutionContext, facility id.FacilityID, year, month int) (Period, error) {
	periodID := PeriodID(facility, year, month)
	p, err := m.store.Period(ctx, periodID)
	if workforce.IsNotFound(err) {
		return Period{
			ID:        periodID,
			Facility:  facility,
			Year:      year,
			Month:     month,
			Status:    PeriodDraft,
			CreatedAt: ec.Now,
			UpdatedAt: ec.Now,
		}, nil
	}
	if err != nil {
		return Period{}, workforce.Translate(err, "load payroll period")
	}
	return p, nil
}

// transition advances the period under its lock and records the move.
func (m *Module) transition(ctx context.Context, ec *actions.ExecutionContext, in periodInput, from PeriodStatus, check func(Period) error, apply func(*Period)) (periodResult, error) {
	facility, err := m.facilityOf(ctx, ec, in.FacilityID)
	if err != nil {
		return periodResult{}, err
	}
	var out periodResult
	err = m.locker.Do(ctx, lockKey(PeriodID(facility, in.Year, in.Month)), func(ctx context.Context) error {
		p, err := m.load(ctx, ec, facility, in.Year, in.Month)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(p); err != nil {
				return err
			}
		}
		if err := p.advance(from, ec.Now); err != nil {
			return err
		}
		if apply != nil {
			apply(&p)
		}
		saved, err := m.store.SavePeriod(ctx, p)
		if err != nil {
			return workforce.Translate(err, "save payroll period")
		}
		ec.Record("payroll_period", saved.ID, "from", string(from), "to", string(saved.Status))
		out = result(saved)
		return nil
	})
	return out, err
}

// -----------------------------------------------------------------------------
// Entries
// -----------------------------------------------------------------------------

type addEntryInput struct {
	FacilityID  string  `json:"facilityId"`
	Month       int     `json:"month"`
	Year        int     `json:"year"`
	UserID      string  `json:"userId"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type addEntryResult struct {
	EntryID  string       `json:"entryId"`
	PeriodID string       `json:"periodId"`
	Status   PeriodStatus `json:"periodStatus"`
}

func (m *Module) addManualEntry() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "payroll.add_manual_entry",
		Permission:  access.PayrollEdit,
		Label:       "Add payroll entry",
		Description: "Add a bonus, deduction, expense, allowance or correction to an open payroll period",
		Keywords:    []string{"payroll", "bonus", "deduction", "expense"},
		Schema: schema.New(periodFields(
			schema.String("userId").Required().Len(1, 128),
			schema.String("type").Required().Enum(entryTypes...),
			schema.Number("amount").Required().Range(-100000, 100000),
			schema.String("description").Required().Len(1, 500),
		)...),
		Metadata: actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleAddEntry)
}

func (m *Module) handleAddEntry(ctx context.Context, in addEntryInput, ec *actions.ExecutionContext) (addEntryResult, error) {
	facility, err := m.facilityOf(ctx, ec, in.FacilityID)
	if err != nil {
		return addEntryResult{}, err
	}
	var out addEntryResult
	err = m.locker.Do(ctx, lockKey(PeriodID(facility, in.Year, in.Month)), func(ctx context.Context) error {
		p, err := m.load(ctx, ec, facility, in.Year, in.Month)
		if err != nil {
			return err
		}
		if !p.Status.AcceptsEntries() {
			return dErrors.Newf(dErrors.CodeBusinessRule, "payroll period %s is %s and no longer accepts entries", p.ID, p.Status)
		}
		if p.Version == 0 {
			if p, err = m.store.SavePeriod(ctx, p); err != nil {
				return workforce.Translate(err, "open payroll period")
			}
		}
		entry := Entry{
			ID:          id.NewEntryID(),
			Period:      p.ID,
			Principal:   id.PrincipalID(in.UserID),
			Type:        EntryType(in.Type),
			Amount:      in.Amount,
			Description: in.Description,
			CreatedBy:   ec.Principal,
			CreatedAt:   ec.Now,
		}
		if err := m.store.AddEntry(ctx, entry); err != nil {
			return workforce.Translate(err, "save payroll entry")
		}
		ec.Record("payroll_entry", entry.ID.String(),
			"periodId", p.ID,
			"userId", in.UserID,
			"type", in.Type,
			"amount", in.Amount,
		)
		out = addEntryResult{EntryID: entry.ID.String(), PeriodID: p.ID, Status: p.Status}
		return nil
	})
	return out, err
}

type listEntriesInput struct {
	FacilityID string `json:"facilityId"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	UserID     string `json:"userId"`
}

type listEntriesResult struct {
	PeriodID string       `json:"periodId"`
	Status   PeriodStatus `json:"status"`
	Entries  []Entry      `json:"entries"`
	Total    float64      `json:"total"`
}

func (m *Module) listEntries() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "payroll.list_entries",
		Permission:  access.PayrollView,
		Label:       "Payroll entries",
		Description: "List the manual entries of a payroll period",
		Keywords:    []string{"payroll", "entries"},
		Schema:      schema.New(periodFields(schema.String("userId").Len(1, 128))...),
		Metadata:    actions.Metadata{Risk: actions.RiskLow},
	}, m.handleListEntries)
}

func (m *Module) handleListEntries(ctx context.Context, in listEntriesInput, ec *actions.ExecutionContext) (listEntriesResult, error) {
	facility, err := m.facilityOf(ctx, ec, in.FacilityID)
	if err != nil {
		return listEntriesResult{}, err
	}
	p, err := m.load(ctx, ec, facility, in.Year, in.Month)
	if err != nil {
		return listEntriesResult{}, err
	}
	entries, err := m.store.Entries(ctx, p.ID)
	if err != nil {
		return listEntriesResult{}, workforce.Translate(err, "load payroll entries")
	}
	entries = entriesOf(entries, id.PrincipalID(in.UserID))
	out := listEntriesResult{PeriodID: p.ID, Status: p.Status, Entries: entries}
	for _, e := range entries {
		out.Total += e.Amount
	}
	if out.Entries == nil {
		out.Entries = []Entry{}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Period variables
// -----------------------------------------------------------------------------

type variablesResult struct {
	PeriodID  string       `json:"periodId"`
	Status    PeriodStatus `json:"status"`
	Variables []Variables  `json:"variables"`
	Warnings  []string     `json:"warnings,omitempty"`
}

func (m *Module) calculateVariables() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "payroll.calculate_period_variables",
		Permission:  access.PayrollView,
		Label:       "Period variables",
		Description: "Compute worked hours by category and leave days per employee for a month",
		Keywords:    []string{"payroll", "hours", "overtime", "timesheet"},
		Schema:      schema.New(periodFields()...),
		Metadata:    actions.Metadata{Risk: actions.RiskLow},
	}, m.handleCalculate)
}

func (m *Module) handleCalculate(ctx context.Context, in periodInput, ec *actions.ExecutionContext) (variablesResult, error) {
	facility, err := m.facilityOf(ctx, ec, in.FacilityID)
	if err != nil {
		return variablesResult{}, err
	}
	p, err := m.load(ctx, ec, facility, in.Year, in.Month)
	if err != nil {
		return variablesResult{}, err
	}
	vars, err := m.computeVariables(ctx, p)
	if err != nil {
		return variablesResult{}, err
	}
	out := variablesResult{PeriodID: p.ID, Status: p.Status, Variables: vars.Variables}
	if vars.DraftShifts > 0 {
		out.Warnings = append(out.Warnings, draftWarning(vars.DraftShifts))
	}
	for _, s := range vars.Skipped {
		out.Warnings = append(out.Warnings, "shift "+s+" has unreadable times and was skipped")
	}
	return out, nil
}

func draftWarning(n int) string {
	if n == 1 {
		return "1 shift is still in DRAFT"
	}
	return strconv.Itoa(n) + " shifts are still in DRAFT"
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func (m *Module) lockPeriod() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "payroll.lock_period",
		Permission:  access.PayrollLock,
		Label:       "Lock payroll period",
		Description: "Freeze a payroll period so no more entries can be added",
		Keywords:    []string{"payroll", "lock", "close"},
		Schema:      schema.New(periodFields()...),
		Metadata:    actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleLock)
}

func (m *Module) handleLock(ctx context.Context, in periodInput, ec *actions.ExecutionContext) (periodResult, error) {
	check := func(p Period) error {
		vars, err := m.computeVariables(ctx, p)
		if err != nil {
			return err
		}
		if vars.DraftShifts > 0 {
			return dErrors.Newf(dErrors.CodeBusinessRule, "cannot lock %s: %s", p.ID, draftWarning(vars.DraftShifts))
		}
		return nil
	}
	return m.transition(ctx, ec, in, PeriodDraft, check, func(p *Period) {
		p.LockedBy = ec.Principal
	})
}

func (m *Module) approveGlobal() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "payroll.approve_global",
		Permission:  access.PayrollApprove,
		Label:       "Approve payroll",
		Description: "Approve a locked payroll period for export",
		Keywords:    []string{"payroll", "approve"},
		Schema:      schema.New(periodFields()...),
		Metadata:    actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleApprove)
}

func (m *Module) handleApprove(ctx context.Context, in periodInput, ec *actions.ExecutionContext) (periodResult, error) {
	return m.transition(ctx, ec, in, PeriodLocked, nil, func(p *Period) {
		p.ApprovedBy = ec.Principal
	})
}

type exportResult struct {
	periodResult
	JobID string `json:"jobId"`
}

type exportRequest struct {
	PeriodID  string      `json:"periodId"`
	Facility  string      `json:"facilityId"`
	Entries   []Entry     `json:"entries"`
	Variables []Variables `json:"variables"`
}

func (m *Module) exportData() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "payroll.export_data",
		Permission:  access.PayrollExport,
		Label:       "Export payroll",
		Description: "Send an approved payroll period to the fiduciary",
		Keywords:    []string{"payroll", "export", "fiduciary"},
		Schema:      schema.New(periodFields()...),
		Metadata:    actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleExport)
}

// handleExport runs the remote job outside the period lock, then advances
// the period only if nobody moved it meanwhile.
func (m *Module) handleExport(ctx context.Context, in periodInput, ec *actions.ExecutionContext) (exportResult, error) {
	facility, err := m.facilityOf(ctx, ec, in.FacilityID)
	if err != nil {
		return exportResult{}, err
	}
	p, err := m.load(ctx, ec, facility, in.Year, in.Month)
	if err != nil {
		return exportResult{}, err
	}
	if p.Status != PeriodApproved {
		return exportResult{}, dErrors.Newf(dErrors.CodeBusinessRule, "payroll period %s is %s, expected %s", p.ID, p.Status, PeriodApproved)
	}
	entries, err := m.store.Entries(ctx, p.ID)
	if err != nil {
		return exportResult{}, workforce.Translate(err, "load payroll entries")
	}
	vars, err := m.computeVariables(ctx, p)
	if err != nil {
		return exportResult{}, err
	}
	raw, err := m.remote.Call(ctx, remote.PayrollExport, exportRequest{
		PeriodID:  p.ID,
		Facility:  facility.String(),
		Entries:   entries,
		Variables: vars.Variables,
	})
	if err != nil {
		return exportResult{}, err
	}
	var job struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(raw, &job); err != nil {
		return exportResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "unreadable payroll export response")
	}

	expected := p.Version
	res, err := m.transition(ctx, ec, in, PeriodApproved, func(cur Period) error {
		if cur.Version != expected {
			return dErrors.Newf(dErrors.CodeConflict, "payroll period %s changed during export", cur.ID)
		}
		return nil
	}, func(p *Period) {
		p.ExportJob = job.JobID
	})
	if err != nil {
		return exportResult{}, err
	}
	ec.Annotate("jobId", job.JobID, "entries", len(entries))
	return exportResult{periodResult: res, JobID: job.JobID}, nil
}
