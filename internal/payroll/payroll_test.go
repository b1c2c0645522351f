package payroll

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/actionstest"
	"github.com/InteriMed/Medishift-sub005/internal/leave"
	"github.com/InteriMed/Medishift-sub005/internal/notify"
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/remote/mocks"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
	"github.com/InteriMed/Medishift-sub005/pkg/requestcontext"
)

// =============================================================================
// Payroll Test Suite
// =============================================================================
// Justification for unit tests: the period lifecycle is a hard business-state
// gate that permissions cannot bypass, and hour classification is arithmetic
// the fiduciary relies on. The remote export boundary is mocked.

type PayrollSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	remote   *mocks.MockCaller
	store    *InMemoryStore
	wf       *workforce.InMemoryStore
	leaves   *leave.InMemoryStore
	notifier *notify.Recorder
	h        *actionstest.Harness
	ctx      context.Context
}

func TestPayrollSuite(t *testing.T) {
	suite.Run(t, new(PayrollSuite))
}

func (s *PayrollSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.remote = mocks.NewMockCaller(s.ctrl)
	s.store = NewInMemoryStore()
	s.wf = workforce.NewInMemoryStore()
	s.leaves = leave.NewInMemoryStore()
	s.notifier = notify.NewRecorder()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC))
	for _, f := range []workforce.Facility{
		{ID: "f1", OrgID: "o1"},
		{ID: "f2", OrgID: "o1"},
		{ID: "fB", OrgID: "o2"},
	} {
		_, err := s.wf.SaveFacility(s.ctx, f)
		s.Require().NoError(err)
	}

	lm := leave.New(s.leaves, s.wf, serial.New())
	m := New(s.store, s.wf, lm, s.remote, serial.New(), WithNotifier(s.notifier))
	s.h = actionstest.New(m.Actions()...)
	s.h.Resolver.
		Grant("officer", access.Grants(workforce.RolePayrollOfficer)...).
		Grant("fiduciary", access.Grants(workforce.RoleFiduciary)...).
		Grant("orgadmin", access.Grants(workforce.RoleOrgAdmin)...).
		Grant("root", access.Grants(workforce.RoleAdmin)...)
}

func (s *PayrollSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PayrollSuite) dispatch(principal, action string, raw map[string]any) (*actions.Result, error) {
	return s.h.Dispatch(s.ctx, principal, "f1", action, raw)
}

func march(extra map[string]any) map[string]any {
	raw := map[string]any{"month": 3, "year": 2025}
	for k, v := range extra {
		raw[k] = v
	}
	return raw
}

func entry(user string) map[string]any {
	return march(map[string]any{"userId": user, "type": "BONUS", "amount": 250.5, "description": "night cover"})
}

func (s *PayrollSuite) seedPeriod(status PeriodStatus) {
	_, err := s.store.SavePeriod(s.ctx, Period{ID: PeriodID("f1", 2025, 3), Facility: "f1", Year: 2025, Month: 3, Status: status})
	s.Require().NoError(err)
}

// =============================================================================
// Manual entries
// =============================================================================

func (s *PayrollSuite) TestManualEntryOpensDraftPeriod() {
	res, err := s.dispatch("officer", "payroll.add_manual_entry", entry("emp"))
	s.Require().NoError(err)
	out := res.Data.(addEntryResult)
	s.Equal("f1:2025-03", out.PeriodID)
	s.Equal(PeriodDraft, out.Status)

	list, err := s.dispatch("officer", "payroll.list_entries", march(nil))
	s.Require().NoError(err)
	entries := list.Data.(listEntriesResult)
	s.Require().Len(entries.Entries, 1)
	s.Equal(out.EntryID, entries.Entries[0].ID.String())
	s.InDelta(250.5, entries.Total, 0.001)
}

func (s *PayrollSuite) TestManualEntryRejectedOnceNotDraft() {
	for _, status := range []PeriodStatus{PeriodLocked, PeriodApproved, PeriodSent, PeriodCompleted} {
		s.Run(string(status), func() {
			s.store = NewInMemoryStore()
			m := New(s.store, s.wf, nil, s.remote, serial.New())
			s.h = actionstest.New(m.Actions()...)
			s.h.Resolver.Grant("root", access.Grants(workforce.RoleAdmin)...)
			s.seedPeriod(status)

			_, err := s.dispatch("root", "payroll.add_manual_entry", entry("emp"))
			s.Require().Error(err)
			s.Equal(actions.KindBusinessRule, actions.KindOf(err))
			s.Contains(err.Error(), "no longer accepts entries")

			entries, _ := s.store.Entries(s.ctx, PeriodID("f1", 2025, 3))
			s.Empty(entries)
		})
	}
}

func (s *PayrollSuite) TestManualEntryValidation() {
	_, err := s.dispatch("officer", "payroll.add_manual_entry", march(map[string]any{
		"userId": "emp", "type": "TIP", "amount": 200000, "description": "",
	}))
	s.Equal(actions.KindValidation, actions.KindOf(err))
	var fields []string
	for _, v := range dErrors.ViolationsOf(err) {
		fields = append(fields, v.Field)
	}
	s.Subset(fields, []string{"type", "amount", "description"})
}

func (s *PayrollSuite) TestListFiltersByUser() {
	_, err := s.dispatch("officer", "payroll.add_manual_entry", entry("a"))
	s.Require().NoError(err)
	_, err = s.dispatch("officer", "payroll.add_manual_entry", entry("b"))
	s.Require().NoError(err)

	res, err := s.dispatch("officer", "payroll.list_entries", march(map[string]any{"userId": "b"}))
	s.Require().NoError(err)
	out := res.Data.(listEntriesResult)
	s.Require().Len(out.Entries, 1)
	s.Equal(id.PrincipalID("b"), out.Entries[0].Principal)
}

// =============================================================================
// Facility scope
// =============================================================================

func (s *PayrollSuite) TestPayloadFacilityOutsideScope() {
	tests := []struct {
		name      string
		principal string
		facility  string
		allowed   bool
	}{
		{"officer in another org", "officer", "fB", false},
		{"officer at a sibling facility", "officer", "f2", false},
		{"org admin at a sibling facility", "orgadmin", "f2", true},
		{"org admin in another org", "orgadmin", "fB", false},
		{"officer naming the scoped facility", "officer", "f1", true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			raw := entry("emp")
			raw["facilityId"] = tt.facility
			_, err := s.dispatch(tt.principal, "payroll.add_manual_entry", raw)

			entries, _ := s.store.Entries(s.ctx, PeriodID(id.FacilityID(tt.facility), 2025, 3))
			if tt.allowed {
				s.Require().NoError(err)
				s.NotEmpty(entries)
				return
			}
			s.Require().Error(err)
			s.Equal(actions.KindBusinessRule, actions.KindOf(err))
			s.Empty(entries)
		})
	}
}

func (s *PayrollSuite) TestPayloadFacilityGuardsTransitions() {
	_, err := s.dispatch("officer", "payroll.lock_period", march(map[string]any{"facilityId": "fB"}))
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
	_, err = s.store.Period(s.ctx, PeriodID("fB", 2025, 3))
	s.True(workforce.IsNotFound(err))
}

// =============================================================================
// Variables
// =============================================================================

func (s *PayrollSuite) TestCalculateVariables() {
	for _, sh := range []workforce.Shift{
		{ID: "mon", Facility: "f1", Principal: "emp", Date: "2025-03-03", Start: "08:00", End: "16:00", Status: workforce.ShiftCompleted},
		{ID: "sun", Facility: "f1", Principal: "emp", Date: "2025-03-02", Start: "08:00", End: "14:00", Status: workforce.ShiftCompleted},
		{ID: "night", Facility: "f1", Principal: "emp", Date: "2025-03-04", Start: "22:00", End: "06:00", Status: workforce.ShiftCompleted},
		{ID: "ot", Facility: "f1", Principal: "emp", Date: "2025-03-05", Start: "16:00", End: "19:00", Status: workforce.ShiftCompleted, Type: workforce.ShiftOvertime},
		{ID: "draft", Facility: "f1", Principal: "emp", Date: "2025-03-06", Start: "08:00", End: "16:00", Status: workforce.ShiftDraft},
		{ID: "april", Facility: "f1", Principal: "emp", Date: "2025-04-01", Start: "08:00", End: "16:00", Status: workforce.ShiftCompleted},
	} {
		_, err := s.wf.SaveShift(s.ctx, sh)
		s.Require().NoError(err)
	}
	_, err := s.leaves.SaveRequest(s.ctx, leave.Request{
		ID: "vac", Principal: "emp", Type: leave.TypeVacation, StartDate: "2025-03-30", EndDate: "2025-04-03",
		Year: 2025, Status: leave.StatusApproved,
	})
	s.Require().NoError(err)

	res, err := s.dispatch("officer", "payroll.calculate_period_variables", march(nil))
	s.Require().NoError(err)
	out := res.Data.(variablesResult)
	s.Require().Len(out.Variables, 1)
	v := out.Variables[0]
	s.Equal(4, v.Shifts)
	s.InDelta(8, v.StandardHours, 0.001)
	s.InDelta(6, v.SundayHours, 0.001)
	s.InDelta(8, v.NightHours, 0.001)
	s.InDelta(3, v.OvertimeHours, 0.001)
	s.Equal(2, v.VacationDays)
	s.Equal([]string{"1 shift is still in DRAFT"}, out.Warnings)

	_, err = s.dispatch("officer", "payroll.lock_period", march(nil))
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
	s.Contains(err.Error(), "DRAFT")
}

// =============================================================================
// Lifecycle
// =============================================================================

func (s *PayrollSuite) TestFullLifecycle() {
	_, err := s.dispatch("officer", "payroll.add_manual_entry", entry("a"))
	s.Require().NoError(err)

	_, err = s.dispatch("fiduciary", "payroll.approve_global", march(nil))
	s.Equal(actions.KindBusinessRule, actions.KindOf(err), "approve needs a locked period")

	res, err := s.dispatch("officer", "payroll.lock_period", march(nil))
	s.Require().NoError(err)
	s.Equal(PeriodLocked, res.Data.(periodResult).Status)

	_, err = s.dispatch("officer", "payroll.approve_global", march(nil))
	s.Equal(actions.KindPermissionDenied, actions.KindOf(err))

	res, err = s.dispatch("fiduciary", "payroll.approve_global", march(nil))
	s.Require().NoError(err)
	s.Equal(PeriodApproved, res.Data.(periodResult).Status)

	s.remote.EXPECT().
		Call(gomock.Any(), remote.PayrollExport, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload any) (json.RawMessage, error) {
			req := payload.(exportRequest)
			s.Equal("f1:2025-03", req.PeriodID)
			s.Len(req.Entries, 1)
			return json.RawMessage(`{"jobId":"job-7"}`), nil
		})
	res, err = s.dispatch("officer", "payroll.export_data", march(nil))
	s.Require().NoError(err)
	exported := res.Data.(exportResult)
	s.Equal(PeriodSent, exported.Status)
	s.Equal("job-7", exported.JobID)

	s.notifier.FailFor["b"] = true
	res, err = s.dispatch("officer", "payroll.publish_payslips", march(map[string]any{
		"payslips": []any{
			map[string]any{"userId": "a", "documentUrl": "https://docs.example/a.pdf"},
			map[string]any{"userId": "b", "documentUrl": "https://docs.example/b.pdf"},
		},
	}))
	s.Require().NoError(err)
	published := res.Data.(publishResult)
	s.Equal(PeriodCompleted, published.Status)
	s.Equal(2, published.Published)
	s.Equal(1, published.Notified)
	s.Require().Len(published.Failures, 1)
	s.Equal("b", published.Failures[0].UserID)

	stored, err := s.store.Period(s.ctx, "f1:2025-03")
	s.Require().NoError(err)
	s.Len(stored.Payslips, 2)
	s.Equal(id.PrincipalID("officer"), stored.LockedBy)
	s.Equal(id.PrincipalID("fiduciary"), stored.ApprovedBy)
}

func (s *PayrollSuite) TestExportFailureIsInfraAndKeepsStatus() {
	s.seedPeriod(PeriodApproved)
	s.remote.EXPECT().
		Call(gomock.Any(), remote.PayrollExport, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "remote procedure payroll.export failed"))

	_, err := s.dispatch("officer", "payroll.export_data", march(nil))
	s.Equal(actions.KindInfra, actions.KindOf(err))

	stored, _ := s.store.Period(s.ctx, "f1:2025-03")
	s.Equal(PeriodApproved, stored.Status)

	terminal := s.h.Sink.Terminal("payroll.export_data")
	s.Require().Len(terminal, 1)
	s.Equal("infra", terminal[0].ErrorKind)
}

func (s *PayrollSuite) TestPublishRequiresSentPeriod() {
	s.seedPeriod(PeriodApproved)
	_, err := s.dispatch("officer", "payroll.publish_payslips", march(map[string]any{
		"payslips": []any{map[string]any{"userId": "a", "documentUrl": "https://docs.example/a.pdf"}},
	}))
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
	s.Empty(s.notifier.Sent())
}
