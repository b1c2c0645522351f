package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/actionstest"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
	"github.com/InteriMed/Medishift-sub005/pkg/testutil"
)

// =============================================================================
// Risk Test Suite
// =============================================================================
// Justification for unit tests: the block cascade must delete exactly the
// shifts in scope, and a failure midway must leave a resumable intent rather
// than a half-blocked principal with no record.

// flakyBlocklist fails the first failures publishes.
type flakyBlocklist struct {
	*MemoryBlocklist
	failures int
}

func (f *flakyBlocklist) Publish(ctx context.Context, b BlockEntry) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("redis: connection refused")
	}
	return f.MemoryBlocklist.Publish(ctx, b)
}

type RiskSuite struct {
	suite.Suite
	store     *InMemoryStore
	wf        *workforce.InMemoryStore
	blocklist *flakyBlocklist
	runner    *saga.Runner
	h         *actionstest.Harness
	ctx       context.Context
}

func TestRiskSuite(t *testing.T) {
	suite.Run(t, new(RiskSuite))
}

func (s *RiskSuite) SetupTest() {
	s.ctx = testutil.CallerContext("hr", "f1", time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC))
	s.store = NewInMemoryStore()
	s.wf = workforce.NewInMemoryStore()
	s.blocklist = &flakyBlocklist{MemoryBlocklist: NewMemoryBlocklist()}
	s.runner = saga.NewRunner(saga.NewInMemoryStore())

	for _, p := range []workforce.Principal{
		{ID: "hr", OrgID: "o1"},
		{ID: "worker", OrgID: "o1"},
		{ID: "sibling", OrgID: "o1"},
		{ID: "stranger", OrgID: "o2"},
	} {
		p.Status = workforce.StatusActive
		_, err := s.wf.SavePrincipal(s.ctx, p)
		s.Require().NoError(err)
	}
	for _, f := range []workforce.Facility{
		{ID: "f1", OrgID: "o1", Members: []workforce.Membership{
			{Principal: "hr", Role: workforce.RoleHR},
			{Principal: "worker", Role: workforce.RoleEmployee},
		}},
		{ID: "f2", OrgID: "o1", Members: []workforce.Membership{
			{Principal: "worker", Role: workforce.RoleEmployee},
			{Principal: "sibling", Role: workforce.RoleEmployee},
		}},
		{ID: "x1", OrgID: "o2", Members: []workforce.Membership{
			{Principal: "stranger", Role: workforce.RoleEmployee},
		}},
	} {
		_, err := s.wf.SaveFacility(s.ctx, f)
		s.Require().NoError(err)
	}
	for _, sh := range []workforce.Shift{
		{ID: "f1-future", Facility: "f1", Principal: "worker", Date: "2025-05-20", Status: workforce.ShiftPublished},
		{ID: "f1-today", Facility: "f1", Principal: "worker", Date: "2025-05-15", Status: workforce.ShiftPublished},
		{ID: "f1-past", Facility: "f1", Principal: "worker", Date: "2025-05-01", Status: workforce.ShiftCompleted},
		{ID: "f2-future", Facility: "f2", Principal: "worker", Date: "2025-06-01", Status: workforce.ShiftPublished},
		{ID: "other", Facility: "f1", Principal: "hr", Date: "2025-05-20", Status: workforce.ShiftPublished},
	} {
		_, err := s.wf.SaveShift(s.ctx, sh)
		s.Require().NoError(err)
	}

	m := New(s.store, s.wf, s.blocklist, s.runner, serial.New())
	s.h = actionstest.New(m.Actions()...)
	s.h.Resolver.
		Grant("hr", access.Grants(workforce.RoleHR)...).
		Grant("worker", access.Grants(workforce.RoleEmployee)...)
}

func (s *RiskSuite) block(scope Scope) (*actions.Result, error) {
	return s.h.Dispatch(s.ctx, "hr", "f1", "risk.block_user", map[string]any{
		"userId": "worker", "scope": string(scope), "reason": "repeated no-shows",
	})
}

func (s *RiskSuite) remaining() []string {
	shifts, err := s.wf.ShiftsOf(s.ctx, "worker")
	s.Require().NoError(err)
	var ids []string
	for _, sh := range shifts {
		ids = append(ids, sh.ID.String())
	}
	return ids
}

func (s *RiskSuite) TestFacilityScope() {
	res, err := s.block(ScopeFacility)
	s.Require().NoError(err)
	out := res.Data.(blockResult)
	s.Equal(1, out.DeletedShifts)

	s.ElementsMatch([]string{"f1-today", "f1-past", "f2-future"}, s.remaining())

	worker, _ := s.wf.Principal(s.ctx, "worker")
	s.Equal(workforce.StatusBlocked, worker.Status)

	here, _ := s.blocklist.IsBlocked(s.ctx, "worker", "f1")
	elsewhere, _ := s.blocklist.IsBlocked(s.ctx, "worker", "f2")
	s.True(here)
	s.False(elsewhere)

	other, err := s.wf.Shift(s.ctx, "other")
	s.Require().NoError(err, "other principals' shifts stay")
	s.Equal(id.PrincipalID("hr"), other.Principal)
}

func (s *RiskSuite) TestOrgScope() {
	res, err := s.block(ScopeOrg)
	s.Require().NoError(err)
	s.Equal(2, res.Data.(blockResult).DeletedShifts)
	s.ElementsMatch([]string{"f1-today", "f1-past"}, s.remaining())

	elsewhere, _ := s.blocklist.IsBlocked(s.ctx, "worker", "f9")
	s.True(elsewhere)

	terminal := s.h.Sink.Terminal("risk.block_user")
	s.Require().Len(terminal, 1)
	s.Equal(audit.CategorySecurity, terminal[0].Category)
	s.Equal(2, terminal[0].Metadata["deletedShifts"])
}

func (s *RiskSuite) blockUser(user string, scope Scope) error {
	_, err := s.h.Dispatch(s.ctx, "hr", "f1", "risk.block_user", map[string]any{
		"userId": user, "scope": string(scope), "reason": "repeated no-shows",
	})
	return err
}

func (s *RiskSuite) TestCannotBlockOutsideOrganization() {
	_, err := s.wf.SaveShift(s.ctx, workforce.Shift{ID: "x1-future", Facility: "x1", Principal: "stranger", Date: "2025-05-20", Status: workforce.ShiftPublished})
	s.Require().NoError(err)

	for _, scope := range []Scope{ScopeFacility, ScopeOrg} {
		err := s.blockUser("stranger", scope)
		s.Require().Error(err)
		s.Equal(actions.KindBusinessRule, actions.KindOf(err))
		s.Contains(err.Error(), "target_in_scope")
	}

	stranger, _ := s.wf.Principal(s.ctx, "stranger")
	s.Equal(workforce.StatusActive, stranger.Status)
	_, err = s.wf.Shift(s.ctx, "x1-future")
	s.NoError(err)
	s.Empty(s.h.Sink.Phase("risk.block_user", audit.PhaseSuccess))
}

func (s *RiskSuite) TestFacilityBlockNeedsLocalMember() {
	err := s.blockUser("sibling", ScopeFacility)
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))

	s.Require().NoError(s.blockUser("sibling", ScopeOrg))
	sibling, _ := s.wf.Principal(s.ctx, "sibling")
	s.Equal(workforce.StatusBlocked, sibling.Status)
}

func (s *RiskSuite) TestOrgBlockKeepsShiftsOfOtherOrganizations() {
	_, err := s.wf.SaveShift(s.ctx, workforce.Shift{ID: "x1-moonlight", Facility: "x1", Principal: "worker", Date: "2025-05-22", Status: workforce.ShiftPublished})
	s.Require().NoError(err)

	res, err := s.block(ScopeOrg)
	s.Require().NoError(err)
	s.Equal(2, res.Data.(blockResult).DeletedShifts)
	s.ElementsMatch([]string{"f1-today", "f1-past", "x1-moonlight"}, s.remaining())
}

func (s *RiskSuite) TestShiftLaterTodayCountsAsFuture() {
	for _, sh := range []workforce.Shift{
		{ID: "f1-morning", Facility: "f1", Principal: "worker", Date: "2025-05-15", Start: "07:00", End: "11:00", Status: workforce.ShiftPublished},
		{ID: "f1-evening", Facility: "f1", Principal: "worker", Date: "2025-05-15", Start: "18:00", End: "23:00", Status: workforce.ShiftPublished},
	} {
		_, err := s.wf.SaveShift(s.ctx, sh)
		s.Require().NoError(err)
	}

	res, err := s.block(ScopeFacility)
	s.Require().NoError(err)
	s.Equal(2, res.Data.(blockResult).DeletedShifts)
	s.ElementsMatch([]string{"f1-today", "f1-past", "f1-morning", "f2-future"}, s.remaining())
}

func (s *RiskSuite) TestCannotBlockSelf() {
	_, err := s.h.Dispatch(s.ctx, "hr", "f1", "risk.block_user", map[string]any{
		"userId": "hr", "scope": "THIS_FACILITY", "reason": "test",
	})
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
	s.Contains(err.Error(), "notSelf")
}

func (s *RiskSuite) TestEmployeeCannotBlock() {
	_, err := s.h.Dispatch(s.ctx, "worker", "f1", "risk.block_user", map[string]any{
		"userId": "hr", "scope": "THIS_FACILITY", "reason": "test",
	})
	s.Equal(actions.KindPermissionDenied, actions.KindOf(err))
	s.Empty(s.h.Sink.Phase("risk.block_user", audit.PhaseSuccess))
}

func (s *RiskSuite) TestCacheFailureLeavesResumableIntent() {
	s.blocklist.failures = 1

	_, err := s.block(ScopeFacility)
	s.Require().Error(err)
	s.Equal(actions.KindInfra, actions.KindOf(err))
	s.Contains(err.Error(), "stopped at step cache")

	worker, _ := s.wf.Principal(s.ctx, "worker")
	s.Equal(workforce.StatusBlocked, worker.Status)
	blocked, _ := s.blocklist.IsBlocked(s.ctx, "worker", "f1")
	s.False(blocked)

	resumed, err := s.runner.ResumePending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, resumed)

	blocked, _ = s.blocklist.IsBlocked(s.ctx, "worker", "f1")
	s.True(blocked)
	entries, _ := s.store.BlocksOf(s.ctx, "worker")
	s.Require().Len(entries, 1)
	s.Equal(1, entries[0].DeletedShifts, "resume does not recount deleted shifts")
}

func (s *RiskSuite) TestReportIncident() {
	res, err := s.h.Dispatch(s.ctx, "worker", "f1", "risk.report_incident", map[string]any{
		"subjectId":   "hr",
		"severity":    "CRITICAL",
		"category":    "PATIENT_SAFETY",
		"description": "medication left unattended in corridor",
	})
	s.Require().NoError(err)
	incident := res.Data.(Incident)
	s.Equal(id.FacilityID("f1"), incident.Facility)

	stored, _ := s.store.Incidents(s.ctx, "f1")
	s.Len(stored, 1)
	s.Len(s.h.Sink.Phase("risk.report_incident", audit.PhaseNote), 1)

	terminal := s.h.Sink.Terminal("risk.report_incident")
	s.Require().Len(terminal, 1)
	s.NotContains(terminal[0].Metadata, "description")
}
