package admin

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
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/memory"
)

// =============================================================================
// Admin Actions Test Suite
// =============================================================================
// Justification for unit tests: operators recover half-applied fan-outs
// through these actions, so the resume/compensate switch and the audit
// listing filters must behave exactly.

type AdminSuite struct {
	suite.Suite
	audit  *memory.InMemoryStore
	runner *saga.Runner
	h      *actionstest.Harness
	ctx    context.Context
	failOn map[string]bool
	undone []string
}

func TestAdminSuite(t *testing.T) {
	suite.Run(t, new(AdminSuite))
}

func (s *AdminSuite) SetupTest() {
	s.ctx = context.Background()
	s.audit = memory.NewInMemoryStore()
	s.runner = saga.NewRunner(saga.NewInMemoryStore())
	s.failOn = map[string]bool{}
	s.undone = nil
	s.runner.Register("test.fanout", saga.Funcs{
		Do: func(_ context.Context, _ saga.Intent, step string) error {
			if s.failOn[step] {
				return errors.New("downstream unavailable")
			}
			return nil
		},
		Undo: func(_ context.Context, _ saga.Intent, step string) error {
			s.undone = append(s.undone, step)
			return nil
		},
	})
	s.h = actionstest.New(New(s.audit, s.runner).Actions()...)
	s.h.Resolver.
		Grant("root", access.Grants(workforce.RoleAdmin)...).
		Grant("boss", access.Grants(workforce.RoleOrgAdmin)...)
}

func (s *AdminSuite) stuckIntent() id.IntentID {
	s.failOn["b"] = true
	intent, err := s.runner.Start(s.ctx, "test.fanout", "root", map[string]string{}, []string{"a", "b", "c"})
	s.Require().Error(err)
	s.Require().False(intent.ID.IsNil())
	s.failOn["b"] = false
	return intent.ID
}

func (s *AdminSuite) TestResumeIntent() {
	intentID := s.stuckIntent()

	res, err := s.h.Dispatch(s.ctx, "root", "", "admin.resume_intent", map[string]any{"intentId": intentID.String()})
	s.Require().NoError(err)
	out := res.Data.(IntentResponse)
	s.Equal(string(saga.StatusDone), out.Status)
	s.Equal(3, out.StepsDone)

	ev := s.h.Sink.Terminal("admin.resume_intent")
	s.Require().Len(ev, 1)
	s.Equal(1, ev[0].Metadata["stepsDoneBefore"])
	s.Equal(intentID.String(), ev[0].EntityID)
}

func (s *AdminSuite) TestCompensateIntent() {
	intentID := s.stuckIntent()

	res, err := s.h.Dispatch(s.ctx, "root", "", "admin.resume_intent", map[string]any{
		"intentId": intentID.String(), "compensate": true,
	})
	s.Require().NoError(err)
	s.Equal(string(saga.StatusCompensated), res.Data.(IntentResponse).Status)
	s.Equal([]string{"a"}, s.undone)
}

func (s *AdminSuite) TestResumeRequiresAdmin() {
	intentID := s.stuckIntent()
	_, err := s.h.Dispatch(s.ctx, "boss", "", "admin.resume_intent", map[string]any{"intentId": intentID.String()})
	s.Equal(actions.KindPermissionDenied, actions.KindOf(err))
}

func (s *AdminSuite) TestResumeUnknownIntent() {
	_, err := s.h.Dispatch(s.ctx, "root", "", "admin.resume_intent", map[string]any{"intentId": id.NewIntentID().String()})
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))

	_, err = s.h.Dispatch(s.ctx, "root", "", "admin.resume_intent", map[string]any{"intentId": "nope"})
	s.Equal(actions.KindValidation, actions.KindOf(err))
}

func (s *AdminSuite) TestListAudit() {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, e := range []audit.Event{
		{ActorID: "a", ActionID: "payroll.lock_period", Phase: audit.PhaseSuccess},
		{ActorID: "b", ActionID: "payroll.lock_period", Phase: audit.PhaseFailure, ErrorKind: "business_rule"},
		{ActorID: "a", ActionID: "leave.request", Phase: audit.PhaseSuccess, Metadata: map[string]any{"days": 3}},
		{ActorID: "a", ActionID: "payroll.lock_period", Phase: audit.PhaseSuccess},
	} {
		e.ID = id.NewEventID()
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.audit.Append(s.ctx, e))
	}

	list := func(raw map[string]any) AuditListResponse {
		res, err := s.h.Dispatch(s.ctx, "root", "", "admin.list_audit", raw)
		s.Require().NoError(err)
		return res.Data.(AuditListResponse)
	}

	s.Run("recent first with limit", func() {
		out := list(map[string]any{"limit": 2})
		s.Require().Len(out.Records, 2)
		s.Equal("payroll.lock_period", out.Records[0].ActionID)
		s.Equal("leave.request", out.Records[1].ActionID)
		s.Equal(3, out.Records[1].Metadata["days"])
	})

	s.Run("actor and action combined", func() {
		out := list(map[string]any{"actorId": "a", "actionId": "payroll.lock_period"})
		s.Equal(2, out.Total)
		for _, r := range out.Records {
			s.Equal("a", r.ActorID)
			s.Equal("payroll.lock_period", r.ActionID)
		}
		s.True(out.Records[0].Timestamp.After(out.Records[1].Timestamp))
	})

	s.Run("by action", func() {
		out := list(map[string]any{"actionId": "payroll.lock_period"})
		s.Equal(3, out.Total)
		s.Equal("business_rule", out.Records[1].ErrorKind)
	})

	s.Run("limit out of range", func() {
		_, err := s.h.Dispatch(s.ctx, "root", "", "admin.list_audit", map[string]any{"limit": 501})
		s.Equal(actions.KindValidation, actions.KindOf(err))
	})
}
