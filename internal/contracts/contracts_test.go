package contracts

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
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/remote/mocks"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
	"github.com/InteriMed/Medishift-sub005/pkg/requestcontext"
)

// =============================================================================
// Contracts Test Suite
// =============================================================================
// Justification for unit tests: contract reads combine three ownership
// predicates with compensation redaction, and termination is a multi-step
// saga whose resume must not repeat completed remote calls.

type ContractsSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	remote *mocks.MockCaller
	store  *InMemoryStore
	wf     *workforce.InMemoryStore
	runner *saga.Runner
	h      *actionstest.Harness
	ctx    context.Context
}

func TestContractsSuite(t *testing.T) {
	suite.Run(t, new(ContractsSuite))
}

func (s *ContractsSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.remote = mocks.NewMockCaller(s.ctrl)
	s.store = NewInMemoryStore()
	s.wf = workforce.NewInMemoryStore()
	s.runner = saga.NewRunner(saga.NewInMemoryStore())
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))

	for _, p := range []id.PrincipalID{"emp", "mgr", "hr", "stranger"} {
		_, err := s.wf.SavePrincipal(s.ctx, workforce.Principal{ID: p, Name: string(p), Status: workforce.StatusActive})
		s.Require().NoError(err)
	}
	_, err := s.wf.SaveFacility(s.ctx, workforce.Facility{ID: "f1", Name: "Clinic"})
	s.Require().NoError(err)

	m := New(s.store, s.wf, s.remote, s.runner, serial.New())
	s.h = actionstest.New(m.Actions()...)
	s.h.Resolver.
		Grant("emp", access.Grants(workforce.RoleEmployee)...).
		Grant("stranger", access.Grants(workforce.RoleEmployee)...).
		Grant("mgr", access.Grants(workforce.RoleManager)...).
		Grant("hr", access.Grants(workforce.RoleHR)...)
}

func (s *ContractsSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ContractsSuite) seedContract(status Status) Contract {
	rate := 42.5
	c, err := s.store.SaveContract(s.ctx, Contract{
		ID:          "c1",
		Principal:   "emp",
		Facility:    "f1",
		Role:        workforce.RoleEmployee,
		Manager:     "mgr",
		StartDate:   "2025-01-01",
		WeeklyHours: 40,
		HourlyRate:  &rate,
		Status:      status,
	})
	s.Require().NoError(err)
	return c
}

func (s *ContractsSuite) dispatch(principal, action string, raw map[string]any) (*actions.Result, error) {
	return s.h.Dispatch(s.ctx, principal, "f1", action, raw)
}

// =============================================================================
// Read
// =============================================================================

func (s *ContractsSuite) TestGetContract() {
	s.seedContract(StatusSigned)
	get := map[string]any{"contractId": "c1"}

	s.Run("unrelated principal is denied", func() {
		_, err := s.dispatch("stranger", "contracts.get_contract", get)
		s.Equal(actions.KindBusinessRule, actions.KindOf(err))
		s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
		s.Contains(err.Error(), "isSelf|isElevated|isManager")
	})

	s.Run("subject gets the redacted view", func() {
		res, err := s.dispatch("emp", "contracts.get_contract", get)
		s.Require().NoError(err)
		v := res.Data.(View)
		s.Nil(v.HourlyRate)
		s.Nil(v.MonthlySalary)
		s.True(v.Redacted)

		body, err := json.Marshal(v)
		s.Require().NoError(err)
		s.NotContains(string(body), "hourlyRate")
	})

	s.Run("assigned manager gets the redacted view", func() {
		res, err := s.dispatch("mgr", "contracts.get_contract", get)
		s.Require().NoError(err)
		s.Nil(res.Data.(View).HourlyRate)
	})

	s.Run("elevated viewer sees compensation", func() {
		res, err := s.dispatch("hr", "contracts.get_contract", get)
		s.Require().NoError(err)
		v := res.Data.(View)
		s.Require().NotNil(v.HourlyRate)
		s.InDelta(42.5, *v.HourlyRate, 0.001)
	})

	s.Run("unknown contract", func() {
		_, err := s.dispatch("hr", "contracts.get_contract", map[string]any{"contractId": "nope"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Create and sign
// =============================================================================

func (s *ContractsSuite) createPayload() map[string]any {
	return map[string]any{
		"userId":      "emp",
		"facilityId":  "f1",
		"role":        "employee",
		"startDate":   "2025-07-01",
		"weeklyHours": 42,
		"hourlyRate":  38,
		"managerId":   "mgr",
	}
}

func (s *ContractsSuite) TestCreateAtForeignFacilityWritesNothing() {
	_, err := s.wf.SaveFacility(s.ctx, workforce.Facility{ID: "elsewhere", OrgID: "other-org", Name: "Other"})
	s.Require().NoError(err)
	payload := s.createPayload()
	payload["facilityId"] = "elsewhere"

	_, err = s.dispatch("hr", "contracts.create_contract", payload)
	s.Require().Error(err)
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
	s.Contains(err.Error(), "scoped_facility")

	stored, err := s.store.ContractsOf(s.ctx, "emp")
	s.Require().NoError(err)
	s.Empty(stored)
}

func (s *ContractsSuite) TestCreateRendersBeforeSaving() {
	s.remote.EXPECT().
		Call(gomock.Any(), remote.RenderContractPDF, gomock.Any()).
		Return(json.RawMessage(`{"documentUrl":"https://docs.example/c.pdf"}`), nil)

	res, err := s.dispatch("hr", "contracts.create_contract", s.createPayload())
	s.Require().NoError(err)
	v := res.Data.(View)
	s.Equal(StatusDraft, v.Status)
	s.Equal("https://docs.example/c.pdf", v.DocumentURL)

	stored, err := s.store.ContractsOf(s.ctx, "emp")
	s.Require().NoError(err)
	s.Len(stored, 1)
}

func (s *ContractsSuite) TestCreateRemoteFailureWritesNothing() {
	s.remote.EXPECT().
		Call(gomock.Any(), remote.RenderContractPDF, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "remote procedure contracts.render_pdf failed"))

	_, err := s.dispatch("hr", "contracts.create_contract", s.createPayload())
	s.Equal(actions.KindInfra, actions.KindOf(err))

	stored, _ := s.store.ContractsOf(s.ctx, "emp")
	s.Empty(stored)
}

func (s *ContractsSuite) TestCreateNeedsCompensation() {
	raw := s.createPayload()
	delete(raw, "hourlyRate")
	_, err := s.dispatch("hr", "contracts.create_contract", raw)
	s.Equal(actions.KindValidation, actions.KindOf(err))
}

func (s *ContractsSuite) TestSign() {
	s.seedContract(StatusDraft)
	sign := map[string]any{"contractId": "c1"}

	_, err := s.dispatch("stranger", "contracts.sign_contract", sign)
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))

	res, err := s.dispatch("emp", "contracts.sign_contract", sign)
	s.Require().NoError(err)
	s.Equal(StatusSigned, res.Data.(View).Status)

	_, err = s.dispatch("emp", "contracts.sign_contract", sign)
	s.Contains(err.Error(), "only DRAFT")
}

// =============================================================================
// Termination saga
// =============================================================================

func (s *ContractsSuite) TestTerminateResumesWithoutRepeatingSteps() {
	s.seedContract(StatusSigned)
	for _, sh := range []workforce.Shift{
		{ID: "future-f1", Facility: "f1", Principal: "emp", Date: "2025-07-02", Status: workforce.ShiftPublished},
		{ID: "future-f2", Facility: "f2", Principal: "emp", Date: "2025-07-02", Status: workforce.ShiftPublished},
		{ID: "past-f1", Facility: "f1", Principal: "emp", Date: "2025-06-01", Status: workforce.ShiftCompleted},
	} {
		_, err := s.wf.SaveShift(s.ctx, sh)
		s.Require().NoError(err)
	}

	s.remote.EXPECT().
		Call(gomock.Any(), remote.TerminationLetter, gomock.Any()).
		Return(json.RawMessage(`{"documentUrl":"https://docs.example/letter.pdf"}`), nil).
		Times(1)
	gomock.InOrder(
		s.remote.EXPECT().
			Call(gomock.Any(), remote.TerminationBatch, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "batch service down")),
		s.remote.EXPECT().
			Call(gomock.Any(), remote.TerminationBatch, gomock.Any()).
			Return(json.RawMessage(`{"jobId":"batch-1"}`), nil),
	)

	_, err := s.dispatch("hr", "contracts.terminate_employment", map[string]any{
		"contractId": "c1", "reason": "end of assignment", "effectiveDate": "2025-06-30",
	})
	s.Require().Error(err)
	s.Equal(actions.KindInfra, actions.KindOf(err))
	s.Contains(err.Error(), "stopped at step batch")

	c, _ := s.store.Contract(s.ctx, "c1")
	s.Equal(StatusTerminated, c.Status)
	s.Equal(1, c.Termination.CancelledShifts)
	s.Empty(c.Termination.BatchJobID)

	f1, _ := s.wf.Shift(s.ctx, "future-f1")
	f2, _ := s.wf.Shift(s.ctx, "future-f2")
	past, _ := s.wf.Shift(s.ctx, "past-f1")
	s.Equal(workforce.ShiftCancelled, f1.Status)
	s.Equal(workforce.ShiftPublished, f2.Status)
	s.Equal(workforce.ShiftCompleted, past.Status)

	terminal := s.h.Sink.Terminal("contracts.terminate_employment")
	s.Require().Len(terminal, 1)
	intentID, err := id.ParseIntentID(terminal[0].Metadata["intentId"].(string))
	s.Require().NoError(err)

	intent, err := s.runner.Resume(s.ctx, intentID)
	s.Require().NoError(err)
	s.Equal(saga.StatusDone, intent.Status)

	c, _ = s.store.Contract(s.ctx, "c1")
	s.Equal("batch-1", c.Termination.BatchJobID)
	s.Equal("https://docs.example/letter.pdf", c.Termination.LetterURL)
	s.Equal(1, c.Termination.CancelledShifts)
}

func (s *ContractsSuite) TestTerminateTwiceIsRejected() {
	s.seedContract(StatusTerminated)
	_, err := s.dispatch("hr", "contracts.terminate_employment", map[string]any{"contractId": "c1", "reason": "again"})
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
}
