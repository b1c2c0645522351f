package org

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/actionstest"
	"github.com/InteriMed/Medishift-sub005/internal/contracts"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
	"github.com/InteriMed/Medishift-sub005/pkg/requestcontext"
)

// =============================================================================
// Organization Governance Test Suite
// =============================================================================
// Justification for unit tests: score arithmetic (penalties, floor, mean)
// and the idempotence rules of role standardization are pure business logic.

type OrgSuite struct {
	suite.Suite
	wf        *workforce.InMemoryStore
	contracts *contracts.InMemoryStore
	module    *Module
	h         *actionstest.Harness
	ctx       context.Context
	now       time.Time
}

func TestOrgSuite(t *testing.T) {
	suite.Run(t, new(OrgSuite))
}

func (s *OrgSuite) SetupTest() {
	s.now = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.wf = workforce.NewInMemoryStore()
	s.contracts = contracts.NewInMemoryStore()
	s.module = New(s.wf, s.contracts, saga.NewRunner(saga.NewInMemoryStore()), serial.New())
	s.h = actionstest.New(s.module.Actions()...)
	s.h.Resolver.
		Grant("boss", access.Grants(workforce.RoleOrgAdmin)...).
		Grant("root", access.Grants(workforce.RoleAdmin)...).
		Grant("emp", access.Grants(workforce.RoleEmployee)...)
}

func (s *OrgSuite) principal(p workforce.Principal) {
	p.OrgID = "o1"
	if p.Status == "" {
		p.Status = workforce.StatusActive
	}
	_, err := s.wf.SavePrincipal(s.ctx, p)
	s.Require().NoError(err)
}

func (s *OrgSuite) facility(fid id.FacilityID, org id.OrgID, members ...id.PrincipalID) {
	f := workforce.Facility{ID: fid, OrgID: org, Name: "Facility " + fid.String()}
	for _, m := range members {
		f.Members = append(f.Members, workforce.Membership{Principal: m, Role: workforce.RoleEmployee})
	}
	_, err := s.wf.SaveFacility(s.ctx, f)
	s.Require().NoError(err)
}

func (s *OrgSuite) signed(principal id.PrincipalID, facility id.FacilityID) {
	_, err := s.contracts.SaveContract(s.ctx, contracts.Contract{
		ID: id.ContractID("c-" + principal.String()), Principal: principal, Facility: facility, Status: contracts.StatusSigned,
	})
	s.Require().NoError(err)
}

func (s *OrgSuite) TestComplianceScore() {
	s.principal(workforce.Principal{ID: "a", Certifications: []workforce.Certification{
		{Name: "BLS", ExpiresOn: "2025-08-31"},
		{Name: "ACLS", ExpiresOn: "2026-01-01"},
	}})
	s.principal(workforce.Principal{ID: "b"})
	s.principal(workforce.Principal{ID: "gone", Status: workforce.StatusTerminated})
	s.signed("a", "f1")
	s.facility("f1", "o1", "a", "b", "gone")
	s.facility("f2", "o1")
	s.facility("other-org", "o2", "b")

	res, err := s.h.Dispatch(s.ctx, "boss", "f1", "org.audit_compliance_score", map[string]any{})
	s.Require().NoError(err)
	report := res.Data.(ComplianceReport)
	s.Equal("o1", report.OrgID)
	s.Require().Len(report.Facilities, 2)

	byID := map[string]FacilityScore{}
	for _, f := range report.Facilities {
		byID[f.FacilityID] = f
	}
	s.Equal(75, byID["f1"].Score, "one expired certification and one missing contract")
	s.Equal(2, byID["f1"].Employees)
	s.Equal(100, byID["f2"].Score)
	s.InDelta(87.5, report.NetworkAverage, 0.001)
}

func (s *OrgSuite) TestScoreFloorsAtZero() {
	var members []id.PrincipalID
	for i := range 8 {
		pid := id.PrincipalID(fmt.Sprintf("p%d", i))
		s.principal(workforce.Principal{ID: pid})
		members = append(members, pid)
	}
	s.facility("f1", "o1", members...)

	report, err := s.module.Score(s.ctx, "o1", s.now)
	s.Require().NoError(err)
	s.Equal(0, report.Facilities[0].Score)
}

func (s *OrgSuite) TestNoFacilitiesAveragesZero() {
	report, err := s.module.Score(s.ctx, "empty", s.now)
	s.Require().NoError(err)
	s.Empty(report.Facilities)
	s.Zero(report.NetworkAverage)
}

func (s *OrgSuite) TestComplianceNeedsGovernance() {
	s.facility("f1", "o1")
	_, err := s.h.Dispatch(s.ctx, "emp", "f1", "org.audit_compliance_score", map[string]any{})
	s.Equal(actions.KindPermissionDenied, actions.KindOf(err))
}

func (s *OrgSuite) TestOtherOrganizationIsOffLimits() {
	s.facility("f1", "o1", "a")
	s.facility("f3", "o2", "d")

	_, err := s.h.Dispatch(s.ctx, "boss", "f1", "org.audit_compliance_score", map[string]any{"orgId": "o2"})
	s.Require().Error(err)
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))

	_, err = s.h.Dispatch(s.ctx, "boss", "f1", "org.standardize_roles", map[string]any{
		"orgId":    "o2",
		"mappings": []any{map[string]any{"from": "employee", "to": "manager"}},
	})
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
	untouched, _ := s.wf.Facility(s.ctx, "f3")
	s.Equal(workforce.RoleEmployee, untouched.Members[0].Role)

	res, err := s.h.Dispatch(s.ctx, "boss", "f1", "org.audit_compliance_score", map[string]any{"orgId": "o1"})
	s.Require().NoError(err, "naming the scoped organization is allowed")
	s.Equal("o1", res.Data.(ComplianceReport).OrgID)

	res, err = s.h.Dispatch(s.ctx, "root", "f1", "org.audit_compliance_score", map[string]any{"orgId": "o2"})
	s.Require().NoError(err, "platform administrators cross organizations")
	s.Equal("o2", res.Data.(ComplianceReport).OrgID)
}

func (s *OrgSuite) TestStandardizeRoles() {
	s.facility("f1", "o1", "a", "b")
	s.facility("f2", "o1", "c")
	s.facility("f3", "o2", "d")

	res, err := s.h.Dispatch(s.ctx, "boss", "f1", "org.standardize_roles", map[string]any{
		"mappings": []any{map[string]any{"from": "employee", "to": "manager"}},
	})
	s.Require().NoError(err)
	out := res.Data.(standardizeResult)
	s.Equal(2, out.Facilities)
	s.Equal(3, out.MembershipsChanged)
	s.NotEmpty(out.IntentID)

	for _, fid := range []id.FacilityID{"f1", "f2"} {
		f, _ := s.wf.Facility(s.ctx, fid)
		for _, m := range f.Members {
			s.Equal(workforce.RoleManager, m.Role)
		}
	}
	untouched, _ := s.wf.Facility(s.ctx, "f3")
	s.Equal(workforce.RoleEmployee, untouched.Members[0].Role)
}

func (s *OrgSuite) TestStandardizeRejectsChains() {
	s.facility("f1", "o1", "a")
	_, err := s.h.Dispatch(s.ctx, "boss", "f1", "org.standardize_roles", map[string]any{
		"mappings": []any{
			map[string]any{"from": "employee", "to": "manager"},
			map[string]any{"from": "manager", "to": "hr"},
		},
	})
	s.Equal(actions.KindBusinessRule, actions.KindOf(err))
	s.Contains(err.Error(), "chained")
}
