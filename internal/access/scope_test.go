package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// ScopeSuite covers payload-named targets against permissions resolved for
// the scoped facility only.
type ScopeSuite struct {
	suite.Suite
	ctx      context.Context
	store    *workforce.InMemoryStore
	resolver *Resolver
}

func TestScopeSuite(t *testing.T) {
	suite.Run(t, new(ScopeSuite))
}

func (s *ScopeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = workforce.NewInMemoryStore()
	s.resolver = NewResolver(s.store)

	for _, p := range []id.PrincipalID{"officer", "boss", "root", "worker"} {
		_, err := s.store.SavePrincipal(s.ctx, workforce.Principal{ID: p, Status: workforce.StatusActive})
		s.Require().NoError(err)
	}
	for _, f := range []workforce.Facility{
		{ID: "f1", OrgID: "o1", Members: []workforce.Membership{
			{Principal: "officer", Role: workforce.RolePayrollOfficer},
			{Principal: "boss", Role: workforce.RoleOrgAdmin},
			{Principal: "worker", Role: workforce.RoleEmployee},
		}},
		{ID: "f2", OrgID: "o1"},
		{ID: "x1", OrgID: "o2", Members: []workforce.Membership{
			{Principal: "root", Role: workforce.RoleAdmin},
		}},
	} {
		_, err := s.store.SaveFacility(s.ctx, f)
		s.Require().NoError(err)
	}
}

func (s *ScopeSuite) ec(principal id.PrincipalID, facility id.FacilityID) *actions.ExecutionContext {
	perms, err := s.resolver.Resolve(s.ctx, principal, facility)
	s.Require().NoError(err)
	return actions.NewExecutionContext("test.scope", actions.Caller{Principal: principal, Facility: facility}, perms, time.Now())
}

func (s *ScopeSuite) TestTargetFacility() {
	tests := []struct {
		name      string
		principal id.PrincipalID
		scoped    id.FacilityID
		given     string
		want      id.FacilityID
		code      dErrors.Code
	}{
		{"empty means the scoped facility", "officer", "f1", "", "f1", ""},
		{"naming the scoped facility", "officer", "f1", "f1", "f1", ""},
		{"facility grants stop at the facility", "officer", "f1", "f2", "", dErrors.CodeAccessDenied},
		{"no reach into another org", "officer", "f1", "x1", "", dErrors.CodeAccessDenied},
		{"org admin inside the org", "boss", "f1", "f2", "f2", ""},
		{"org admin outside the org", "boss", "f1", "x1", "", dErrors.CodeAccessDenied},
		{"platform admin anywhere", "root", "x1", "f2", "f2", ""},
		{"unknown facility", "boss", "f1", "nowhere", "", dErrors.CodeNotFound},
		{"no scope at all", "officer", "", "f1", "", dErrors.CodeBusinessRule},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			f, err := TargetFacility(s.ctx, s.store, s.ec(tt.principal, tt.scoped), tt.given)
			if tt.code != "" {
				s.Require().Error(err)
				s.Equal(tt.code, dErrors.CodeOf(err))
				return
			}
			s.Require().NoError(err)
			s.Equal(tt.want, f.ID)
		})
	}
}

func (s *ScopeSuite) TestTargetOrg() {
	org, err := TargetOrg(s.ctx, s.store, s.ec("boss", "f1"), "")
	s.Require().NoError(err)
	s.Equal(id.OrgID("o1"), org)

	_, err = TargetOrg(s.ctx, s.store, s.ec("boss", "f1"), "o2")
	s.Equal(dErrors.CodeAccessDenied, dErrors.CodeOf(err))

	org, err = TargetOrg(s.ctx, s.store, s.ec("root", "x1"), "o1")
	s.Require().NoError(err)
	s.Equal(id.OrgID("o1"), org)
}

func (s *ScopeSuite) TestMemberOf() {
	here, err := MemberOf(s.ctx, s.store, "worker", "f1", "")
	s.Require().NoError(err)
	s.True(here)

	sibling, err := MemberOf(s.ctx, s.store, "worker", "f2", "")
	s.Require().NoError(err)
	s.False(sibling)

	inOrg, err := MemberOf(s.ctx, s.store, "worker", "f2", "o1")
	s.Require().NoError(err)
	s.True(inOrg)

	elsewhere, err := MemberOf(s.ctx, s.store, "root", "f1", "o1")
	s.Require().NoError(err)
	s.False(elsewhere)
}
