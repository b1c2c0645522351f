package access

import (
	"context"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Scope is what a handler checks a payload-named target against: the
// caller's scoped facility and the organization it belongs to. Permissions
// are resolved for that facility only, so anything outside it needs its own
// authority.
type Scope struct {
	Facility workforce.Facility
}

func (s Scope) Org() id.OrgID {
	return s.Facility.OrgID
}

// sameFacility holds when the target is the scoped facility.
var sameFacility = actions.NewPredicate("scoped_facility", func(_ *actions.ExecutionContext, t scopeTarget) bool {
	return t.facility.ID == t.scope.Facility.ID
})

// orgWide holds for an org-level grant inside the scoped organization.
var orgWide = actions.NewPredicate("org_governance_in_org", func(ec *actions.ExecutionContext, t scopeTarget) bool {
	return ec.Has(OrgGovernance) && t.facility.OrgID == t.scope.Org()
})

// platformAdmin holds for platform administrators, whose grants are not
// tied to one organization.
var platformAdmin = actions.HasPermission[scopeTarget]("platform_admin", AdminAccess)

// facilityInScope is the rule for a payload-named facility.
var facilityInScope = actions.AnyOf(sameFacility, orgWide, platformAdmin)

type scopeTarget struct {
	scope    Scope
	facility workforce.Facility
}

// CallerScope loads the caller's scoped facility.
func CallerScope(ctx context.Context, store workforce.Store, ec *actions.ExecutionContext) (Scope, error) {
	facilityID, err := ec.RequireFacility()
	if err != nil {
		return Scope{}, err
	}
	f, err := store.Facility(ctx, facilityID)
	if err != nil {
		return Scope{}, workforce.Translate(err, "facility not found")
	}
	return Scope{Facility: f}, nil
}

// TargetFacility resolves the facility an action writes to. An empty given
// means the scoped facility. Any other facility must belong to the scoped
// organization and the caller must hold org-level grants there.
func TargetFacility(ctx context.Context, store workforce.Store, ec *actions.ExecutionContext, given string) (workforce.Facility, error) {
	scope, err := CallerScope(ctx, store, ec)
	if err != nil {
		return workforce.Facility{}, err
	}
	if given == "" || id.FacilityID(given) == scope.Facility.ID {
		return scope.Facility, nil
	}
	f, err := store.Facility(ctx, id.FacilityID(given))
	if err != nil {
		return workforce.Facility{}, workforce.Translate(err, "facility not found")
	}
	if err := actions.Require(ec, scopeTarget{scope: scope, facility: f}, facilityInScope); err != nil {
		return workforce.Facility{}, err
	}
	return f, nil
}

// TargetOrg resolves the organization an action reads or writes. An empty
// given means the scoped facility's organization; another organization is
// open to platform administrators only.
func TargetOrg(ctx context.Context, store workforce.Store, ec *actions.ExecutionContext, given string) (id.OrgID, error) {
	scope, err := CallerScope(ctx, store, ec)
	if err != nil {
		return "", err
	}
	if given == "" || id.OrgID(given) == scope.Org() {
		return scope.Org(), nil
	}
	target := scopeTarget{scope: scope, facility: workforce.Facility{OrgID: id.OrgID(given)}}
	if err := actions.Require(ec, target, platformAdmin); err != nil {
		return "", err
	}
	return id.OrgID(given), nil
}

// MemberOf reports whether principal holds a membership in facility, or
// anywhere in org when org is set.
func MemberOf(ctx context.Context, store workforce.Store, principal id.PrincipalID, facility id.FacilityID, org id.OrgID) (bool, error) {
	memberships, err := store.FacilitiesOf(ctx, principal)
	if err != nil {
		return false, workforce.Translate(err, "load memberships")
	}
	for _, f := range memberships {
		if f.ID == facility || (org != "" && f.OrgID == org) {
			return true, nil
		}
	}
	return false, nil
}
