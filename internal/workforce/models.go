// Package workforce holds the shared aggregates every domain module reads:
// principals, facilities with their memberships, and shifts.
package workforce

import (
	"slices"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/email"
)

type PrincipalStatus string

const (
	StatusActive     PrincipalStatus = "ACTIVE"
	StatusBlocked    PrincipalStatus = "BLOCKED"
	StatusTerminated PrincipalStatus = "TERMINATED"
)

type CertificationStatus string

const (
	CertificationValid   CertificationStatus = "VALID"
	CertificationExpired CertificationStatus = "EXPIRED"
)

// Certification is a professional credential. ExpiresOn is YYYY-MM-DD; an
// empty value never expires.
type Certification struct {
	Name      string
	ExpiresOn string
	Status    CertificationStatus
}

// Principal is a professional or staff member.
type Principal struct {
	ID             id.PrincipalID
	OrgID          id.OrgID
	Name           string
	Email          string
	Status         PrincipalStatus
	Skills         []string
	Certifications []Certification
	Version        int
}

// DisplayName is the name used in notifications.
func (p Principal) DisplayName() string {
	return email.DisplayName(p.Name, p.Email)
}

func (p Principal) IsBlocked() bool {
	return p.Status == StatusBlocked
}

func (p Principal) clone() Principal {
	p.Skills = slices.Clone(p.Skills)
	p.Certifications = slices.Clone(p.Certifications)
	return p
}

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleOrgAdmin       Role = "org_admin"
	RoleManager        Role = "manager"
	RoleHR             Role = "hr"
	RolePayrollOfficer Role = "payroll_officer"
	RoleFiduciary      Role = "fiduciary"
	RoleEmployee       Role = "employee"
)

// Membership places a principal in a facility with a role.
type Membership struct {
	Principal id.PrincipalID
	Role      Role
	Manager   id.PrincipalID
}

// Facility is a site belonging to an organization.
type Facility struct {
	ID      id.FacilityID
	OrgID   id.OrgID
	Name    string
	Members []Membership
	Version int
}

// Member returns the membership of principal, if any.
func (f Facility) Member(principal id.PrincipalID) (Membership, bool) {
	for _, m := range f.Members {
		if m.Principal == principal {
			return m, true
		}
	}
	return Membership{}, false
}

func (f Facility) clone() Facility {
	f.Members = slices.Clone(f.Members)
	return f
}

type ShiftStatus string

const (
	ShiftDraft     ShiftStatus = "DRAFT"
	ShiftPublished ShiftStatus = "PUBLISHED"
	ShiftCompleted ShiftStatus = "COMPLETED"
	ShiftCancelled ShiftStatus = "CANCELLED"
)

type ShiftType string

const (
	ShiftStandard ShiftType = "STANDARD"
	ShiftOvertime ShiftType = "OVERTIME"
)

// Shift is one scheduled slot. Date is YYYY-MM-DD, Start and End are HH:MM
// in facility-local time; End before Start crosses midnight.
type Shift struct {
	ID        id.ShiftID
	Facility  id.FacilityID
	Principal id.PrincipalID
	Date      string
	Start     string
	End       string
	Status    ShiftStatus
	Type      ShiftType
	Version   int
}
