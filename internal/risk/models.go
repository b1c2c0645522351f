// Package risk blocks principals and records incidents. Blocking cascades
// to the principal's future shifts and is run as a resumable saga.
package risk

import (
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

type Scope string

const (
	ScopeFacility Scope = "THIS_FACILITY"
	ScopeOrg      Scope = "ENTIRE_ORG"
)

// BlockEntry is the blocklist record. A facility-scoped entry covers
// Facility only; an org-scoped one covers every facility.
type BlockEntry struct {
	ID            string
	Principal     id.PrincipalID
	Facility      id.FacilityID
	Org           id.OrgID
	Scope         Scope
	Reason        string
	BlockedBy     id.PrincipalID
	CreatedAt     time.Time
	DeletedShifts int
}

// Covers reports whether the entry blocks access at facility.
func (b BlockEntry) Covers(facility id.FacilityID) bool {
	return b.Scope == ScopeOrg || b.Facility == facility
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severities = []string{string(SeverityLow), string(SeverityMedium), string(SeverityHigh), string(SeverityCritical)}

var categories = []string{"PATIENT_SAFETY", "MISCONDUCT", "NO_SHOW", "DATA_PROTECTION", "WORKPLACE_SAFETY", "OTHER"}

type Incident struct {
	ID          string         `json:"id"`
	Reporter    id.PrincipalID `json:"reporterId"`
	Subject     id.PrincipalID `json:"subjectId,omitempty"`
	Facility    id.FacilityID  `json:"facilityId"`
	Severity    Severity       `json:"severity"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"createdAt"`
}
