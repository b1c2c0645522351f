// Package contracts manages employment contracts: creation with a rendered
// PDF, signature by the employee, reads with compensation redaction, and
// termination as a resumable saga.
package contracts

import (
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusSigned     Status = "SIGNED"
	StatusTerminated Status = "TERMINATED"
)

// Contract binds a principal to a facility in a role.
type Contract struct {
	ID            id.ContractID
	Principal     id.PrincipalID
	Facility      id.FacilityID
	Role          workforce.Role
	Manager       id.PrincipalID
	StartDate     string
	EndDate       string
	WeeklyHours   int
	HourlyRate    *float64
	MonthlySalary *float64
	Status        Status
	DocumentURL   string
	CreatedBy     id.PrincipalID
	CreatedAt     time.Time
	SignedAt      time.Time

	Termination *Termination
	Version     int
}

// Termination tracks the progress of a termination saga on the contract
// itself, so each step can tell whether it already ran.
type Termination struct {
	Reason          string
	EffectiveDate   string
	LetterURL       string
	BatchJobID      string
	CancelledShifts int
	TerminatedBy    id.PrincipalID
	TerminatedAt    time.Time
}

func (c Contract) clone() Contract {
	if c.HourlyRate != nil {
		v := *c.HourlyRate
		c.HourlyRate = &v
	}
	if c.MonthlySalary != nil {
		v := *c.MonthlySalary
		c.MonthlySalary = &v
	}
	if c.Termination != nil {
		t := *c.Termination
		c.Termination = &t
	}
	return c
}

// View is the read model returned to callers. Compensation fields are
// omitted when redacted.
type View struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	FacilityID    string   `json:"facilityId"`
	Role          string   `json:"role"`
	ManagerID     string   `json:"managerId,omitempty"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate,omitempty"`
	WeeklyHours   int      `json:"weeklyHours"`
	HourlyRate    *float64 `json:"hourlyRate,omitempty"`
	MonthlySalary *float64 `json:"monthlySalary,omitempty"`
	Status        Status   `json:"status"`
	DocumentURL   string   `json:"documentUrl,omitempty"`
	Redacted      bool     `json:"redacted,omitempty"`
}

func viewOf(c Contract, withCompensation bool) View {
	v := View{
		ID:          c.ID.String(),
		UserID:      c.Principal.String(),
		FacilityID:  c.Facility.String(),
		Role:        string(c.Role),
		ManagerID:   c.Manager.String(),
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		WeeklyHours: c.WeeklyHours,
		Status:      c.Status,
		DocumentURL: c.DocumentURL,
	}
	if withCompensation {
		c = c.clone()
		v.HourlyRate = c.HourlyRate
		v.MonthlySalary = c.MonthlySalary
	} else {
		v.Redacted = true
	}
	return v
}
