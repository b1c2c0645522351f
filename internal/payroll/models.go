// Package payroll runs the monthly payroll period of a facility: manual
// entries, period variables derived from shifts and leave, and the
// DRAFT -> LOCKED -> APPROVED -> SENT_TO_FIDUCIARY -> COMPLETED lifecycle.
package payroll

import (
	"fmt"
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

type PeriodStatus string

const (
	PeriodDraft     PeriodStatus = "DRAFT"
	PeriodLocked    PeriodStatus = "LOCKED"
	PeriodApproved  PeriodStatus = "APPROVED"
	PeriodSent      PeriodStatus = "SENT_TO_FIDUCIARY"
	PeriodCompleted PeriodStatus = "COMPLETED"
)

var nextStatus = map[PeriodStatus]PeriodStatus{
	PeriodDraft:    PeriodLocked,
	PeriodLocked:   PeriodApproved,
	PeriodApproved: PeriodSent,
	PeriodSent:     PeriodCompleted,
}

// AcceptsEntries is false once the period left DRAFT.
func (s PeriodStatus) AcceptsEntries() bool {
	return s == PeriodDraft
}

type EntryType string

const (
	EntryBonus      EntryType = "BONUS"
	EntryDeduction  EntryType = "DEDUCTION"
	EntryExpense    EntryType = "EXPENSE"
	EntryAllowance  EntryType = "ALLOWANCE"
	EntryCorrection EntryType = "CORRECTION"
)

var entryTypes = []string{
	string(EntryBonus), string(EntryDeduction), string(EntryExpense),
	string(EntryAllowance), string(EntryCorrection),
}

// PeriodID is "<facilityId>:<YYYY>-<MM>".
func PeriodID(facility id.FacilityID, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", facility, year, month)
}

// Period is one facility month.
type Period struct {
	ID         string
	Facility   id.FacilityID
	Year       int
	Month      int
	Status     PeriodStatus
	LockedBy   id.PrincipalID
	ApprovedBy id.PrincipalID
	ExportJob  string
	Payslips   []Payslip
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int
}

// Bounds returns the first and last calendar day of the period.
func (p Period) Bounds() (time.Time, time.Time) {
	first := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// advance moves the period one step along its lifecycle, and only from the
// expected status.
func (p *Period) advance(from PeriodStatus, now time.Time) error {
	if p.Status != from {
		return dErrors.Newf(dErrors.CodeBusinessRule, "payroll period %s is %s, expected %s", p.ID, p.Status, from)
	}
	p.Status = nextStatus[from]
	p.UpdatedAt = now
	return nil
}

// Entry is a manual adjustment on a principal's payroll.
type Entry struct {
	ID          id.EntryID     `json:"id"`
	Period      string         `json:"periodId"`
	Principal   id.PrincipalID `json:"userId"`
	Type        EntryType      `json:"type"`
	Amount      float64        `json:"amount"`
	Description string         `json:"description"`
	CreatedBy   id.PrincipalID `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type Payslip struct {
	Principal   id.PrincipalID `json:"userId"`
	DocumentURL string         `json:"documentUrl"`
	PublishedAt time.Time      `json:"publishedAt"`
}

// Variables are the per-principal inputs the fiduciary needs for a month.
type Variables struct {
	PrincipalID   string  `json:"userId"`
	Shifts        int     `json:"shifts"`
	StandardHours float64 `json:"standardHours"`
	OvertimeHours float64 `json:"overtimeHours"`
	NightHours    float64 `json:"nightHours"`
	SundayHours   float64 `json:"sundayHours"`
	VacationDays  int     `json:"vacationDays"`
	SickDays      int     `json:"sickDays"`
}
