// Package leave implements leave requests, approvals, balances and shift
// swaps.
package leave

import (
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

type Type string

const (
	TypeVacation Type = "VACATION"
	TypeSick     Type = "SICK"
	TypePersonal Type = "PERSONAL"
	TypeTraining Type = "TRAINING"
	TypeUnpaid   Type = "UNPAID"
)

var types = []string{string(TypeVacation), string(TypeSick), string(TypePersonal), string(TypeTraining), string(TypeUnpaid)}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Counts reports whether a request draws on the balance.
func (s Status) Counts() bool {
	return s == StatusPending || s == StatusApproved
}

// Request is a leave request. StartDate and EndDate are inclusive
// YYYY-MM-DD dates; Days is fixed when the request is made.
type Request struct {
	ID        id.LeaveRequestID
	Principal id.PrincipalID
	Facility  id.FacilityID
	Type      Type
	StartDate string
	EndDate   string
	Days      int
	Year      int
	Reason    string
	Status    Status
	Forced    bool
	Deficit   int
	DecidedBy id.PrincipalID
	CreatedAt time.Time
	DecidedAt time.Time
	Version   int
}

// DaysIn counts the request's days falling in year.
func (r Request) DaysIn(year int) int {
	start, err1 := workforce.ParseDate(r.StartDate)
	end, err2 := workforce.ParseDate(r.EndDate)
	if err1 != nil || err2 != nil {
		if r.Year == year {
			return r.Days
		}
		return 0
	}
	return workforce.Overlap(start, end, yearStart(year), yearEnd(year))
}

type SwapStatus string

const (
	SwapOpen     SwapStatus = "OPEN"
	SwapAccepted SwapStatus = "ACCEPTED"
)

// Swap offers a shift to colleagues.
type Swap struct {
	ID         id.SwapID
	Shift      id.ShiftID
	Facility   id.FacilityID
	Requester  id.PrincipalID
	Acceptor   id.PrincipalID
	Message    string
	Status     SwapStatus
	CreatedAt  time.Time
	AcceptedAt time.Time
	Version    int
}
