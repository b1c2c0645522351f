package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/notify"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

type requestLeaveInput struct {
	FacilityID string `json:"facilityId"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Type       string `json:"type"`
	Reason     string `json:"reason"`
	Force      bool   `json:"force"`
}

type requestLeaveResult struct {
	RequestID     string `json:"requestId"`
	Status        Status `json:"status"`
	DaysRequested int    `json:"daysRequested"`
	Available     int    `json:"available"`
	Remaining     int    `json:"remaining"`
	// Years splits a request that crosses a year boundary; each year's
	// share is charged to that year's balance.
	Years []yearCharge `json:"years,omitempty"`
	Forced        bool   `json:"forced,omitempty"`
	Deficit       int    `json:"deficit,omitempty"`
}

func (m *Module) requestLeave() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "calendar.request_leave",
		Permission:  access.LeaveRequest,
		Label:       "Request leave",
		Description: "Submit a leave request against the annual balance",
		Keywords:    []string{"leave", "vacation", "absence", "holiday"},
		Schema: schema.New(
			schema.String("facilityId"),
			schema.String("startDate").Required().Date(),
			schema.String("endDate").Required().Date(),
			schema.String("type").Enum(types...).Default(string(TypeVacation)),
			schema.String("reason").MaxLen(500),
			schema.Bool("force").Default(false).Describe("submit even when the balance would go negative"),
		).With(schema.DateNotBefore("startDate", "endDate")),
		Metadata: actions.Metadata{Risk: actions.RiskMedium},
	}, m.handleRequestLeave)
}

type yearCharge struct {
	Year      int `json:"year"`
	Days      int `json:"days"`
	Available int `json:"available"`
	Remaining int `json:"remaining"`
}

// chargesByYear splits [start, end] into per-year day counts.
func chargesByYear(start, end time.Time) []yearCharge {
	var out []yearCharge
	for y := start.Year(); y <= end.Year(); y++ {
		out = append(out, yearCharge{Year: y, Days: workforce.Overlap(start, end, yearStart(y), yearEnd(y))})
	}
	return out
}

func yearStart(y int) time.Time { return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC) }
func yearEnd(y int) time.Time   { return time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC) }

var memberOfFacility = actions.NewPredicate("memberOfFacility", func(_ *actions.ExecutionContext, member bool) bool {
	return member
})

func (m *Module) handleRequestLeave(ctx context.Context, in requestLeaveInput, ec *actions.ExecutionContext) (requestLeaveResult, error) {
	facility := id.FacilityID(in.FacilityID)
	if facility.IsZero() {
		f, err := ec.RequireFacility()
		if err != nil {
			return requestLeaveResult{}, err
		}
		facility = f
	}
	if facility != ec.Facility {
		member, err := access.MemberOf(ctx, m.workforce, ec.Principal, facility, "")
		if err != nil {
			return requestLeaveResult{}, err
		}
		if err := actions.Require(ec, member, memberOfFacility); err != nil {
			return requestLeaveResult{}, err
		}
	}
	start, err := workforce.ParseDate(in.StartDate)
	if err != nil {
		return requestLeaveResult{}, err
	}
	end, err := workforce.ParseDate(in.EndDate)
	if err != nil {
		return requestLeaveResult{}, err
	}
	days := workforce.DaysInclusive(start, end)
	charges := chargesByYear(start, end)

	var out requestLeaveResult
	err = m.locker.Do(ctx, balanceKey(ec.Principal), func(ctx context.Context) error {
		deficit := 0
		for i := range charges {
			bal, err := m.balance(ctx, ec.Principal, charges[i].Year)
			if err != nil {
				return err
			}
			charges[i].Available = bal.Available
			charges[i].Remaining = bal.Available - charges[i].Days
			if charges[i].Remaining >= 0 {
				continue
			}
			if !in.Force {
				return dErrors.Newf(dErrors.CodeBusinessRule,
					"insufficient leave balance for %d: requested %d days, %d available",
					charges[i].Year, charges[i].Days, bal.Available)
			}
			deficit -= charges[i].Remaining
		}
		first := charges[0]

		req := Request{
			ID:        id.LeaveRequestID(uuid.NewString()),
			Principal: ec.Principal,
			Facility:  facility,
			Type:      Type(in.Type),
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Days:      days,
			Year:      start.Year(),
			Reason:    in.Reason,
			Status:    StatusPending,
			CreatedAt: ec.Now,
		}
		if deficit > 0 {
			req.Forced = true
			req.Deficit = deficit
		}
		saved, err := m.store.SaveRequest(ctx, req)
		if err != nil {
			return workforce.Translate(err, "save leave request")
		}

		if saved.Forced {
			ec.Note(ctx, "leave balance overridden",
				"requestId", saved.ID.String(),
				"deficit", saved.Deficit,
				"requested", days,
				"available", first.Available,
			)
		}
		ec.Record("leave_request", saved.ID.String(),
			"type", string(saved.Type),
			"daysRequested", days,
			"forced", saved.Forced,
			"deficit", saved.Deficit,
		)
		out = requestLeaveResult{
			RequestID:     saved.ID.String(),
			Status:        saved.Status,
			DaysRequested: days,
			Available:     first.Available,
			Remaining:     first.Remaining,
			Forced:        saved.Forced,
			Deficit:       saved.Deficit,
		}
		if len(charges) > 1 {
			out.Years = charges
		}
		return nil
	})
	return out, err
}

type approveLeaveInput struct {
	RequestID       string `json:"requestId"`
	Decision        string `json:"decision"`
	ExpectedVersion *int   `json:"expectedVersion"`
}

type approveLeaveResult struct {
	RequestID string `json:"requestId"`
	Status    Status `json:"status"`
	Version   int    `json:"version"`
}

var (
	sameFacility = actions.NewPredicate("sameFacility", func(ec *actions.ExecutionContext, r Request) bool {
		return r.Facility == ec.Facility
	})
	notOwnRequest = actions.NewPredicate("notOwnRequest", func(ec *actions.ExecutionContext, r Request) bool {
		return r.Principal != ec.Principal
	})
)

func (m *Module) approveLeave() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "calendar.approve_leave",
		Permission:  access.LeaveApprove,
		Label:       "Decide leave request",
		Description: "Approve or reject a pending leave request",
		Keywords:    []string{"leave", "approve", "reject"},
		Schema: schema.New(
			schema.String("requestId").Required().Len(1, 128),
			schema.String("decision").Required().Enum(string(StatusApproved), string(StatusRejected)),
			schema.Integer("expectedVersion").Min(1),
		),
		Metadata: actions.Metadata{Risk: actions.RiskMedium},
	}, m.handleApproveLeave)
}

func (m *Module) handleApproveLeave(ctx context.Context, in approveLeaveInput, ec *actions.ExecutionContext) (approveLeaveResult, error) {
	requestID := id.LeaveRequestID(in.RequestID)
	current, err := m.store.Request(ctx, requestID)
	if err != nil {
		return approveLeaveResult{}, workforce.Translate(err, "leave request not found")
	}

	var out approveLeaveResult
	err = m.locker.Do(ctx, balanceKey(current.Principal), func(ctx context.Context) error {
		req, err := m.store.Request(ctx, requestID)
		if err != nil {
			return workforce.Translate(err, "leave request not found")
		}
		if err := actions.Require(ec, req, sameFacility, notOwnRequest); err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != req.Version {
			return dErrors.Newf(dErrors.CodeConflict, "leave request changed: version %d, expected %d", req.Version, *in.ExpectedVersion)
		}
		if req.Status != StatusPending {
			return dErrors.Newf(dErrors.CodeBusinessRule, "leave request is %s, only PENDING requests can be decided", req.Status)
		}
		req.Status = Status(in.Decision)
		req.DecidedBy = ec.Principal
		req.DecidedAt = ec.Now
		saved, err := m.store.SaveRequest(ctx, req)
		if err != nil {
			return workforce.Translate(err, "save leave decision")
		}
		ec.Record("leave_request", saved.ID.String(),
			"decision", string(saved.Status),
			"requester", saved.Principal.String(),
			"days", saved.Days,
		)
		out = approveLeaveResult{RequestID: saved.ID.String(), Status: saved.Status, Version: saved.Version}
		return nil
	})
	if err != nil {
		return out, err
	}

	m.notifyDecision(ctx, current.Principal, out)
	return out, nil
}

func (m *Module) notifyDecision(ctx context.Context, requester id.PrincipalID, res approveLeaveResult) {
	if m.notifier == nil {
		return
	}
	err := m.notifier.SendNotificationToUser(ctx, requester, notify.Notification{
		Type:  "leave_decision",
		Title: "Leave request " + string(res.Status),
		Body:  fmt.Sprintf("Your leave request was %s.", string(res.Status)),
		Data:  map[string]string{"requestId": res.RequestID},
	})
	if err != nil {
		m.logger.WarnContext(ctx, "leave decision notification failed", "request_id", res.RequestID, "error", err)
	}
}

type balanceInput struct {
	PrincipalID string `json:"principalId"`
	Year        int    `json:"year"`
}

// Balance is a principal's leave position for one year.
type Balance struct {
	PrincipalID string `json:"principalId"`
	Year        int    `json:"year"`
	Entitlement int    `json:"entitlement"`
	Pending     int    `json:"pending"`
	Approved    int    `json:"approved"`
	Available   int    `json:"available"`
}

var viewOthers = actions.HasPermission[id.PrincipalID]("canViewOthers", access.LeaveApprove)

var isSelf = actions.NewPredicate("isSelf", func(ec *actions.ExecutionContext, p id.PrincipalID) bool {
	return p == ec.Principal
})

func (m *Module) leaveBalance() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "calendar.get_leave_balance",
		Permission:  access.LeaveView,
		Label:       "Leave balance",
		Description: "Show entitlement, used and available leave days for a year",
		Keywords:    []string{"leave", "balance", "vacation"},
		Schema: schema.New(
			schema.String("principalId").Len(1, 128),
			schema.Integer("year").Range(2000, 2100),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow, AutoSurface: true},
	}, m.handleBalance)
}

func (m *Module) handleBalance(ctx context.Context, in balanceInput, ec *actions.ExecutionContext) (Balance, error) {
	principal := ec.Principal
	if in.PrincipalID != "" {
		principal = id.PrincipalID(in.PrincipalID)
	}
	if err := actions.Require(ec, principal, actions.AnyOf(isSelf, viewOthers)); err != nil {
		return Balance{}, err
	}
	year := in.Year
	if year == 0 {
		year = ec.Now.Year()
	}
	return m.balance(ctx, principal, year)
}

// balance = entitlement - days of PENDING and APPROVED requests falling in
// that year. A request crossing a year boundary counts in both years.
func (m *Module) balance(ctx context.Context, principal id.PrincipalID, year int) (Balance, error) {
	entitlement := m.entitlement
	override, ok, err := m.store.Entitlement(ctx, principal, year)
	if err != nil {
		return Balance{}, workforce.Translate(err, "load leave entitlement")
	}
	if ok {
		entitlement = override
	}
	reqs, err := m.store.RequestsOf(ctx, principal, 0)
	if err != nil {
		return Balance{}, workforce.Translate(err, "load leave requests")
	}
	b := Balance{PrincipalID: principal.String(), Year: year, Entitlement: entitlement}
	for _, r := range reqs {
		switch r.Status {
		case StatusPending:
			b.Pending += r.DaysIn(year)
		case StatusApproved:
			b.Approved += r.DaysIn(year)
		}
	}
	b.Available = entitlement - b.Pending - b.Approved
	return b, nil
}

// ApprovedDays counts days of APPROVED leave of type t overlapping
// [from, to]. Payroll uses it for period variables.
func (m *Module) ApprovedDays(ctx context.Context, principal id.PrincipalID, t Type, from, to time.Time) (int, error) {
	reqs, err := m.store.RequestsOf(ctx, principal, 0)
	if err != nil {
		return 0, workforce.Translate(err, "load leave requests")
	}
	total := 0
	for _, r := range reqs {
		if r.Status != StatusApproved || r.Type != t {
			continue
		}
		start, err1 := workforce.ParseDate(r.StartDate)
		end, err2 := workforce.ParseDate(r.EndDate)
		if err1 != nil || err2 != nil {
			continue
		}
		total += workforce.Overlap(start, end, from, to)
	}
	return total, nil
}

// balanceKey serializes every balance of a principal, since one request can
// draw on two years.
func balanceKey(principal id.PrincipalID) string {
	return "leave:" + principal.String()
}
