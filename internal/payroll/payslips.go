package payroll

import (
	"context"
	"fmt"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/notify"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

type payslipInput struct {
	UserID      string `json:"userId"`
	DocumentURL string `json:"documentUrl"`
}

type publishInput struct {
	FacilityID string         `json:"facilityId"`
	Month      int            `json:"month"`
	Year       int            `json:"year"`
	Payslips   []payslipInput `json:"payslips"`
}

// DeliveryFailure is a payslip whose owner could not be notified.
type DeliveryFailure struct {
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

type publishResult struct {
	periodResult
	Published int               `json:"published"`
	Notified  int               `json:"notified"`
	Failures  []DeliveryFailure `json:"failures,omitempty"`
}

func (m *Module) publishPayslips() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "payroll.publish_payslips",
		Permission:  access.PayrollPublish,
		Label:       "Publish payslips",
		Description: "Attach the fiduciary's payslips to a period and notify each employee",
		Keywords:    []string{"payroll", "payslip", "publish"},
		Schema: schema.New(periodFields(
			schema.Array("payslips", schema.Object("",
				schema.String("userId").Required().Len(1, 128),
				schema.String("documentUrl").Required().Len(1, 2048).Pattern(`^https://`).Example("https://docs.example/payslip.pdf"),
			)).Required().Len(1, 5000),
		)...),
		Metadata: actions.Metadata{Risk: actions.RiskHigh},
	}, m.handlePublish)
}

// handlePublish completes the period first and notifies afterwards; a
// failed notification is reported, never rolled back.
func (m *Module) handlePublish(ctx context.Context, in publishInput, ec *actions.ExecutionContext) (publishResult, error) {
	period := periodInput{FacilityID: in.FacilityID, Month: in.Month, Year: in.Year}
	res, err := m.transition(ctx, ec, period, PeriodSent, nil, func(p *Period) {
		for _, ps := range in.Payslips {
			p.Payslips = append(p.Payslips, Payslip{
				Principal:   id.PrincipalID(ps.UserID),
				DocumentURL: ps.DocumentURL,
				PublishedAt: ec.Now,
			})
		}
	})
	if err != nil {
		return publishResult{}, err
	}

	out := publishResult{periodResult: res, Published: len(in.Payslips)}
	for _, ps := range in.Payslips {
		if m.notifier == nil {
			break
		}
		err := m.notifier.SendNotificationToUser(ctx, id.PrincipalID(ps.UserID), notify.Notification{
			Type:     "payslip_published",
			Title:    "Your payslip is available",
			Body:     fmt.Sprintf("Your payslip for %04d-%02d is ready.", in.Year, in.Month),
			Priority: "normal",
			Data:     map[string]string{"periodId": res.PeriodID, "documentUrl": ps.DocumentURL},
		})
		if err != nil {
			m.logger.WarnContext(ctx, "payslip notification failed", "user_id", ps.UserID, "period_id", res.PeriodID, "error", err)
			out.Failures = append(out.Failures, DeliveryFailure{UserID: ps.UserID, Error: err.Error()})
			continue
		}
		out.Notified++
	}
	ec.Annotate("published", out.Published, "notified", out.Notified, "notificationFailures", len(out.Failures))
	return out, nil
}
