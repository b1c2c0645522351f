package education

import (
	"context"
	"math"
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

type logInput struct {
	CourseName  string  `json:"courseName"`
	Credits     float64 `json:"credits"`
	CompletedOn string  `json:"completedOn"`
	Provider    string  `json:"provider"`
}

type logResult struct {
	EntryID string `json:"entryId"`
	Status  Status `json:"status"`
}

func (m *Module) logCredits() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "education.log_fph_credits",
		Permission:  access.EducationLog,
		Label:       "Log education credits",
		Description: "Record a completed continuing-education course",
		Keywords:    []string{"education", "credits", "course", "training", "fph"},
		Schema: schema.New(
			schema.String("courseName").Required().Len(1, 200),
			schema.Number("credits").Required().Range(0.5, 100),
			schema.String("completedOn").Required().Date(),
			schema.String("provider").MaxLen(200),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow},
	}, m.handleLog)
}

func (m *Module) handleLog(ctx context.Context, in logInput, ec *actions.ExecutionContext) (logResult, error) {
	completed, err := workforce.ParseDate(in.CompletedOn)
	if err != nil {
		return logResult{}, err
	}
	if completed.After(workforce.Today(ec.Now)) {
		return logResult{}, dErrors.Newf(dErrors.CodeBusinessRule, "course completed on %s is in the future", in.CompletedOn)
	}

	c := Credit{
		ID:          id.NewEntryID(),
		Principal:   ec.Principal,
		CourseName:  in.CourseName,
		Credits:     in.Credits,
		CompletedOn: in.CompletedOn,
		Provider:    in.Provider,
		LoggedBy:    ec.Principal,
		LoggedAt:    ec.Now,
	}
	if err := m.store.AddCredit(ctx, c); err != nil {
		return logResult{}, workforce.Translate(err, "save education credits")
	}
	ec.Record("education_credit", c.ID.String(), "credits", c.Credits, "completedOn", c.CompletedOn)

	status, err := m.Status(ctx, ec.Principal, ec.Now)
	if err != nil {
		return logResult{}, err
	}
	return logResult{EntryID: c.ID.String(), Status: status}, nil
}

type statusInput struct {
	UserID string `json:"userId"`
}

var (
	isSelf = actions.NewPredicate("isSelf", func(ec *actions.ExecutionContext, subject id.PrincipalID) bool {
		return subject == ec.Principal
	})
	canViewOthers = actions.HasPermission[id.PrincipalID]("canViewOthers", access.EducationViewOthers)
)

func (m *Module) complianceStatus() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "education.check_compliance_status",
		Permission:  access.EducationView,
		Label:       "Education compliance",
		Description: "Compare credits earned over the last year with the annual requirement",
		Keywords:    []string{"education", "credits", "compliance"},
		Schema: schema.New(
			schema.String("userId").Describe("defaults to the caller"),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow, AutoSurface: true},
	}, m.handleStatus)
}

func (m *Module) handleStatus(ctx context.Context, in statusInput, ec *actions.ExecutionContext) (Status, error) {
	subject := ec.Principal
	if in.UserID != "" {
		subject = id.PrincipalID(in.UserID)
	}
	if err := actions.Require(ec, subject, actions.AnyOf(isSelf, canViewOthers)); err != nil {
		return Status{}, err
	}
	if subject != ec.Principal {
		if _, err := m.workforce.Principal(ctx, subject); err != nil {
			return Status{}, workforce.Translate(err, "employee not found")
		}
	}
	status, err := m.Status(ctx, subject, ec.Now)
	if err != nil {
		return Status{}, err
	}
	ec.Record("principal", subject.String(), "compliant", status.Compliant)
	return status, nil
}

// Status sums credits completed within the year ending today.
func (m *Module) Status(ctx context.Context, principal id.PrincipalID, now time.Time) (Status, error) {
	today := workforce.Today(now)
	from := today.AddDate(-1, 0, 1).Format(workforce.DateLayout)
	to := today.Format(workforce.DateLayout)

	credits, err := m.store.CreditsOf(ctx, principal, from, to)
	if err != nil {
		return Status{}, workforce.Translate(err, "load education credits")
	}
	var earned float64
	for _, c := range credits {
		earned += c.Credits
	}
	earned = math.Round(earned*100) / 100
	return Status{
		UserID:      principal.String(),
		PeriodStart: from,
		PeriodEnd:   to,
		Earned:      earned,
		Required:    m.required,
		Remaining:   math.Max(0, float64(m.required)-earned),
		Compliant:   earned >= float64(m.required),
		Courses:     len(credits),
	}, nil
}
