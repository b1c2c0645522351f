package org

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/contracts"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

const maxScore = 100

// Issue is one violation found on one employee.
type Issue struct {
	UserID string `json:"userId"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

const (
	issueExpiredCertification = "EXPIRED_CERTIFICATION"
	issueMissingContract      = "MISSING_SIGNED_CONTRACT"
)

type FacilityScore struct {
	FacilityID string  `json:"facilityId"`
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	Employees  int     `json:"employees"`
	Issues     []Issue `json:"issues"`
}

type ComplianceReport struct {
	OrgID          string          `json:"orgId"`
	Facilities     []FacilityScore `json:"facilities"`
	NetworkAverage float64         `json:"networkAverage"`
}

type complianceInput struct {
	OrgID string `json:"orgId"`
}

func (m *Module) complianceScore() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "org.audit_compliance_score",
		Permission:  access.OrgGovernance,
		Label:       "Compliance score",
		Description: "Score every facility on expired certifications and unsigned contracts",
		Keywords:    []string{"compliance", "audit", "certification", "score"},
		Schema: schema.New(
			schema.String("orgId").Len(1, 128).Describe("defaults to the organization of the current facility"),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow, AutoSurface: true},
	}, m.handleCompliance)
}

func (m *Module) handleCompliance(ctx context.Context, in complianceInput, ec *actions.ExecutionContext) (ComplianceReport, error) {
	org, err := m.orgOf(ctx, ec, in.OrgID)
	if err != nil {
		return ComplianceReport{}, err
	}
	report, err := m.Score(ctx, org, ec.Now)
	if err != nil {
		return ComplianceReport{}, err
	}
	ec.Record("organization", org.String(),
		"facilities", len(report.Facilities),
		"networkAverage", report.NetworkAverage,
	)
	return report, nil
}

// orgOf resolves the organization to act on. Permissions are resolved for
// the scoped facility, so another organization is off limits except to
// platform administrators.
func (m *Module) orgOf(ctx context.Context, ec *actions.ExecutionContext, given string) (id.OrgID, error) {
	return access.TargetOrg(ctx, m.workforce, ec, given)
}

// Score crawls every facility of org concurrently. The network average is
// the plain mean of facility scores, 0 when the org has none.
func (m *Module) Score(ctx context.Context, org id.OrgID, now time.Time) (ComplianceReport, error) {
	facilities, err := m.workforce.Facilities(ctx, org)
	if err != nil {
		return ComplianceReport{}, workforce.Translate(err, "load facilities")
	}

	scores := make([]FacilityScore, len(facilities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(crawlConcurrency)
	for i, f := range facilities {
		g.Go(func() error {
			s, err := m.scoreFacility(gctx, f, now)
			if err != nil {
				return err
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ComplianceReport{}, err
	}

	report := ComplianceReport{OrgID: org.String(), Facilities: scores}
	if len(scores) > 0 {
		total := 0
		for _, s := range scores {
			total += s.Score
		}
		report.NetworkAverage = math.Round(float64(total)/float64(len(scores))*100) / 100
	}
	return report, nil
}

func (m *Module) scoreFacility(ctx context.Context, f workforce.Facility, now time.Time) (FacilityScore, error) {
	out := FacilityScore{FacilityID: f.ID.String(), Name: f.Name, Issues: []Issue{}}
	today := workforce.Today(now).Format(workforce.DateLayout)

	for _, mem := range f.Members {
		p, err := m.workforce.Principal(ctx, mem.Principal)
		if workforce.IsNotFound(err) {
			continue
		}
		if err != nil {
			return FacilityScore{}, workforce.Translate(err, "load employee")
		}
		if p.Status == workforce.StatusTerminated {
			continue
		}
		out.Employees++

		for _, c := range p.Certifications {
			if expired(c, today) {
				out.Issues = append(out.Issues, Issue{UserID: p.ID.String(), Kind: issueExpiredCertification, Detail: c.Name})
			}
		}
		signed, err := contracts.HasSigned(ctx, m.contracts, p.ID, f.ID)
		if err != nil {
			return FacilityScore{}, workforce.Translate(err, "load contracts")
		}
		if !signed {
			out.Issues = append(out.Issues, Issue{UserID: p.ID.String(), Kind: issueMissingContract})
		}
	}

	score := maxScore
	for _, is := range out.Issues {
		switch is.Kind {
		case issueExpiredCertification:
			score -= m.expiredPenalty
		case issueMissingContract:
			score -= m.contractPenalty
		}
	}
	out.Score = max(score, 0)
	return out, nil
}

// expired holds for certifications flagged EXPIRED or past their expiry.
func expired(c workforce.Certification, today string) bool {
	if c.Status == workforce.CertificationExpired {
		return true
	}
	return c.ExpiresOn != "" && c.ExpiresOn < today
}
