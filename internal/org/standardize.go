package org

import (
	"context"
	"strings"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// StandardizeSaga is the saga kind of standardize_roles.
const StandardizeSaga = "org.standardize_roles"

const facilityStepPrefix = "facility:"

var roles = []string{
	string(workforce.RoleEmployee), string(workforce.RoleManager), string(workforce.RoleHR),
	string(workforce.RolePayrollOfficer), string(workforce.RoleFiduciary), string(workforce.RoleOrgAdmin),
}

type roleMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type standardizeInput struct {
	OrgID    string        `json:"orgId"`
	Mappings []roleMapping `json:"mappings"`
}

type standardizePayload struct {
	Org     id.OrgID                          `json:"org"`
	Mapping map[workforce.Role]workforce.Role `json:"mapping"`
}

type standardizeResult struct {
	IntentID           string `json:"intentId"`
	Facilities         int    `json:"facilities"`
	MembershipsChanged int    `json:"membershipsChanged"`
}

func (m *Module) standardizeRoles() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "org.standardize_roles",
		Permission:  access.OrgGovernance,
		Label:       "Standardize roles",
		Description: "Rename roles across every facility of the organization",
		Keywords:    []string{"roles", "standardize", "governance"},
		Schema: schema.New(
			schema.String("orgId").Len(1, 128),
			schema.Array("mappings", schema.Object("",
				schema.String("from").Required().Enum(roles...),
				schema.String("to").Required().Enum(roles...),
			)).Required().Len(1, len(roles)),
		),
		Metadata: actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleStandardize)
}

// mappingOf rejects chains (a->b, b->c) and conflicting targets: applying
// such a mapping twice would move a member two steps, and each facility step
// must be safe to repeat.
func mappingOf(in []roleMapping) (map[workforce.Role]workforce.Role, error) {
	out := make(map[workforce.Role]workforce.Role, len(in))
	targets := make(map[workforce.Role]bool, len(in))
	for _, mp := range in {
		from, to := workforce.Role(mp.From), workforce.Role(mp.To)
		if from == to {
			continue
		}
		if prev, dup := out[from]; dup && prev != to {
			return nil, dErrors.Newf(dErrors.CodeBusinessRule, "role %s is mapped to both %s and %s", from, prev, to)
		}
		out[from] = to
		targets[to] = true
	}
	for from := range out {
		if targets[from] {
			return nil, dErrors.Newf(dErrors.CodeBusinessRule, "role %s is both a source and a target; chained mappings are not allowed", from)
		}
	}
	if len(out) == 0 {
		return nil, dErrors.New(dErrors.CodeBusinessRule, "mapping changes no role")
	}
	return out, nil
}

func (m *Module) handleStandardize(ctx context.Context, in standardizeInput, ec *actions.ExecutionContext) (standardizeResult, error) {
	mapping, err := mappingOf(in.Mappings)
	if err != nil {
		return standardizeResult{}, err
	}
	org, err := m.orgOf(ctx, ec, in.OrgID)
	if err != nil {
		return standardizeResult{}, err
	}
	facilities, err := m.workforce.Facilities(ctx, org)
	if err != nil {
		return standardizeResult{}, workforce.Translate(err, "load facilities")
	}
	if len(facilities) == 0 {
		return standardizeResult{}, dErrors.Newf(dErrors.CodeBusinessRule, "organization %s has no facilities", org)
	}

	out := standardizeResult{Facilities: len(facilities)}
	steps := make([]string, 0, len(facilities))
	for _, f := range facilities {
		steps = append(steps, facilityStepPrefix+f.ID.String())
		for _, mem := range f.Members {
			if _, ok := mapping[mem.Role]; ok {
				out.MembershipsChanged++
			}
		}
	}

	intent, err := m.sagas.Start(ctx, StandardizeSaga, ec.Principal, standardizePayload{Org: org, Mapping: mapping}, steps)
	if !intent.ID.IsNil() {
		out.IntentID = intent.ID.String()
		ec.Record("organization", org.String(),
			"intentId", out.IntentID,
			"facilities", len(facilities),
			"facilitiesDone", intent.Completed(),
		)
	}
	if err != nil {
		return standardizeResult{}, err
	}
	ec.Annotate("membershipsChanged", out.MembershipsChanged)
	return out, nil
}

func (m *Module) standardizeStep(ctx context.Context, intent saga.Intent, step string) error {
	facilityID, ok := strings.CutPrefix(step, facilityStepPrefix)
	if !ok {
		return dErrors.Newf(dErrors.CodeInternal, "unknown standardize step %s", step)
	}
	var p standardizePayload
	if err := intent.Decode(&p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode standardize payload")
	}
	return m.locker.Do(ctx, "facility:"+facilityID, func(ctx context.Context) error {
		f, err := m.workforce.Facility(ctx, id.FacilityID(facilityID))
		if workforce.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return workforce.Translate(err, "load facility")
		}
		changed := false
		for i, mem := range f.Members {
			if to, ok := p.Mapping[mem.Role]; ok {
				f.Members[i].Role = to
				changed = true
			}
		}
		if !changed {
			return nil
		}
		_, err = m.workforce.SaveFacility(ctx, f)
		return workforce.Translate(err, "save facility roles")
	})
}
