package team

import (
	"context"
	"slices"
	"strings"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	tokens "github.com/InteriMed/Medishift-sub005/pkg/platform/strings"
)

const maxSearchSkills = 20

func principalKey(p id.PrincipalID) string {
	return "principal:" + p.String()
}

// -----------------------------------------------------------------------------
// Add skill
// -----------------------------------------------------------------------------

type addSkillInput struct {
	UserID string `json:"userId"`
	Skill  string `json:"skill"`
}

type addSkillResult struct {
	UserID string   `json:"userId"`
	Skill  string   `json:"skill"`
	Added  bool     `json:"added"`
	Skills []string `json:"skills"`
}

// subject pairs the target principal with the facility they are edited in.
type subject struct {
	principal id.PrincipalID
	facility  workforce.Facility
}

var (
	isSelf = actions.NewPredicate("isSelf", func(ec *actions.ExecutionContext, s subject) bool {
		return s.principal == ec.Principal
	})
	inCallerFacility = actions.NewPredicate("inCallerFacility", func(_ *actions.ExecutionContext, s subject) bool {
		_, ok := s.facility.Member(s.principal)
		return ok
	})
)

func (m *Module) addSkill() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "team.add_skill",
		Permission:  access.TeamEdit,
		Label:       "Add skill",
		Description: "Tag a professional with a skill",
		Keywords:    []string{"skill", "competence", "team"},
		Schema: schema.New(
			schema.String("userId").Describe("defaults to the caller"),
			schema.String("skill").Required().Len(1, 64),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow},
	}, m.handleAddSkill)
}

func (m *Module) handleAddSkill(ctx context.Context, in addSkillInput, ec *actions.ExecutionContext) (addSkillResult, error) {
	skill := tokens.Normalize(in.Skill)
	if skill == "" {
		return addSkillResult{}, dErrors.New(dErrors.CodeBusinessRule, "skill is blank")
	}
	target := ec.Principal
	if in.UserID != "" {
		target = id.PrincipalID(in.UserID)
	}
	if target != ec.Principal {
		facilityID, err := ec.RequireFacility()
		if err != nil {
			return addSkillResult{}, err
		}
		f, err := m.workforce.Facility(ctx, facilityID)
		if err != nil {
			return addSkillResult{}, workforce.Translate(err, "facility not found")
		}
		if err := actions.Require(ec, subject{principal: target, facility: f}, actions.AnyOf(isSelf, inCallerFacility)); err != nil {
			return addSkillResult{}, err
		}
	}

	out := addSkillResult{UserID: target.String(), Skill: skill}
	err := m.locker.Do(ctx, principalKey(target), func(ctx context.Context) error {
		p, err := m.workforce.Principal(ctx, target)
		if err != nil {
			return workforce.Translate(err, "employee not found")
		}
		if !tokens.NewSet(p.Skills).Has(skill) {
			p.Skills = append(p.Skills, skill)
			if p, err = m.workforce.SavePrincipal(ctx, p); err != nil {
				return workforce.Translate(err, "save skills")
			}
			out.Added = true
		}
		out.Skills = tokens.NormalizeAll(p.Skills)
		return nil
	})
	if err != nil {
		return addSkillResult{}, err
	}
	ec.Record("principal", target.String(), "skill", skill, "added", out.Added)
	return out, nil
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

type searchInput struct {
	Skills      []string `json:"skills"`
	MustHaveAll bool     `json:"mustHaveAll"`
	FacilityID  string   `json:"facilityId"`
}

type Match struct {
	UserID        string   `json:"userId"`
	Name          string   `json:"name"`
	MatchedSkills []string `json:"matchedSkills"`
}

type searchResult struct {
	Skills  []string `json:"skills"`
	Matches []Match  `json:"matches"`
	Total   int      `json:"total"`
}

func (m *Module) searchBySkill() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "team.search_by_skill",
		Permission:  access.TeamView,
		Label:       "Search by skill",
		Description: "Find active professionals holding all or any of a set of skills",
		Keywords:    []string{"skill", "search", "find", "team", "staffing"},
		Schema: schema.New(
			schema.Array("skills", schema.String("").Len(1, 64)).Required().Len(1, maxSearchSkills),
			schema.Bool("mustHaveAll").Default(true),
			schema.String("facilityId"),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow, AutoSurface: true},
	}, m.handleSearch)
}

func (m *Module) handleSearch(ctx context.Context, in searchInput, ec *actions.ExecutionContext) (searchResult, error) {
	wanted := tokens.NormalizeAll(in.Skills)
	if len(wanted) == 0 {
		return searchResult{}, dErrors.New(dErrors.CodeBusinessRule, "no searchable skill given")
	}

	var members map[id.PrincipalID]bool
	if in.FacilityID != "" {
		f, err := m.workforce.Facility(ctx, id.FacilityID(in.FacilityID))
		if err != nil {
			return searchResult{}, workforce.Translate(err, "facility not found")
		}
		members = make(map[id.PrincipalID]bool, len(f.Members))
		for _, mem := range f.Members {
			members[mem.Principal] = true
		}
	}

	principals, err := m.workforce.Principals(ctx)
	if err != nil {
		return searchResult{}, workforce.Translate(err, "load principals")
	}
	out := searchResult{Skills: wanted, Matches: []Match{}}
	for _, p := range principals {
		if p.Status != workforce.StatusActive {
			continue
		}
		if members != nil && !members[p.ID] {
			continue
		}
		set := tokens.NewSet(p.Skills)
		if in.MustHaveAll && !set.ContainsAll(wanted) || !in.MustHaveAll && !set.ContainsAny(wanted) {
			continue
		}
		out.Matches = append(out.Matches, Match{
			UserID:        p.ID.String(),
			Name:          p.DisplayName(),
			MatchedSkills: set.Matched(wanted),
		})
	}
	slices.SortFunc(out.Matches, func(a, b Match) int {
		if d := len(b.MatchedSkills) - len(a.MatchedSkills); d != 0 {
			return d
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	out.Total = len(out.Matches)
	ec.Annotate("skills", strings.Join(wanted, ","), "mustHaveAll", in.MustHaveAll, "total", out.Total)
	return out, nil
}
