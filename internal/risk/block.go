package risk

import (
	"context"
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

// BlockSaga is the saga kind of block_user.
const BlockSaga = "risk.block_user"

const (
	stepEntry  = "entry"
	stepShifts = "shifts"
	stepStatus = "status"
	stepCache  = "cache"
)

var blockSteps = []string{stepEntry, stepShifts, stepStatus, stepCache}

// blockPayload pins everything a resumed run needs, including the instant
// the block was issued, so "future shifts" means the same set on every
// attempt. Today is kept for intents journaled before IssuedAt existed.
type blockPayload struct {
	Principal id.PrincipalID `json:"principal"`
	Facility  id.FacilityID  `json:"facility"`
	Org       id.OrgID       `json:"org"`
	Scope     Scope          `json:"scope"`
	Reason    string         `json:"reason"`
	BlockedBy id.PrincipalID `json:"blockedBy"`
	Today     string         `json:"today"`
	IssuedAt  time.Time      `json:"issuedAt,omitzero"`
}

type blockInput struct {
	UserID string `json:"userId"`
	Scope  string `json:"scope"`
	Reason string `json:"reason"`
}

type blockResult struct {
	EntryID       string `json:"entryId"`
	IntentID      string `json:"intentId"`
	Scope         Scope  `json:"scope"`
	DeletedShifts int    `json:"deletedShifts"`
	Status        string `json:"status"`
}

var notSelf = actions.NewPredicate("notSelf", func(ec *actions.ExecutionContext, target workforce.Principal) bool {
	return target.ID != ec.Principal
})

// withinReach holds when the target works at the scoped facility, or
// anywhere in its organization for ENTIRE_ORG.
var withinReach = actions.NewPredicate("target_in_scope", func(_ *actions.ExecutionContext, member bool) bool {
	return member
})

func (m *Module) blockUser() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "risk.block_user",
		Permission:  access.RiskBlockUser,
		Label:       "Block user",
		Description: "Block a worker at this facility or the whole organization and remove their future shifts",
		Keywords:    []string{"block", "ban", "blocklist", "risk"},
		Schema: schema.New(
			schema.String("userId").Required().Len(1, 128),
			schema.String("scope").Required().Enum(string(ScopeFacility), string(ScopeOrg)),
			schema.String("reason").Required().Len(1, 1000),
		),
		Metadata: actions.Metadata{Risk: actions.RiskHigh, Category: audit.CategorySecurity},
	}, m.handleBlock)
}

func (m *Module) handleBlock(ctx context.Context, in blockInput, ec *actions.ExecutionContext) (blockResult, error) {
	facilityID, err := ec.RequireFacility()
	if err != nil {
		return blockResult{}, err
	}
	target, err := m.workforce.Principal(ctx, id.PrincipalID(in.UserID))
	if err != nil {
		return blockResult{}, workforce.Translate(err, "user not found")
	}
	if err := actions.Require(ec, target, notSelf); err != nil {
		return blockResult{}, err
	}
	facility, err := m.workforce.Facility(ctx, facilityID)
	if err != nil {
		return blockResult{}, workforce.Translate(err, "facility not found")
	}
	var org id.OrgID
	if Scope(in.Scope) == ScopeOrg {
		org = facility.OrgID
	}
	member, err := access.MemberOf(ctx, m.workforce, target.ID, facility.ID, org)
	if err != nil {
		return blockResult{}, err
	}
	if err := actions.Require(ec, member, withinReach); err != nil {
		return blockResult{}, err
	}

	intent, err := m.sagas.Start(ctx, BlockSaga, ec.Principal, blockPayload{
		Principal: target.ID,
		Facility:  facility.ID,
		Org:       facility.OrgID,
		Scope:     Scope(in.Scope),
		Reason:    in.Reason,
		BlockedBy: ec.Principal,
		Today:     workforce.Today(ec.Now).Format(workforce.DateLayout),
		IssuedAt:  ec.Now.UTC(),
	}, blockSteps)
	if intent.ID.IsNil() {
		return blockResult{}, err
	}
	entryID := intent.ID.String()
	ec.Record("block_entry", entryID,
		"userId", target.ID.String(),
		"scope", in.Scope,
		"intentId", entryID,
		"stepsDone", intent.Completed(),
	)
	if err != nil {
		return blockResult{}, err
	}

	entry, err := m.store.Block(ctx, entryID)
	if err != nil {
		return blockResult{}, workforce.Translate(err, "load block entry")
	}
	ec.Annotate("deletedShifts", entry.DeletedShifts)
	return blockResult{
		EntryID:       entryID,
		IntentID:      entryID,
		Scope:         entry.Scope,
		DeletedShifts: entry.DeletedShifts,
		Status:        string(workforce.StatusBlocked),
	}, nil
}

// blockStep runs one step; the entry id is the intent id, which makes every
// step idempotent for the intent.
func (m *Module) blockStep(ctx context.Context, intent saga.Intent, step string) error {
	var p blockPayload
	if err := intent.Decode(&p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode block payload")
	}
	entryID := intent.ID.String()

	switch step {
	case stepEntry:
		if _, err := m.store.Block(ctx, entryID); err == nil {
			return nil
		}
		return translate(m.store.SaveBlock(ctx, BlockEntry{
			ID:        entryID,
			Principal: p.Principal,
			Facility:  p.Facility,
			Org:       p.Org,
			Scope:     p.Scope,
			Reason:    p.Reason,
			BlockedBy: p.BlockedBy,
			CreatedAt: intent.CreatedAt,
		}), "save block entry")

	case stepShifts:
		entry, err := m.store.Block(ctx, entryID)
		if err != nil {
			return workforce.Translate(err, "load block entry")
		}
		n, err := m.deleteFutureShifts(ctx, p)
		if err != nil {
			return err
		}
		entry.DeletedShifts += n
		return translate(m.store.SaveBlock(ctx, entry), "save block entry")

	case stepStatus:
		return m.locker.Do(ctx, "principal:"+p.Principal.String(), func(ctx context.Context) error {
			target, err := m.workforce.Principal(ctx, p.Principal)
			if err != nil {
				return workforce.Translate(err, "load user")
			}
			if target.Status == workforce.StatusBlocked {
				return nil
			}
			target.Status = workforce.StatusBlocked
			_, err = m.workforce.SavePrincipal(ctx, target)
			return workforce.Translate(err, "mark user blocked")
		})

	case stepCache:
		entry, err := m.store.Block(ctx, entryID)
		if err != nil {
			return workforce.Translate(err, "load block entry")
		}
		if err := m.blocklist.Publish(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "publish block to cache")
		}
		return nil
	}
	return dErrors.Newf(dErrors.CodeInternal, "unknown block step %s", step)
}

// deleteFutureShifts removes the principal's shifts starting after the block
// was issued: at the issuing facility, or across its organization for
// ENTIRE_ORG.
func (m *Module) deleteFutureShifts(ctx context.Context, p blockPayload) (int, error) {
	shifts, err := m.workforce.ShiftsOf(ctx, p.Principal)
	if err != nil {
		return 0, workforce.Translate(err, "load shifts")
	}
	inOrg := map[id.FacilityID]bool{}
	n := 0
	for _, s := range shifts {
		if p.Scope == ScopeFacility && s.Facility != p.Facility {
			continue
		}
		if p.Scope == ScopeOrg && s.Facility != p.Facility {
			ok, seen := inOrg[s.Facility]
			if !seen {
				f, err := m.workforce.Facility(ctx, s.Facility)
				if err != nil && !workforce.IsNotFound(err) {
					return n, workforce.Translate(err, "load facility "+s.Facility.String())
				}
				ok = err == nil && f.OrgID == p.Org
				inOrg[s.Facility] = ok
			}
			if !ok {
				continue
			}
		}
		if !p.future(s) {
			continue
		}
		if err := m.workforce.DeleteShift(ctx, s.ID); err != nil {
			return n, workforce.Translate(err, "delete shift "+s.ID.String())
		}
		n++
	}
	return n, nil
}

// future reports whether s starts after the block was issued.
func (p blockPayload) future(s workforce.Shift) bool {
	if p.IssuedAt.IsZero() {
		return s.Date > p.Today
	}
	start, err := s.StartsAt()
	if err != nil {
		return s.Date > p.Today
	}
	return start.After(p.IssuedAt)
}

func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	return workforce.Translate(err, msg)
}
