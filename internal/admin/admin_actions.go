package admin

import (
	"context"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

// -----------------------------------------------------------------------------
// Resume intent
// -----------------------------------------------------------------------------

type resumeInput struct {
	IntentID   string `json:"intentId"`
	Compensate bool   `json:"compensate"`
}

func (m *Module) resumeIntent() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "admin.resume_intent",
		Permission:  access.AdminAccess,
		Label:       "Resume intent",
		Description: "Continue a partially applied fan-out, or undo its completed steps",
		Keywords:    []string{"saga", "intent", "resume", "compensate", "recovery"},
		Schema: schema.New(
			schema.String("intentId").Required().Pattern(`^[0-9a-fA-F-]{36}$`).Example("0b6f3c5e-8a1d-4e2b-9c7f-1a2b3c4d5e6f"),
			schema.Bool("compensate").Default(false).Describe("undo completed steps instead of resuming"),
		),
		Metadata: actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleResume)
}

func (m *Module) handleResume(ctx context.Context, in resumeInput, ec *actions.ExecutionContext) (IntentResponse, error) {
	intentID, err := id.ParseIntentID(in.IntentID)
	if err != nil {
		return IntentResponse{}, dErrors.Wrap(err, dErrors.CodeBusinessRule, "invalid intent id")
	}
	before, err := m.sagas.Get(ctx, intentID)
	if err != nil {
		return IntentResponse{}, err
	}

	var intent saga.Intent
	if in.Compensate {
		intent, err = m.sagas.Compensate(ctx, intentID)
	} else {
		intent, err = m.sagas.Resume(ctx, intentID)
	}
	ec.Record("saga_intent", intentID.String(),
		"kind", before.Kind,
		"compensate", in.Compensate,
		"stepsDoneBefore", before.Completed(),
	)
	if err != nil {
		return IntentResponse{}, err
	}
	ec.Annotate("status", string(intent.Status), "stepsDone", intent.Completed())
	m.logger.InfoContext(ctx, "saga intent driven by operator",
		"intent_id", intentID.String(),
		"kind", intent.Kind,
		"status", intent.Status,
		"actor", ec.Principal.String(),
	)
	return toIntentResponse(intent), nil
}

// -----------------------------------------------------------------------------
// List audit
// -----------------------------------------------------------------------------

type listAuditInput struct {
	ActorID  string `json:"actorId"`
	ActionID string `json:"actionId"`
	Limit    int    `json:"limit"`
}

func (m *Module) listAudit() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "admin.list_audit",
		Permission:  access.AdminAccess,
		Label:       "Audit trail",
		Description: "List audit records, most recent first",
		Keywords:    []string{"audit", "log", "history", "trail"},
		Schema: schema.New(
			schema.String("actorId").Len(1, 128),
			schema.String("actionId").Len(1, 128),
			schema.Integer("limit").Range(1, maxAuditLimit).Default(defaultAuditLimit),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow},
	}, m.handleListAudit)
}

func (m *Module) handleListAudit(ctx context.Context, in listAuditInput, ec *actions.ExecutionContext) (AuditListResponse, error) {
	var (
		events []audit.Event
		err    error
	)
	switch {
	case in.ActorID != "":
		events, err = m.audit.ListByActor(ctx, id.PrincipalID(in.ActorID))
	case in.ActionID != "":
		events, err = m.audit.ListByAction(ctx, in.ActionID)
	default:
		events, err = m.audit.ListRecent(ctx, in.Limit)
	}
	if err != nil {
		return AuditListResponse{}, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events")
	}

	out := AuditListResponse{Records: make([]AuditRecord, 0, min(len(events), in.Limit))}
	for _, e := range events {
		if in.ActorID != "" && in.ActionID != "" && e.ActionID != in.ActionID {
			continue
		}
		if len(out.Records) == in.Limit {
			break
		}
		out.Records = append(out.Records, toAuditRecord(e))
	}
	out.Total = len(out.Records)
	ec.Annotate("returned", out.Total, "actorFilter", in.ActorID, "actionFilter", in.ActionID)
	return out, nil
}
