package admin

import (
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/saga"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

// AuditRecord is the read model of one stored audit event. It carries the
// stored fields only; nothing is joined back from the aggregates.
type AuditRecord struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	ActionID    string         `json:"actionId"`
	Phase       string         `json:"phase"`
	Category    string         `json:"category"`
	Severity    string         `json:"severity"`
	ActorID     string         `json:"actorId"`
	FacilityID  string         `json:"facilityId,omitempty"`
	EntityType  string         `json:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty"`
	ErrorKind   string         `json:"errorKind,omitempty"`
	Message     string         `json:"message,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RequestID   string         `json:"requestId,omitempty"`
	InputDigest string         `json:"inputDigest,omitempty"`
}

// AuditListResponse wraps a page of audit records.
type AuditListResponse struct {
	Records []AuditRecord `json:"records"`
	Total   int           `json:"total"`
}

// IntentResponse summarizes a saga intent after an operator action.
type IntentResponse struct {
	IntentID   string    `json:"intentId"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	StepsDone  int       `json:"stepsDone"`
	StepsTotal int       `json:"stepsTotal"`
	Attempts   int       `json:"attempts"`
	FailedStep string    `json:"failedStep,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toAuditRecord(e audit.Event) AuditRecord {
	return AuditRecord{
		ID:          e.ID.String(),
		Timestamp:   e.Timestamp,
		ActionID:    e.ActionID,
		Phase:       string(e.Phase),
		Category:    string(e.Category),
		Severity:    string(e.Severity),
		ActorID:     e.ActorID.String(),
		FacilityID:  e.FacilityID.String(),
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		ErrorKind:   e.ErrorKind,
		Message:     e.Message,
		Metadata:    e.Metadata,
		RequestID:   e.RequestID,
		InputDigest: e.InputDigest,
	}
}

func toIntentResponse(i saga.Intent) IntentResponse {
	return IntentResponse{
		IntentID:   i.ID.String(),
		Kind:       i.Kind,
		Status:     string(i.Status),
		StepsDone:  i.Completed(),
		StepsTotal: len(i.Steps),
		Attempts:   i.Attempts,
		FailedStep: i.FailedStep,
		LastError:  i.LastError,
		UpdatedAt:  i.UpdatedAt,
	}
}
