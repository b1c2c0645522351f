package audit

import (
	"context"
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This drives retention and the relay topic an event is published to.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: payroll
	// mutations, contract lifecycle, blocklisting, role changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denials at the gate or by an ownership rule.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine reads and low-risk writes.
	CategoryOperations EventCategory = "operations"
)

// Phase marks where in a dispatch an event was emitted.
type Phase string

const (
	PhaseStart   Phase = "START"
	PhaseSuccess Phase = "SUCCESS"
	PhaseFailure Phase = "FAILURE"
	// PhaseNote is a handler-emitted, non-terminal entry (e.g. a forced
	// override). A dispatch may carry any number of notes.
	PhaseNote Phase = "NOTE"
)

// IsTerminal reports whether the phase closes a dispatch.
func (p Phase) IsTerminal() bool {
	return p == PhaseSuccess || p == PhaseFailure
}

// Severity levels.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event answers "who did what, to which entity, with what outcome" without a
// join back to the mutated aggregate. Metadata must only hold values the
// audit reader is entitled to see: identifiers, counts, enums, amounts the
// actor wrote. Never compensation read back from a contract.
type Event struct {
	ID         id.EventID
	Category   EventCategory
	Timestamp  time.Time
	ActionID   string
	Phase      Phase
	ActorID    id.PrincipalID
	FacilityID id.FacilityID
	EntityType string
	EntityID   string
	Severity   Severity
	// ErrorKind and Message are set on FAILURE only.
	ErrorKind string
	Message   string
	Metadata  map[string]any
	RequestID string
	UserAgent string
	// InputDigest is a blake2b-256 digest of the raw payload, so a record
	// can be matched to a request without storing the payload itself.
	InputDigest string
}

// Store persists audit events. Listings are most recent first.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor id.PrincipalID) ([]Event, error)
	ListByAction(ctx context.Context, actionID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
