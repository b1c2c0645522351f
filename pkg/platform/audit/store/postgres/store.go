package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	txcontext "github.com/InteriMed/Medishift-sub005/pkg/platform/tx"
)

// Schema creates the outbox and the materialized audit_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id           UUID PRIMARY KEY,
	category     TEXT NOT NULL,
	action_id    TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_pending ON audit_outbox (created_at) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_events (
	id           UUID PRIMARY KEY,
	category     TEXT NOT NULL,
	timestamp    TIMESTAMPTZ NOT NULL,
	action_id    TEXT NOT NULL,
	phase        TEXT NOT NULL,
	actor_id     TEXT NOT NULL,
	facility_id  TEXT NOT NULL DEFAULT '',
	entity_type  TEXT NOT NULL DEFAULT '',
	entity_id    TEXT NOT NULL DEFAULT '',
	severity     TEXT NOT NULL DEFAULT '',
	error_kind   TEXT NOT NULL DEFAULT '',
	message      TEXT NOT NULL DEFAULT '',
	metadata     JSONB,
	request_id   TEXT NOT NULL DEFAULT '',
	user_agent   TEXT NOT NULL DEFAULT '',
	input_digest TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_actor ON audit_events (actor_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS audit_events_action ON audit_events (action_id, timestamp DESC);
`

// Store implements audit.Store using the transactional outbox pattern.
// Append writes to audit_outbox, inside the caller's transaction when one is
// on the context. The relay publishes outbox rows to Kafka and the consumer
// materializes them into audit_events, which the List methods read.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// Payload is the JSON document carried in the outbox and on the topic.
type Payload struct {
	ID          string         `json:"id"`
	Category    string         `json:"category"`
	Timestamp   time.Time      `json:"timestamp"`
	ActionID    string         `json:"action_id"`
	Phase       string         `json:"phase"`
	ActorID     string         `json:"actor_id"`
	FacilityID  string         `json:"facility_id,omitempty"`
	EntityType  string         `json:"entity_type,omitempty"`
	EntityID    string         `json:"entity_id,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Message     string         `json:"message,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	InputDigest string         `json:"input_digest,omitempty"`
}

// ToPayload flattens an event for the wire.
func ToPayload(event audit.Event) Payload {
	return Payload{
		ID:          event.ID.String(),
		Category:    string(event.Category),
		Timestamp:   event.Timestamp.UTC(),
		ActionID:    event.ActionID,
		Phase:       string(event.Phase),
		ActorID:     event.ActorID.String(),
		FacilityID:  event.FacilityID.String(),
		EntityType:  event.EntityType,
		EntityID:    event.EntityID,
		Severity:    string(event.Severity),
		ErrorKind:   event.ErrorKind,
		Message:     event.Message,
		Metadata:    event.Metadata,
		RequestID:   event.RequestID,
		UserAgent:   event.UserAgent,
		InputDigest: event.InputDigest,
	}
}

// Event rebuilds the domain event.
func (p Payload) Event() (audit.Event, error) {
	eventID, err := uuid.Parse(p.ID)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse event id: %w", err)
	}
	return audit.Event{
		ID:          id.EventID(eventID),
		Category:    audit.EventCategory(p.Category),
		Timestamp:   p.Timestamp,
		ActionID:    p.ActionID,
		Phase:       audit.Phase(p.Phase),
		ActorID:     id.PrincipalID(p.ActorID),
		FacilityID:  id.FacilityID(p.FacilityID),
		EntityType:  p.EntityType,
		EntityID:    p.EntityID,
		Severity:    audit.Severity(p.Severity),
		ErrorKind:   p.ErrorKind,
		Message:     p.Message,
		Metadata:    p.Metadata,
		RequestID:   p.RequestID,
		UserAgent:   p.UserAgent,
		InputDigest: p.InputDigest,
	}, nil
}

// Append writes an event to the outbox.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	body, err := json.Marshal(ToPayload(event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, category, action_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		string(event.Category),
		event.ActionID,
		body,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// OutboxEntry is an unpublished outbox row.
type OutboxEntry struct {
	ID       uuid.UUID
	Category string
	ActionID string
	Payload  []byte
}

// FetchPending locks up to limit unpublished rows, oldest first. Must run
// inside a transaction on ctx so concurrent relays skip each other's rows.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, category, action_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.Category, &e.ActionID, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps published_at on the given rows.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, u := range ids {
		raw[i] = u.String()
	}
	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query, time.Now().UTC(), pq.Array(raw)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// AppendMaterialized inserts an event into audit_events. Duplicate deliveries
// are ignored via ON CONFLICT DO NOTHING.
func (s *Store) AppendMaterialized(ctx context.Context, event audit.Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = b
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action_id, phase, actor_id, facility_id,
			entity_type, entity_id, severity, error_kind, message, metadata,
			request_id, user_agent, input_digest
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		string(event.Category),
		event.Timestamp,
		event.ActionID,
		string(event.Phase),
		event.ActorID.String(),
		event.FacilityID.String(),
		event.EntityType,
		event.EntityID,
		string(event.Severity),
		event.ErrorKind,
		event.Message,
		metadata,
		event.RequestID,
		event.UserAgent,
		event.InputDigest,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, category, timestamp, action_id, phase, actor_id, facility_id,
	       entity_type, entity_id, severity, error_kind, message, metadata,
	       request_id, user_agent, input_digest
	FROM audit_events
`

func (s *Store) ListByActor(ctx context.Context, actor id.PrincipalID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE actor_id = $1 ORDER BY timestamp DESC`, actor.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListByAction(ctx context.Context, actionID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE action_id = $1 ORDER BY timestamp DESC`, actionID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			eventID  uuid.UUID
			category string
			phase    string
			actor    string
			facility string
			sev      string
			metadata []byte
		)
		err := rows.Scan(
			&eventID,
			&category,
			&event.Timestamp,
			&event.ActionID,
			&phase,
			&actor,
			&facility,
			&event.EntityType,
			&event.EntityID,
			&sev,
			&event.ErrorKind,
			&event.Message,
			&metadata,
			&event.RequestID,
			&event.UserAgent,
			&event.InputDigest,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = id.EventID(eventID)
		event.Category = audit.EventCategory(category)
		event.Phase = audit.Phase(phase)
		event.ActorID = id.PrincipalID(actor)
		event.FacilityID = id.FacilityID(facility)
		event.Severity = audit.Severity(sev)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
