// Package relay moves audit events from the postgres outbox onto Kafka.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/InteriMed/Medishift-sub005/internal/platform/kafka"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/postgres"
)

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// TopicFor maps an event category to its topic.
func TopicFor(category string) string {
	switch audit.EventCategory(category) {
	case audit.CategoryCompliance:
		return "audit.compliance"
	case audit.CategorySecurity:
		return "audit.security"
	default:
		return "audit.operations"
	}
}

// Topics lists every topic the relay may publish to.
func Topics() []string {
	return []string{"audit.compliance", "audit.security", "audit.operations"}
}

// Outbox is the subset of the postgres store the relay needs.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes records and waits for acknowledgement.
type Producer interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// TxRunner runs fn inside a transaction carried by ctx.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Relay struct {
	outbox    Outbox
	producer  Producer
	runTx     TxRunner
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func New(outbox Outbox, producer Producer, runTx TxRunner, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		runTx:     runTx,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays batches until ctx is cancelled. A failed batch is logged and
// retried on the next tick; its rows stay unpublished.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "audit relay batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and marks it published in the same
// transaction. Delivery is at-least-once: a crash between publish and commit
// republishes the batch, and the consumer deduplicates on event id.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.runTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		msgs := make([]kafka.Message, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			msgs[i] = kafka.Message{
				Topic:   TopicFor(e.Category),
				Key:     []byte(e.ID.String()),
				Value:   e.Payload,
				Headers: map[string]string{"action_id": e.ActionID},
			}
			ids[i] = e.ID
		}
		if err := r.producer.Publish(ctx, msgs...); err != nil {
			return err
		}
		if err := r.outbox.MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	return published, err
}
