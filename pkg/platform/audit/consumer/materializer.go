// Package consumer materializes relayed audit events into the query table.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/InteriMed/Medishift-sub005/internal/platform/kafka"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/postgres"
)

// Sink stores a decoded event. Must be idempotent on event id.
type Sink interface {
	AppendMaterialized(ctx context.Context, event audit.Event) error
}

// Materializer decodes outbox payloads and writes them to the sink.
type Materializer struct {
	sink   Sink
	logger *slog.Logger
}

func NewMaterializer(sink Sink, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{sink: sink, logger: logger}
}

// Handle writes one event. Malformed payloads are logged and skipped so they
// do not block the partition; sink errors are returned for redelivery.
func (m *Materializer) Handle(ctx context.Context, msg *kafka.Message) error {
	var payload postgres.Payload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		m.logger.ErrorContext(ctx, "malformed audit payload",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	event, err := payload.Event()
	if err != nil {
		m.logger.ErrorContext(ctx, "malformed audit event id",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	return m.sink.AppendMaterialized(ctx, event)
}
