package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InteriMed/Medishift-sub005/internal/platform/kafka"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	pending   []postgres.OutboxEntry
	published []uuid.UUID
}

func (f *fakeOutbox) FetchPending(_ context.Context, limit int) ([]postgres.OutboxEntry, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.published = append(f.published, ids...)
	return nil
}

type fakeProducer struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeProducer) Publish(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func inline(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func TestRelayOnce_PublishesByCategory(t *testing.T) {
	outbox := &fakeOutbox{pending: []postgres.OutboxEntry{
		{ID: uuid.New(), Category: "compliance", ActionID: "payroll.lock_period", Payload: []byte(`{}`)},
		{ID: uuid.New(), Category: "operations", ActionID: "team.search_by_skill", Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{}

	n, err := New(outbox, producer, inline).RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, producer.msgs, 2)
	assert.Equal(t, "audit.compliance", producer.msgs[0].Topic)
	assert.Equal(t, "audit.operations", producer.msgs[1].Topic)
	assert.Equal(t, "payroll.lock_period", producer.msgs[0].Headers["action_id"])
	assert.Len(t, outbox.published, 2)
}

func TestRelayOnce_ProduceFailureLeavesRowsPending(t *testing.T) {
	outbox := &fakeOutbox{pending: []postgres.OutboxEntry{{ID: uuid.New(), Category: "security"}}}
	producer := &fakeProducer{err: errors.New("broker unavailable")}

	n, err := New(outbox, producer, inline).RelayOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, outbox.published)
}

func TestRelayOnce_RespectsBatchSize(t *testing.T) {
	outbox := &fakeOutbox{}
	for range 5 {
		outbox.pending = append(outbox.pending, postgres.OutboxEntry{ID: uuid.New(), Category: "operations"})
	}
	producer := &fakeProducer{}

	n, err := New(outbox, producer, inline, WithBatchSize(3)).RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
