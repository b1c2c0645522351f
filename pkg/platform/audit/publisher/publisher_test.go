package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/fallback"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/memory"
)

const actor = id.PrincipalID("user-1")

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		ActorID:  actor,
		ActionID: "calendar.request_leave",
		Phase:    audit.PhaseStart,
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "calendar.request_leave", events[0].ActionID)
	assert.False(t, events[0].ID.IsNil(), "event id should be assigned")
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			ActorID:  actor,
			ActionID: "payroll.list_entries",
			Phase:    audit.PhaseSuccess,
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListByActor(context.Background(), actor)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterCloseWritesThrough(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{ActorID: actor, ActionID: "team.view"}))

	events, err := store.ListByActor(context.Background(), actor)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_BufferFullIsReportedNotPanicking(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{ActorID: actor, ActionID: "team.view"})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
	pub.Close()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{ActorID: actor}))

	events, err := pub.List(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{ActorID: actor, Timestamp: custom}))

	events, err := pub.List(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

type brokenStore struct {
	*memory.InMemoryStore
}

func (brokenStore) Append(context.Context, audit.Event) error {
	return errors.New("connection refused")
}

type countingFailures struct {
	mu    sync.Mutex
	count map[string]int
}

func (c *countingFailures) IncAuditSinkFailure(actionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == nil {
		c.count = map[string]int{}
	}
	c.count[actionID]++
}

func TestPublisher_StoreFailureGoesToFallback(t *testing.T) {
	ring := fallback.NewRing(8)
	failures := &countingFailures{}
	pub := NewPublisher(brokenStore{memory.NewInMemoryStore()},
		WithFallback(ring),
		WithFailureCounter(failures),
	)

	err := pub.Emit(context.Background(), audit.Event{ActorID: actor, ActionID: "risk.block_user", Phase: audit.PhaseSuccess})
	require.Error(t, err)

	assert.Equal(t, 1, ring.Len())
	assert.Equal(t, 1, failures.count["risk.block_user"])
}

func TestPublisher_ListsByActionAndRecent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []string{"payroll.lock_period", "payroll.approve_global", "payroll.lock_period"} {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			ActorID:   actor,
			ActionID:  action,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	byAction, err := pub.ListByAction(context.Background(), "payroll.lock_period")
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	recent, err := pub.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "payroll.lock_period", recent[0].ActionID)
	assert.Equal(t, "payroll.approve_global", recent[1].ActionID)
}
