package saga

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "intents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	intent := Intent{
		ID:        id.NewIntentID(),
		Kind:      "risk.block_user",
		Actor:     "hr-1",
		Payload:   []byte(`{"userId":"u1"}`),
		Status:    StatusPending,
		Steps:     []Step{{Key: "entry", Status: StepPending}, {Key: "shifts", Status: StepPending}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, intent))
	assert.ErrorIs(t, store.Create(ctx, intent), sentinel.ErrConflict)

	got, err := store.Get(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.Kind, got.Kind)
	assert.Equal(t, "hr-1", got.Actor.String())
	assert.JSONEq(t, `{"userId":"u1"}`, string(got.Payload))
	assert.Equal(t, []string{"entry", "shifts"}, []string{got.Steps[0].Key, got.Steps[1].Key})
	assert.True(t, got.CreatedAt.Equal(now))

	got.setStep("entry", StepDone)
	got.Attempts = 1
	got.FailedStep = "shifts"
	got.LastError = "timeout"
	require.NoError(t, store.Save(ctx, got))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Done("entry"))
	assert.Equal(t, "shifts", pending[0].FailedStep)

	got.Status = StatusDone
	require.NoError(t, store.Save(ctx, got))
	pending, err = store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteStore_Missing(t *testing.T) {
	store := newSQLiteStore(t)
	_, err := store.Get(context.Background(), id.NewIntentID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, store.Save(context.Background(), Intent{ID: id.NewIntentID()}), sentinel.ErrNotFound)
}

func TestRunner_WithSQLiteStore(t *testing.T) {
	store := newSQLiteStore(t)
	runner := NewRunner(store)
	var ran []string
	runner.Register("test.fanout", Funcs{Do: func(_ context.Context, _ Intent, step string) error {
		ran = append(ran, step)
		return nil
	}})

	intent, err := runner.Start(context.Background(), "test.fanout", "u1", map[string]int{"n": 2}, []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, ran)

	got, err := store.Get(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, 2, got.Completed())
}
