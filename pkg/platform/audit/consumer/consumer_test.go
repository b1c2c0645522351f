package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InteriMed/Medishift-sub005/internal/platform/kafka"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/postgres"
)

type recordingSink struct {
	events []audit.Event
}

func (s *recordingSink) AppendMaterialized(_ context.Context, e audit.Event) error {
	s.events = append(s.events, e)
	return nil
}

func TestMaterializer_DecodesPayload(t *testing.T) {
	sink := &recordingSink{}
	m := NewMaterializer(sink, nil)

	event := audit.Event{
		ID:         id.NewEventID(),
		Category:   audit.CategoryCompliance,
		Timestamp:  time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		ActionID:   "risk.block_user",
		Phase:      audit.PhaseSuccess,
		ActorID:    "admin-1",
		FacilityID: "fac-1",
		EntityType: "principal",
		EntityID:   "user-9",
	}
	body, err := json.Marshal(postgres.ToPayload(event))
	require.NoError(t, err)

	require.NoError(t, m.Handle(context.Background(), &kafka.Message{Topic: "audit.compliance", Value: body}))
	require.Len(t, sink.events, 1)
	assert.Equal(t, event.ID, sink.events[0].ID)
	assert.Equal(t, audit.PhaseSuccess, sink.events[0].Phase)
	assert.Equal(t, id.FacilityID("fac-1"), sink.events[0].FacilityID)
}

func TestMaterializer_SkipsMalformed(t *testing.T) {
	sink := &recordingSink{}
	m := NewMaterializer(sink, nil)

	assert.NoError(t, m.Handle(context.Background(), &kafka.Message{Value: []byte("not json")}))
	assert.NoError(t, m.Handle(context.Background(), &kafka.Message{Value: []byte(`{"id":"nope"}`)}))
	assert.Empty(t, sink.events)
}

func TestRouter_FallsBackOrSkips(t *testing.T) {
	var routed []string
	handler := func(name string) kafka.Handler {
		return kafka.HandlerFunc(func(_ context.Context, msg *kafka.Message) error {
			routed = append(routed, name+":"+msg.Topic)
			return nil
		})
	}

	r := NewRouter(nil, nil)
	r.Register("audit.security", handler("security"))
	require.NoError(t, r.Handle(context.Background(), &kafka.Message{Topic: "audit.security"}))
	require.NoError(t, r.Handle(context.Background(), &kafka.Message{Topic: "unknown"}))
	assert.Equal(t, []string{"security:audit.security"}, routed)

	withFallback := NewRouter(nil, handler("fallback"))
	require.NoError(t, withFallback.Handle(context.Background(), &kafka.Message{Topic: "unknown"}))
	assert.Contains(t, routed, "fallback:unknown")
}
