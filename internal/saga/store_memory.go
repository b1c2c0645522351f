package saga

import (
	"context"
	"fmt"
	"slices"
	"sync"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

// InMemoryStore keeps intents in a map for tests and single-process dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	intents map[id.IntentID]Intent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{intents: make(map[id.IntentID]Intent)}
}

func (s *InMemoryStore) Create(_ context.Context, intent Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[intent.ID]; ok {
		return fmt.Errorf("intent %s: %w", intent.ID, sentinel.ErrConflict)
	}
	s.intents[intent.ID] = intent.clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, intentID id.IntentID) (Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[intentID]
	if !ok {
		return Intent{}, fmt.Errorf("intent %s: %w", intentID, sentinel.ErrNotFound)
	}
	return intent.clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, intent Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[intent.ID]; !ok {
		return fmt.Errorf("intent %s: %w", intent.ID, sentinel.ErrNotFound)
	}
	s.intents[intent.ID] = intent.clone()
	return nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Intent
	for _, intent := range s.intents {
		if intent.Status == StatusPending {
			out = append(out, intent.clone())
		}
	}
	slices.SortFunc(out, func(a, b Intent) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}
