package education

import (
	"context"
	"slices"
	"strings"
	"sync"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Store persists logged credits. Credits are append-only.
type Store interface {
	AddCredit(ctx context.Context, c Credit) error
	// CreditsOf lists a principal's credits completed in [from, to], both
	// YYYY-MM-DD and inclusive, oldest first.
	CreditsOf(ctx context.Context, principal id.PrincipalID, from, to string) ([]Credit, error)
}

type InMemoryStore struct {
	mu      sync.RWMutex
	credits map[id.PrincipalID][]Credit
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{credits: make(map[id.PrincipalID][]Credit)}
}

func (s *InMemoryStore) AddCredit(_ context.Context, c Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits[c.Principal] = append(s.credits[c.Principal], c)
	return nil
}

func (s *InMemoryStore) CreditsOf(_ context.Context, principal id.PrincipalID, from, to string) ([]Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Credit
	for _, c := range s.credits[principal] {
		if c.CompletedOn >= from && c.CompletedOn <= to {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Credit) int {
		return strings.Compare(a.CompletedOn, b.CompletedOn)
	})
	return out, nil
}
