package risk

import (
	"context"
	"fmt"
	"sync"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

// Store persists block entries and incidents. SaveBlock upserts by ID.
type Store interface {
	SaveBlock(ctx context.Context, b BlockEntry) error
	Block(ctx context.Context, entryID string) (BlockEntry, error)
	BlocksOf(ctx context.Context, principal id.PrincipalID) ([]BlockEntry, error)
	SaveIncident(ctx context.Context, in Incident) error
	Incidents(ctx context.Context, facility id.FacilityID) ([]Incident, error)
}

type InMemoryStore struct {
	mu        sync.RWMutex
	blocks    map[string]BlockEntry
	incidents []Incident
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blocks: make(map[string]BlockEntry)}
}

func (s *InMemoryStore) SaveBlock(_ context.Context, b BlockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.ID] = b
	return nil
}

func (s *InMemoryStore) Block(_ context.Context, entryID string) (BlockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[entryID]
	if !ok {
		return BlockEntry{}, fmt.Errorf("block entry %s: %w", entryID, sentinel.ErrNotFound)
	}
	return b, nil
}

func (s *InMemoryStore) BlocksOf(_ context.Context, principal id.PrincipalID) ([]BlockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BlockEntry
	for _, b := range s.blocks {
		if b.Principal == principal {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveIncident(_ context.Context, in Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, in)
	return nil
}

func (s *InMemoryStore) Incidents(_ context.Context, facility id.FacilityID) ([]Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Incident
	for _, in := range s.incidents {
		if in.Facility == facility {
			out = append(out, in)
		}
	}
	return out, nil
}
