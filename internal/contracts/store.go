package contracts

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

// Store persists contracts. SaveContract is optimistic on Version.
type Store interface {
	Contract(ctx context.Context, contract id.ContractID) (Contract, error)
	ContractsOf(ctx context.Context, principal id.PrincipalID) ([]Contract, error)
	SaveContract(ctx context.Context, c Contract) (Contract, error)
}

type InMemoryStore struct {
	mu        sync.RWMutex
	contracts map[id.ContractID]Contract
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{contracts: make(map[id.ContractID]Contract)}
}

func (s *InMemoryStore) Contract(_ context.Context, contract id.ContractID) (Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[contract]
	if !ok {
		return Contract{}, fmt.Errorf("contract %s: %w", contract, sentinel.ErrNotFound)
	}
	return c.clone(), nil
}

func (s *InMemoryStore) ContractsOf(_ context.Context, principal id.PrincipalID) ([]Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Contract
	for _, c := range s.contracts {
		if c.Principal == principal {
			out = append(out, c.clone())
		}
	}
	slices.SortFunc(out, func(a, b Contract) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out, nil
}

func (s *InMemoryStore) SaveContract(_ context.Context, c Contract) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.contracts[c.ID].Version; stored != c.Version {
		return Contract{}, fmt.Errorf("contract %s at version %d, write based on %d: %w", c.ID, stored, c.Version, sentinel.ErrVersionMismatch)
	}
	c.Version++
	s.contracts[c.ID] = c.clone()
	return c, nil
}

// HasSigned reports whether principal holds a SIGNED contract at facility.
func HasSigned(ctx context.Context, store Store, principal id.PrincipalID, facility id.FacilityID) (bool, error) {
	cs, err := store.ContractsOf(ctx, principal)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(cs, func(c Contract) bool {
		return c.Facility == facility && c.Status == StatusSigned
	}), nil
}
