package payroll

import (
	"context"
	"fmt"
	"slices"
	"sync"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

// Store persists periods and their entries. SavePeriod is optimistic on
// Version.
type Store interface {
	Period(ctx context.Context, periodID string) (Period, error)
	SavePeriod(ctx context.Context, p Period) (Period, error)
	AddEntry(ctx context.Context, e Entry) error
	Entries(ctx context.Context, periodID string) ([]Entry, error)
}

type InMemoryStore struct {
	mu      sync.RWMutex
	periods map[string]Period
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		periods: make(map[string]Period),
		entries: make(map[string][]Entry),
	}
}

func (s *InMemoryStore) Period(_ context.Context, periodID string) (Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.periods[periodID]
	if !ok {
		return Period{}, fmt.Errorf("payroll period %s: %w", periodID, sentinel.ErrNotFound)
	}
	p.Payslips = slices.Clone(p.Payslips)
	return p, nil
}

func (s *InMemoryStore) SavePeriod(_ context.Context, p Period) (Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.periods[p.ID].Version; stored != p.Version {
		return Period{}, fmt.Errorf("payroll period %s at version %d, write based on %d: %w", p.ID, stored, p.Version, sentinel.ErrVersionMismatch)
	}
	p.Version++
	p.Payslips = slices.Clone(p.Payslips)
	s.periods[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) AddEntry(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[e.Period]; !ok {
		return fmt.Errorf("payroll period %s: %w", e.Period, sentinel.ErrNotFound)
	}
	if slices.ContainsFunc(s.entries[e.Period], func(x Entry) bool { return x.ID == e.ID }) {
		return fmt.Errorf("payroll entry %s: %w", e.ID, sentinel.ErrConflict)
	}
	s.entries[e.Period] = append(s.entries[e.Period], e)
	return nil
}

func (s *InMemoryStore) Entries(_ context.Context, periodID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries[periodID]), nil
}

// entriesOf filters entries to one principal; an empty principal keeps all.
func entriesOf(entries []Entry, principal id.PrincipalID) []Entry {
	if principal.IsZero() {
		return entries
	}
	return slices.DeleteFunc(entries, func(e Entry) bool { return e.Principal != principal })
}
