package workforce

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

// InMemoryStore keeps aggregates in maps and hands out copies, so callers
// never alias stored state.
type InMemoryStore struct {
	mu         sync.RWMutex
	principals map[id.PrincipalID]Principal
	facilities map[id.FacilityID]Facility
	shifts     map[id.ShiftID]Shift
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		principals: make(map[id.PrincipalID]Principal),
		facilities: make(map[id.FacilityID]Facility),
		shifts:     make(map[id.ShiftID]Shift),
	}
}

func (s *InMemoryStore) Principal(_ context.Context, principal id.PrincipalID) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principal]
	if !ok {
		return Principal{}, fmt.Errorf("principal %s: %w", principal, sentinel.ErrNotFound)
	}
	return p.clone(), nil
}

func (s *InMemoryStore) Principals(_ context.Context) ([]Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Principal, 0, len(s.principals))
	for _, p := range s.principals {
		out = append(out, p.clone())
	}
	slices.SortFunc(out, func(a, b Principal) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryStore) SavePrincipal(_ context.Context, p Principal) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkVersion(s.principals[p.ID].Version, p.Version); err != nil {
		return Principal{}, fmt.Errorf("principal %s: %w", p.ID, err)
	}
	p.Version++
	s.principals[p.ID] = p.clone()
	return p, nil
}

func (s *InMemoryStore) Facility(_ context.Context, facility id.FacilityID) (Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facilities[facility]
	if !ok {
		return Facility{}, fmt.Errorf("facility %s: %w", facility, sentinel.ErrNotFound)
	}
	return f.clone(), nil
}

func (s *InMemoryStore) Facilities(_ context.Context, org id.OrgID) ([]Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Facility
	for _, f := range s.facilities {
		if org == "" || f.OrgID == org {
			out = append(out, f.clone())
		}
	}
	slices.SortFunc(out, func(a, b Facility) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryStore) FacilitiesOf(_ context.Context, principal id.PrincipalID) ([]Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Facility
	for _, f := range s.facilities {
		if _, ok := f.Member(principal); ok {
			out = append(out, f.clone())
		}
	}
	slices.SortFunc(out, func(a, b Facility) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryStore) SaveFacility(_ context.Context, f Facility) (Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkVersion(s.facilities[f.ID].Version, f.Version); err != nil {
		return Facility{}, fmt.Errorf("facility %s: %w", f.ID, err)
	}
	f.Version++
	s.facilities[f.ID] = f.clone()
	return f, nil
}

func (s *InMemoryStore) Shift(_ context.Context, shift id.ShiftID) (Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shifts[shift]
	if !ok {
		return Shift{}, fmt.Errorf("shift %s: %w", shift, sentinel.ErrNotFound)
	}
	return sh, nil
}

func (s *InMemoryStore) ShiftsOf(_ context.Context, principal id.PrincipalID) ([]Shift, error) {
	return s.filterShifts(func(sh Shift) bool { return sh.Principal == principal }), nil
}

func (s *InMemoryStore) ShiftsAt(_ context.Context, facility id.FacilityID) ([]Shift, error) {
	return s.filterShifts(func(sh Shift) bool { return sh.Facility == facility }), nil
}

func (s *InMemoryStore) filterShifts(keep func(Shift) bool) []Shift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Shift
	for _, sh := range s.shifts {
		if keep(sh) {
			out = append(out, sh)
		}
	}
	slices.SortFunc(out, func(a, b Shift) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Start, b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s *InMemoryStore) SaveShift(_ context.Context, sh Shift) (Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkVersion(s.shifts[sh.ID].Version, sh.Version); err != nil {
		return Shift{}, fmt.Errorf("shift %s: %w", sh.ID, err)
	}
	sh.Version++
	s.shifts[sh.ID] = sh
	return sh, nil
}

func (s *InMemoryStore) DeleteShift(_ context.Context, shift id.ShiftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shifts, shift)
	return nil
}

func checkVersion(stored, given int) error {
	if stored != given {
		return fmt.Errorf("stored version %d, write based on %d: %w", stored, given, sentinel.ErrVersionMismatch)
	}
	return nil
}
