package leave

import (
	"context"
	"fmt"
	"slices"
	"sync"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
)

// Store persists requests, swaps and per-year entitlement overrides. Save
// methods are optimistic on Version like the workforce store.
type Store interface {
	SaveRequest(ctx context.Context, r Request) (Request, error)
	Request(ctx context.Context, requestID id.LeaveRequestID) (Request, error)
	// RequestsOf lists a principal's requests starting in year; 0 lists all.
	RequestsOf(ctx context.Context, principal id.PrincipalID, year int) ([]Request, error)

	// Entitlement returns an override of the annual entitlement, if any.
	Entitlement(ctx context.Context, principal id.PrincipalID, year int) (int, bool, error)
	SetEntitlement(ctx context.Context, principal id.PrincipalID, year, days int) error

	SaveSwap(ctx context.Context, s Swap) (Swap, error)
	Swap(ctx context.Context, swapID id.SwapID) (Swap, error)
	OpenSwapFor(ctx context.Context, shift id.ShiftID) (Swap, bool, error)
}

type entitlementKey struct {
	principal id.PrincipalID
	year      int
}

// InMemoryStore is the in-process Store.
type InMemoryStore struct {
	mu           sync.RWMutex
	requests     map[id.LeaveRequestID]Request
	swaps        map[id.SwapID]Swap
	entitlements map[entitlementKey]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests:     make(map[id.LeaveRequestID]Request),
		swaps:        make(map[id.SwapID]Swap),
		entitlements: make(map[entitlementKey]int),
	}
}

func (s *InMemoryStore) SaveRequest(_ context.Context, r Request) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.requests[r.ID].Version; stored != r.Version {
		return Request{}, fmt.Errorf("leave request %s at version %d, write based on %d: %w", r.ID, stored, r.Version, sentinel.ErrVersionMismatch)
	}
	r.Version++
	s.requests[r.ID] = r
	return r, nil
}

func (s *InMemoryStore) Request(_ context.Context, requestID id.LeaveRequestID) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return Request{}, fmt.Errorf("leave request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return r, nil
}

func (s *InMemoryStore) RequestsOf(_ context.Context, principal id.PrincipalID, year int) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Request
	for _, r := range s.requests {
		if r.Principal == principal && (year == 0 || r.Year == year) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Request) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Entitlement(_ context.Context, principal id.PrincipalID, year int) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	days, ok := s.entitlements[entitlementKey{principal, year}]
	return days, ok, nil
}

func (s *InMemoryStore) SetEntitlement(_ context.Context, principal id.PrincipalID, year, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitlements[entitlementKey{principal, year}] = days
	return nil
}

func (s *InMemoryStore) SaveSwap(_ context.Context, sw Swap) (Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.swaps[sw.ID].Version; stored != sw.Version {
		return Swap{}, fmt.Errorf("swap %s at version %d, write based on %d: %w", sw.ID, stored, sw.Version, sentinel.ErrVersionMismatch)
	}
	sw.Version++
	s.swaps[sw.ID] = sw
	return sw, nil
}

func (s *InMemoryStore) Swap(_ context.Context, swapID id.SwapID) (Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sw, ok := s.swaps[swapID]
	if !ok {
		return Swap{}, fmt.Errorf("swap %s: %w", swapID, sentinel.ErrNotFound)
	}
	return sw, nil
}

func (s *InMemoryStore) OpenSwapFor(_ context.Context, shift id.ShiftID) (Swap, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sw := range s.swaps {
		if sw.Shift == shift && sw.Status == SwapOpen {
			return sw, true, nil
		}
	}
	return Swap{}, false, nil
}
