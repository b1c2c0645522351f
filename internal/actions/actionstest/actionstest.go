// Package actionstest provides in-memory collaborators for dispatching
// actions in tests.
package actionstest

import (
	"context"
	"sync"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

// Sink records every emitted event. Set Err to make Emit fail after
// recording.
type Sink struct {
	mu     sync.Mutex
	events []audit.Event
	synced int
	Err    error
}

func (s *Sink) Emit(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.Err
}

func (s *Sink) EmitSync(ctx context.Context, ev audit.Event) error {
	s.mu.Lock()
	s.synced++
	s.mu.Unlock()
	return s.Emit(ctx, ev)
}

// Events returns a copy of everything recorded.
func (s *Sink) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

// Synced counts events that went through EmitSync.
func (s *Sink) Synced() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// Terminal returns the SUCCESS and FAILURE events for actionID.
func (s *Sink) Terminal(actionID string) []audit.Event {
	return s.Phase(actionID, audit.PhaseSuccess, audit.PhaseFailure)
}

// Phase returns the events for actionID in any of the given phases.
func (s *Sink) Phase(actionID string, phases ...audit.Phase) []audit.Event {
	var out []audit.Event
	for _, ev := range s.Events() {
		if ev.ActionID != actionID {
			continue
		}
		for _, p := range phases {
			if ev.Phase == p {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.synced = 0
}

// Resolver grants fixed permission sets per principal.
type Resolver struct {
	mu    sync.Mutex
	grant map[id.PrincipalID][]string
	Err   error
}

func NewResolver() *Resolver {
	return &Resolver{grant: make(map[id.PrincipalID][]string)}
}

// Grant replaces the permissions of principal.
func (r *Resolver) Grant(principal id.PrincipalID, perms ...string) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grant[principal] = perms
	return r
}

func (r *Resolver) Resolve(_ context.Context, principal id.PrincipalID, _ id.FacilityID) (actions.Permissions, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return actions.NewPermissions(r.grant[principal]...), nil
}

// Harness wires a registry, a dispatcher, a recording sink and a resolver.
type Harness struct {
	Registry   *actions.Registry
	Dispatcher *actions.Dispatcher
	Sink       *Sink
	Resolver   *Resolver
}

func New(defs ...actions.Definition) *Harness {
	reg := actions.NewRegistry()
	reg.MustRegister(defs...)
	sink := &Sink{}
	res := NewResolver()
	return &Harness{
		Registry:   reg,
		Dispatcher: actions.NewDispatcher(reg, res, sink),
		Sink:       sink,
		Resolver:   res,
	}
}

// Dispatch invokes actionID as principal at facility.
func (h *Harness) Dispatch(ctx context.Context, principal, facility, actionID string, raw map[string]any) (*actions.Result, error) {
	caller := actions.Caller{Principal: id.PrincipalID(principal), Facility: id.FacilityID(facility)}
	return h.Dispatcher.Dispatch(ctx, caller, actionID, raw)
}
