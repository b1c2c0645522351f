// Package publisher fronts an audit.Store for the dispatcher.
//
// In sync mode Emit writes straight through to the store. With
// WithAsyncBuffer, Emit enqueues and a single goroutine drains the queue, so
// the caller only blocks when the buffer is full. Close drains whatever is
// still buffered before returning.
//
// A store failure never propagates to the caller's business outcome: the
// dispatcher treats Emit errors as advisory. When a fallback sink is
// configured, events the store rejected are kept there for inspection.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// Fallback receives events the store failed to persist.
type Fallback interface {
	Add(event audit.Event)
}

// FailureCounter counts store failures. Satisfied by the dispatcher metrics.
type FailureCounter interface {
	IncAuditSinkFailure(actionID string)
}

// Publisher emits audit events to a store.
type Publisher struct {
	store    audit.Store
	logger   *slog.Logger
	fallback Fallback
	failures FailureCounter
	now      func() time.Time

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches Emit to enqueue into a buffer of the given size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithFallback keeps events the store rejected.
func WithFallback(f Fallback) Option {
	return func(p *Publisher) {
		p.fallback = f
	}
}

func WithFailureCounter(c FailureCounter) Option {
	return func(p *Publisher) {
		p.failures = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. ID and Timestamp are filled when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = p.fill(event)

	if p.buffer == nil {
		return p.persist(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.persist(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.reject(ctx, event, ErrBufferFull)
		return ErrBufferFull
	}
}

// EmitSync writes through to the store even in async mode.
func (p *Publisher) EmitSync(ctx context.Context, event audit.Event) error {
	return p.persist(ctx, p.fill(event))
}

func (p *Publisher) fill(event audit.Event) audit.Event {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.CategoryOperations
	}
	return event
}

// List returns events recorded for an actor.
func (p *Publisher) List(ctx context.Context, actor id.PrincipalID) ([]audit.Event, error) {
	return p.store.ListByActor(ctx, actor)
}

// ListByAction returns events recorded for an action id.
func (p *Publisher) ListByAction(ctx context.Context, actionID string) ([]audit.Event, error) {
	return p.store.ListByAction(ctx, actionID)
}

// ListRecent returns the most recent events across all actors.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops accepting buffered events and drains the queue.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.buffer)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		// The request context is gone by now; drain with a fresh one.
		_ = p.persist(context.Background(), event)
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		p.reject(ctx, event, err)
		return err
	}
	return nil
}

func (p *Publisher) reject(ctx context.Context, event audit.Event, err error) {
	if p.failures != nil {
		p.failures.IncAuditSinkFailure(event.ActionID)
	}
	if p.fallback != nil {
		p.fallback.Add(event)
	}
	if p.logger != nil {
		p.logger.ErrorContext(ctx, "audit sink failed",
			"action_id", event.ActionID,
			"phase", event.Phase,
			"event_id", event.ID.String(),
			"error", err,
		)
	}
}
