package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

// Handler performs and undoes the steps of one saga kind. Both calls must
// be idempotent for (intent.ID, step).
type Handler interface {
	Run(ctx context.Context, intent Intent, step string) error
	Compensate(ctx context.Context, intent Intent, step string) error
}

// Funcs adapts plain functions to Handler. A nil Undo makes compensation a
// no-op for that kind.
type Funcs struct {
	Do   func(ctx context.Context, intent Intent, step string) error
	Undo func(ctx context.Context, intent Intent, step string) error
}

func (f Funcs) Run(ctx context.Context, intent Intent, step string) error {
	return f.Do(ctx, intent, step)
}

func (f Funcs) Compensate(ctx context.Context, intent Intent, step string) error {
	if f.Undo == nil {
		return nil
	}
	return f.Undo(ctx, intent, step)
}

// Metrics counts step executions.
type Metrics interface {
	IncSagaStep(kind, result string)
}

// Runner drives intents through their steps.
type Runner struct {
	store    Store
	handlers map[string]Handler
	locker   *serial.Locker
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func NewRunner(store Store, opts ...Option) *Runner {
	r := &Runner{
		store:    store,
		handlers: make(map[string]Handler),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	// Steps may take the handlers' own locks; a private locker keeps the
	// two from sharing shards.
	r.locker = serial.New()
	return r
}

// Register binds a handler to a saga kind. Call at boot.
func (r *Runner) Register(kind string, h Handler) {
	if _, dup := r.handlers[kind]; dup {
		panic(fmt.Sprintf("saga kind %q registered twice", kind))
	}
	r.handlers[kind] = h
}

// Start persists a new intent and runs it. The returned intent reflects
// progress even when err is non-nil, so callers can report the intent id.
func (r *Runner) Start(ctx context.Context, kind string, actor id.PrincipalID, payload any, steps []string) (Intent, error) {
	if _, ok := r.handlers[kind]; !ok {
		return Intent{}, dErrors.Newf(dErrors.CodeInternal, "no saga handler for %s", kind)
	}
	if len(steps) == 0 {
		return Intent{}, dErrors.New(dErrors.CodeInternal, "saga needs at least one step")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Intent{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode saga payload")
	}
	now := r.now()
	intent := Intent{
		ID:        id.NewIntentID(),
		Kind:      kind,
		Actor:     actor,
		Payload:   raw,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, key := range steps {
		intent.Steps = append(intent.Steps, Step{Key: key, Status: StepPending})
	}
	if err := r.store.Create(ctx, intent); err != nil {
		return Intent{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist saga intent")
	}
	r.logger.InfoContext(ctx, "saga started",
		"intent_id", intent.ID.String(),
		"kind", kind,
		"steps", len(steps),
	)
	return r.locked(ctx, intent.ID, r.run)
}

// Resume continues a pending intent from its first step not yet done.
func (r *Runner) Resume(ctx context.Context, intentID id.IntentID) (Intent, error) {
	return r.locked(ctx, intentID, r.run)
}

// Compensate undoes the done steps of a pending intent in reverse order and
// closes it as compensated.
func (r *Runner) Compensate(ctx context.Context, intentID id.IntentID) (Intent, error) {
	return r.locked(ctx, intentID, r.compensate)
}

// Get loads an intent.
func (r *Runner) Get(ctx context.Context, intentID id.IntentID) (Intent, error) {
	intent, err := r.store.Get(ctx, intentID)
	if err != nil {
		return Intent{}, translate(err, "load saga intent")
	}
	return intent, nil
}

// ResumePending resumes every pending intent, e.g. at startup. Failures are
// logged and left pending. Returns how many intents completed.
func (r *Runner) ResumePending(ctx context.Context) (int, error) {
	pending, err := r.store.ListPending(ctx)
	if err != nil {
		return 0, translate(err, "list pending intents")
	}
	done := 0
	for _, intent := range pending {
		got, err := r.Resume(ctx, intent.ID)
		if err != nil {
			r.logger.WarnContext(ctx, "saga resume failed",
				"intent_id", intent.ID.String(),
				"kind", intent.Kind,
				"error", err,
			)
			continue
		}
		if got.Status == StatusDone {
			done++
		}
	}
	return done, nil
}

func (r *Runner) locked(ctx context.Context, intentID id.IntentID, fn func(ctx context.Context, intent Intent) (Intent, error)) (Intent, error) {
	var out Intent
	err := r.locker.Do(ctx, "saga:"+intentID.String(), func(ctx context.Context) error {
		intent, err := r.store.Get(ctx, intentID)
		if err != nil {
			return translate(err, "load saga intent")
		}
		out, err = fn(ctx, intent)
		return err
	})
	return out, err
}

func (r *Runner) run(ctx context.Context, intent Intent) (Intent, error) {
	switch intent.Status {
	case StatusDone:
		return intent, nil
	case StatusCompensated:
		return intent, dErrors.Newf(dErrors.CodeBusinessRule, "saga %s was compensated and cannot resume", intent.ID)
	}
	h, ok := r.handlers[intent.Kind]
	if !ok {
		return intent, dErrors.Newf(dErrors.CodeInternal, "no saga handler for %s", intent.Kind)
	}

	intent.Attempts++
	for _, step := range slices.Clone(intent.Steps) {
		if step.Status == StepDone {
			continue
		}
		if err := h.Run(ctx, intent, step.Key); err != nil {
			r.count(intent.Kind, "failed")
			intent.FailedStep = step.Key
			intent.LastError = err.Error()
			intent.UpdatedAt = r.now()
			if serr := r.store.Save(ctx, intent); serr != nil {
				r.logger.ErrorContext(ctx, "saga progress not saved",
					"intent_id", intent.ID.String(),
					"error", serr,
				)
			}
			r.logger.WarnContext(ctx, "saga step failed",
				"intent_id", intent.ID.String(),
				"kind", intent.Kind,
				"step", step.Key,
				"error", err,
			)
			return intent, stepError(intent, step.Key, err)
		}
		r.count(intent.Kind, "done")
		intent.setStep(step.Key, StepDone)
		intent.UpdatedAt = r.now()
		if err := r.store.Save(ctx, intent); err != nil {
			return intent, translate(err, "save saga progress")
		}
	}

	intent.Status = StatusDone
	intent.FailedStep = ""
	intent.LastError = ""
	intent.UpdatedAt = r.now()
	if err := r.store.Save(ctx, intent); err != nil {
		return intent, translate(err, "close saga intent")
	}
	r.logger.InfoContext(ctx, "saga completed",
		"intent_id", intent.ID.String(),
		"kind", intent.Kind,
		"attempts", intent.Attempts,
	)
	return intent, nil
}

func (r *Runner) compensate(ctx context.Context, intent Intent) (Intent, error) {
	if intent.Status != StatusPending {
		return intent, dErrors.Newf(dErrors.CodeBusinessRule, "saga %s is %s and cannot be compensated", intent.ID, intent.Status)
	}
	h, ok := r.handlers[intent.Kind]
	if !ok {
		return intent, dErrors.Newf(dErrors.CodeInternal, "no saga handler for %s", intent.Kind)
	}
	for i := len(intent.Steps) - 1; i >= 0; i-- {
		step := intent.Steps[i]
		if step.Status != StepDone {
			continue
		}
		if err := h.Compensate(ctx, intent, step.Key); err != nil {
			r.count(intent.Kind, "compensate_failed")
			return intent, stepError(intent, step.Key, err)
		}
		r.count(intent.Kind, "compensated")
		intent.setStep(step.Key, StepCompensated)
		intent.UpdatedAt = r.now()
		if err := r.store.Save(ctx, intent); err != nil {
			return intent, translate(err, "save saga progress")
		}
	}
	intent.Status = StatusCompensated
	intent.UpdatedAt = r.now()
	if err := r.store.Save(ctx, intent); err != nil {
		return intent, translate(err, "close saga intent")
	}
	return intent, nil
}

func (r *Runner) count(kind, result string) {
	if r.metrics != nil {
		r.metrics.IncSagaStep(kind, result)
	}
}

// stepError keeps the step's own code so a business-rule failure inside a
// step stays one, and names the intent so the caller can resume it.
func stepError(intent Intent, step string, err error) error {
	code := dErrors.CodeOf(err)
	return dErrors.Wrap(err, code, fmt.Sprintf("saga %s stopped at step %s (resume with intent %s)", intent.Kind, step, intent.ID))
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
