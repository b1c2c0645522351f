package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/requestcontext"
)

const tracerName = "github.com/InteriMed/Medishift-sub005/internal/actions"

// PermissionResolver supplies the caller's permission set. The framework
// never derives permissions itself.
type PermissionResolver interface {
	Resolve(ctx context.Context, principal id.PrincipalID, facility id.FacilityID) (Permissions, error)
}

// AuditSink receives audit events. Emit errors are logged and never change a
// dispatch outcome.
type AuditSink interface {
	Emit(ctx context.Context, event audit.Event) error
}

// syncEmitter is implemented by sinks that buffer; EmitSync bypasses the
// buffer for HIGH-risk actions.
type syncEmitter interface {
	EmitSync(ctx context.Context, event audit.Event) error
}

// Metrics observes dispatch outcomes.
type Metrics interface {
	ObserveDispatch(actionID, outcome string, d time.Duration)
}

// Result is a successful dispatch.
type Result struct {
	ActionID    string `json:"actionId"`
	Data        any    `json:"data"`
	AutoSurface bool   `json:"autoSurface,omitempty"`
}

// Dispatcher is the single entry point for invoking actions.
type Dispatcher struct {
	registry     *Registry
	resolver     PermissionResolver
	sink         AuditSink
	logger       *slog.Logger
	metrics      Metrics
	tracer       trace.Tracer
	now          func() time.Time
	syncHighRisk bool
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithClock is used when the request context carries no time.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithSyncHighRisk writes HIGH-risk audit events through the sink's
// synchronous path when it has one.
func WithSyncHighRisk(enabled bool) Option {
	return func(d *Dispatcher) {
		d.syncHighRisk = enabled
	}
}

func NewDispatcher(registry *Registry, resolver PermissionResolver, sink AuditSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		resolver: resolver,
		sink:     sink,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs one action: lookup, validate, resolve permissions,
// authorize, then the handler. Every call ends in exactly one terminal audit
// event. Nothing is mutated before the handler runs.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, actionID string, raw map[string]any) (*Result, error) {
	started := time.Now()
	ctx, span := d.tracer.Start(ctx, "actions.dispatch", trace.WithAttributes(
		attribute.String("action.id", truncate(actionID, 128)),
	))
	defer span.End()

	inv := &invocation{
		d:      d,
		caller: caller,
		digest: inputDigest(raw),
		base: audit.Event{
			ActionID:   truncate(actionID, 128),
			ActorID:    caller.Principal,
			FacilityID: caller.Facility,
			RequestID:  requestcontext.RequestID(ctx),
			UserAgent:  requestcontext.UserAgent(ctx),
		},
	}

	res, err := d.dispatch(ctx, inv, actionID, raw)

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("action.outcome", outcome))
	if d.metrics != nil {
		d.metrics.ObserveDispatch(inv.base.ActionID, outcome, time.Since(started))
	}
	return res, err
}

type invocation struct {
	d      *Dispatcher
	caller Caller
	digest string
	risk   RiskLevel
	cat    audit.EventCategory
	base   audit.Event
}

func (d *Dispatcher) dispatch(ctx context.Context, inv *invocation, actionID string, raw map[string]any) (*Result, error) {
	def, err := d.registry.Lookup(actionID)
	if err != nil {
		return nil, inv.fail(ctx, KindNotFound, err, nil)
	}
	inv.base.ActionID = def.ID
	inv.risk = def.Metadata.Risk
	inv.cat = def.Metadata.Category

	input, err := def.Schema.Validate(raw)
	if err != nil {
		return nil, inv.fail(ctx, KindValidation, err, violationMetadata(err))
	}

	perms, err := d.permissions(ctx, inv.caller)
	if err != nil {
		return nil, inv.fail(ctx, KindInfra, dErrors.Wrap(err, dErrors.CodeUnavailable, "resolve permissions"), nil)
	}

	now := requestcontext.Now(ctx)
	if _, pinned := ctx.Value(requestcontext.ContextKeyRequestTime).(time.Time); !pinned {
		now = d.now()
	}
	ec := NewExecutionContext(def.ID, inv.caller, perms, now)
	ec.RequestID = inv.base.RequestID
	ec.note = inv.note

	if err := Authorize(def, ec); err != nil {
		return nil, inv.fail(ctx, KindPermissionDenied, err, map[string]any{"permission": def.Permission})
	}

	inv.emit(ctx, inv.event(audit.PhaseStart, audit.SeverityInfo))

	data, err := d.runHandler(ctx, def, input, ec)
	inv.base.EntityType = ec.entityType
	inv.base.EntityID = ec.entityID
	if err != nil {
		kind := handlerKind(err)
		var ae *Error
		if errors.As(err, &ae) {
			kind = ae.Kind
		}
		if kind == KindInfra {
			d.logger.ErrorContext(ctx, "action handler failed",
				"action_id", def.ID,
				"principal_id", inv.caller.Principal.String(),
				"error", err,
			)
		}
		return nil, inv.fail(ctx, kind, err, ec.auditMetadata())
	}

	ev := inv.event(audit.PhaseSuccess, inv.severity(""))
	ev.Metadata = ec.auditMetadata()
	inv.emit(ctx, ev)

	return &Result{ActionID: def.ID, Data: data, AutoSurface: def.Metadata.AutoSurface}, nil
}

func (d *Dispatcher) permissions(ctx context.Context, caller Caller) (Permissions, error) {
	if caller.Principal.IsZero() || d.resolver == nil {
		return Permissions{}, nil
	}
	return d.resolver.Resolve(ctx, caller.Principal, caller.Facility)
}

// runHandler converts a handler panic into an infra error so the terminal
// event is still emitted.
func (d *Dispatcher) runHandler(ctx context.Context, def Definition, input map[string]any, ec *ExecutionContext) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "action handler panicked",
				"action_id", def.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = dErrors.Wrap(fmt.Errorf("panic: %v", r), dErrors.CodeInternal, "action handler panicked")
		}
	}()
	return def.Handler(ctx, input, ec)
}

func (inv *invocation) fail(ctx context.Context, kind Kind, err error, metadata map[string]any) error {
	ev := inv.event(audit.PhaseFailure, inv.severity(kind))
	ev.ErrorKind = string(kind)
	ev.Message = err.Error()
	ev.Metadata = metadata
	if kind == KindPermissionDenied && inv.cat == "" {
		ev.Category = audit.CategorySecurity
	}
	inv.emit(ctx, ev)
	return &Error{Kind: kind, ActionID: inv.base.ActionID, Err: err}
}

func (inv *invocation) note(ctx context.Context, message string, severity audit.Severity, metadata map[string]any) {
	ev := inv.event(audit.PhaseNote, severity)
	ev.Message = message
	ev.Metadata = metadata
	inv.emit(ctx, ev)
}

func (inv *invocation) event(phase audit.Phase, severity audit.Severity) audit.Event {
	ev := inv.base
	ev.Phase = phase
	ev.Severity = severity
	ev.InputDigest = inv.digest
	ev.Category = inv.category()
	return ev
}

func (inv *invocation) category() audit.EventCategory {
	switch {
	case inv.cat != "":
		return inv.cat
	case inv.risk == RiskHigh:
		return audit.CategoryCompliance
	default:
		return audit.CategoryOperations
	}
}

func (inv *invocation) severity(kind Kind) audit.Severity {
	switch {
	case kind == KindInfra:
		return audit.SeverityCritical
	case kind == KindPermissionDenied, inv.risk == RiskHigh:
		return audit.SeverityWarning
	default:
		return audit.SeverityInfo
	}
}

func (inv *invocation) emit(ctx context.Context, ev audit.Event) {
	d := inv.d
	if d.sink == nil {
		return
	}
	var err error
	if s, ok := d.sink.(syncEmitter); ok && d.syncHighRisk && inv.risk == RiskHigh {
		err = s.EmitSync(ctx, ev)
	} else {
		err = d.sink.Emit(ctx, ev)
	}
	if err != nil {
		d.logger.WarnContext(ctx, "audit emit failed",
			"action_id", ev.ActionID,
			"phase", ev.Phase,
			"error", err,
		)
	}
}

// violationMetadata keeps field names and rules, never the rejected values.
func violationMetadata(err error) map[string]any {
	vs := dErrors.ViolationsOf(err)
	if len(vs) == 0 {
		return nil
	}
	fields := make([]string, len(vs))
	rules := make([]string, len(vs))
	for i, v := range vs {
		fields[i] = v.Field
		rules[i] = v.Rule
	}
	return map[string]any{"fields": fields, "rules": rules}
}
