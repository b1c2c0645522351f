package actions

import (
	"context"
	"maps"
	"time"

	"github.com/InteriMed/Medishift-sub005/pkg/attrs"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

// Permissions is a resolved permission set. Checks are pure membership tests.
type Permissions map[string]struct{}

func NewPermissions(perms ...string) Permissions {
	p := make(Permissions, len(perms))
	for _, perm := range perms {
		p[perm] = struct{}{}
	}
	return p
}

func (p Permissions) Has(perm string) bool {
	_, ok := p[perm]
	return ok
}

// HasAny reports whether at least one of perms is granted.
func (p Permissions) HasAny(perms ...string) bool {
	for _, perm := range perms {
		if p.Has(perm) {
			return true
		}
	}
	return false
}

// Caller identifies who is dispatching and where.
type Caller struct {
	Principal id.PrincipalID
	Facility  id.FacilityID
}

type noteFunc func(ctx context.Context, message string, severity audit.Severity, metadata map[string]any)

// ExecutionContext is built fresh by the dispatcher for one invocation and
// discarded when it returns. Handlers must not retain it.
type ExecutionContext struct {
	ActionID    string
	Principal   id.PrincipalID
	Facility    id.FacilityID
	Permissions Permissions
	Now         time.Time
	RequestID   string

	note       noteFunc
	entityType string
	entityID   string
	metadata   map[string]any
}

// NewExecutionContext builds a context outside the dispatcher, for tests and
// saga resumes. Notes are dropped.
func NewExecutionContext(actionID string, caller Caller, perms Permissions, now time.Time) *ExecutionContext {
	return &ExecutionContext{
		ActionID:    actionID,
		Principal:   caller.Principal,
		Facility:    caller.Facility,
		Permissions: perms,
		Now:         now,
	}
}

func (ec *ExecutionContext) Has(perm string) bool {
	return ec.Permissions.Has(perm)
}

// RequireFacility returns the scoped facility or a business-rule error when
// the caller has none.
func (ec *ExecutionContext) RequireFacility() (id.FacilityID, error) {
	if ec.Facility.IsZero() {
		return "", dErrors.New(dErrors.CodeBusinessRule, "a facility scope is required for this action")
	}
	return ec.Facility, nil
}

// Record names the entity the action touched and adds key/value metadata to
// the terminal audit event. Only record what the audit reader may see.
func (ec *ExecutionContext) Record(entityType, entityID string, kv ...any) {
	ec.entityType = entityType
	ec.entityID = entityID
	ec.Annotate(kv...)
}

// Annotate adds key/value metadata to the terminal audit event.
func (ec *ExecutionContext) Annotate(kv ...any) {
	m := attrs.ToMap(kv)
	if len(m) == 0 {
		return
	}
	if ec.metadata == nil {
		ec.metadata = make(map[string]any, len(m))
	}
	maps.Copy(ec.metadata, m)
}

// Note emits an immediate, non-terminal audit entry, e.g. a forced override.
func (ec *ExecutionContext) Note(ctx context.Context, message string, kv ...any) {
	if ec.note == nil {
		return
	}
	ec.note(ctx, message, audit.SeverityWarning, attrs.ToMap(kv))
}

func (ec *ExecutionContext) auditMetadata() map[string]any {
	if len(ec.metadata) == 0 {
		return nil
	}
	return maps.Clone(ec.metadata)
}
