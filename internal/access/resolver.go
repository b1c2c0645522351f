package access

import (
	"context"
	"log/slog"
	"maps"

	"golang.org/x/sync/singleflight"

	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Counter counts resolutions that reached the store.
type Counter interface {
	IncPermissionResolve()
}

// Resolver computes permission sets from facility memberships.
//
//   - Scoped to a facility, the principal gets the grants of their role there.
//   - An org_admin membership anywhere in the facility's organization adds
//     the org_admin grants; an admin membership anywhere adds admin grants.
//   - Without a facility scope only the employee baseline (when the
//     principal is a member anywhere) and org/admin grants apply.
//   - Blocked or terminated principals resolve to an empty set.
//
// Concurrent resolutions for the same principal and facility share one
// store round trip.
type Resolver struct {
	store   workforce.Store
	group   singleflight.Group
	logger  *slog.Logger
	counter Counter
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithCounter(c Counter) Option {
	return func(r *Resolver) {
		r.counter = c
	}
}

func NewResolver(store workforce.Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, principal id.PrincipalID, facility id.FacilityID) (actions.Permissions, error) {
	key := principal.String() + "|" + facility.String()
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, principal, facility)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.DebugContext(ctx, "permission resolution shared", "principal_id", principal.String())
	}
	return maps.Clone(v.(actions.Permissions)), nil
}

func (r *Resolver) resolve(ctx context.Context, principal id.PrincipalID, facility id.FacilityID) (actions.Permissions, error) {
	if r.counter != nil {
		r.counter.IncPermissionResolve()
	}
	p, err := r.store.Principal(ctx, principal)
	if err != nil {
		if workforce.IsNotFound(err) {
			return actions.Permissions{}, nil
		}
		return nil, err
	}
	if p.Status != workforce.StatusActive {
		return actions.Permissions{}, nil
	}

	memberships, err := r.store.FacilitiesOf(ctx, principal)
	if err != nil {
		return nil, err
	}

	var scopeOrg id.OrgID
	if !facility.IsZero() {
		f, err := r.store.Facility(ctx, facility)
		if err != nil && !workforce.IsNotFound(err) {
			return nil, err
		}
		scopeOrg = f.OrgID
	}

	perms := actions.NewPermissions()
	grant := func(role workforce.Role) {
		for _, perm := range roleGrants[role] {
			perms[perm] = struct{}{}
		}
	}
	for _, f := range memberships {
		m, _ := f.Member(principal)
		switch {
		case m.Role == workforce.RoleAdmin:
			grant(workforce.RoleAdmin)
		case m.Role == workforce.RoleOrgAdmin && (facility.IsZero() || f.OrgID == scopeOrg):
			grant(workforce.RoleOrgAdmin)
		case f.ID == facility:
			grant(m.Role)
		case facility.IsZero():
			grant(workforce.RoleEmployee)
		}
	}
	return perms, nil
}
