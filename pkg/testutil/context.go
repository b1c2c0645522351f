package testutil

import (
	"context"
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/requestcontext"
)

// CallerContext builds a service-level context for a principal acting at a
// facility with a pinned clock.
func CallerContext(principal, facility string, now time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), id.PrincipalID(principal), id.FacilityID(facility))
	ctx = requestcontext.WithRequestID(ctx, "req-"+principal)
	return requestcontext.WithTime(ctx, now)
}
