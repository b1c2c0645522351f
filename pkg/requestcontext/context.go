// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; the dispatcher and services read them. The
// package has no net/http dependency so services import only what they need.
//
// Usage in the dispatcher (read values):
//
//	principal := requestcontext.PrincipalID(ctx)
//	facility := requestcontext.FacilityID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithPrincipal(ctx, "user-1", "facility-1")
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

type (
	principalIDKey struct{}
	facilityIDKey  struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyPrincipalID = principalIDKey{}
	ContextKeyFacilityID  = facilityIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// PrincipalID returns the authenticated principal, or "" when unauthenticated.
func PrincipalID(ctx context.Context) id.PrincipalID {
	if p, ok := ctx.Value(ContextKeyPrincipalID).(id.PrincipalID); ok {
		return p
	}
	return ""
}

// FacilityID returns the facility the caller is currently scoped to, or "".
func FacilityID(ctx context.Context) id.FacilityID {
	if f, ok := ctx.Value(ContextKeyFacilityID).(id.FacilityID); ok {
		return f
	}
	return ""
}

// WithPrincipal injects the caller identity and scoped facility.
func WithPrincipal(ctx context.Context, principal id.PrincipalID, facility id.FacilityID) context.Context {
	ctx = context.WithValue(ctx, ContextKeyPrincipalID, principal)
	return context.WithValue(ctx, ContextKeyFacilityID, facility)
}

// WithFacilityID overrides the scoped facility.
func WithFacilityID(ctx context.Context, facility id.FacilityID) context.Context {
	return context.WithValue(ctx, ContextKeyFacilityID, facility)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent returns the summarized user agent ("Firefox 121 / Linux").
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and user agent summary.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (saga resumes, workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time. Handlers compare "future shift" and
// "expired certification" against it, so tests pin it for determinism.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
