package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/requestcontext"
)

// HeaderFacilityID lets a caller pick which of their facilities a request is
// scoped to. It overrides the facility claim carried by the token.
const HeaderFacilityID = "X-Facility-ID"

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// BlockChecker reports whether a principal is blocked at a facility.
type BlockChecker interface {
	IsBlocked(ctx context.Context, principal id.PrincipalID, facility id.FacilityID) (bool, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	PrincipalID string
	FacilityID  string
	JTI         string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer token and places the principal and scoped
// facility on the context. blocks may be nil.
func RequireAuth(validator JWTValidator, blocks BlockChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			principal, err := id.ParsePrincipalID(claims.PrincipalID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			rawFacility := claims.FacilityID
			if override := r.Header.Get(HeaderFacilityID); override != "" {
				rawFacility = override
			}
			var facility id.FacilityID
			if rawFacility != "" {
				facility, err = id.ParseFacilityID(rawFacility)
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "bad_request", "Invalid facility id")
					return
				}
			}

			if blocks != nil && !facility.IsZero() {
				blocked, err := blocks.IsBlocked(ctx, principal, facility)
				if err != nil {
					// The dispatcher re-checks membership status.
					logger.ErrorContext(ctx, "blocklist lookup failed",
						"error", err,
						"request_id", requestID,
					)
				} else if blocked {
					logger.WarnContext(ctx, "blocked principal rejected",
						"principal_id", principal.String(),
						"facility_id", facility.String(),
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusForbidden, "forbidden", "Access to this facility is blocked")
					return
				}
			}

			ctx = requestcontext.WithPrincipal(ctx, principal, facility)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
