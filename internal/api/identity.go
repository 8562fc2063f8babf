package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/provider-appointment-booking/internal/party"
)

// IdentityHeader carries the caller's party id. It is set by the identity
// provider in front of this service and trusted as is.
const IdentityHeader = "X-Party-ID"

const callerKey contextKey = "caller"

// IdentityMiddleware resolves the caller and rejects requests without one.
func IdentityMiddleware(dir party.Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(IdentityHeader))
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing_identity", IdentityHeader+" header is required")
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_identity", IdentityHeader+" must be a valid UUID")
				return
			}

			caller, err := dir.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, party.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unknown_identity", "caller is not a known party")
					return
				}
				writeError(w, http.StatusInternalServerError, "internal_error", "could not resolve caller")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFrom returns the party attached by IdentityMiddleware.
func CallerFrom(ctx context.Context) (*party.Party, bool) {
	p, ok := ctx.Value(callerKey).(*party.Party)
	return p, ok && p != nil
}
