/*
middleware.go - Bearer-token authentication

Every /api route except nothing (the whole surface is user-scoped) runs
behind RequireAuth: the Authorization header is verified against the
identity provider's shared secret and the asserted profile is stashed in
the request context for handlers to read.
*/
package api

import (
	"context"
	"net/http"

	"github.com/oakline/invest-engine/identity"
)

type contextKey string

const profileKey contextKey = "identity.profile"

// RequireAuth verifies the bearer token and injects the caller's profile.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, err := h.Verifier.FromAuthorizationHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileKey, profile)))
	})
}

// profileFrom returns the authenticated profile. Only called behind
// RequireAuth, so the value is always present.
func profileFrom(ctx context.Context) identity.Profile {
	p, _ := ctx.Value(profileKey).(identity.Profile)
	return p
}
