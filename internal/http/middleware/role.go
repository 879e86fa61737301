package middleware

import "net/http"

// RequireRole permits the request only when the caller's asserted role
// equals the required one. It is a pure predicate on the claim; no
// independent verification happens here.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing identity claims")
				return
			}
			if claims.Role != role {
				writeJSONError(w, http.StatusForbidden, "access denied: incorrect role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
