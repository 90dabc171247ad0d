package middleware

import (
	"net/http"

	"github.com/workbridge/workbridge-auth/internal/http/response"
)

// RequireRole runs after the gate and checks the principal's role labels.
// A missing principal means the route was wired without AuthMiddleware,
// which is answered like any other unauthenticated request.
func RequireRole(label string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
				return
			}
			if !principal.HasRole(label) {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role", map[string]string{"required": label})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
