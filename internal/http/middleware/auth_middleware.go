package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/http/response"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/security"
	"github.com/workbridge/workbridge-auth/internal/service"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context by
// the gate.
type Principal struct {
	Account *domain.Account
	Claims  *security.Claims
}

func (p *Principal) HasRole(label string) bool {
	return p.Account != nil && p.Account.HasRole(label)
}

// AuthMiddleware is the per-request authentication gate. The token comes
// from the access_token cookie, falling back to a bearer header. Anything
// short of a fully validated token for a live account answers 401 before
// any business logic runs.
func AuthMiddleware(jwtMgr *security.JWTManager, resolver *service.PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, security.AccessTokenCookie)
			source := "cookie"
			if raw == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
					raw = strings.TrimSpace(auth[7:])
					source = "bearer"
				}
			}
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			subject, err := jwtMgr.ExtractSubject(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "undecodable", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			account, err := resolver.Resolve(r.Context(), subject)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "unknown_subject", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			claims, err := jwtMgr.Validate(raw, account)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", source)
			ctx := context.WithValue(r.Context(), PrincipalContextKey, &Principal{Account: account, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok
}
