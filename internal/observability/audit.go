package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit emits a structured record for a security-relevant action. These go
// through the normal slog pipeline so OTLP log export picks them up too.
func Audit(r *http.Request, event string, attrs ...any) {
	fields := append([]any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}, attrs...)
	slog.InfoContext(r.Context(), "audit", fields...)
}
