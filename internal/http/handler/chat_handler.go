package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/http/response"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/security"
	"github.com/workbridge/workbridge-auth/internal/service"
)

// ChatRelay takes over an upgraded connection for an authenticated account.
// Message fan-out lives behind this interface; the handler only guards the
// handshake.
type ChatRelay interface {
	Serve(conn *websocket.Conn, account *domain.Account)
}

// LoopbackRelay echoes every message back to its sender. Stands in for a
// real relay in development.
type LoopbackRelay struct {
	logger *slog.Logger
}

func NewLoopbackRelay(logger *slog.Logger) *LoopbackRelay {
	return &LoopbackRelay{logger: logger}
}

func (rl *LoopbackRelay) Serve(conn *websocket.Conn, account *domain.Account) {
	defer conn.Close()
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(kind, payload); err != nil {
			rl.logger.Debug("loopback write failed", "account_id", account.ID, "error", err)
			return
		}
	}
}

type ChatHandler struct {
	jwtMgr   *security.JWTManager
	resolver *service.PrincipalResolver
	relay    ChatRelay
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewChatHandler(jwtMgr *security.JWTManager, resolver *service.PrincipalResolver, relay ChatRelay, checkOrigin func(*http.Request) bool, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		jwtMgr:   jwtMgr,
		resolver: resolver,
		relay:    relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Handshake authenticates the token query parameter before the protocol
// upgrade. A bad or missing token is a plain 403; an anonymous socket is
// never established.
func (h *ChatHandler) Handshake(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		observability.RecordAccessTokenValidation(r.Context(), "missing", "query")
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "missing token", nil)
		return
	}
	subject, err := h.jwtMgr.ExtractSubject(raw)
	if err != nil {
		observability.RecordAccessTokenValidation(r.Context(), "undecodable", "query")
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid token", nil)
		return
	}
	account, err := h.resolver.Resolve(r.Context(), subject)
	if err != nil {
		observability.RecordAccessTokenValidation(r.Context(), "unknown_subject", "query")
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid token", nil)
		return
	}
	if _, err := h.jwtMgr.Validate(raw, account); err != nil {
		observability.RecordAccessTokenValidation(r.Context(), "invalid", "query")
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid token", nil)
		return
	}
	observability.RecordAccessTokenValidation(r.Context(), "valid", "query")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		h.logger.Debug("websocket upgrade failed", "account_id", account.ID, "error", err)
		return
	}
	go h.relay.Serve(conn, account)
}
