package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/http/middleware"
	"github.com/workbridge/workbridge-auth/internal/http/response"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/repository"
	"github.com/workbridge/workbridge-auth/internal/security"
	"github.com/workbridge/workbridge-auth/internal/service"
)

type accountResponse struct {
	ID       uint     `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Enabled  bool     `json:"enabled"`
	Roles    []string `json:"roles"`
}

func newAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Enabled:  a.Enabled,
		Roles:    a.RoleLabels(),
	}
}

type authResponse struct {
	Account     accountResponse `json:"account"`
	AccessToken string          `json:"access_token"`
}

type AuthHandler struct {
	auth    *service.AuthService
	cookies *security.CookieWriter
	logger  *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, cookies *security.CookieWriter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "account.registered", "account_id", account.ID)
	response.JSON(w, r, http.StatusCreated, newAccountResponse(account))
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.auth.Verify(r.Context(), req.Email, req.Code, clientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.setSessionCookies(w, result)
	observability.Audit(r, "account.verified", "account_id", result.Account.ID)
	response.JSON(w, r, http.StatusOK, authResponse{
		Account:     newAccountResponse(result.Account),
		AccessToken: result.AccessToken,
	})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing email", nil)
		return
	}
	if err := h.auth.ResendVerification(r.Context(), email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "verification email sent"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.setSessionCookies(w, result)
	observability.Audit(r, "auth.login", "account_id", result.Account.ID)
	response.JSON(w, r, http.StatusOK, authResponse{
		Account:     newAccountResponse(result.Account),
		AccessToken: result.AccessToken,
	})
}

// Refresh rotates the refresh cookie and re-issues both cookies. A token
// that fails rotation clears the pair: the client is logged out either way.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := security.GetCookie(r, security.RefreshTokenCookie)
	if raw == "" {
		response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "missing refresh token", nil)
		return
	}
	result, err := h.auth.Refresh(raw, clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			h.clearSessionCookies(w)
		}
		writeServiceError(w, r, err)
		return
	}
	h.setSessionCookies(w, result)
	response.JSON(w, r, http.StatusOK, authResponse{
		Account:     newAccountResponse(result.Account),
		AccessToken: result.AccessToken,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := security.GetCookie(r, security.RefreshTokenCookie)
	if err := h.auth.Logout(raw); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.clearSessionCookies(w)
	observability.Audit(r, "auth.logout")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) RemoteLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	tokenID, err := strconv.ParseUint(chi.URLParam(r, "tokenID"), 10, 32)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid token id", nil)
		return
	}
	if err := h.auth.RemoteLogout(principal.Account.ID, uint(tokenID)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.remote_logout", "account_id", principal.Account.ID, "token_id", tokenID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "session revoked"})
}

func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	page, err := h.auth.ListSessions(principal.Account.ID, pageRequest(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, result *service.AuthResult) {
	h.cookies.SetTokenCookie(w, security.AccessTokenCookie, result.AccessToken, security.AccessToken)
	h.cookies.SetTokenCookie(w, security.RefreshTokenCookie, result.RefreshToken.Token, security.RefreshToken)
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	h.cookies.ClearCookie(w, security.AccessTokenCookie)
	h.cookies.ClearCookie(w, security.RefreshTokenCookie)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pageRequest(r *http.Request) repository.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return repository.PageRequest{Page: page, PageSize: size}
}
