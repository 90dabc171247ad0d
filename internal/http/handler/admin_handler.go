package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/workbridge/workbridge-auth/internal/http/response"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/repository"
	"github.com/workbridge/workbridge-auth/internal/service"
)

type AdminHandler struct {
	admin  *service.AdminService
	logger *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := repository.AccountListQuery{
		PageRequest: pageRequest(r),
		Email:       q.Get("email"),
	}
	if raw := q.Get("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid enabled filter", nil)
			return
		}
		query.Enabled = &enabled
	}
	page, err := h.admin.ListAccounts(query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

func (h *AdminHandler) EnableAccount(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *AdminHandler) DisableAccount(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *AdminHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid account id", nil)
		return
	}
	if err := h.admin.SetAccountEnabled(uint(id), enabled); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "admin.account_flag", "account_id", id, "enabled", enabled)
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id, "enabled": enabled})
}
