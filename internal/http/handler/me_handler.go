package handler

import (
	"net/http"

	"github.com/workbridge/workbridge-auth/internal/http/middleware"
	"github.com/workbridge/workbridge-auth/internal/http/response"
)

type MeHandler struct{}

func NewMeHandler() *MeHandler { return &MeHandler{} }

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, newAccountResponse(principal.Account))
}
