package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/workbridge/workbridge-auth/internal/http/response"
	"github.com/workbridge/workbridge-auth/internal/repository"
	"github.com/workbridge/workbridge-auth/internal/service"
)

var validate = validator.New()

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"required,oneof=SERVICE_SEEKER SERVICE_PROVIDER"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// decode parses and validates a JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		details := map[string]string{}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request", details)
		return false
	}
	return true
}

// writeServiceError translates the service error taxonomy into the response
// envelope. Anything unrecognized is an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrAccountAlreadyExists):
		response.Error(w, r, http.StatusConflict, "ACCOUNT_EXISTS", "username or email already registered", nil)
	case errors.Is(err, service.ErrAccountAlreadyVerified):
		response.Error(w, r, http.StatusConflict, "ALREADY_VERIFIED", "account is already verified", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
	case errors.Is(err, service.ErrAccountNotVerified):
		response.Error(w, r, http.StatusForbidden, "ACCOUNT_NOT_VERIFIED", "account is not verified", nil)
	case errors.Is(err, service.ErrInvalidToken):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token", nil)
	case errors.Is(err, service.ErrTokenVerificationFailed):
		response.Error(w, r, http.StatusBadRequest, "VERIFICATION_FAILED", "verification code is incorrect", nil)
	case errors.Is(err, service.ErrTokenExpired):
		response.Error(w, r, http.StatusBadRequest, "VERIFICATION_EXPIRED", "verification code has expired", nil)
	case errors.Is(err, service.ErrTooManyAttempts):
		response.Error(w, r, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "too many attempts, retry later", nil)
	case errors.Is(err, repository.ErrAccountNotFound):
		response.Error(w, r, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found", nil)
	case errors.Is(err, repository.ErrRoleNotFound):
		response.Error(w, r, http.StatusBadRequest, "INVALID_ROLE", "unknown role", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
