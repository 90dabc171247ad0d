package service

import (
	"log/slog"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/repository"
)

// AccountView is the admin-facing projection of an account.
type AccountView struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Enabled   bool      `json:"enabled"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminService struct {
	accounts repository.AccountRepository
	refresh  *RefreshTokenService
	logger   *slog.Logger
}

func NewAdminService(accounts repository.AccountRepository, refresh *RefreshTokenService, logger *slog.Logger) *AdminService {
	return &AdminService{accounts: accounts, refresh: refresh, logger: logger}
}

func (s *AdminService) ListAccounts(query repository.AccountListQuery) (repository.PageResult[AccountView], error) {
	page, err := s.accounts.ListPaged(query)
	if err != nil {
		return repository.PageResult[AccountView]{}, err
	}
	views := make([]AccountView, 0, len(page.Items))
	for _, a := range page.Items {
		views = append(views, newAccountView(&a))
	}
	return repository.PageResult[AccountView]{
		Items:      views,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}, nil
}

// SetAccountEnabled flips the account flag. Disabling also revokes every
// refresh token, so the lockout takes effect as soon as the access token
// expires.
func (s *AdminService) SetAccountEnabled(accountID uint, enabled bool) error {
	if err := s.accounts.SetEnabled(accountID, enabled); err != nil {
		return err
	}
	if !enabled {
		if err := s.refresh.RevokeAllForAccount(accountID); err != nil {
			return err
		}
	}
	s.logger.Info("account flag changed", "account_id", accountID, "enabled", enabled)
	return nil
}

func newAccountView(a *domain.Account) AccountView {
	return AccountView{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Enabled:   a.Enabled,
		Roles:     a.RoleLabels(),
		CreatedAt: a.CreatedAt,
	}
}
