package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/repository"
	"github.com/workbridge/workbridge-auth/internal/security"
)

// Session is the client-facing view of one refresh token row.
type Session struct {
	TokenID   uint      `json:"token_id"`
	IP        string    `json:"ip"`
	Device    string    `json:"device"`
	LoginTime time.Time `json:"login_time"`
	Active    bool      `json:"active"`
}

type RefreshTokenService struct {
	tokens     repository.RefreshTokenRepository
	refreshTTL time.Duration
}

func NewRefreshTokenService(tokens repository.RefreshTokenRepository, refreshTTL time.Duration) *RefreshTokenService {
	return &RefreshTokenService{tokens: tokens, refreshTTL: refreshTTL}
}

func (s *RefreshTokenService) Create(account *domain.Account, ip, userAgent string) (*domain.RefreshToken, error) {
	token := &domain.RefreshToken{
		Token:     security.NewOpaqueToken(),
		AccountID: account.ID,
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: time.Now().UTC().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(token); err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}
	token.Account = *account
	return token, nil
}

// IsValid is a boolean probe: unknown, revoked and expired tokens are all
// simply invalid.
func (s *RefreshTokenService) IsValid(raw string) bool {
	token, err := s.tokens.FindByToken(raw)
	if err != nil {
		return false
	}
	return token.Active(time.Now().UTC())
}

func (s *RefreshTokenService) AccountFromToken(raw string) (*domain.Account, error) {
	token, err := s.tokens.FindByToken(raw)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !token.Active(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}
	return &token.Account, nil
}

// Rotate atomically revokes the presented token and issues a replacement for
// the same account. When two rotations race, the conditional update lets
// exactly one through; the loser sees ErrInvalidToken.
func (s *RefreshTokenService) Rotate(raw, ip, userAgent string) (*domain.RefreshToken, error) {
	old, err := s.tokens.FindByToken(raw)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !old.Active(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}
	next := &domain.RefreshToken{
		Token:     security.NewOpaqueToken(),
		AccountID: old.AccountID,
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: time.Now().UTC().Add(s.refreshTTL),
	}
	rotated, err := s.tokens.Rotate(raw, next)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	rotated.Account = old.Account
	return rotated, nil
}

func (s *RefreshTokenService) RevokeAllForAccount(accountID uint) error {
	return s.tokens.RevokeAllForAccount(accountID)
}

func (s *RefreshTokenService) DeleteByToken(raw string) error {
	return s.tokens.DeleteByToken(raw)
}

func (s *RefreshTokenService) FindByToken(raw string) (*domain.RefreshToken, error) {
	token, err := s.tokens.FindByToken(raw)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return token, nil
}

func (s *RefreshTokenService) FindByID(id uint) (*domain.RefreshToken, error) {
	token, err := s.tokens.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return token, nil
}

func (s *RefreshTokenService) ListSessions(accountID uint, req repository.PageRequest) (repository.PageResult[Session], error) {
	page, err := s.tokens.ListByAccountPaged(accountID, req)
	if err != nil {
		return repository.PageResult[Session]{}, err
	}
	now := time.Now().UTC()
	sessions := make([]Session, 0, len(page.Items))
	for _, t := range page.Items {
		sessions = append(sessions, Session{
			TokenID:   t.ID,
			IP:        t.IP,
			Device:    t.UserAgent,
			LoginTime: t.CreatedAt,
			Active:    t.Active(now),
		})
	}
	return repository.PageResult[Session]{
		Items:      sessions,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}, nil
}
