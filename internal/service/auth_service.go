package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/repository"
	"github.com/workbridge/workbridge-auth/internal/security"
)

// RegisterInput is the validated payload for account creation. Role must be
// one of the seeded labels; handlers reject anything else before this layer.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// AuthResult carries everything a handler needs to answer a successful
// authentication: the account, a signed access token and the refresh row
// backing the new session.
type AuthResult struct {
	Account      *domain.Account
	AccessToken  string
	RefreshToken *domain.RefreshToken
}

type AuthService struct {
	accounts     repository.AccountRepository
	roles        repository.RoleRepository
	verification *VerificationService
	refresh      *RefreshTokenService
	resolver     *PrincipalResolver
	jwtMgr       *security.JWTManager
	abuse        AuthAbuseGuard
	accessTTL    time.Duration
	logger       *slog.Logger
}

func NewAuthService(
	accounts repository.AccountRepository,
	roles repository.RoleRepository,
	verification *VerificationService,
	refresh *RefreshTokenService,
	resolver *PrincipalResolver,
	jwtMgr *security.JWTManager,
	abuse AuthAbuseGuard,
	accessTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	if abuse == nil {
		abuse = NewNoopAuthAbuseGuard()
	}
	return &AuthService{
		accounts:     accounts,
		roles:        roles,
		verification: verification,
		refresh:      refresh,
		resolver:     resolver,
		jwtMgr:       jwtMgr,
		abuse:        abuse,
		accessTTL:    accessTTL,
		logger:       logger,
	}
}

// Register creates a disabled account and kicks off email verification. The
// account stays unable to log in until Verify succeeds.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	if taken, err := s.accounts.ExistsByUsername(in.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrAccountAlreadyExists
	}
	if taken, err := s.accounts.ExistsByEmail(in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrAccountAlreadyExists
	}

	role, err := s.roles.FindByLabel(in.Role)
	if err != nil {
		return nil, fmt.Errorf("resolve role %q: %w", in.Role, err)
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	account := &domain.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Enabled:      false,
		Roles:        []domain.Role{*role},
	}
	if err := s.accounts.Create(account); err != nil {
		return nil, err
	}
	if s.resolver != nil {
		if err := s.resolver.Invalidate(ctx); err != nil {
			s.logger.Warn("principal miss cache invalidation failed", "error", err)
		}
	}
	if err := s.verification.CreateAndSend(account.Email); err != nil {
		return nil, err
	}
	s.logger.Info("account registered", "account_id", account.ID, "role", in.Role)
	return account, nil
}

// Verify consumes the emailed code, enables the account and logs it in.
func (s *AuthService) Verify(ctx context.Context, email, code, ip, userAgent string) (*AuthResult, error) {
	if err := s.throttle(ctx, AuthAbuseScopeVerify, email, ip); err != nil {
		return nil, err
	}
	if err := s.verification.Verify(email, code); err != nil {
		if errors.Is(err, ErrTokenVerificationFailed) || errors.Is(err, ErrTokenExpired) {
			_, _ = s.abuse.RegisterFailure(ctx, AuthAbuseScopeVerify, email, ip)
		}
		return nil, err
	}
	account, err := s.accounts.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if !account.Enabled {
		account.Enabled = true
		if err := s.accounts.Update(account); err != nil {
			return nil, err
		}
	}
	if err := s.abuse.Reset(ctx, AuthAbuseScopeVerify, email, ip); err != nil {
		s.logger.Warn("abuse guard reset failed", "scope", AuthAbuseScopeVerify, "error", err)
	}
	return s.issue(account, ip, userAgent)
}

// ResendVerification issues a fresh code for a registered, still-disabled
// account. An already-verified account short-circuits.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	if err := s.throttle(ctx, AuthAbuseScopeResend, email, ""); err != nil {
		return err
	}
	account, err := s.accounts.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			_, _ = s.abuse.RegisterFailure(ctx, AuthAbuseScopeResend, email, "")
		}
		return err
	}
	if account.Enabled {
		return ErrAccountAlreadyVerified
	}
	return s.verification.CreateAndSend(account.Email)
}

// Login exchanges credentials for a token pair. Unknown email and wrong
// password are indistinguishable to the caller; a registered-but-unverified
// account is reported separately.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error) {
	if err := s.throttle(ctx, AuthAbuseScopeLogin, email, ip); err != nil {
		observability.RecordAuthLogin("throttled")
		return nil, err
	}
	account, err := s.accounts.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			_, _ = s.abuse.RegisterFailure(ctx, AuthAbuseScopeLogin, email, ip)
			observability.RecordAuthLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.CheckPassword(password, account.PasswordHash) {
		_, _ = s.abuse.RegisterFailure(ctx, AuthAbuseScopeLogin, email, ip)
		observability.RecordAuthLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if !account.Enabled {
		observability.RecordAuthLogin("not_verified")
		return nil, ErrAccountNotVerified
	}
	if err := s.abuse.Reset(ctx, AuthAbuseScopeLogin, email, ip); err != nil {
		s.logger.Warn("abuse guard reset failed", "scope", AuthAbuseScopeLogin, "error", err)
	}
	result, err := s.issue(account, ip, userAgent)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthLogin("success")
	s.logger.Info("login", "account_id", account.ID, "ip", ip)
	return result, nil
}

// Refresh rotates the presented refresh token and mints a new access token.
// Exactly one caller wins a concurrent rotation; the rest get
// ErrInvalidToken.
func (s *AuthService) Refresh(raw, ip, userAgent string) (*AuthResult, error) {
	rotated, err := s.refresh.Rotate(raw, ip, userAgent)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			observability.RecordAuthRefresh("invalid_token")
		}
		return nil, err
	}
	access, err := s.jwtMgr.Sign(&rotated.Account, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	observability.RecordAuthRefresh("success")
	return &AuthResult{Account: &rotated.Account, AccessToken: access, RefreshToken: rotated}, nil
}

// Logout removes the refresh row for the presented token. An empty or
// unknown token is a no-op: the session is gone either way.
func (s *AuthService) Logout(raw string) error {
	if raw == "" {
		observability.RecordAuthLogout("no_token")
		return nil
	}
	if err := s.refresh.DeleteByToken(raw); err != nil {
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

// RemoteLogout revokes one of the caller's other sessions by token id. A
// token that does not exist or belongs to someone else is reported
// identically.
func (s *AuthService) RemoteLogout(accountID, tokenID uint) error {
	token, err := s.refresh.FindByID(tokenID)
	if err != nil {
		return err
	}
	if token.AccountID != accountID {
		return ErrInvalidToken
	}
	if err := s.refresh.DeleteByToken(token.Token); err != nil {
		return err
	}
	observability.RecordAuthLogout("remote")
	return nil
}

func (s *AuthService) ListSessions(accountID uint, req repository.PageRequest) (repository.PageResult[Session], error) {
	return s.refresh.ListSessions(accountID, req)
}

func (s *AuthService) issue(account *domain.Account, ip, userAgent string) (*AuthResult, error) {
	access, err := s.jwtMgr.Sign(account, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.refresh.Create(account, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Account: account, AccessToken: access, RefreshToken: refreshToken}, nil
}

func (s *AuthService) throttle(ctx context.Context, scope AuthAbuseScope, identity, ip string) error {
	cooldown, err := s.abuse.Check(ctx, scope, identity, ip)
	if err != nil {
		s.logger.Warn("abuse guard check failed", "scope", scope, "error", err)
		return nil
	}
	if cooldown > 0 {
		return ErrTooManyAttempts
	}
	return nil
}
