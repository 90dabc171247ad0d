package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/repository"
)

const verificationEmailSubject = "Your verification code"

type VerificationService struct {
	tokens  repository.VerificationTokenRepository
	sender  EmailSender
	codeTTL time.Duration
	logger  *slog.Logger
}

func NewVerificationService(tokens repository.VerificationTokenRepository, sender EmailSender, codeTTL time.Duration, logger *slog.Logger) *VerificationService {
	return &VerificationService{tokens: tokens, sender: sender, codeTTL: codeTTL, logger: logger}
}

// CreateAndSend replaces any existing token for the email with a fresh
// 6-digit code and dispatches the mail asynchronously. A delivery failure is
// logged, never surfaced: the code is already persisted and a resend can
// recover.
func (s *VerificationService) CreateAndSend(email string) error {
	code, err := generateVerificationCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	token := &domain.VerificationToken{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().UTC().Add(s.codeTTL),
	}
	if err := s.tokens.Replace(token); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	observability.RecordVerification("issued")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.codeTTL.Minutes()))
		if err := s.sender.Send(ctx, email, verificationEmailSubject, body); err != nil {
			s.logger.Error("verification email send failed", "email", email, "error", err)
		}
	}()
	return nil
}

// Verify checks the stored code for the email. The code is compared before
// expiry, and nothing is mutated on failure. A token that was already
// verified goes through the same checks again.
func (s *VerificationService) Verify(email, code string) error {
	token, err := s.tokens.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			observability.RecordVerification("not_found")
			return ErrTokenVerificationFailed
		}
		return err
	}
	if token.Code != code {
		observability.RecordVerification("code_mismatch")
		return ErrTokenVerificationFailed
	}
	if token.Expired(time.Now().UTC()) {
		observability.RecordVerification("expired")
		return ErrTokenExpired
	}
	token.Verified = true
	if err := s.tokens.Update(token); err != nil {
		return fmt.Errorf("mark verification token: %w", err)
	}
	observability.RecordVerification("verified")
	return nil
}

func (s *VerificationService) DeleteExisting(email string) error {
	return s.tokens.DeleteByEmail(email)
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
