package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/repository"
)

// TokenReaper periodically purges expired verification tokens. A code that
// expires between issuance and the next tick is already rejected by Verify,
// so the reaper only reclaims rows.
type TokenReaper struct {
	tokens   repository.VerificationTokenRepository
	interval time.Duration
	logger   *slog.Logger
}

func NewTokenReaper(tokens repository.VerificationTokenRepository, interval time.Duration, logger *slog.Logger) *TokenReaper {
	return &TokenReaper{tokens: tokens, interval: interval, logger: logger}
}

// Run blocks until ctx is done, sweeping once per interval.
func (r *TokenReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep deletes everything whose expiry has passed.
func (r *TokenReaper) Sweep() {
	purged, err := r.tokens.DeleteExpired(time.Now().UTC())
	if err != nil {
		r.logger.Error("verification token sweep failed", "error", err)
		return
	}
	observability.RecordReaperRun(purged)
	if purged > 0 {
		r.logger.Info("verification tokens purged", "count", purged)
	}
}
