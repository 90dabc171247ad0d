package service

import (
	"context"
	"errors"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/repository"
)

const missNamespacePrincipal = "principal"

// PrincipalResolver loads the account behind an access-token subject. The
// gate runs it on every authenticated request, so unknown subjects (forged
// or long-deleted tokens) are remembered in the miss cache instead of
// producing a database lookup each time.
type PrincipalResolver struct {
	accounts repository.AccountRepository
	misses   MissCache
	missTTL  time.Duration
}

func NewPrincipalResolver(accounts repository.AccountRepository, misses MissCache, missTTL time.Duration) *PrincipalResolver {
	if misses == nil {
		misses = NewNoopMissCache()
	}
	if missTTL <= 0 {
		missTTL = 30 * time.Second
	}
	return &PrincipalResolver{accounts: accounts, misses: misses, missTTL: missTTL}
}

func (r *PrincipalResolver) Resolve(ctx context.Context, username string) (*domain.Account, error) {
	key := normalizeAuthIdentity(username)
	if seen, err := r.misses.Seen(ctx, missNamespacePrincipal, key); err == nil && seen {
		return nil, repository.ErrAccountNotFound
	}
	account, err := r.accounts.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			_ = r.misses.Remember(ctx, missNamespacePrincipal, key, r.missTTL)
		}
		return nil, err
	}
	return account, nil
}

// Invalidate drops all remembered misses. Called after registration so a
// brand-new account is visible to the gate immediately.
func (r *PrincipalResolver) Invalidate(ctx context.Context) error {
	return r.misses.Forget(ctx, missNamespacePrincipal)
}
