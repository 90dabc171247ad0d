package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAccountRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byID: make(map[uint]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.Roles = append([]domain.Role(nil), a.Roles...)
	return &c
}

func (r *fakeAccountRepo) FindByID(id uint) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *fakeAccountRepo) FindByUsername(username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Username == username {
			return cloneAccount(a), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *fakeAccountRepo) FindByEmail(email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *fakeAccountRepo) ExistsByUsername(username string) (bool, error) {
	_, err := r.FindByUsername(username)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (r *fakeAccountRepo) ExistsByEmail(email string) (bool, error) {
	_, err := r.FindByEmail(email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (r *fakeAccountRepo) Create(account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	account.ID = r.nextID
	account.CreatedAt = time.Now().UTC()
	r.byID[account.ID] = cloneAccount(account)
	return nil
}

func (r *fakeAccountRepo) Update(account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[account.ID]; !ok {
		return repository.ErrAccountNotFound
	}
	r.byID[account.ID] = cloneAccount(account)
	return nil
}

func (r *fakeAccountRepo) SetEnabled(id uint, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Enabled = enabled
	return nil
}

func (r *fakeAccountRepo) ListPaged(query repository.AccountListQuery) (repository.PageResult[domain.Account], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Account
	for _, a := range r.byID {
		if query.Email != "" && a.Email != query.Email {
			continue
		}
		if query.Enabled != nil && a.Enabled != *query.Enabled {
			continue
		}
		all = append(all, *cloneAccount(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, query.PageRequest), nil
}

type fakeRoleRepo struct {
	mu     sync.Mutex
	nextID uint
	roles  map[string]domain.Role
}

func newFakeRoleRepo(labels ...string) *fakeRoleRepo {
	r := &fakeRoleRepo{roles: make(map[string]domain.Role)}
	_ = r.Seed(labels)
	return r
}

func (r *fakeRoleRepo) FindByLabel(label string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[label]
	if !ok {
		return nil, repository.ErrRoleNotFound
	}
	return &role, nil
}

func (r *fakeRoleRepo) List() ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRoleRepo) Seed(labels []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, label := range labels {
		if _, ok := r.roles[label]; ok {
			continue
		}
		r.nextID++
		r.roles[label] = domain.Role{ID: r.nextID, Label: label}
	}
	return nil
}

// fakeRefreshTokenRepo mirrors the gorm implementation including the
// account preload on lookups, which the rotation path depends on.
type fakeRefreshTokenRepo struct {
	mu       sync.Mutex
	nextID   uint
	byToken  map[string]*domain.RefreshToken
	accounts *fakeAccountRepo
}

func newFakeRefreshTokenRepo(accounts *fakeAccountRepo) *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{byToken: make(map[string]*domain.RefreshToken), accounts: accounts}
}

func (r *fakeRefreshTokenRepo) preload(t *domain.RefreshToken) *domain.RefreshToken {
	if r.accounts != nil {
		if a, err := r.accounts.FindByID(t.AccountID); err == nil {
			t.Account = *a
		}
	}
	return t
}

func cloneRefreshToken(t *domain.RefreshToken) *domain.RefreshToken {
	c := *t
	return &c
}

func (r *fakeRefreshTokenRepo) Create(t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	t.CreatedAt = time.Now().UTC()
	r.byToken[t.Token] = cloneRefreshToken(t)
	return nil
}

func (r *fakeRefreshTokenRepo) FindByToken(token string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byToken[token]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	return r.preload(cloneRefreshToken(t)), nil
}

func (r *fakeRefreshTokenRepo) FindByID(id uint) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byToken {
		if t.ID == id {
			return r.preload(cloneRefreshToken(t)), nil
		}
	}
	return nil, repository.ErrTokenNotFound
}

func (r *fakeRefreshTokenRepo) Rotate(oldToken string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byToken[oldToken]
	if !ok || old.Revoked || !time.Now().UTC().Before(old.ExpiresAt) {
		return nil, repository.ErrTokenNotFound
	}
	old.Revoked = true
	r.nextID++
	next.ID = r.nextID
	next.CreatedAt = time.Now().UTC()
	r.byToken[next.Token] = cloneRefreshToken(next)
	return cloneRefreshToken(next), nil
}

func (r *fakeRefreshTokenRepo) RevokeAllForAccount(accountID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, t := range r.byToken {
		if t.AccountID == accountID {
			delete(r.byToken, token)
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) DeleteByToken(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}

func (r *fakeRefreshTokenRepo) ListByAccountPaged(accountID uint, req repository.PageRequest) (repository.PageResult[domain.RefreshToken], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.RefreshToken
	for _, t := range r.byToken {
		if t.AccountID == accountID {
			all = append(all, *cloneRefreshToken(t))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, req), nil
}

func (r *fakeRefreshTokenRepo) CleanupExpired() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for token, t := range r.byToken {
		if !now.Before(t.ExpiresAt) {
			delete(r.byToken, token)
			n++
		}
	}
	return n, nil
}

type fakeVerificationTokenRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.VerificationToken
}

func newFakeVerificationTokenRepo() *fakeVerificationTokenRepo {
	return &fakeVerificationTokenRepo{byEmail: make(map[string]*domain.VerificationToken)}
}

func (r *fakeVerificationTokenRepo) Replace(t *domain.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.byEmail[t.Email] = &c
	return nil
}

func (r *fakeVerificationTokenRepo) FindByEmail(email string) (*domain.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrVerificationTokenNotFound
	}
	c := *t
	return &c, nil
}

func (r *fakeVerificationTokenRepo) Update(t *domain.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[t.Email]; !ok {
		return repository.ErrVerificationTokenNotFound
	}
	c := *t
	r.byEmail[t.Email] = &c
	return nil
}

func (r *fakeVerificationTokenRepo) DeleteByEmail(email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byEmail, email)
	return nil
}

func (r *fakeVerificationTokenRepo) DeleteExpired(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for email, t := range r.byEmail {
		if !t.ExpiresAt.After(now) {
			delete(r.byEmail, email)
			n++
		}
	}
	return n, nil
}

func paginate[T any](items []T, req repository.PageRequest) repository.PageResult[T] {
	page := req.Page
	if page < 1 {
		page = repository.DefaultPage
	}
	size := req.PageSize
	if size < 1 {
		size = repository.DefaultPageSize
	}
	total := int64(len(items))
	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	totalPages := int(total) / size
	if int(total)%size != 0 {
		totalPages++
	}
	return repository.PageResult[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: totalPages,
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{done: make(chan struct{}, 16)}
}

func (s *recordingSender) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	s.sent = append(s.sent, to)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *recordingSender) waitForSend(t testingT) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for email send")
	}
}

func (s *recordingSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
