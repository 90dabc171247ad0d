package repository

import (
	"context"
	"errors"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/observability"

	"gorm.io/gorm"
)

var ErrTokenNotFound = errors.New("refresh token not found")

type RefreshTokenRepository interface {
	Create(t *domain.RefreshToken) error
	FindByToken(token string) (*domain.RefreshToken, error)
	FindByID(id uint) (*domain.RefreshToken, error)
	Rotate(oldToken string, next *domain.RefreshToken) (*domain.RefreshToken, error)
	RevokeAllForAccount(accountID uint) error
	DeleteByToken(token string) error
	ListByAccountPaged(accountID uint, req PageRequest) (PageResult[domain.RefreshToken], error)
	CleanupExpired() (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(t *domain.RefreshToken) error {
	err := r.db.Create(t).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "success")
	return nil
}

func (r *GormRefreshTokenRepository) FindByToken(token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.Preload("Account.Roles").Where("token = ?", token).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_token", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_token", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_token", "success")
	return &t, nil
}

func (r *GormRefreshTokenRepository) FindByID(id uint) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.Preload("Account").First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_id", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_id", "success")
	return &t, nil
}

// Rotate revokes oldToken and inserts next in one transaction. The revoke is
// a conditional update on revoked=false, so of two concurrent rotations of
// the same token exactly one sees RowsAffected=1; the loser gets
// ErrTokenNotFound and must not receive a replacement.
func (r *GormRefreshTokenRepository) Rotate(oldToken string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.RefreshToken{}).
			Where("token = ? AND revoked = ? AND expires_at > ?", oldToken, false, time.Now()).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenNotFound
		}
		return tx.Create(next).Error
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "success")
	return next, nil
}

func (r *GormRefreshTokenRepository) RevokeAllForAccount(accountID uint) error {
	err := r.db.Where("account_id = ?", accountID).Delete(&domain.RefreshToken{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_all_for_account", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_all_for_account", "success")
	return nil
}

func (r *GormRefreshTokenRepository) DeleteByToken(token string) error {
	err := r.db.Where("token = ?", token).Delete(&domain.RefreshToken{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "delete_by_token", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "delete_by_token", "success")
	return nil
}

func (r *GormRefreshTokenRepository) ListByAccountPaged(accountID uint, req PageRequest) (PageResult[domain.RefreshToken], error) {
	normalized := normalizePageRequest(req)
	result := PageResult[domain.RefreshToken]{
		Page:     normalized.Page,
		PageSize: normalized.PageSize,
	}

	base := r.db.Model(&domain.RefreshToken{}).Where("account_id = ?", accountID)
	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "list_by_account_paged", "error")
		return PageResult[domain.RefreshToken]{}, err
	}

	offset := (normalized.Page - 1) * normalized.PageSize
	err := base.Order("id DESC").Offset(offset).Limit(normalized.PageSize).Find(&result.Items).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "list_by_account_paged", "error")
		return PageResult[domain.RefreshToken]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.PageSize)
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "list_by_account_paged", "success")
	return result, nil
}

func (r *GormRefreshTokenRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
