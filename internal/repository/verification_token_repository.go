package repository

import (
	"context"
	"errors"
	"time"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/observability"

	"gorm.io/gorm"
)

var ErrVerificationTokenNotFound = errors.New("verification token not found")

type VerificationTokenRepository interface {
	// Replace deletes any existing token for the email and inserts t,
	// keeping the at-most-one-token-per-email invariant in one transaction.
	Replace(t *domain.VerificationToken) error
	FindByEmail(email string) (*domain.VerificationToken, error)
	Update(t *domain.VerificationToken) error
	DeleteByEmail(email string) error
	DeleteExpired(now time.Time) (int64, error)
}

type GormVerificationTokenRepository struct{ db *gorm.DB }

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &GormVerificationTokenRepository{db: db}
}

func (r *GormVerificationTokenRepository) Replace(t *domain.VerificationToken) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", t.Email).Delete(&domain.VerificationToken{}).Error; err != nil {
			return err
		}
		return tx.Create(t).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "replace", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "replace", "success")
	return nil
}

func (r *GormVerificationTokenRepository) FindByEmail(email string) (*domain.VerificationToken, error) {
	var t domain.VerificationToken
	err := r.db.Where("email = ?", email).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "verification_token", "find_by_email", "not_found")
			return nil, ErrVerificationTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "find_by_email", "success")
	return &t, nil
}

func (r *GormVerificationTokenRepository) Update(t *domain.VerificationToken) error {
	err := r.db.Save(t).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "update", "success")
	return nil
}

func (r *GormVerificationTokenRepository) DeleteByEmail(email string) error {
	err := r.db.Where("email = ?", email).Delete(&domain.VerificationToken{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "delete_by_email", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "delete_by_email", "success")
	return nil
}

func (r *GormVerificationTokenRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&domain.VerificationToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "delete_expired", "success")
	return res.RowsAffected, nil
}
