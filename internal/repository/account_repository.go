package repository

import (
	"context"
	"errors"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/observability"

	"gorm.io/gorm"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountListQuery struct {
	PageRequest
	Email   string
	Enabled *bool
}

type AccountRepository interface {
	FindByID(id uint) (*domain.Account, error)
	FindByUsername(username string) (*domain.Account, error)
	FindByEmail(email string) (*domain.Account, error)
	ExistsByUsername(username string) (bool, error)
	ExistsByEmail(email string) (bool, error)
	Create(account *domain.Account) error
	Update(account *domain.Account) error
	SetEnabled(id uint, enabled bool) error
	ListPaged(query AccountListQuery) (PageResult[domain.Account], error)
}

type GormAccountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &GormAccountRepository{db: db} }

func (r *GormAccountRepository) FindByID(id uint) (*domain.Account, error) {
	var a domain.Account
	err := r.db.Preload("Roles").First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "account", "find_by_id", "not_found")
			return nil, ErrAccountNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "account", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "find_by_id", "success")
	return &a, nil
}

func (r *GormAccountRepository) FindByUsername(username string) (*domain.Account, error) {
	return r.findOne("find_by_username", "username = ?", username)
}

func (r *GormAccountRepository) FindByEmail(email string) (*domain.Account, error) {
	return r.findOne("find_by_email", "email = ?", email)
}

func (r *GormAccountRepository) findOne(op, cond string, arg any) (*domain.Account, error) {
	var a domain.Account
	err := r.db.Preload("Roles").Where(cond, arg).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "account", op, "not_found")
			return nil, ErrAccountNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "account", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", op, "success")
	return &a, nil
}

func (r *GormAccountRepository) ExistsByUsername(username string) (bool, error) {
	return r.exists("exists_by_username", "username = ?", username)
}

func (r *GormAccountRepository) ExistsByEmail(email string) (bool, error) {
	return r.exists("exists_by_email", "email = ?", email)
}

func (r *GormAccountRepository) exists(op, cond string, arg any) (bool, error) {
	var count int64
	err := r.db.Model(&domain.Account{}).Where(cond, arg).Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", op, "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", op, "success")
	return count > 0, nil
}

func (r *GormAccountRepository) Create(account *domain.Account) error {
	err := r.db.Create(account).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "create", "success")
	return nil
}

func (r *GormAccountRepository) Update(account *domain.Account) error {
	err := r.db.Save(account).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "update", "success")
	return nil
}

func (r *GormAccountRepository) SetEnabled(id uint, enabled bool) error {
	res := r.db.Model(&domain.Account{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "set_enabled", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "account", "set_enabled", "not_found")
		return ErrAccountNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "set_enabled", "success")
	return nil
}

func (r *GormAccountRepository) ListPaged(query AccountListQuery) (PageResult[domain.Account], error) {
	req := normalizePageRequest(query.PageRequest)
	result := PageResult[domain.Account]{
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	base := r.db.Model(&domain.Account{})
	if query.Email != "" {
		base = base.Where("accounts.email LIKE ?", query.Email+"%")
	}
	if query.Enabled != nil {
		base = base.Where("accounts.enabled = ?", *query.Enabled)
	}

	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "list_paged", "error")
		return PageResult[domain.Account]{}, err
	}

	offset := (req.Page - 1) * req.PageSize
	err := base.Preload("Roles").
		Order("accounts.id DESC").
		Offset(offset).Limit(req.PageSize).
		Find(&result.Items).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "list_paged", "error")
		return PageResult[domain.Account]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(context.Background(), "account", "list_paged", "success")
	return result, nil
}
