package repository

import (
	"context"
	"errors"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository interface {
	FindByLabel(label string) (*domain.Role, error)
	List() ([]domain.Role, error)
	Seed(labels []string) error
}

type GormRoleRepository struct{ db *gorm.DB }

func NewRoleRepository(db *gorm.DB) RoleRepository { return &GormRoleRepository{db: db} }

func (r *GormRoleRepository) FindByLabel(label string) (*domain.Role, error) {
	var role domain.Role
	err := r.db.Where("label = ?", label).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "role", "find_by_label", "not_found")
			return nil, ErrRoleNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "role", "find_by_label", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "find_by_label", "success")
	return &role, nil
}

func (r *GormRoleRepository) List() ([]domain.Role, error) {
	var roles []domain.Role
	err := r.db.Order("label").Find(&roles).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "list", "error")
		return roles, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "list", "success")
	return roles, err
}

// Seed inserts any missing role labels. Existing rows are left untouched.
func (r *GormRoleRepository) Seed(labels []string) error {
	roles := make([]domain.Role, 0, len(labels))
	for _, label := range labels {
		roles = append(roles, domain.Role{Label: label})
	}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "seed", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "seed", "success")
	return nil
}
