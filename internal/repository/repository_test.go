package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/workbridge/workbridge-auth/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Account{}, &domain.Role{}, &domain.RefreshToken{}, &domain.VerificationToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createTestAccount(t *testing.T, db *gorm.DB, username, email string) *domain.Account {
	t.Helper()
	a := &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: "x",
		Enabled:      true,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}
