package domain

import "time"

// Role labels seeded at startup. Registration only accepts these.
const (
	RoleAdmin           = "ADMIN"
	RoleServiceSeeker   = "SERVICE_SEEKER"
	RoleServiceProvider = "SERVICE_PROVIDER"
)

type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Enabled      bool      `gorm:"not null;default:false" json:"enabled"`
	Roles        []Role    `gorm:"many2many:account_roles" json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Role struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Label string `gorm:"size:64;uniqueIndex;not null" json:"label"`
}

// RoleLabels returns the account's role labels in declaration order.
func (a *Account) RoleLabels() []string {
	labels := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		labels = append(labels, r.Label)
	}
	return labels
}

// HasRole reports whether the account carries the given role label.
func (a *Account) HasRole(label string) bool {
	for _, r := range a.Roles {
		if r.Label == label {
			return true
		}
	}
	return false
}
