package domain

import "time"

// VerificationToken holds the one-time numeric code that proves control of
// an email address during registration. At most one row exists per email;
// creating a new code deletes the previous row first.
type VerificationToken struct {
	Email     string    `gorm:"primaryKey;size:255" json:"email"`
	Code      string    `gorm:"size:8;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Verified  bool      `gorm:"not null;default:false" json:"verified"`
}

// Expired reports whether the code is past its TTL at the given instant.
func (t *VerificationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
