package security

import "github.com/google/uuid"

// NewOpaqueToken returns a cryptographically random opaque token string for
// server-tracked refresh tokens.
func NewOpaqueToken() string {
	return uuid.NewString()
}
