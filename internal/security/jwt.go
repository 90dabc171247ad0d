package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/workbridge/workbridge-auth/internal/domain"
)

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrSubjectMismatch    = errors.New("token subject does not match principal")
)

type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates stateless access tokens. A single
// process-wide HS256 secret is used; key rotation is out of scope.
type JWTManager struct {
	issuer string
	secret []byte
}

func NewJWTManager(issuer, secret string) *JWTManager {
	return &JWTManager{issuer: issuer, secret: []byte(secret)}
}

// Sign issues an access token with subject = account username and the
// account's role labels embedded as a claim.
func (m *JWTManager) Sign(account *domain.Account, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: account.RoleLabels(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   account.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ExtractSubject verifies the signature and returns the subject without
// validating expiry. Callers must follow up with Validate before trusting
// the token.
func (m *JWTManager) ExtractSubject(raw string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, m.keyFunc,
		jwt.WithoutClaimsValidation())
	if err != nil {
		return "", ErrInvalidAccessToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidAccessToken
	}
	return claims.Subject, nil
}

// Validate checks signature integrity and expiry, and that the token was
// issued to the resolved principal. Returns the embedded claims on success.
func (m *JWTManager) Validate(raw string, account *domain.Account) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, m.keyFunc, jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, ErrInvalidAccessToken
	}
	if !tok.Valid {
		return nil, ErrInvalidAccessToken
	}
	if claims.Subject != account.Username {
		return nil, ErrSubjectMismatch
	}
	return claims, nil
}

func (m *JWTManager) keyFunc(token *jwt.Token) (any, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing algorithm")
	}
	return m.secret, nil
}
