package service

import "errors"

var (
	ErrAccountAlreadyExists    = errors.New("account already exists")
	ErrAccountAlreadyVerified  = errors.New("account already verified")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountNotVerified      = errors.New("account not verified")
	ErrInvalidToken            = errors.New("invalid token")
	ErrTokenVerificationFailed = errors.New("token verification failed")
	ErrTokenExpired            = errors.New("token expired")
	ErrAuthContextMissing      = errors.New("authentication context missing")
	ErrTooManyAttempts         = errors.New("too many attempts")
)
