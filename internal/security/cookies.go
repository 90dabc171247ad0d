package security

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

const (
	accessCookieMaxAge  = int((15 * time.Minute) / time.Second)
	refreshCookieMaxAge = int((7 * 24 * time.Hour) / time.Second)
)

// CookieWriter binds tokens to HttpOnly cookies. Secure is configurable so
// local development over plain HTTP keeps working.
type CookieWriter struct {
	secure bool
}

func NewCookieWriter(secure bool) *CookieWriter {
	return &CookieWriter{secure: secure}
}

func (c *CookieWriter) SetTokenCookie(w http.ResponseWriter, name, value string, kind TokenKind) {
	maxAge := refreshCookieMaxAge
	if kind == AccessToken {
		maxAge = accessCookieMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *CookieWriter) ClearCookie(w http.ResponseWriter, name string) {
	// MaxAge < 0 serializes as Max-Age=0, which deletes the cookie.
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetCookie returns the named cookie's value, or "" when the request
// carries no cookies at all.
func GetCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
