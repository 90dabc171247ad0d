package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/workbridge/workbridge-auth/internal/app"
	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/repository"
	"github.com/workbridge/workbridge-auth/internal/security"
)

type accountPayload struct {
	ID       uint     `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Enabled  bool     `json:"enabled"`
	Roles    []string `json:"roles"`
}

type authPayload struct {
	Account     accountPayload `json:"account"`
	AccessToken string         `json:"access_token"`
}

type sessionPage struct {
	Items []struct {
		TokenID uint `json:"token_id"`
		Active  bool `json:"active"`
	} `json:"items"`
	Total int64 `json:"total"`
}

func registerAndVerify(t *testing.T, client *http.Client, baseURL string, a *app.App, username, email, password string) authPayload {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
		"role":     domain.RoleServiceSeeker,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d, error %+v", resp.StatusCode, env.Error)
	}

	code := verificationCode(t, a, email)
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/verify", map[string]string{
		"email": email,
		"code":  code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: status %d, error %+v", resp.StatusCode, env.Error)
	}
	var payload authPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode auth payload: %v", err)
	}
	return payload
}

func TestRegistrationVerificationAndLoginFlow(t *testing.T) {
	baseURL, client, a := newAuthTestServer(t)

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
		"role":     domain.RoleServiceSeeker,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d, error %+v", resp.StatusCode, env.Error)
	}
	var created accountPayload
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if created.Enabled {
		t.Fatal("fresh registration must start disabled")
	}

	// Login is gated on verification.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"email": "alice@example.com", "password": "correct-horse-battery",
	})
	if resp.StatusCode != http.StatusForbidden || env.Error == nil || env.Error.Code != "ACCOUNT_NOT_VERIFIED" {
		t.Fatalf("pre-verification login: status %d, error %+v", resp.StatusCode, env.Error)
	}

	// A wrong code is rejected and does not consume the token.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/verify", map[string]string{
		"email": "alice@example.com", "code": "000000",
	})
	if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Code != "VERIFICATION_FAILED" {
		t.Fatalf("wrong code: status %d, error %+v", resp.StatusCode, env.Error)
	}

	code := verificationCode(t, a, "alice@example.com")
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/verify", map[string]string{
		"email": "alice@example.com", "code": code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: status %d, error %+v", resp.StatusCode, env.Error)
	}
	var verified authPayload
	if err := json.Unmarshal(env.Data, &verified); err != nil {
		t.Fatalf("decode auth payload: %v", err)
	}
	if verified.AccessToken == "" {
		t.Fatal("verification must issue an access token")
	}
	if cookieValue(t, client, baseURL, security.RefreshTokenCookie) == "" {
		t.Fatal("verification must set the refresh cookie")
	}

	// The access cookie from verification opens /me.
	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/me: status %d, error %+v", resp.StatusCode, env.Error)
	}
	var me accountPayload
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode /me: %v", err)
	}
	if me.Username != "alice" || !me.Enabled {
		t.Fatalf("unexpected /me payload: %+v", me)
	}

	// Duplicate registration conflicts regardless of verification state.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"username": "alice2", "email": "alice@example.com",
		"password": "correct-horse-battery", "role": domain.RoleServiceProvider,
	})
	if resp.StatusCode != http.StatusConflict || env.Error == nil || env.Error.Code != "ACCOUNT_EXISTS" {
		t.Fatalf("duplicate register: status %d, error %+v", resp.StatusCode, env.Error)
	}
}

func TestRefreshRotationAndReplay(t *testing.T) {
	baseURL, client, a := newAuthTestServer(t)
	registerAndVerify(t, client, baseURL, a, "bob", "bob@example.com", "swordfish-supreme")

	oldRefresh := cookieValue(t, client, baseURL, security.RefreshTokenCookie)
	if oldRefresh == "" {
		t.Fatal("missing refresh cookie after verification")
	}

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/refresh-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d, error %+v", resp.StatusCode, env.Error)
	}
	newRefresh := cookieValue(t, client, baseURL, security.RefreshTokenCookie)
	if newRefresh == "" || newRefresh == oldRefresh {
		t.Fatal("refresh must rotate the refresh cookie")
	}

	// Replaying the rotated-out token fails and the server clears the pair.
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/auth/refresh-token", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: security.RefreshTokenCookie, Value: oldRefresh})
	replayResp, err := (&http.Client{}).Do(req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	defer replayResp.Body.Close()
	if replayResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replay: status %d, want 401", replayResp.StatusCode)
	}
	cleared := false
	for _, c := range replayResp.Cookies() {
		if c.Name == security.RefreshTokenCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("replay must clear the refresh cookie")
	}

	// The current token still works.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/refresh-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh with live token: status %d, error %+v", resp.StatusCode, env.Error)
	}
}

func TestSessionsAndLogout(t *testing.T) {
	baseURL, client, a := newAuthTestServer(t)
	registerAndVerify(t, client, baseURL, a, "carol", "carol@example.com", "opensesame-123")

	// A second login creates a second session.
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"email": "carol@example.com", "password": "opensesame-123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second login: status %d, error %+v", resp.StatusCode, env.Error)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/auth/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions: status %d, error %+v", resp.StatusCode, env.Error)
	}
	var page sessionPage
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 sessions, got total=%d items=%d", page.Total, len(page.Items))
	}

	// Revoke the older session remotely. Listing is newest-first.
	victim := page.Items[1].TokenID
	resp, env = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/api/v1/auth/logout/%d", baseURL, victim), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remote logout: status %d, error %+v", resp.StatusCode, env.Error)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/auth/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions after revoke: status %d, error %+v", resp.StatusCode, env.Error)
	}
	page = sessionPage{}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 session after revoke, got %d", page.Total)
	}

	// Logout drops the current session and clears cookies.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d, error %+v", resp.StatusCode, env.Error)
	}
	if v := cookieValue(t, client, baseURL, security.RefreshTokenCookie); v != "" {
		t.Fatalf("refresh cookie should be cleared, got %q", v)
	}
	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/refresh-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status %d, want 401", resp.StatusCode)
	}
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	baseURL, client, a := newAuthTestServer(t)
	registerAndVerify(t, client, baseURL, a, "dave", "dave@example.com", "plain-user-pass1")

	resp, env := doJSON(t, client, http.MethodGet, baseURL+"/api/v1/admin/accounts", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin list: status %d, error %+v", resp.StatusCode, env.Error)
	}

	// Promote dave directly in the database, the way an operator would.
	accounts := repository.NewAccountRepository(a.DB)
	roles := repository.NewRoleRepository(a.DB)
	account, err := accounts.FindByEmail("dave@example.com")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	adminRole, err := roles.FindByLabel(domain.RoleAdmin)
	if err != nil {
		t.Fatalf("find admin role: %v", err)
	}
	if err := a.DB.Model(account).Association("Roles").Append(adminRole); err != nil {
		t.Fatalf("grant admin role: %v", err)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/admin/accounts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: status %d, error %+v", resp.StatusCode, env.Error)
	}

	// Disable and re-enable a second account through the admin surface.
	otherClient := newCookieClient(t)
	registerAndVerify(t, otherClient, baseURL, a, "erin", "erin@example.com", "second-user-pass")
	target, err := accounts.FindByEmail("erin@example.com")
	if err != nil {
		t.Fatalf("find target: %v", err)
	}

	resp, env = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/api/v1/admin/accounts/%d/disable", baseURL, target.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable: status %d, error %+v", resp.StatusCode, env.Error)
	}

	// Disabling revoked every session: the target's refresh token is dead.
	resp, _ = doJSON(t, otherClient, http.MethodPost, baseURL+"/api/v1/auth/refresh-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh for disabled account: status %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, otherClient, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"email": "erin@example.com", "password": "second-user-pass",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("login for disabled account: status %d, want 403", resp.StatusCode)
	}

	resp, env = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/api/v1/admin/accounts/%d/enable", baseURL, target.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable: status %d, error %+v", resp.StatusCode, env.Error)
	}
	resp, env = doJSON(t, otherClient, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"email": "erin@example.com", "password": "second-user-pass",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login after re-enable: status %d, error %+v", resp.StatusCode, env.Error)
	}
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	baseURL, _, _ := newAuthTestServer(t)
	client := &http.Client{}

	resp, env := doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil)
	if resp.StatusCode != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("/me without token: status %d, error %+v", resp.StatusCode, env.Error)
	}

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/auth/sessions", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	resp2, err := client.Do(req)
	if err != nil {
		t.Fatalf("sessions with garbage bearer: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage bearer: status %d, want 401", resp2.StatusCode)
	}
}

func TestResendVerification(t *testing.T) {
	baseURL, client, a := newAuthTestServer(t)

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"username": "frank", "email": "frank@example.com",
		"password": "resend-me-please", "role": domain.RoleServiceProvider,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d, error %+v", resp.StatusCode, env.Error)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/resend-verification/frank@example.com", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resend: status %d, error %+v", resp.StatusCode, env.Error)
	}
	code := verificationCode(t, a, "frank@example.com")
	if len(code) != 6 || strings.TrimLeft(code, "0123456789") != "" {
		t.Fatalf("replacement code %q is not 6 digits", code)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/verify", map[string]string{
		"email": "frank@example.com", "code": code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify with resent code: status %d, error %+v", resp.StatusCode, env.Error)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/resend-verification/frank@example.com", nil)
	if resp.StatusCode != http.StatusConflict || env.Error == nil || env.Error.Code != "ALREADY_VERIFIED" {
		t.Fatalf("resend after verification: status %d, error %+v", resp.StatusCode, env.Error)
	}
}
