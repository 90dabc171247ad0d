package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/workbridge/workbridge-auth/internal/app"
	"github.com/workbridge/workbridge-auth/internal/config"
	"github.com/workbridge/workbridge-auth/internal/repository"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                0,
		Environment:         "test",
		DBDriver:            "sqlite",
		DBDSN:               "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
		JWTSecret:           "integration-secret-0123456789abcdef",
		JWTIssuer:           "workbridge-test",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		VerificationCodeTTL: 10 * time.Minute,
		ReaperInterval:      time.Hour,
		CookieSecure:        false,
		APIRateLimitRPM:     100000,
		AuthRateLimitRPM:    100000,
	}
}

// newAuthTestServer builds the full application over an in-memory database
// and serves it from httptest. The returned client carries a cookie jar, so
// token cookies flow like they would in a browser.
func newAuthTestServer(t *testing.T) (string, *http.Client, *app.App) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.Build(context.Background(), testConfig(t), logger)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	srv := httptest.NewServer(a.Server.Handler)
	t.Cleanup(srv.Close)
	return srv.URL, newCookieClient(t), a
}

func newCookieClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, target string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func verificationCode(t *testing.T, a *app.App, email string) string {
	t.Helper()
	token, err := repository.NewVerificationTokenRepository(a.DB).FindByEmail(email)
	if err != nil {
		t.Fatalf("lookup verification code for %s: %v", email, err)
	}
	return token.Code
}
