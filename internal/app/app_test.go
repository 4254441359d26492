package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gatehouse/internal/config"
	"gatehouse/internal/security/password"
)

func writeCredentialsFile(t *testing.T) string {
	t.Helper()

	hash, err := password.Hash("open sesame 42", password.Params{
		MemoryKiB:   1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	path := filepath.Join(t.TempDir(), "credentials.yaml")
	content := fmt.Sprintf("credentials:\n  - username: editor\n    password_hash: %s\n", hash)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	return path
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := &config.Config{
		HTTPAddr:          ":0",
		ShutdownTimeout:   time.Second,
		MaxBodyBytes:      1 << 16,
		LogLevel:          "error",
		LogFormat:         "json",
		Store:             config.StoreMemory,
		Audit:             config.AuditOff,
		SessionTTL:        time.Hour,
		SessionTokenBytes: 32,
		CookieName:        "gatehouse_session",
		CookiePath:        "/",
		CookieSameSite:    "lax",
		CSRFHeaderName:    "X-CSRF-Token",
		SessionHeaderName: "X-Session-Token",
		CredentialsFile:   writeCredentialsFile(t),
	}

	a, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestAppOperationalEndpoints(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gatehouse_") {
		t.Error("/metrics output lacks gatehouse collectors")
	}
}

func TestAppEndToEndLogin(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"username":"editor","password":"open sesame 42"}`))
	req.Header.Set("Content-Type", "application/json")
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("login = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("request id middleware not wired")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not wired")
	}
}

func TestAppRequiresCredentialsFile(t *testing.T) {
	cfg := &config.Config{
		HTTPAddr:          ":0",
		MaxBodyBytes:      1 << 16,
		Store:             config.StoreMemory,
		Audit:             config.AuditOff,
		SessionTTL:        time.Hour,
		SessionTokenBytes: 32,
		CookieName:        "gatehouse_session",
		CookieSameSite:    "lax",
	}

	if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("New succeeded without a credentials file")
	}
}
