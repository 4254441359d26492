package config

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Store = %q, want memory", cfg.Store)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL)
	}
	if cfg.SessionTokenBytes != 32 {
		t.Errorf("SessionTokenBytes = %d, want 32", cfg.SessionTokenBytes)
	}
	if cfg.CookieName != "gatehouse_session" {
		t.Errorf("CookieName = %q", cfg.CookieName)
	}
	if cfg.CSRFHeaderName != "X-CSRF-Token" {
		t.Errorf("CSRFHeaderName = %q", cfg.CSRFHeaderName)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GATEHOUSE_HTTP_ADDR", ":9090")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")
	t.Setenv("GATEHOUSE_SESSION_TTL", "30m")
	t.Setenv("GATEHOUSE_STORE", "redis")
	t.Setenv("GATEHOUSE_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL)
	}
	if cfg.Store != StoreRedis {
		t.Errorf("Store = %q, want redis", cfg.Store)
	}
	if cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "postgres store without dsn",
			env:  map[string]string{"GATEHOUSE_STORE": "postgres"},
			want: "database_url",
		},
		{
			name: "unknown store",
			env:  map[string]string{"GATEHOUSE_STORE": "etcd"},
			want: "unknown store",
		},
		{
			name: "unknown audit sink",
			env:  map[string]string{"GATEHOUSE_AUDIT": "kafka"},
			want: "unknown audit sink",
		},
		{
			name: "token bytes too small",
			env:  map[string]string{"GATEHOUSE_SESSION_TOKEN_BYTES": "8"},
			want: "session_token_bytes",
		},
		{
			name: "samesite none without secure",
			env: map[string]string{
				"GATEHOUSE_COOKIE_SAMESITE": "none",
				"GATEHOUSE_COOKIE_SECURE":   "false",
			},
			want: "cookie_secure",
		},
		{
			name: "relative base path",
			env:  map[string]string{"GATEHOUSE_PUBLIC_BASE_PATH": "api/v1"},
			want: "public_base_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSameSite(t *testing.T) {
	cfg := Config{CookieSameSite: "strict", CookieSecure: true}
	got, err := cfg.SameSite()
	if err != nil {
		t.Fatalf("SameSite: %v", err)
	}
	if got != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want strict", got)
	}

	cfg = Config{CookieSameSite: "none", CookieSecure: true}
	got, err = cfg.SameSite()
	if err != nil {
		t.Fatalf("SameSite none+secure: %v", err)
	}
	if got != http.SameSiteNoneMode {
		t.Errorf("SameSite = %v, want none", got)
	}
}
