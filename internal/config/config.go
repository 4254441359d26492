// Package config loads and validates runtime configuration from the
// environment and an optional .env file using Viper. Every key is read as
// GATEHOUSE_<KEY> (e.g. GATEHOUSE_HTTP_ADDR).
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backend names accepted by the "store" key.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Audit sink names accepted by the "audit" key.
const (
	AuditOff      = "off"
	AuditLog      = "log"
	AuditPostgres = "postgres"
)

// Config holds the full service configuration.
type Config struct {
	// HTTP server.
	HTTPAddr          string        `mapstructure:"http_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	TrustProxy        bool          `mapstructure:"trust_proxy"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`

	// Logging.
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json | text

	// Store selection and backends.
	Store       string        `mapstructure:"store"` // memory | postgres | redis
	DatabaseURL string        `mapstructure:"database_url"`
	DBMaxConns  int32         `mapstructure:"db_max_conns"`
	DBMinConns  int32         `mapstructure:"db_min_conns"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisPass   string        `mapstructure:"redis_password"`
	RedisDB     int           `mapstructure:"redis_db"`
	NATSURL     string        `mapstructure:"nats_url"`
	Audit       string        `mapstructure:"audit"` // off | log | postgres
	SweepEvery  time.Duration `mapstructure:"sweep_interval"`

	// Session behavior.
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	SessionTokenBytes int           `mapstructure:"session_token_bytes"`
	CookieName        string        `mapstructure:"cookie_name"`
	CookiePath        string        `mapstructure:"cookie_path"`
	CookieDomain      string        `mapstructure:"cookie_domain"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
	CookieSameSite    string        `mapstructure:"cookie_samesite"` // lax | strict | none
	CSRFHeaderName    string        `mapstructure:"csrf_header"`
	SessionHeaderName string        `mapstructure:"session_header"`
	PublicBasePath    string        `mapstructure:"public_base_path"`

	// Credentials.
	CredentialsFile string `mapstructure:"credentials_file"`

	// Login throttling (sliding window per client IP; 0 disables).
	LoginIPMax    int           `mapstructure:"login_ip_max"`
	LoginIPWindow time.Duration `mapstructure:"login_ip_window"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored (e.g. in CI); env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.SetEnvPrefix("gatehouse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("read_header_timeout", 5*time.Second)
	v.SetDefault("read_timeout", 15*time.Second)
	v.SetDefault("write_timeout", 15*time.Second)
	v.SetDefault("idle_timeout", 60*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("max_body_bytes", int64(1<<16))
	v.SetDefault("trust_proxy", false)
	v.SetDefault("cors_origins", []string{})

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("store", StoreMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("db_max_conns", 8)
	v.SetDefault("db_min_conns", 0)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("nats_url", "")
	v.SetDefault("audit", AuditLog)
	v.SetDefault("sweep_interval", time.Minute)

	v.SetDefault("session_ttl", time.Hour)
	v.SetDefault("session_token_bytes", 32)
	v.SetDefault("cookie_name", "gatehouse_session")
	v.SetDefault("cookie_path", "/")
	v.SetDefault("cookie_domain", "")
	v.SetDefault("cookie_secure", true)
	v.SetDefault("cookie_samesite", "lax")
	v.SetDefault("csrf_header", "X-CSRF-Token")
	v.SetDefault("session_header", "X-Session-Token")
	v.SetDefault("public_base_path", "")

	v.SetDefault("credentials_file", "")

	v.SetDefault("login_ip_max", 10)
	v.SetDefault("login_ip_window", 5*time.Minute)
}

// Validate returns an error naming the first unusable setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("config: http_addr must be set")
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: store=postgres requires database_url")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: store=redis requires redis_addr")
		}
	default:
		return fmt.Errorf("config: unknown store %q (memory|postgres|redis)", c.Store)
	}

	switch c.Audit {
	case AuditOff, AuditLog:
	case AuditPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: audit=postgres requires database_url")
		}
	default:
		return fmt.Errorf("config: unknown audit sink %q (off|log|postgres)", c.Audit)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log_format %q (json|text)", c.LogFormat)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session_ttl must be positive")
	}
	if c.SessionTokenBytes < 32 || c.SessionTokenBytes > 64 {
		return fmt.Errorf("config: session_token_bytes must be in [32,64]")
	}
	if _, err := c.SameSite(); err != nil {
		return err
	}
	if c.PublicBasePath != "" && !strings.HasPrefix(c.PublicBasePath, "/") {
		return fmt.Errorf("config: public_base_path must start with /")
	}
	if strings.HasSuffix(c.PublicBasePath, "/") {
		return fmt.Errorf("config: public_base_path must not end with /")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: max_body_bytes must be positive")
	}
	if c.LoginIPMax > 0 && c.LoginIPWindow <= 0 {
		return fmt.Errorf("config: login_ip_window must be positive when login_ip_max is set")
	}

	return nil
}

// SameSite maps the cookie_samesite key to http.SameSite.
// SameSite=None without Secure is rejected: browsers drop such cookies.
func (c *Config) SameSite() (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(c.CookieSameSite)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		if !c.CookieSecure {
			return 0, fmt.Errorf("config: cookie_samesite=none requires cookie_secure=true")
		}
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("config: unknown cookie_samesite %q (lax|strict|none)", c.CookieSameSite)
	}
}
