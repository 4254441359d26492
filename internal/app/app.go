// Package app wires the gatehouse runtime: config, logging, storage
// backends, the session manager, and the HTTP server with its middleware
// chain and operational endpoints.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatehouse/internal/api"
	"gatehouse/internal/audit"
	"gatehouse/internal/config"
	"gatehouse/internal/events"
	"gatehouse/internal/identity"
	"gatehouse/internal/metrics"
	"gatehouse/internal/session"
)

// App owns the wired service and its resource lifecycles.
type App struct {
	cfg *config.Config
	log *slog.Logger

	pool      *pgxpool.Pool
	store     session.Store
	manager   *session.Manager
	publisher events.Publisher
	router    http.Handler
}

// New constructs a fully wired App from config.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if log == nil {
		log = slog.Default()
	}

	sameSite, err := cfg.SameSite()
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, publisher: events.Noop{}}

	// Postgres pool is shared by the session store and the audit sink.
	if cfg.Store == config.StorePostgres || cfg.Audit == config.AuditPostgres {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("app: database: %w", err)
		}
		a.pool = pool
		log.Info("db.connected")
	}

	if a.store, err = newSessionStore(cfg, a.pool); err != nil {
		a.closeResources()
		return nil, err
	}
	log.Info("store.ready", "backend", cfg.Store)

	verifier, err := newVerifier(cfg)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	sessCfg := session.Config{
		CookieName: cfg.CookieName,
		TTL:        cfg.SessionTTL,
		TokenBytes: cfg.SessionTokenBytes,
		HrefBase:   cfg.PublicBasePath + "/sessions",
	}
	a.manager, err = session.NewManager(log, sessCfg, a.store, verifier)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	recorder, err := newAuditRecorder(cfg, log, a.pool)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(log, events.DefaultNATSConfig(cfg.NATSURL))
		if err != nil {
			a.closeResources()
			return nil, err
		}
		a.publisher = pub
	}

	apiCfg := api.Config{
		CookieName:        cfg.CookieName,
		CookiePath:        cfg.CookiePath,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    sameSite,
		CSRFHeaderName:    cfg.CSRFHeaderName,
		SessionHeaderName: cfg.SessionHeaderName,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		TrustProxy:        cfg.TrustProxy,
		LoginIPMax:        cfg.LoginIPMax,
		LoginIPWindow:     cfg.LoginIPWindow,
	}
	handler, err := api.NewHandler(log, apiCfg, a.manager,
		api.WithAuditRecorder(recorder),
		api.WithEventPublisher(a.publisher),
	)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	a.router = a.buildRouter(handler)
	return a, nil
}

func newSessionStore(cfg *config.Config, pool *pgxpool.Pool) (session.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StorePostgres:
		return session.NewPostgresStore(pool)
	case config.StoreRedis:
		return session.NewRedisStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("app: unknown store %q", cfg.Store)
	}
}

func newVerifier(cfg *config.Config) (identity.Verifier, error) {
	if cfg.CredentialsFile == "" {
		return nil, errors.New("app: credentials_file must be set (no identity backend configured)")
	}
	return identity.LoadStaticVerifier(cfg.CredentialsFile)
}

func newAuditRecorder(cfg *config.Config, log *slog.Logger, pool *pgxpool.Pool) (audit.Recorder, error) {
	switch cfg.Audit {
	case config.AuditOff:
		return audit.Noop{}, nil
	case config.AuditLog:
		return audit.NewSlogRecorder(log), nil
	case config.AuditPostgres:
		return audit.NewPostgresRecorder(log, pool)
	default:
		return nil, fmt.Errorf("app: unknown audit sink %q", cfg.Audit)
	}
}

func (a *App) buildRouter(handler *api.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, a.log) })
	r.Use(WithMetrics)
	r.Use(WithSecurityHeaders)
	if len(a.cfg.CORSOrigins) > 0 {
		r.Use(func(next http.Handler) http.Handler { return WithCORS(next, a.cfg.CORSOrigins) })
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := a.store.Ping(ctx); err != nil {
			a.log.Warn("readyz.store.not_ready", "err", err)
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})
	r.Handle("/metrics", metrics.Handler())

	base := a.cfg.PublicBasePath
	if base == "" {
		base = "/"
	}
	r.Mount(base, handler.Routes())

	return r
}

// Handler exposes the wired router. Tests use it to drive the full stack
// without a listener.
func (a *App) Handler() http.Handler { return a.router }

// Run starts the HTTP server and the expiry janitor, blocking until the
// context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go a.runJanitor(janitorCtx)

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.cfg.Store)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.closeResources()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
	}

	a.closeResources()
	a.log.Info("server.stopped")
	return err
}

// runJanitor periodically reaps expired sessions. Redis deployments get a
// free pass: Sweep is a no-op there, so the tick stays cheap.
func (a *App) runJanitor(ctx context.Context) {
	if a.cfg.SweepEvery <= 0 {
		return
	}

	t := time.NewTicker(a.cfg.SweepEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := a.manager.Sweep(sweepCtx, time.Now().UTC())
			cancel()
			if err != nil {
				a.log.Error("janitor.sweep.fail", "err", err)
				continue
			}
			if n > 0 {
				metrics.SessionsSweptTotal.Add(float64(n))
				a.log.Info("janitor.swept", "count", n)
			}
		}
	}
}

func (a *App) closeResources() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Error("events.close.fail", "err", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("store.close.fail", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
