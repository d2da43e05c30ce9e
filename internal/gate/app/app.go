// Package app loads configuration and wires the gate together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ironbark/mfagate/internal/gate/backend"
	"github.com/ironbark/mfagate/internal/gate/cache"
	"github.com/ironbark/mfagate/internal/gate/directory"
	httpapi "github.com/ironbark/mfagate/internal/gate/http"
	"github.com/ironbark/mfagate/internal/gate/policy"
	"github.com/ironbark/mfagate/internal/gate/service"
	"github.com/ironbark/mfagate/pkg/jwtx"
	"github.com/ironbark/mfagate/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the gate with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	memory *cache.Memory // set when running without Redis
	rdb    *redis.Client // set when running with Redis

	orchestrator *service.Orchestrator

	server *http.Server
	router *httpapi.Router

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mfagate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	adapter := app.initCache()
	if err := app.initServices(adapter); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// initCache picks the store: Redis when configured so multiple gate
// instances share verdicts, otherwise the in-process memory store.
func (app *Application) initCache() *cache.Adapter {
	ttl := cache.DefaultTTLs()
	ttl.Directory = app.cfg.DirectoryCacheTTL
	ttl.Allow = app.cfg.AllowTTL
	ttl.Deny = app.cfg.DenyTTL
	ttl.Bypass = app.cfg.APILifeCheckInterval

	var store cache.Store
	if app.cfg.RedisAddr != "" {
		app.rdb = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
		store = cache.NewRedis(app.rdb)
		app.logger.Info("using redis cache", "addr", app.cfg.RedisAddr)
	} else {
		app.memory = cache.NewMemory()
		store = app.memory
		app.logger.Info("using in-process memory cache")
	}

	return cache.NewAdapter(store, ttl)
}

func (app *Application) initServices(adapter *cache.Adapter) error {
	connector := &directory.LDAPConnector{
		BindDN:       app.cfg.DirectoryBindDN,
		BindPassword: app.cfg.DirectoryBindPassword,
		Timeout:      app.cfg.DirectoryTimeout,
	}
	gateway := directory.NewGateway(connector, directory.Config{
		Domains:           app.cfg.DirectoryDomains,
		PhoneAttributes:   app.cfg.PhoneAttributes,
		IdentityAttribute: app.cfg.IdentityAttribute,
		MaxQueries:        app.cfg.DirectoryMaxQueries,
	})

	exempt := append(policy.DefaultExemptPrefixes(), app.cfg.SystemAccountPrefixes...)
	requirement := policy.NewRequirement(gateway, adapter, app.cfg.SecondFactorGroup, exempt)
	bypass := policy.NewBypass(adapter, app.cfg.BypassWhenAPIUnreachable)

	client, err := backend.NewClient(backend.Config{
		BaseURL:           app.cfg.APIURL,
		APIKey:            app.cfg.APIKey,
		APISecret:         app.cfg.APISecret,
		ProxyURL:          app.cfg.APIProxy,
		RequestsPerSecond: app.cfg.APIMaxRPS,
	})
	if err != nil {
		return fmt.Errorf("app: building api client: %w", err)
	}

	verifier := jwtx.NewAssertionVerifier(app.cfg.APISecret, app.cfg.APIKey)

	app.orchestrator = service.NewOrchestrator(service.DefaultProductPolicy(), service.Deps{
		Cache:       adapter,
		Requirement: requirement,
		Bypass:      bypass,
		Verifier:    verifier,
		API:         client,
		Profiles:    gateway,
	})
	return nil
}

func (app *Application) initHTTP() {
	var ready func(ctx context.Context) error
	if app.rdb != nil {
		rdb := app.rdb
		ready = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	router := httpapi.NewRouter(app.orchestrator, nil, ready, BuildVersion, app.logger)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.startJanitor()

	app.logger.Info("gate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopJanitor()

	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			return err
		}
	}

	app.logger.Info("gate stopped")
	return nil
}

// startJanitor purges expired memory-cache entries on the housekeeping
// interval. The memory store also expires lazily on read; the janitor just
// keeps idle entries from pinning memory.
func (app *Application) startJanitor() {
	if app.memory == nil {
		return
	}

	app.janitorStop = make(chan struct{})
	app.janitorDone = make(chan struct{})

	go func() {
		defer close(app.janitorDone)

		ticker := time.NewTicker(app.cfg.HousekeepingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if purged := app.memory.PurgeExpired(); purged > 0 {
					app.logger.Debug("purged expired cache entries", "count", purged)
				}
			case <-app.janitorStop:
				return
			}
		}
	}()
}

func (app *Application) stopJanitor() {
	if app.janitorStop == nil {
		return
	}
	close(app.janitorStop)
	<-app.janitorDone
}
