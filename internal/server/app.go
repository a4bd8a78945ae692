// Package server assembles the identity service from configuration: storage
// backend, signing key, proof scheme, HTTP router, background sweeps and
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/config"
	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/auth"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/jwt"
	mw "github.com/mintmojito-lite/sovereign-identity-layer/pkg/middleware"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   storage.Store
	service *auth.Service
	handler http.Handler
}

// NewApp wires the service. ctx bounds the lifetime of the rate limiter's
// background sweep.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	scheme, err := schnorr.FromName(cfg.Scheme, field.DefaultParams())
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	signer, created, err := jwt.LoadOrCreateSigner(cfg.KeyFile, cfg.KeyConfigFile, cfg.Issuer)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("signing key init error: %w", err)
	}
	if created {
		logger.Info(ctx, "generated signing key", "key_file", cfg.KeyFile, "key_config", cfg.KeyConfigFile)
	}

	service := auth.NewService(store, scheme, signer, auth.Config{
		Issuer:       cfg.Issuer,
		Audience:     cfg.Audience,
		TokenTTL:     cfg.TokenTTL,
		ChallengeTTL: cfg.ChallengeTTL,
		SessionTTL:   cfg.SessionTTL,
	}, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(mw.RateLimit(ctx, cfg.RateLimit, time.Minute))
	r.Use(mw.CORS)

	auth.NewHandlers(service, signer, cfg.Audience, logger).Mount(r)

	logger.Info(ctx, "service configured",
		"scheme", scheme.Name(),
		"group", jwt.GroupName(scheme.Params().P.BitLen()),
		"challenge_ttl", cfg.ChallengeTTL.String(),
		"session_ttl", cfg.SessionTTL.String(),
		"rate_limit", cfg.RateLimit,
	)

	return &App{
		config:  cfg,
		logger:  logger,
		store:   store,
		service: service,
		handler: r,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (storage.Store, error) {
	if cfg.DatabaseDSN == "" {
		logger.Info(ctx, "using in-memory storage")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	logger.Info(ctx, "using postgres storage")
	return store, nil
}

// Handler returns the HTTP handler with all middleware applied
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP and sweeps expired challenges and sessions until ctx is
// done, then shuts the server down gracefully and closes storage.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	srv := &http.Server{
		Addr:              a.config.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.service.Challenges().Run(ctx, a.config.CleanupInterval)
		return nil
	})

	g.Go(func() error {
		a.service.Sessions().Run(ctx, a.config.CleanupInterval)
		return nil
	})

	g.Go(func() error {
		a.logger.Info(ctx, "server starting", "addr", a.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
