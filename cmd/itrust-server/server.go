package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/itrust/itrust/internal/config"
	"github.com/itrust/itrust/internal/domain/emergency"
	"github.com/itrust/itrust/internal/domain/hospital"
	"github.com/itrust/itrust/internal/domain/officevisit"
	"github.com/itrust/itrust/internal/domain/ophthalmology"
	"github.com/itrust/itrust/internal/domain/user"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/cache"
	"github.com/itrust/itrust/internal/platform/db"
	"github.com/itrust/itrust/internal/platform/middleware"
	"github.com/itrust/itrust/internal/platform/sandbox"
)

// app holds the connections and services shared by serve and seed.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool  *pgxpool.Pool
	cache *cache.Cache
	spool *audit.Spool
	store *audit.PGStore
	audit *audit.Logger

	hospitals *hospital.Service
	users     *user.Service
	visits    *officevisit.Service
	surgeries *ophthalmology.Service
	emergency *emergency.Service
	tokens    *auth.TokenIssuer
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("connected to database")

	c, err := cache.New(ctx, cache.Config{URL: cfg.RedisURL, TTL: cfg.CacheTTL})
	if err != nil {
		// The cache only serves hospital reads, so run without it.
		logger.Warn().Err(err).Msg("redis unavailable, hospital cache disabled")
		c = cache.Disabled()
	}

	spool, err := audit.OpenSpool(cfg.AuditSpoolDir)
	if err != nil {
		pool.Close()
		c.Close()
		return nil, fmt.Errorf("open audit spool: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, pool: pool, cache: c, spool: spool}
	a.store = audit.NewPGStore(pool)
	a.audit = audit.NewLogger(a.store, spool, logger)

	tx := db.NewTxManager(pool)
	a.hospitals = hospital.NewService(hospital.NewRepoPG(pool), tx, a.audit, c)
	a.users = user.NewService(user.NewRepoPG(pool), tx, a.audit)
	refs := officevisit.References{Users: a.users, Hospitals: a.hospitals}
	a.visits = officevisit.NewService(officevisit.NewRepoPG(pool), tx, a.audit, refs)
	a.surgeries = ophthalmology.NewService(ophthalmology.NewRepoPG(pool), tx, a.audit, refs)
	a.emergency = emergency.NewService(emergency.NewRepoPG(pool), a.users, a.audit)
	a.tokens = auth.NewTokenIssuer(cfg.JWTIssuer, []byte(cfg.JWTSigningKey), cfg.TokenTTL)
	return a, nil
}

func (a *app) Close() {
	if err := a.spool.Close(); err != nil {
		a.logger.Error().Err(err).Msg("close audit spool")
	}
	a.cache.Close()
	a.pool.Close()
}

func (a *app) seed(ctx context.Context, file string) (sandbox.Result, error) {
	fx, err := sandbox.LoadFile(file)
	if err != nil {
		return sandbox.Result{}, err
	}
	s := &sandbox.Seeder{Hospitals: a.hospitals, Users: a.users, Visits: a.visits, Surgeries: a.surgeries}
	return s.Seed(ctx, fx)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

// router wires the middleware chain and every route onto a new Echo.
func (a *app) router() *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(a.tokens.Config()))
	} else {
		e.Use(auth.JWTMiddleware(a.tokens.Config()))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, func() db.PoolStats { return db.GetPoolStats(a.pool) }))

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	api.Use(db.ConnMiddleware(a.pool))

	hospital.NewHandler(a.hospitals).RegisterRoutes(api)
	user.NewHandler(a.users, a.tokens).RegisterRoutes(api)
	officevisit.NewHandler(a.visits).RegisterRoutes(api)
	ophthalmology.NewHandler(a.surgeries).RegisterRoutes(api)
	emergency.NewHandler(a.emergency).RegisterRoutes(api)
	audit.NewHandler(a.audit).RegisterRoutes(api)
	return e
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	replayDone := a.spool.StartReplay(logger.WithContext(ctx), a.store, cfg.AuditReplayInterval, logger)
	if n := a.spool.Len(); n > 0 {
		logger.Warn().Int("entries", n).Msg("audit spool holds entries from a previous run")
	}
	if n := a.spool.DeadLetters(); n > 0 {
		logger.Warn().Int("entries", n).Msg("audit spool holds dead-lettered entries")
	}

	e := a.router()
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// One last drain so a clean shutdown leaves nothing behind. The replay
	// loop must be gone first or both would append the same entries.
	<-replayDone
	if n, err := a.spool.Drain(logger.WithContext(shutdownCtx), a.store); err != nil {
		logger.Error().Err(err).Int("replayed", n).Msg("final audit spool drain failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

