package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fitcompany/console/internal/alerts"
	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/config"
	"github.com/fitcompany/console/internal/mask"
	mw "github.com/fitcompany/console/internal/middleware"
	"github.com/fitcompany/console/internal/router"
	"github.com/fitcompany/console/internal/session"
	"github.com/fitcompany/console/internal/upstream"
	"github.com/fitcompany/console/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fields, err := cfg.Console.FieldSet()
	if err != nil {
		return err
	}

	backend := upstream.New(cfg.BackendURL, nil, logger.Named("upstream"))

	// Products come straight from the inventory database when one is
	// configured, and from the backend's product list otherwise.
	var src catalog.Source = backend
	if cfg.CatalogDatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.CatalogDatabaseURL)
		if err != nil {
			return fmt.Errorf("catalog database: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("catalog database ping: %w", err)
		}
		src = catalog.NewPGSource(pool)
		logger.Info("catalog reads from database")
	}

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	// The poller runs with no user request behind it, so it calls the
	// backend with the service token.
	pollCtx := upstream.WithToken(ctx, cfg.ServiceToken)
	poller := alerts.NewPoller(src, hub, cfg.AlertPollInterval, logger.Named("alerts"))
	go poller.Run(pollCtx)

	quantity, _ := fields.Get(mask.FieldCantidad)
	sessions := session.NewStore(cfg.SessionTTL, session.Options{
		MaxLines: cfg.Console.Limits.MaxItems,
		Quantity: quantity,
	})
	go sessions.Run(ctx, time.Minute)

	limiter := mw.NewRateLimiter(cfg.SubmitRate, cfg.SubmitBurst, logger.Named("ratelimit"))
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				limiter.Cleanup(now)
			}
		}
	}()

	r := router.New(cfg, router.Deps{
		Backend:  backend,
		Catalog:  src,
		Fields:   fields,
		Sessions: sessions,
		Alerts:   poller,
		Hub:      hub,
		Limiter:  limiter,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
