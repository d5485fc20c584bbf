package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamehall/config"
	"gamehall/internal/api"
	"gamehall/internal/core"
	"gamehall/internal/logging"
	"gamehall/internal/metrics"
	"gamehall/internal/remote"
	"gamehall/internal/storage/sqlite"
	"gamehall/internal/syncctl"
	"gamehall/internal/timer"

	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	eventBuffer     = 16
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console API server",
	Long:  `Start the operator API, the time-up watcher and the background refresh loop.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	logger.Info("Starting gamehall",
		"version", version,
		"addr", cfg.Addr(),
		"remote", cfg.Remote.BaseURL != "")

	m := metrics.New()

	logger.Info("Opening local cache", "path", cfg.Database.Path)
	cache, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer cache.Close()

	cost, err := core.NewCostModel(cfg.Billing.HourlyRate)
	if err != nil {
		return fmt.Errorf("invalid billing config: %w", err)
	}
	clock := core.RealClock{}
	store := core.NewStore(cost, clock, cfg.Location())

	hub := timer.NewHub(eventBuffer, logger)
	engine := timer.NewEngine(store, clock, hub, cfg.Timer.Poll(), m, logger)

	auth, err := newAuthenticator(cfg, logger)
	if err != nil {
		return err
	}

	var rem syncctl.Remote
	if cfg.Remote.BaseURL != "" {
		rem = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.TimeoutDuration(), cfg.Location(), logger)
	}

	ctrl := syncctl.New(syncctl.Options{
		Store:           store,
		Tracker:         engine,
		Remote:          rem,
		Cache:           cache,
		Auth:            auth,
		Metrics:         m,
		DeviceCount:     cfg.Billing.DeviceCount,
		RefreshInterval: cfg.Timer.Refresh(),
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize controller: %w", err)
	}
	logger.Info("Controller initialized", "mode", ctrl.Mode())

	go engine.Start()
	go ctrl.Run(ctx)

	router := api.NewRouter(api.RouterConfig{
		Console:  logging.NewConsoleLogger(ctrl, logger),
		Events:   hub,
		Metrics:  m,
		Location: cfg.Location(),
		APIKey:   cfg.Security.APIKey,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		engine.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("Shutdown signal received, starting graceful shutdown")

		engine.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Graceful shutdown complete")
	}

	return nil
}

func newAuthenticator(cfg *config.Config, logger *slog.Logger) (*syncctl.LocalAuthenticator, error) {
	hash := cfg.Operator.PasswordHash
	if hash == "" {
		logger.Warn("No operator password hash configured, using the default password",
			"username", cfg.Operator.Username)
		var err error
		hash, err = syncctl.HashPassword(syncctl.DefaultPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash default password: %w", err)
		}
	}

	auth, err := syncctl.NewLocalAuthenticator(cfg.Operator.Username, hash)
	if err != nil {
		return nil, fmt.Errorf("invalid operator config: %w", err)
	}
	return auth, nil
}
