package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"

	v1 "analyzr/api/v1"
	"analyzr/internal/config"
	"analyzr/internal/database"
	"analyzr/internal/jobs"
	"analyzr/internal/logging"
	"analyzr/internal/notify"
	"analyzr/internal/tracker"
)

// Application bundles every long-lived component: the HTTP server, the
// database manager, the background job scheduler, and the geolocation
// backend.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.Manager
	Scheduler *jobs.Scheduler

	fiberApp *fiber.App
	locator  tracker.Locator
}

// NewApp creates an application from the ambient configuration.
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates an application with the provided config.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.NewLogger(cfg)

	dbManager := database.NewManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	locator := buildLocator(cfg, logger)

	var notifier notify.Notifier
	if cfg.DiscordBotToken != "" {
		notifier = notify.NewDiscordClient(cfg.DiscordBotToken)
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: cfg.IsProduction(),
	})

	handler := v1.NewHandler(dbManager.GetConnection(), logger, cfg, notifier, locator)
	MountRoutes(fiberApp, handler)

	return &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Scheduler: scheduler,
		fiberApp:  fiberApp,
		locator:   locator,
	}, nil
}

// buildLocator prefers the local GeoLite2 database; without one it falls
// back to the HTTP lookup service.
func buildLocator(cfg *config.Config, logger *slog.Logger) tracker.Locator {
	if _, err := os.Stat(cfg.GeoDBPath); err == nil {
		locator, err := tracker.NewGeoLiteLocator(cfg.GeoDBPath, logger)
		if err == nil {
			logger.Info("Using GeoLite2 database for geolocation",
				slog.String("path", cfg.GeoDBPath))
			return locator
		}
		logger.Warn("Failed to open GeoLite2 database, falling back to HTTP lookups",
			slog.Any("error", err))
	}
	return tracker.NewHTTPLocator(cfg.GeoLookupURL, cfg.GetGeoLookupTimeout(), logger)
}

// FiberApp exposes the underlying Fiber app, mainly for tests.
func (a *Application) FiberApp() *fiber.App {
	return a.fiberApp
}

// Start launches the background jobs and the HTTP listener, blocking
// until the listener stops.
func (a *Application) Start() error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start background jobs: %w", err)
	}

	addr := ":" + a.Config.AppPort
	a.Logger.Info("Starting HTTP server", slog.String("addr", addr))
	return a.fiberApp.Listen(addr)
}

// StartAsync starts the application in a background goroutine. Listener
// failures are logged, not returned.
func (a *Application) StartAsync() error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start background jobs: %w", err)
	}

	go func() {
		addr := ":" + a.Config.AppPort
		a.Logger.Info("Starting HTTP server", slog.String("addr", addr))
		if err := a.fiberApp.Listen(addr); err != nil {
			a.Logger.Error("HTTP server stopped", slog.Any("error", err))
		}
	}()
	return nil
}

// Shutdown stops jobs, drains the HTTP server, and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop()

	if err := a.fiberApp.ShutdownWithContext(ctx); err != nil {
		a.Logger.Error("Failed to shut down HTTP server", slog.Any("error", err))
		return err
	}

	if closer, ok := a.locator.(*tracker.GeoLiteLocator); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn("Failed to close GeoLite2 database", slog.Any("error", err))
		}
	}

	return a.DBManager.Close()
}
