// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/browser"
	"github.com/web-traces/wlprep/internal/cache"
	"github.com/web-traces/wlprep/internal/config"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	BBoxes      *cache.BBoxCache
	BrowserPool *browser.Pool
	poolMu      sync.Mutex
	startTime   time.Time
}

// New creates and initializes a new Application.
//
// It configures logging from the provided config and creates the bounding
// box cache. The browser pool is NOT started here: only the snapshots stage
// needs Chrome, so the pool is created on demand via EnsureBrowserPool.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.ErrorLevel // default: suppress non-verbose info logs
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	// Treat "info" as non-verbose (don't display info logs unless -v is used)
	default:
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		logWriter = os.Stderr
	} else {
		// Human-friendly console output otherwise
		logWriter = zerolog.NewConsoleWriter()
	}

	logger := log.Output(logWriter).With().Timestamp().Logger()

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	bboxes := cache.NewBBoxCache(cfg.BBoxCacheEntries)
	logger.Debug().
		Int("max_entries", cfg.BBoxCacheEntries).
		Msg("Bounding box cache initialized")

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		BBoxes:    bboxes,
		startTime: time.Now(),
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// EnsureBrowserPool lazily creates the browser pool if it has not already
// been initialized. Only the snapshots stage calls this.
func (a *Application) EnsureBrowserPool(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.BrowserPool != nil {
		return nil
	}

	a.Logger.Debug().Msg("Initializing browser pool on demand")
	pool, err := browser.NewPool(browser.PoolOptions{
		Size:       a.Config.BrowserPoolSize,
		Headless:   a.Config.BrowserHeadless,
		ChromePath: a.Config.ChromePath,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to create browser pool on demand")
		return err
	}

	a.BrowserPool = pool
	a.Logger.Info().Int("pool_size", pool.Size()).Msg("Browser pool initialized on demand")
	return nil
}

// Close gracefully shuts down the application and all its resources.
//
// A context with a timeout should be provided to prevent indefinite
// blocking. Errors during shutdown are logged but do not prevent the
// remaining shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if a.BrowserPool != nil {
		if err := a.BrowserPool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
	}

	uptime := time.Since(a.startTime)
	a.Logger.Debug().Dur("uptime", uptime).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
