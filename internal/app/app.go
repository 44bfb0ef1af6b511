package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mvigil90/oc-friends/internal/config"
	"github.com/mvigil90/oc-friends/internal/db"
	"github.com/mvigil90/oc-friends/internal/handlers"
	"github.com/mvigil90/oc-friends/internal/httpserver"
	"github.com/mvigil90/oc-friends/internal/logging"
	"github.com/mvigil90/oc-friends/internal/middleware"
)

// Run bootstraps the friends service.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := httpserver.SignalContext(ctx)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg)
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := cleanup(cleanupCtx); err != nil {
			logger.Warn("release event sinks", "error", err)
		}
	}()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	srv := httpserver.New(cfg.AppPort, middleware.RequestLogger(logger)(mux))

	logger.Info("starting http server",
		"port", cfg.AppPort,
		"table_prefix", cfg.TablePrefix,
		"event_sinks", cfg.EventSinks,
	)

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
