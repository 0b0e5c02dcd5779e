package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchan-dev/tinychan/internal/config"
	"github.com/itchan-dev/tinychan/internal/logger"
	"github.com/itchan-dev/tinychan/internal/router"
	"github.com/itchan-dev/tinychan/internal/setup"
)

type options struct {
	configFolder string
	migrate      bool
	rebuild      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configFolder, "config_folder", "config", "path to folder with configs")
	flag.BoolVar(&opts.migrate, "migrate", false, "create the posts table if it does not exist")
	flag.BoolVar(&opts.rebuild, "rebuild", false, "regenerate every static page and exit")
	flag.Parse()

	cfg := config.MustLoad(opts.configFolder)

	if err := logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON, cfg.Public.ErrorLog); err != nil {
		log.Fatal(err)
	}

	err := run(cfg, opts)
	if err != nil {
		logger.Log.Error("tinychan stopped", "error", err)
	}
	// deferred cleanup in run has finished by now
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts options) error {
	deps, err := setup.SetupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer deps.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.migrate {
		if err := deps.Storage.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Log.Info("database schema is up to date")
	}

	if opts.rebuild {
		start := time.Now()
		if err := deps.Regenerator.RegenerateAll(ctx); err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		logger.Log.Info("site rebuilt", "boards", len(cfg.Public.Boards()), "duration", time.Since(start))
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.Public.Addr,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("server started", "addr", srv.Addr, "mode", cfg.Public.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
