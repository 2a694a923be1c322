// Command example runs the planner HTTP API.
//
//	go run ./planner/example -config planner.yaml
//
// Without a database DSN the server keeps everything in memory and seeds a
// demo owner "alice" with a weekday work template.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cod31nvictus/Eterny2.0-sub001/internal/config"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/handlers"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage/gormstore"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage/memory"
)

func main() {
	configPath := flag.String("config", "planner.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config_path", *configPath)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		slog.Error("failed to apply environment", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	engineConfig, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := seed(ctx, store, cfg); err != nil {
		return err
	}

	p := planner.New(store,
		planner.WithLogger(logger),
		planner.WithEngineConfig(engineConfig))
	defer p.Close()

	mux := http.NewServeMux()
	mux.Handle(cfg.BaseURI+"/", handlers.NewRouter(p, cfg.BaseURI, logger))
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("planner listening",
			"listen", cfg.Listen,
			"base_uri", cfg.BaseURI,
			"persistent", cfg.DatabaseDSN != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, logger *slog.Logger) (storage.Storage, func(), error) {
	if cfg.DatabaseDSN == "" {
		return memory.New(memory.WithLogger(logger)), func() {}, nil
	}
	store, err := gormstore.Open(cfg.DatabaseDSN, gormstore.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}, nil
}

// seed writes the configured templates. An in-memory store without
// configured templates gets a demo schedule instead.
func seed(ctx context.Context, store storage.Storage, cfg *config.Config) error {
	for _, tc := range cfg.Templates {
		if err := store.PutTemplate(ctx, tc.Template()); err != nil {
			return err
		}
	}
	if len(cfg.Templates) > 0 || cfg.DatabaseDSN != "" {
		return nil
	}

	work := &storage.Template{
		Ref:      "tpl-work",
		OwnerRef: "alice",
		Name:     "Work day",
		Color:    "#3366FF",
		Blocks: []storage.TimeBlock{
			{Start: "09:00", End: "12:00", Activity: "Focus"},
			{Start: "13:00", End: "17:30", Activity: "Meetings"},
		},
	}
	if err := store.PutTemplate(ctx, work); err != nil {
		return err
	}
	series, err := recurrence.NewSeries(recurrence.SeriesParams{
		ID:          "demo-weekdays",
		TemplateRef: work.Ref,
		OwnerRef:    work.OwnerRef,
		StartDate:   recurrence.DateOf(time.Now()),
		Pattern: recurrence.Weekly{
			Every:    1,
			Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		},
	})
	if err != nil {
		return err
	}
	return store.CreateSeries(ctx, series)
}
