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

	"github.com/gyaneshwarpardhi/fraudshield/internal/api"
	"github.com/gyaneshwarpardhi/fraudshield/internal/config"
	"github.com/gyaneshwarpardhi/fraudshield/internal/history"
	"github.com/gyaneshwarpardhi/fraudshield/internal/logging"
	"github.com/gyaneshwarpardhi/fraudshield/internal/model"
	"github.com/gyaneshwarpardhi/fraudshield/internal/scoring"
	"github.com/gyaneshwarpardhi/fraudshield/internal/traces"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/fraudshield.yaml", "Path to service YAML config")
	flag.Parse()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath, nil)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Tracing ──────────────────────────────────────────────────────────────
	shutdownTracing, err := traces.Init(ctx, cfg.Tracing.OTLPEndpoint, cfg.Version, logger)
	if err != nil {
		slog.Warn("tracing unavailable", "err", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	// ── Model ────────────────────────────────────────────────────────────────
	lr, err := model.LoadLogistic(cfg.Model.Path)
	if err != nil {
		slog.Error("failed to load model", "path", cfg.Model.Path, "err", err)
		os.Exit(1)
	}
	adapter, err := model.NewAdapter(lr, logger)
	if err != nil {
		slog.Error("model rejected", "err", err)
		os.Exit(1)
	}
	slog.Info("model loaded", "path", cfg.Model.Path, "version", lr.Version(), "fraud_column", adapter.PositiveColumn())

	// ── History store ────────────────────────────────────────────────────────
	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		slog.Error("failed to open history", "path", cfg.History.Path, "err", err)
		os.Exit(1)
	}

	// ── Scoring service ──────────────────────────────────────────────────────
	factors, err := cfg.FactorSet()
	if err != nil {
		slog.Error("failed to compile factors", "err", err)
		os.Exit(1)
	}
	svc := scoring.New(adapter, store, scoring.Settings{
		Classifier: cfg.Classifier(),
		Factors:    factors,
	}, logger)
	slog.Info("scoring ready", "fraud_threshold", svc.Threshold(), "factors", factors.Len())

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		fs, err := newCfg.FactorSet()
		if err != nil {
			slog.Warn("hot-reload skipped: factors invalid", "err", err)
			return
		}
		svc.UpdateSettings(scoring.Settings{Classifier: newCfg.Classifier(), Factors: fs})
		if newCfg.Model.Path != cfg.Model.Path || newCfg.History.Path != cfg.History.Path {
			slog.Warn("model and history paths are read at startup only; restart to apply",
				"model_path", newCfg.Model.Path, "history_path", newCfg.History.Path)
		}
		slog.Info("scoring settings hot-reloaded",
			"version", newCfg.Version,
			"fraud_threshold", svc.Threshold(),
			"factors", fs.Len())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(svc, store, loader, lr.Version()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	store.Close()
	if err := shutdownTracing(shutCtx); err != nil {
		slog.Warn("trace flush failed", "err", err)
	}
	slog.Info("goodbye")
}
