package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/fraudshield/internal/factor"
	"github.com/gyaneshwarpardhi/fraudshield/internal/risk"
)

// Environment overrides, applied after the YAML file.
const (
	EnvModelPath      = "FRAUDSHIELD_MODEL_PATH"
	EnvHistoryPath    = "FRAUDSHIELD_HISTORY_PATH"
	EnvFraudThreshold = "FRAUDSHIELD_FRAUD_THRESHOLD"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
	logger   *slog.Logger
}

// NewLoader loads .env if present, then performs the initial load.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	l := &Loader{path: path, logger: logger}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch hot-reloads the config on file changes until the returned stop
// function is called.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				// Editors that save by rename drop the watch; re-add it.
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					_ = w.Add(l.path)
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					if _, err := l.Reload(); err != nil {
						l.logger.Warn("config reload failed; keeping previous config", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file. Invalid configs are
// rejected and the current one is kept.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvModelPath); ok {
		cfg.Model.Path = v
	}
	if v, ok := os.LookupEnv(EnvHistoryPath); ok {
		cfg.History.Path = v
	}
	if v, ok := os.LookupEnv(EnvFraudThreshold); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid float %q", EnvFraudThreshold, v)
		}
		cfg.Scoring.FraudThreshold = f
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		cfg.Logging.Format = v
	}
	if v, ok := os.LookupEnv(EnvOTLPEndpoint); ok {
		cfg.Tracing.OTLPEndpoint = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Path == "" {
		cfg.Model.Path = "models/model.yaml"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/history.json"
	}
	if cfg.Scoring.FraudThreshold == 0 {
		cfg.Scoring.FraudThreshold = risk.DefaultFraudThreshold
	}
	if cfg.Factors == nil {
		for _, r := range factor.DefaultRules() {
			cfg.Factors = append(cfg.Factors, FactorDef{Feature: r.Feature, Impact: r.Impact, When: r.When})
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
