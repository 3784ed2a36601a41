package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/fraudshield/internal/config"
	"github.com/gyaneshwarpardhi/fraudshield/internal/feature"
	"github.com/gyaneshwarpardhi/fraudshield/internal/history"
	"github.com/gyaneshwarpardhi/fraudshield/internal/logging"
	"github.com/gyaneshwarpardhi/fraudshield/internal/model"
	"github.com/gyaneshwarpardhi/fraudshield/internal/prediction"
	"github.com/gyaneshwarpardhi/fraudshield/internal/risk"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// Predictor scores one raw transaction.
type Predictor interface {
	Score(ctx context.Context, raw map[string]any) (*prediction.Record, error)
}

// History is the read and admin side of the prediction store.
type History interface {
	ListPaginated(ctx context.Context, q history.Query) (*history.Page, error)
	ListAll(ctx context.Context) ([]prediction.Record, error)
	Statistics(ctx context.Context) (*history.Stats, error)
	Clear(ctx context.Context) error
}

// Reloader re-reads configuration from disk.
type Reloader interface {
	Reload() (*config.Config, error)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	predictor    Predictor
	history      History
	reloader     Reloader
	modelVersion string
	mux          *http.ServeMux
}

// New creates an HTTP handler and registers all routes. An empty
// modelVersion reports the service as not ready.
func New(p Predictor, h History, r Reloader, modelVersion string) http.Handler {
	hd := &Handler{predictor: p, history: h, reloader: r, modelVersion: modelVersion, mux: http.NewServeMux()}

	hd.mux.HandleFunc("POST /api/v1/predict", hd.predict)
	hd.mux.HandleFunc("GET /api/v1/predict/history", hd.listHistory)
	hd.mux.HandleFunc("GET /api/v1/predict/history/all", hd.allHistory)
	hd.mux.HandleFunc("GET /api/v1/predict/history/stats", hd.historyStats)
	hd.mux.HandleFunc("DELETE /api/v1/predict/history", hd.clearHistory)
	hd.mux.HandleFunc("POST /api/v1/config/reload", hd.reloadConfig)
	hd.mux.HandleFunc("GET /healthz", hd.healthz)
	hd.mux.HandleFunc("GET /readyz", hd.readyz)
	hd.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(hd.mux)
}

// POST /api/v1/predict: score one transaction and record it.
func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if raw == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be a JSON object of features")
		return
	}

	rec, err := h.predictor.Score(r.Context(), raw)
	if err != nil {
		writeScoringError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeScoringError(w http.ResponseWriter, err error) {
	var verr *feature.ValidationError
	var ierr *model.InferenceError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "validation", err.Error())
	case errors.As(err, &ierr):
		writeError(w, http.StatusInternalServerError, "inference", err.Error())
	case errors.Is(err, model.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "model_unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "canceled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// GET /api/v1/predict/history: filtered, paginated, newest first.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	page, err := h.history.ListPaginated(r.Context(), q)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseQuery(r *http.Request) (history.Query, error) {
	v := r.URL.Query()
	q := history.Query{Page: 1, PageSize: defaultPageSize}

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("page: invalid integer %q", s)
		}
		q.Page = n
	}
	size := v.Get("page_size")
	if size == "" {
		size = v.Get("items_per_page")
	}
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return q, fmt.Errorf("page_size: invalid integer %q", size)
		}
		if n < 1 || n > maxPageSize {
			return q, fmt.Errorf("page_size must be between 1 and %d", maxPageSize)
		}
		q.PageSize = n
	}
	if s := v.Get("risk_level"); s != "" {
		lvl, err := risk.ParseLevel(s)
		if err != nil {
			return q, err
		}
		q.Filter.RiskLevel = lvl
	}
	if s := v.Get("is_fraud"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, fmt.Errorf("is_fraud: invalid boolean %q", s)
		}
		q.Filter.IsFraud = &b
	}
	q.Filter.DateFrom = v.Get("date_from")
	q.Filter.DateTo = v.Get("date_to")
	return q, nil
}

// GET /api/v1/predict/history/all
func (h *Handler) allHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.history.ListAll(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": recs})
}

// GET /api/v1/predict/history/stats
func (h *Handler) historyStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.history.Statistics(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DELETE /api/v1/predict/history
func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared successfully"})
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, history.ErrInvalidPageSize):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, history.ErrStorageUnavailable), errors.Is(err, history.ErrClosed):
		logging.FromContext(r.Context()).Error("history unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// POST /api/v1/config/reload: re-read the config file. Registered
// OnChange callbacks apply the new settings.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.reloader.Reload()
	if err != nil {
		logging.FromContext(r.Context()).Warn("config reload rejected", "err", err)
		writeError(w, http.StatusUnprocessableEntity, "config", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":        true,
		"version":         cfg.Version,
		"fraud_threshold": cfg.Scoring.FraudThreshold,
		"factors_count":   len(cfg.Factors),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 until a model is loaded.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.modelVersion) == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "model not loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ready",
		"model_version": h.modelVersion,
	})
}
