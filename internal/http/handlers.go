package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dcrowell/homeboard/internal/dial"
	"github.com/dcrowell/homeboard/internal/lifecycle"
	"github.com/dcrowell/homeboard/internal/models"
	"github.com/dcrowell/homeboard/internal/observability"
	"github.com/dcrowell/homeboard/internal/render"
	"github.com/dcrowell/homeboard/internal/traffic"
)

// PanelService is the service-layer surface the handlers depend on.
type PanelService interface {
	Forecast(ctx context.Context) ([]models.ForecastRecord, error)
	Tasks(ctx context.Context) ([]models.TaskRecord, error)
	People(baseURL string) []models.PersonRecord
	Scores(ctx context.Context, name string) (models.Scores, error)
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	StartTime        time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// upstream sources reported on /health.
var healthSources = []string{"weather", "whoop", "tasks"}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	service          PanelService
	renderer         *render.Renderer
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(service PanelService, renderer *render.Renderer, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		service:      service,
		renderer:     renderer,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetIndex handles GET /. Each panel is fetched independently: a failing
// source is logged and its panel renders empty, never blocking the others.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, h.logger)
	data := render.PageData{
		Clock:  render.FormatClock(time.Now()),
		People: h.service.People(baseURL(r)),
	}

	forecast, err := h.service.Forecast(r.Context())
	if err != nil {
		observability.PanelRenderErrorsTotal.WithLabelValues("weather").Inc()
		logger.Error("weather panel", zap.Error(err))
	} else {
		data.Forecast = forecast
	}

	tasks, err := h.service.Tasks(r.Context())
	if err != nil {
		observability.PanelRenderErrorsTotal.WithLabelValues("tasks").Inc()
		logger.Error("task panel", zap.Error(err))
	} else {
		data.Tasks = tasks
	}

	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, data); err != nil {
		logger.Error("render page", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render dashboard")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// GetWeather handles GET /weather.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Forecast(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []models.ForecastRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetComparison handles GET /comparison.
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	records := h.service.People(baseURL(r))
	writeJSON(w, http.StatusOK, records)
}

// GetTasks handles GET /tasks.
func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Tasks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []models.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetDial handles GET /static/img/{name}_{metric}.svg, rendering one
// person's recovery or sleep dial.
func (h *Handler) GetDial(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	metric := vars["metric"]

	scores, err := h.service.Scores(r.Context(), name)
	if err != nil {
		if strings.Contains(err.Error(), "unknown person") {
			writeError(w, r, http.StatusNotFound, "UNKNOWN_PERSON", "no such person: "+name)
			return
		}
		writeServiceError(w, r, err)
		return
	}

	var svg []byte
	switch metric {
	case "recovery":
		svg = dial.Render("Recovery", scores.Recovery, dial.MidpointRecovery)
	case "sleep":
		svg = dial.Render("Sleep", scores.Sleep, dial.MidpointSleep)
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_METRIC", "no such metric: "+metric)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(svg)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "homeboard",
		"version":   "dev",
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates shutdown state, per-source error windows,
// and cache reachability. A source is unhealthy when its error rate within
// the window meets the configured threshold. Any unhealthy source degrades
// the service; shutting-down takes priority over everything.
func (h *Handler) computeHealthStatus() healthResult {
	checks := make(map[string]string)

	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}

	unhealthy := 0
	for _, source := range healthSources {
		checks[source] = "healthy"
		if h.healthConfig == nil || h.healthConfig.DegradedWindow <= 0 || h.healthConfig.DegradedErrorPct <= 0 {
			continue
		}
		errors, total := traffic.ErrorRate(source, h.healthConfig.DegradedWindow)
		if total == 0 {
			continue
		}
		pct := float64(errors) * 100 / float64(total)
		if pct >= float64(h.healthConfig.DegradedErrorPct) {
			checks[source] = "unhealthy"
			unhealthy++
		}
	}

	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	if unhealthy > 0 {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", checks}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

// baseURL reconstructs the scheme://host prefix the client used, so dial
// image URLs resolve from the display's point of view.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// requestLogger returns the correlation-scoped logger from context, falling
// back to the handler's base logger.
func requestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 for upstream failures and logs the
// underlying error at DEBUG level.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch panel data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
