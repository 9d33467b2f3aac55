package backend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/joingroup/internal/records"
)

// MaxDuplicateCheckDelay caps the delay a client may request from /payments/duplicate
const MaxDuplicateCheckDelay = time.Minute

// RouterOption configures the backend router
type RouterOption func(*routerConfig)

// routerConfig holds the router configuration
type routerConfig struct {
	middlewares    []func(http.Handler) http.Handler
	latency        time.Duration
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the router
func WithMiddlewares(mw ...func(http.Handler) http.Handler) RouterOption {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithLatency delays every record response by d
func WithLatency(d time.Duration) RouterOption {
	return func(cfg *routerConfig) {
		cfg.latency = d
	}
}

// WithMetricsHandler mounts h at /metrics
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(cfg *routerConfig) {
		cfg.metricsHandler = h
	}
}

// NewRouter creates the backend HTTP router
func NewRouter(catalog *Catalog, opts ...RouterOption) *chi.Mux {
	cfg := &routerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/hi", helloHandler)
	r.Get("/health", healthHandler)
	r.Get("/payments/duplicate", duplicateHandler)
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	h := &recordHandler{catalog: catalog}
	r.Group(func(r chi.Router) {
		if cfg.latency > 0 {
			r.Use(latencyMiddleware(cfg.latency))
		}
		r.Get("/{kind}", h.list)
		r.Get("/{kind}/{id}", h.get)
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type recordHandler struct {
	catalog *Catalog
}

func (h *recordHandler) list(w http.ResponseWriter, r *http.Request) {
	kind, err := records.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSONResponse(w, h.catalog.List(kind), http.StatusOK)
}

func (h *recordHandler) get(w http.ResponseWriter, r *http.Request) {
	kind, err := records.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}

	ref := records.Ref{Kind: kind, ID: chi.URLParam(r, "id")}
	record, ok := h.catalog.Get(ref)
	if !ok {
		writeErrorResponse(w, ref.String()+" not found", http.StatusNotFound)
		return
	}
	writeJSONResponse(w, record, http.StatusOK)
}

func helloHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello World"))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// duplicateHandler answers the duplicate payment check after the requested delay
func duplicateHandler(w http.ResponseWriter, r *http.Request) {
	delay, err := parseDelay(r.URL.Query().Get("delay"))
	if err != nil {
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}

	writeJSONResponse(w, map[string]bool{"duplicate": false}, http.StatusOK)
}

// parseDelay accepts a Go duration ("1500ms") or a number of seconds ("1.5")
func parseDelay(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	delay, err := time.ParseDuration(raw)
	if err != nil {
		seconds, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return 0, errInvalidDelay(raw)
		}
		delay = time.Duration(seconds * float64(time.Second))
	}
	if delay < 0 || delay > MaxDuplicateCheckDelay {
		return 0, errInvalidDelay(raw)
	}
	return delay, nil
}

func errInvalidDelay(raw string) error {
	return fmt.Errorf("invalid delay %q, must be a duration between 0 and %s", raw, MaxDuplicateCheckDelay)
}

func latencyMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				next.ServeHTTP(w, r)
			case <-r.Context().Done():
			}
		})
	}
}

// writeJSONResponse writes a JSON response with the given data
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]string{"error": message}, statusCode)
}
