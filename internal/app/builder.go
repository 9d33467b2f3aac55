package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/joingroup/internal/backend"
	"github.com/stacklok/joingroup/internal/config"
	"github.com/stacklok/joingroup/internal/telemetry"
)

const (
	// Duplicate checks may be asked to take up to backend.MaxDuplicateCheckDelay
	defaultRequestTimeout = backend.MaxDuplicateCheckDelay + 10*time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = defaultRequestTimeout + 5*time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// BackendAppOption configures the backend app builder
type BackendAppOption func(*backendAppConfig) error

// backendAppConfig collects the options used to build a BackendApp
type backendAppConfig struct {
	config  *config.Config
	catalog *backend.Catalog

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...BackendAppOption) (*backendAppConfig, error) {
	cfg := &backendAppConfig{
		address:        config.DefaultAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}

	return cfg, nil
}

// NewBackendApp builds the backend from the given options
func NewBackendApp(ctx context.Context, opts ...BackendAppOption) (*BackendApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.catalog == nil {
		cfg.catalog, err = BuildCatalog(cfg.config)
		if err != nil {
			return nil, err
		}
	}

	httpServer, err := buildHTTPServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Stop cancels the base context so slow handlers such as the duplicate check return early
	appCtx, cancel := context.WithCancel(ctx)
	httpServer.BaseContext = func(net.Listener) context.Context { return appCtx }

	return &BackendApp{
		config:     cfg.config,
		catalog:    cfg.catalog,
		httpServer: httpServer,
		ready:      make(chan struct{}),
		cancelFunc: cancel,
	}, nil
}

// BuildCatalog returns the stock records plus those configured in backend.catalog
func BuildCatalog(cfg *config.Config) (*backend.Catalog, error) {
	catalog := backend.DefaultCatalog()
	for _, r := range cfg.GetCatalog() {
		if err := catalog.Put(r); err != nil {
			return nil, fmt.Errorf("invalid catalog record %s: %w", r.Ref(), err)
		}
	}
	return catalog, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithCatalog replaces the catalog built from the configuration
func WithCatalog(c *backend.Catalog) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		cfg.catalog = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout sets the per-request timeout enforced by middleware
func WithRequestTimeout(d time.Duration) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", d)
		}
		cfg.requestTimeout = d
		if cfg.writeTimeout <= d {
			cfg.writeTimeout = d + 5*time.Second
		}
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for request spans
func WithTracerProvider(tp trace.TracerProvider) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler mounts a Prometheus scrape handler at /metrics
func WithMetricsHandler(h http.Handler) BackendAppOption {
	return func(cfg *backendAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *backendAppConfig) (*http.Server, error) {
	slog.Debug("Initializing HTTP server")

	middlewares := b.middlewares
	if middlewares == nil {
		middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			backend.LoggingMiddleware,
		}
	}

	// Telemetry goes first so rejected and timed out requests are still observed
	var telemetryMiddlewares []func(http.Handler) http.Handler
	if b.tracerProvider != nil {
		telemetryMiddlewares = append(telemetryMiddlewares, telemetry.TracingMiddleware(b.tracerProvider))
	}
	if b.meterProvider != nil {
		httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
		}
		telemetryMiddlewares = append(telemetryMiddlewares, httpMetrics.Middleware)
		slog.Debug("HTTP metrics middleware enabled")
	}
	middlewares = append(telemetryMiddlewares, middlewares...)

	router := backend.NewRouter(b.catalog,
		backend.WithMiddlewares(middlewares...),
		backend.WithLatency(b.config.GetLatency()),
		backend.WithMetricsHandler(b.metricsHandler),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Debug("HTTP server configured", "address", b.address)
	return server, nil
}
