// Package app provides lifecycle management for the mock backend server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/stacklok/joingroup/internal/backend"
	"github.com/stacklok/joingroup/internal/config"
)

// BackendApp encapsulates the components needed to run the mock backend.
// It provides lifecycle management and graceful shutdown.
type BackendApp struct {
	config     *config.Config
	catalog    *backend.Catalog
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}

	cancelFunc context.CancelFunc
}

// Start listens on the configured address and serves until Stop is called.
// It blocks until the server stops or fails.
func (app *BackendApp) Start() error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		close(app.ready)
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}

	app.mu.Lock()
	app.listener = ln
	app.mu.Unlock()
	close(app.ready)

	slog.Info("Backend listening", "address", ln.Addr().String())
	if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the server, waiting at most timeout for in-flight requests
func (app *BackendApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// Ready is closed once Start has either bound its listener or failed to
func (app *BackendApp) Ready() <-chan struct{} {
	return app.ready
}

// Addr returns the bound address, or nil before Start has listened
func (app *BackendApp) Addr() net.Addr {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener == nil {
		return nil
	}
	return app.listener.Addr()
}

// GetConfig returns the application configuration
func (app *BackendApp) GetConfig() *config.Config {
	return app.config
}

// GetCatalog returns the records the backend serves
func (app *BackendApp) GetCatalog() *backend.Catalog {
	return app.catalog
}

// GetHTTPServer returns the HTTP server
func (app *BackendApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
