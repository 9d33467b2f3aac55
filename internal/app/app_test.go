package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stacklok/joingroup/internal/config"
	"github.com/stacklok/joingroup/internal/records"
)

// startApp starts app and waits until it is listening
func startApp(t *testing.T, app *BackendApp) <-chan error {
	t.Helper()

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case <-app.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("app did not start listening")
	}
	require.NotNil(t, app.Addr(), "app failed to listen")
	return errChan
}

func stopApp(t *testing.T, app *BackendApp, errChan <-chan error) {
	t.Helper()

	require.NoError(t, app.Stop(5*time.Second))
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

// baseURL returns a loopback URL for app, whatever interface it bound
func baseURL(t *testing.T, app *BackendApp) string {
	t.Helper()
	_, port, err := net.SplitHostPort(app.Addr().String())
	require.NoError(t, err)
	return "http://127.0.0.1:" + port
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // test server URL
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestBackendApp_StartStop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
	}{
		{name: "ephemeral port", address: ":0"},
		{name: "localhost", address: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, err := NewBackendApp(context.Background(), WithAddress(tt.address))
			require.NoError(t, err)

			errChan := startApp(t, app)
			status, body := get(t, baseURL(t, app)+"/hi")
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, "Hello World", body)

			stopApp(t, app, errChan)
		})
	}
}

func TestBackendApp_Start_AddressInUse(t *testing.T) {
	t.Parallel()

	first, err := NewBackendApp(context.Background(), WithAddress("127.0.0.1:0"))
	require.NoError(t, err)
	errChan := startApp(t, first)
	defer stopApp(t, first, errChan)

	second, err := NewBackendApp(context.Background(), WithAddress(first.Addr().String()))
	require.NoError(t, err)

	err = second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
	assert.Nil(t, second.Addr())
}

func TestBackendApp_ServesConfiguredCatalog(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Backend: &config.BackendConfig{
			Catalog: []config.CatalogEntry{{Kind: "game", ID: "4", Value: "Galaga"}},
		},
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	app, err := NewBackendApp(context.Background(),
		WithConfig(cfg),
		WithAddress("127.0.0.1:0"),
		WithMeterProvider(provider),
	)
	require.NoError(t, err)
	assert.Same(t, cfg, app.GetConfig())

	errChan := startApp(t, app)
	defer stopApp(t, app, errChan)

	base := baseURL(t, app)
	status, body := get(t, base+"/game/4")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":"4","name":"Galaga"}`, body)

	status, body = get(t, base+"/game/1")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":"1","name":"Pacman"}`, body)

	status, _ = get(t, base+"/game/9")
	assert.Equal(t, http.StatusNotFound, status)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics, "HTTP metrics should be recorded")
}

func TestBackendApp_StopCancelsSlowRequests(t *testing.T) {
	t.Parallel()

	app, err := NewBackendApp(context.Background(), WithAddress("127.0.0.1:0"))
	require.NoError(t, err)
	errChan := startApp(t, app)

	url := baseURL(t, app) + "/payments/duplicate?delay=50s"
	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.Get(url) //nolint:gosec // test server URL
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	// Give the request time to reach the handler
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	stopApp(t, app, errChan)
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("slow request was not cancelled")
	}
}

func TestBuildCatalog(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Backend: &config.BackendConfig{
			Catalog: []config.CatalogEntry{
				{Kind: "game", ID: "1", Value: "Ms. Pacman"},
				{Kind: "preference", ID: "2", Value: "bike"},
			},
		},
	}

	catalog, err := BuildCatalog(cfg)
	require.NoError(t, err)

	rec, ok := catalog.Get(records.Ref{Kind: records.KindGame, ID: "1"})
	require.True(t, ok)
	assert.Equal(t, "Ms. Pacman", rec.Value, "configured records override stock ones")

	rec, ok = catalog.Get(records.Ref{Kind: records.KindPreference, ID: "2"})
	require.True(t, ok)
	assert.Equal(t, "bike", rec.Value)

	_, ok = catalog.Get(records.Ref{Kind: records.KindGame, ID: "2"})
	assert.True(t, ok, "stock records are kept")
}
