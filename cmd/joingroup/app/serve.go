package app

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	backendapp "github.com/stacklok/joingroup/internal/app"
	"github.com/stacklok/joingroup/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock arcade backend",
	Long: `Start the mock arcade backend that the fetch and send commands talk to.

It serves games, profiles, entitlements and preferences as JSON, plus a slow
duplicate payment check. Extra records and an artificial latency can be set in
the configuration file.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout   = 30 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (default "+config.DefaultAddress+")")
	bindFlags(serveCmd.Flags(), "address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	address := cfg.GetAddress()
	if override := viper.GetString("address"); override != "" {
		address = override
	}

	tel, shutdownTelemetry, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	backend, err := backendapp.NewBackendApp(ctx,
		backendapp.WithConfig(cfg),
		backendapp.WithAddress(address),
		backendapp.WithMeterProvider(tel.MeterProvider()),
		backendapp.WithTracerProvider(tel.TracerProvider()),
		backendapp.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return err
	}

	startErr := make(chan error, 1)
	go func() {
		startErr <- backend.Start()
	}()

	select {
	case err := <-startErr:
		return err
	case <-ctx.Done():
	}

	if err := backend.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-startErr
}
