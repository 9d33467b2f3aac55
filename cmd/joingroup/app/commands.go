// Package app provides the commands of the joingroup CLI.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"

	"github.com/stacklok/joingroup/internal/config"
	"github.com/stacklok/joingroup/internal/telemetry"
	"github.com/stacklok/joingroup/internal/versions"
)

// LogLevel is the level of the default logger. --debug lowers it to debug.
var LogLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:               "joingroup",
	DisableAutoGenTag: true,
	Short:             "Join groups of concurrent work and act once they finish",
	Long: `joingroup fans work out to goroutines and runs a callback once every unit has
finished. It ships a mock arcade backend (serve) and clients that fetch records in
batches (fetch), wait on a slow duplicate check (send), and open documents (open).`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if viper.GetBool("debug") {
			LogLevel.Set(slog.LevelDebug)
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	bindFlags(rootCmd.PersistentFlags(), "debug", "config")

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// bindFlags binds each named flag of fs to the viper key of the same name
func bindFlags(fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := viper.BindPFlag(name, fs.Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}
}

// loadConfig loads the file named by --config, or the defaults when none is given
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return config.LoadConfig()
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, nil
}

// newTelemetry sets up telemetry from cfg. The returned shutdown func flushes the
// providers and is safe to defer.
func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, func(), error) {
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}
	return tel, shutdown, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("error retrieving format flag: %w", err)
		}

		switch format {
		case "json":
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("error formatting version info as JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
		case "yaml":
			output, err := yaml.Marshal(info)
			if err != nil {
				return fmt.Errorf("error formatting version info as YAML: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(output))
		case "":
			slog.Info("joingroup version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
		default:
			return fmt.Errorf("unsupported format %q, must be json or yaml", format)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json, yaml)")
}

// requirePositive rejects wait bounds that would time out before any work could finish
func requirePositive(flag string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", flag, d)
	}
	return nil
}
