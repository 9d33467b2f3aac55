package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/joingroup/internal/fetch"
	"github.com/stacklok/joingroup/internal/httpclient"
	"github.com/stacklok/joingroup/internal/join"
	"github.com/stacklok/joingroup/internal/records"
	"github.com/stacklok/joingroup/internal/status"
	"github.com/stacklok/joingroup/internal/telemetry"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [kind/id...]",
	Short: "Fetch a batch of records and report once all have arrived",
	Long: `Fetch records from the backend concurrently. The results are printed once every
fetch has finished, in the order they were requested, and a report is saved to the
report directory.

Without arguments the --preset decides what to fetch:
  games    game/1 game/2 game/3
  session  profile/1 entitlement/1 preference/1`,
	RunE: runFetch,
}

const (
	presetGames   = "games"
	presetSession = "session"

	outputTable = "table"
	outputJSON  = "json"
)

var presets = map[string][]records.Ref{
	presetGames: {
		{Kind: records.KindGame, ID: "1"},
		{Kind: records.KindGame, ID: "2"},
		{Kind: records.KindGame, ID: "3"},
	},
	presetSession: {
		{Kind: records.KindProfile, ID: "1"},
		{Kind: records.KindEntitlement, ID: "1"},
		{Kind: records.KindPreference, ID: "1"},
	},
}

func init() {
	fetchCmd.Flags().String("preset", presetGames, "Records to fetch when none are given (games, session)")
	fetchCmd.Flags().Duration("timeout", 0, "How long to wait for the batch, overrides batch.waitTimeout")
	fetchCmd.Flags().String("output", outputTable, "Output format (table, json)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	preset, _ := cmd.Flags().GetString("preset")
	output, _ := cmd.Flags().GetString("output")
	if output != outputTable && output != outputJSON {
		return fmt.Errorf("unsupported output %q, must be %s or %s", output, outputTable, outputJSON)
	}

	refs, err := parseRefs(args, preset)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	timeout := cfg.GetWaitTimeout()
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetDuration("timeout")
		if err := requirePositive("--timeout", timeout); err != nil {
			return err
		}
	}

	tel, shutdownTelemetry, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	joinMetrics, err := telemetry.NewJoinMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create join metrics: %w", err)
	}
	fetchMetrics, err := telemetry.NewFetchMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create fetch metrics: %w", err)
	}

	client := httpclient.NewDefaultClient(cfg.GetClientTimeout(),
		httpclient.WithMaxRetries(cfg.GetMaxRetries()))

	runner := &batchRunner{
		orchestrator: fetch.New(fetch.NewHTTPFetcher(client, cfg.GetBaseURL()),
			fetch.WithMaxInFlight(cfg.GetMaxInFlight()),
			fetch.WithFetchMetrics(fetchMetrics),
			fetch.WithJoinMetrics(joinMetrics),
			fetch.WithTracer(tel.Tracer("github.com/stacklok/joingroup/fetch")),
		),
		reports: status.NewFileReportPersistence(cfg.GetReportDir()),
		timeout: timeout,
		output:  output,
		out:     cmd.OutOrStdout(),
	}

	slog.Debug("Fetching batch", "refs", len(refs), "base_url", cfg.GetBaseURL(), "timeout", timeout)
	return runner.run(ctx, refs)
}

// parseRefs turns "kind/id" arguments into refs, or returns the preset when there are none
func parseRefs(args []string, preset string) ([]records.Ref, error) {
	if len(args) == 0 {
		refs, ok := presets[strings.ToLower(preset)]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q, must be %s or %s", preset, presetGames, presetSession)
		}
		return refs, nil
	}

	refs := make([]records.Ref, 0, len(args))
	var errs []error
	for _, arg := range args {
		ref, err := records.ParseRef(arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		refs = append(refs, ref)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return refs, nil
}

// batchRunner fetches one batch with a serial main queue standing in for the UI thread.
// Completion and timeout are both handled on that queue, whichever comes first.
type batchRunner struct {
	orchestrator *fetch.Orchestrator
	reports      status.ReportPersistence
	timeout      time.Duration
	output       string
	out          io.Writer
}

func (r *batchRunner) run(ctx context.Context, refs []records.Ref) error {
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()
	queueCtx, stopQueue := context.WithCancel(ctx)
	defer stopQueue()

	mainQueue := join.NewSerialQueue("main")
	started := time.Now()

	var result error
	group := r.orchestrator.Start(fetchCtx, refs, mainQueue, func(batch *fetch.Batch) {
		defer stopQueue()
		result = r.complete(ctx, batch)
	})

	go func() {
		if group.Wait(r.timeout) != join.WaitTimedOut {
			return
		}
		mainQueue.Dispatch(func() {
			defer stopQueue()
			cancelFetch()
			batchID := strings.TrimPrefix(group.Name(), "batch-")
			result = r.timedOut(ctx, batchID, started, len(refs))
		})
	}()

	if err := mainQueue.Run(queueCtx); err != nil {
		return err
	}
	if result == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return result
}

func (r *batchRunner) complete(ctx context.Context, batch *fetch.Batch) error {
	report := status.NewBatchReport(batch)
	if err := r.render(batch); err != nil {
		return err
	}
	if err := r.reports.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d fetches failed: %s", report.Failed, report.Total, report.Message)
	}
	return nil
}

func (r *batchRunner) timedOut(ctx context.Context, batchID string, started time.Time, total int) error {
	report := status.NewTimedOutReport(batchID, started, total, r.timeout)
	slog.Warn("Fetch batch timed out", "batch_id", batchID, "timeout", r.timeout)

	err := fmt.Errorf("batch %s: %s", batchID, report.Message)
	if saveErr := r.reports.SaveReport(ctx, report); saveErr != nil {
		return errors.Join(err, fmt.Errorf("failed to save report: %w", saveErr))
	}
	return err
}

func (r *batchRunner) render(batch *fetch.Batch) error {
	if r.output == outputJSON {
		return renderBatchJSON(r.out, batch)
	}
	return renderBatchTable(r.out, batch)
}

func renderBatchJSON(w io.Writer, batch *fetch.Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status.NewBatchReport(batch)); err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	return nil
}

func renderBatchTable(w io.Writer, batch *fetch.Batch) error {
	table := tablewriter.NewWriter(w)
	table.Header("Record", "Value", "Duration", "Error")
	for _, r := range batch.Results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		if err := table.Append([]string{
			r.Ref.String(),
			r.Record.Value,
			r.Duration.Round(time.Millisecond).String(),
			errText,
		}); err != nil {
			return fmt.Errorf("failed to render batch: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render batch: %w", err)
	}
	return nil
}
