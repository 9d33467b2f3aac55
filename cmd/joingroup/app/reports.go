package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/stacklok/joingroup/internal/status"
)

var reportsCmd = &cobra.Command{
	Use:   "reports [batch-id]",
	Short: "List saved fetch batch reports",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReports,
}

func init() {
	reportsCmd.Flags().String("output", outputTable, "Output format (table, json, yaml)")
}

func runReports(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	persistence := status.NewFileReportPersistence(cfg.GetReportDir())

	var reports []*status.BatchReport
	if len(args) == 1 {
		report, err := persistence.LoadReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("no report for batch %s", args[0])
		}
		reports = append(reports, report)
	} else {
		all, err := persistence.LoadAllReports(cmd.Context())
		if err != nil {
			return err
		}
		reports = sortReports(all)
	}

	return writeReports(cmd.OutOrStdout(), reports, output)
}

// sortReports orders reports oldest first
func sortReports(all map[string]*status.BatchReport) []*status.BatchReport {
	reports := make([]*status.BatchReport, 0, len(all))
	for _, r := range all {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Started.Equal(reports[j].Started) {
			return reports[i].BatchID < reports[j].BatchID
		}
		return reports[i].Started.Before(reports[j].Started)
	})
	return reports
}

func writeReports(w io.Writer, reports []*status.BatchReport, output string) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		data, err := yaml.Marshal(reports)
		if err != nil {
			return fmt.Errorf("failed to encode reports: %w", err)
		}
		_, err = w.Write(data)
		return err
	case outputTable:
	default:
		return fmt.Errorf("unsupported output %q, must be table, json or yaml", output)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Batch", "Phase", "Started", "Total", "Failed", "Message")
	for _, r := range reports {
		if err := table.Append([]string{
			r.BatchID,
			string(r.Phase),
			r.Started.Format(time.RFC3339),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Failed),
			r.Message,
		}); err != nil {
			return fmt.Errorf("failed to render reports: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render reports: %w", err)
	}
	return nil
}
