// Package status provides batch report tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/stacklok/joingroup/internal/versions"
)

//go:generate mockgen -destination=mocks/mock_report_persistence.go -package=mocks -source=persistence.go ReportPersistence

const (
	// ReportFileName is the name of the report file inside each batch directory
	ReportFileName = "report.json"

	// LockFileName guards the report directory across processes
	LockFileName = ".lock"

	lockRetryDelay = 10 * time.Millisecond
)

// ReportPersistence defines the interface for batch report persistence
type ReportPersistence interface {
	// SaveReport saves the report for its batch
	SaveReport(ctx context.Context, report *BatchReport) error

	// LoadReport loads the report of a batch. Returns nil and no error if there is none.
	LoadReport(ctx context.Context, batchID string) (*BatchReport, error)

	// LoadAllReports loads every stored report keyed by batch ID
	LoadAllReports(ctx context.Context) (map[string]*BatchReport, error)
}

// fileReportPersistence implements ReportPersistence using local filesystem
type fileReportPersistence struct {
	basePath string
}

// NewFileReportPersistence creates a new file-based report persistence.
// basePath is the base directory where per-batch report files will be stored.
func NewFileReportPersistence(basePath string) ReportPersistence {
	return &fileReportPersistence{
		basePath: basePath,
	}
}

// SaveReport writes the report to a JSON file in a batch-specific directory
func (f *fileReportPersistence) SaveReport(ctx context.Context, report *BatchReport) error {
	if report == nil || report.BatchID == "" {
		return fmt.Errorf("report with a batch ID is required")
	}
	if err := validateBatchID(report.BatchID); err != nil {
		return err
	}

	batchDir := filepath.Join(f.basePath, report.BatchID)
	if err := os.MkdirAll(batchDir, 0750); err != nil {
		return fmt.Errorf("failed to create report directory for batch '%s': %w", report.BatchID, err)
	}

	unlock, err := f.lock(ctx, false)
	if err != nil {
		return err
	}
	defer unlock()

	filePath := filepath.Join(batchDir, ReportFileName)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report for batch '%s': %w", report.BatchID, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary report file for batch '%s': %w", report.BatchID, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file for batch '%s': %w", report.BatchID, err)
	}

	return nil
}

// LoadReport loads the report of a batch
func (f *fileReportPersistence) LoadReport(ctx context.Context, batchID string) (*BatchReport, error) {
	if err := validateBatchID(batchID); err != nil {
		return nil, err
	}
	if _, err := os.Stat(f.basePath); os.IsNotExist(err) {
		return nil, nil
	}

	unlock, err := f.lock(ctx, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return f.readReport(batchID)
}

// LoadAllReports loads every stored report
func (f *fileReportPersistence) LoadAllReports(ctx context.Context) (map[string]*BatchReport, error) {
	result := make(map[string]*BatchReport)

	if _, err := os.Stat(f.basePath); os.IsNotExist(err) {
		return result, nil
	}

	unlock, err := f.lock(ctx, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		report, err := f.readReport(entry.Name())
		if err != nil {
			// Keep partial results when a single report is unreadable
			slog.Warn("Skipping unreadable batch report", "batch_id", entry.Name(), "error", err)
			continue
		}
		if report != nil {
			result[entry.Name()] = report
		}
	}

	return result, nil
}

// validateBatchID accepts only a single name that stays inside the report directory
func validateBatchID(batchID string) error {
	if !filepath.IsLocal(batchID) || filepath.Base(batchID) != batchID {
		return fmt.Errorf("invalid batch ID '%s'", batchID)
	}
	return nil
}

func (f *fileReportPersistence) readReport(batchID string) (*BatchReport, error) {
	filePath := filepath.Join(f.basePath, batchID, ReportFileName)

	// #nosec G304 -- filePath is built from the configured base path and a directory entry
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report file for batch '%s': %w", batchID, err)
	}

	var report BatchReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report for batch '%s': %w", batchID, err)
	}
	if versions.IsNewerThanRunning(report.Version) {
		slog.Warn("Batch report was written by a newer joingroup, fields may be missing",
			"batch_id", batchID,
			"report_version", report.Version)
	}
	return &report, nil
}

// lock takes the directory lock, shared for readers and exclusive for writers
func (f *fileReportPersistence) lock(ctx context.Context, shared bool) (func(), error) {
	fileLock := flock.New(filepath.Join(f.basePath, LockFileName))

	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = fileLock.TryRLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fileLock.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock report directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock report directory: %s", f.basePath)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			slog.Warn("Failed to unlock report directory", "path", f.basePath, "error", err)
		}
	}, nil
}
