package status

import (
	"time"

	"github.com/stacklok/joingroup/internal/fetch"
	"github.com/stacklok/joingroup/internal/versions"
)

// BatchPhase represents how a fetch batch ended
type BatchPhase string

const (
	// BatchPhaseComplete means every fetch in the batch succeeded
	BatchPhaseComplete BatchPhase = "Complete"

	// BatchPhaseFailed means the batch finished with at least one failed fetch
	BatchPhaseFailed BatchPhase = "Failed"

	// BatchPhaseTimedOut means the caller stopped waiting before the batch finished
	BatchPhaseTimedOut BatchPhase = "TimedOut"
)

// BatchReport is the persisted summary of one fetch batch
type BatchReport struct {
	// BatchID identifies the batch
	BatchID string `json:"batchId"`

	// Phase is how the batch ended
	Phase BatchPhase `json:"phase"`

	// Version is the joingroup version that wrote the report
	Version string `json:"version,omitempty"`

	// Started is when the first fetch was launched
	Started time.Time `json:"started"`

	// Finished is when the last fetch completed, nil for timed out batches
	Finished *time.Time `json:"finished,omitempty"`

	// Total is the number of fetches in the batch
	Total int `json:"total"`

	// Failed is the number of fetches that ended in an error
	Failed int `json:"failed"`

	// Message provides additional information, such as the first error
	Message string `json:"message,omitempty"`

	// Entries holds one line per fetch, in request order
	Entries []ReportEntry `json:"entries,omitempty"`
}

// ReportEntry is the outcome of a single fetch
type ReportEntry struct {
	Ref        string `json:"ref"`
	Value      string `json:"value,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// NewBatchReport summarises a completed batch
func NewBatchReport(batch *fetch.Batch) *BatchReport {
	finished := batch.Finished
	report := &BatchReport{
		BatchID:  batch.ID,
		Phase:    BatchPhaseComplete,
		Version:  versions.GetVersionInfo().Version,
		Started:  batch.Started,
		Finished: &finished,
		Total:    len(batch.Results),
		Entries:  make([]ReportEntry, 0, len(batch.Results)),
	}

	for _, r := range batch.Results {
		entry := ReportEntry{
			Ref:        r.Ref.String(),
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
			report.Failed++
			if report.Message == "" {
				report.Message = r.Err.Error()
			}
		} else {
			entry.Value = r.Record.Value
		}
		report.Entries = append(report.Entries, entry)
	}

	if report.Failed > 0 {
		report.Phase = BatchPhaseFailed
	}
	return report
}

// NewTimedOutReport records a batch the caller gave up on
func NewTimedOutReport(batchID string, started time.Time, total int, timeout time.Duration) *BatchReport {
	return &BatchReport{
		BatchID: batchID,
		Phase:   BatchPhaseTimedOut,
		Version: versions.GetVersionInfo().Version,
		Started: started,
		Total:   total,
		Message: "batch did not complete within " + timeout.String(),
	}
}
