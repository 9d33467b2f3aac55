package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/joingroup/internal/status"
)

func TestSortReports(t *testing.T) {
	t.Parallel()

	now := time.Now()
	all := map[string]*status.BatchReport{
		"c": {BatchID: "c", Started: now.Add(time.Minute)},
		"b": {BatchID: "b", Started: now},
		"a": {BatchID: "a", Started: now},
	}

	sorted := sortReports(all)
	ids := make([]string, 0, len(sorted))
	for _, r := range sorted {
		ids = append(ids, r.BatchID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestWriteReports(t *testing.T) {
	t.Parallel()

	reports := []*status.BatchReport{{
		BatchID: "batch-1",
		Phase:   status.BatchPhaseTimedOut,
		Started: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Total:   3,
		Message: "batch did not complete within 10s",
	}}

	tests := []struct {
		name          string
		output        string
		expected      []string
		errorContains string
	}{
		{
			name:     "table",
			output:   outputTable,
			expected: []string{"batch-1", "TimedOut", "2024-05-01T12:00:00Z"},
		},
		{
			name:     "json",
			output:   outputJSON,
			expected: []string{`"batchId": "batch-1"`, `"phase": "TimedOut"`},
		},
		{
			name:     "yaml",
			output:   "yaml",
			expected: []string{"batchId: batch-1", "phase: TimedOut"},
		},
		{
			name:          "unsupported",
			output:        "xml",
			errorContains: "unsupported output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			err := writeReports(&out, reports, tt.output)
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.expected {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}
