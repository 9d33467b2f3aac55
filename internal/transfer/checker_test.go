package transfer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/joingroup/internal/httpclient"
)

func TestHTTPChecker_HasDuplicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		expected      bool
		errorIs       error
		errorContains string
	}{
		{name: "not a duplicate", status: http.StatusOK, body: `{"duplicate":false}`},
		{name: "duplicate", status: http.StatusOK, body: `{"duplicate":true}`, expected: true},
		{name: "missing field", status: http.StatusOK, body: `{}`, errorIs: ErrMalformedResponse},
		{name: "field is not a bool", status: http.StatusOK, body: `{"duplicate":"no"}`, errorIs: ErrMalformedResponse},
		{name: "backend error", status: http.StatusBadRequest, body: `{}`, errorContains: "HTTP 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotDelay string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/payments/duplicate", r.URL.Path)
				gotDelay = r.URL.Query().Get("delay")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			server.Config.SetKeepAlivesEnabled(false)
			defer server.Close()

			checker := NewHTTPChecker(httpclient.NewDefaultClient(5*time.Second), server.URL, 2*time.Second)
			duplicate, err := checker.HasDuplicate(context.Background())
			assert.Equal(t, "2s", gotDelay)

			switch {
			case tt.errorIs != nil:
				require.ErrorIs(t, err, tt.errorIs)
			case tt.errorContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expected, duplicate)
			}
		})
	}
}
