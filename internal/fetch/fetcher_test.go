package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/joingroup/internal/httpclient"
	"github.com/stacklok/joingroup/internal/records"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		ref           records.Ref
		status        int
		body          string
		expected      records.Record
		expectedPath  string
		errorIs       error
		errorContains string
	}{
		{
			name:         "game",
			ref:          records.Ref{Kind: records.KindGame, ID: "2"},
			status:       http.StatusOK,
			body:         `{"id":"2","name":"Donkey Kong"}`,
			expected:     records.Record{Kind: records.KindGame, ID: "2", Value: "Donkey Kong"},
			expectedPath: "/game/2",
		},
		{
			name:          "not found",
			ref:           records.Ref{Kind: records.KindProfile, ID: "9"},
			status:        http.StatusNotFound,
			body:          `{"error":"not found"}`,
			expectedPath:  "/profile/9",
			errorContains: "HTTP 404",
		},
		{
			name:         "malformed payload",
			ref:          records.Ref{Kind: records.KindEntitlement, ID: "1"},
			status:       http.StatusOK,
			body:         `{"id":"1"}`,
			expectedPath: "/entitlement/1",
			errorIs:      records.ErrMalformedRecord,
		},
		{
			name:         "mismatched id",
			ref:          records.Ref{Kind: records.KindPreference, ID: "1"},
			status:       http.StatusOK,
			body:         `{"id":"2","vehicle":"car"}`,
			expectedPath: "/preference/1",
			errorIs:      records.ErrMalformedRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			server.Config.SetKeepAlivesEnabled(false)
			defer server.Close()

			fetcher := NewHTTPFetcher(httpclient.NewDefaultClient(5*time.Second), server.URL+"/")
			rec, err := fetcher.Fetch(context.Background(), tt.ref)
			assert.Equal(t, tt.expectedPath, gotPath)

			switch {
			case tt.errorIs != nil:
				require.ErrorIs(t, err, tt.errorIs)
			case tt.errorContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.True(t, httpclient.IsNotFound(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expected, rec)
			}
		})
	}
}
