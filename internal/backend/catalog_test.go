package backend

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/joingroup/internal/records"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()

	games := c.List(records.KindGame)
	require.Len(t, games, 3)
	assert.Equal(t, "Pacman", games[0].Value)
	assert.Equal(t, "Donkey Kong", games[1].Value)
	assert.Equal(t, "Space Invaders", games[2].Value)

	for _, kind := range []records.Kind{records.KindProfile, records.KindEntitlement, records.KindPreference} {
		_, ok := c.Get(records.Ref{Kind: kind, ID: "1"})
		assert.True(t, ok, "missing %s/1", kind)
	}

	_, ok := c.Get(records.Ref{Kind: records.KindGame, ID: "4"})
	assert.False(t, ok)
}

func TestCatalog_Put(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		record  records.Record
		errorIs error
	}{
		{name: "valid", record: records.Record{Kind: records.KindGame, ID: "4", Value: "Galaga"}},
		{name: "unknown kind", record: records.Record{Kind: "console", ID: "1"}, errorIs: records.ErrUnknownKind},
		{name: "blank id", record: records.Record{Kind: records.KindGame, ID: " "}, errorIs: records.ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewCatalog()
			err := c.Put(tt.record)
			if tt.errorIs != nil {
				require.ErrorIs(t, err, tt.errorIs)
				return
			}
			require.NoError(t, err)
			got, ok := c.Get(tt.record.Ref())
			require.True(t, ok)
			assert.Equal(t, tt.record, got)
		})
	}
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Put(records.Record{Kind: records.KindGame, ID: string(rune('a' + i%26)), Value: "x"}))
		}()
		go func() {
			defer wg.Done()
			_ = c.List(records.KindGame)
		}()
	}
	wg.Wait()
	assert.Len(t, c.List(records.KindGame), 26)
}
