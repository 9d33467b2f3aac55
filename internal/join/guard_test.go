package join

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Release(t *testing.T) {
	t.Parallel()

	t.Run("releases exactly once", func(t *testing.T) {
		t.Parallel()

		g := New()
		guard := g.Acquire()
		assert.Equal(t, 1, g.Pending())

		guard.Release()
		guard.Release()
		assert.Equal(t, 0, g.Pending())
		assert.Equal(t, uint64(1), g.Generation())
	})

	t.Run("early release then deferred release", func(t *testing.T) {
		t.Parallel()

		g := New()
		other := g.Acquire()

		func() {
			guard := g.Acquire()
			defer guard.Release()

			guard.Release()
			assert.Equal(t, 1, g.Pending())
		}()

		assert.Equal(t, 1, g.Pending())
		other.Release()
		assert.Equal(t, 0, g.Pending())
	})

	t.Run("released on early error return", func(t *testing.T) {
		t.Parallel()

		g := New()
		errFailed := errors.New("failed")
		work := func() error {
			guard := g.Acquire()
			defer guard.Release()
			return errFailed
		}

		require.ErrorIs(t, work(), errFailed)
		assert.Equal(t, 0, g.Pending())
	})
}

func TestGroup_Go(t *testing.T) {
	t.Parallel()

	t.Run("releases after fn returns", func(t *testing.T) {
		t.Parallel()

		g := New()
		release := make(chan struct{})
		g.Go(func() { <-release })
		assert.Equal(t, 1, g.Pending())

		close(release)
		assert.Equal(t, WaitCompleted, g.Wait(time.Second))
		assert.Equal(t, 0, g.Pending())
	})
}
