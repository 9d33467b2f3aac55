package join

import (
	"log/slog"
	"sync"
)

// Guard holds one pending slot in a Group. Release gives it back exactly once,
// no matter how many times it is called, so it is safe to combine an early
// Release with a deferred one.
type Guard struct {
	group *Group
	once  sync.Once
}

// Acquire enters the group and returns a guard for the new slot
func (g *Group) Acquire() *Guard {
	g.Enter()
	return &Guard{group: g}
}

// Release leaves the group if it has not been released yet
func (gd *Guard) Release() {
	gd.once.Do(func() {
		if err := gd.group.Leave(); err != nil {
			// A guard always pairs with its own Enter, so this means someone else
			// called Leave without entering.
			slog.Error("Guard release found an unbalanced group", "group", gd.group.name, "error", err)
		}
	})
}

// Go runs fn on a new goroutine while holding a slot in the group. The slot is
// released when fn returns or panics.
func (g *Group) Go(fn func()) {
	guard := g.Acquire()
	go func() {
		defer guard.Release()
		fn()
	}()
}
