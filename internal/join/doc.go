// Package join provides a completion-counting join coordinator for fan-out/fan-in work.
//
// A Group tracks a dynamic number of outstanding asynchronous operations. Callers
// register each operation with Enter before starting it and report its completion
// with Leave. When the outstanding count returns to zero the batch is drained: every
// callback registered with Notify for that batch is dispatched onto the Executor it
// was registered with, and any goroutine blocked in Wait is released.
//
// # Batches
//
// A Group may be reused. Each transition of the pending count from zero to one
// starts a new batch; callbacks registered during a batch fire once, at that batch's
// drain, and are then discarded. A callback registered while nothing is pending is
// dispatched immediately, but still asynchronously through its Executor.
//
// # Balancing Enter and Leave
//
// Every Enter must be matched by exactly one Leave on every exit path, including
// error and cancellation paths. Prefer Acquire/Release or Go over calling Enter and
// Leave by hand:
//
//	g := join.New(join.WithName("profile-load"))
//	for _, ref := range refs {
//		guard := g.Acquire()
//		go func() {
//			defer guard.Release()
//			fetch(ctx, ref)
//		}()
//	}
//	g.Notify(mainQueue, func() { render() })
//
// A Leave without a matching Enter is a programming error. It is returned as a
// *ProtocolViolation, logged at error level, and never decrements the count.
//
// # Executors
//
// An Executor names where a callback runs. Background runs each callback on its own
// goroutine; SerialQueue runs callbacks one at a time, in order, on a single loop
// goroutine, which is how a UI-owning main loop behaves.
//
// # Waiting
//
// Wait and WaitContext block until the current batch drains. They must not be called
// from the only goroutine able to deliver the outstanding Leave calls, nor from a
// SerialQueue callback when the completion is dispatched onto that same queue. This is
// a caller obligation; the Group does not detect it.
package join
