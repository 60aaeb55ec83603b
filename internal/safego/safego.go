// Package safego provides panic-recovering goroutine launchers for fire-and-forget work
// such as audit, activity, and notification writes.
package safego

import "log/slog"

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged rather than crashing the process.
func Go(fn func()) {
	go run(fn)
}

// Spawner schedules work that the caller never waits on. Errors and panics inside
// the scheduled function are the function's own responsibility to log.
type Spawner interface {
	Spawn(fn func())
}

// Async is the production Spawner: every call runs on its own goroutine via Go.
type Async struct{}

// Spawn implements Spawner.
func (Async) Spawn(fn func()) { Go(fn) }

// Inline runs the function on the caller's goroutine. Tests use it so that
// fire-and-forget writes have completed by the time the call under test returns.
type Inline struct{}

// Spawn implements Spawner.
func (Inline) Spawn(fn func()) { run(fn) }

func run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in background goroutine", "panic", r)
		}
	}()
	fn()
}
