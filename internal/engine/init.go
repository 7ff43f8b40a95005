package engine

import (
	"sync"
	"sync/atomic"
)

// Guard is a one-time construction barrier. The first Get runs build;
// every later or concurrent Get waits for that build and observes the same
// engine and error, never triggering a second build.
type Guard struct {
	once   sync.Once
	engine atomic.Pointer[Engine]
	err    error
}

// Get returns the shared engine, building it on first call.
func (g *Guard) Get(build func() (*Engine, error)) (*Engine, error) {
	g.once.Do(func() {
		e, err := build()
		g.err = err
		if err == nil {
			g.engine.Store(e)
		}
	})
	return g.engine.Load(), g.err
}

// Ready reports whether the guarded engine was built successfully. Safe to
// call while a build is still in flight.
func (g *Guard) Ready() bool { return g.engine.Load().Ready() }

var processGuard Guard

// Initialize builds the process-wide engine exactly once and returns it to
// every caller. Subsequent calls, even with a different build function,
// return the first outcome unchanged.
func Initialize(build func() (*Engine, error)) (*Engine, error) {
	return processGuard.Get(build)
}
