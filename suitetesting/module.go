package suitetesting

import (
	"sync"
	"sync/atomic"
	"testing"
)

// A Module holds one-time setup shared by all tests of a suite. Tests call
// Initialize from their setup code; the setup function runs exactly once no
// matter how many tests call Initialize, concurrently or not.
type Module struct {
	once        sync.Once
	setup       func()
	initialized atomic.Bool
}

// NewModule returns a Module running setup on first initialization. Setup
// should not fail; if it panics the module still counts as initialized and
// setup is not retried.
func NewModule(setup func()) *Module {
	return &Module{setup: setup}
}

// Initialize runs the module setup if it has not run yet. Callers arriving
// while setup is in progress wait until it completes.
func (m *Module) Initialize(tb testing.TB) {
	tb.Helper()
	m.once.Do(func() {
		defer m.initialized.Store(true)
		if m.setup != nil {
			m.setup()
		}
	})
}

func (m *Module) Initialized() bool {
	return m.initialized.Load()
}
