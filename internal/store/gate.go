package store

import "sync"

// Gate coalesces refetch requests: while a refetch is running, any number of
// further requests collapse into a single pending one.
type Gate struct {
	mu      sync.Mutex
	running bool
	pending bool
}

// Request reports whether the caller should start a refetch now. If one is
// already running, a follow-up is recorded instead.
func (g *Gate) Request() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.pending = true
		return false
	}
	g.running = true
	return true
}

// Done marks the running refetch finished and reports whether exactly one
// more must run. When it returns true the gate stays in the running state.
func (g *Gate) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending {
		g.pending = false
		return true
	}
	g.running = false
	return false
}

// Busy reports whether a refetch is running.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Reset forgets any running or pending refetch.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	g.pending = false
}

// Coalescer runs fn on a background goroutine through a Gate. Trigger and
// Wait may be called from any goroutine, concurrently.
type Coalescer struct {
	mu   sync.Mutex
	gate Gate
	fn   func()
	idle chan struct{} // closed when the current run finishes
}

// NewCoalescer returns a Coalescer for fn.
func NewCoalescer(fn func()) *Coalescer {
	return &Coalescer{fn: fn}
}

// Trigger requests a run of fn.
func (c *Coalescer) Trigger() {
	c.mu.Lock()
	if !c.gate.Request() {
		c.mu.Unlock()
		return
	}
	idle := make(chan struct{})
	c.idle = idle
	c.mu.Unlock()

	go func() {
		for {
			c.fn()
			c.mu.Lock()
			more := c.gate.Done()
			if !more {
				close(idle)
			}
			c.mu.Unlock()
			if !more {
				return
			}
		}
	}()
}

// Wait blocks until no run is in progress.
func (c *Coalescer) Wait() {
	c.mu.Lock()
	if !c.gate.Busy() {
		c.mu.Unlock()
		return
	}
	idle := c.idle
	c.mu.Unlock()
	<-idle
}
