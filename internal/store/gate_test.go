package store_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskbin/internal/store"
)

func TestGate(t *testing.T) {
	var g store.Gate

	if !g.Request() {
		t.Fatal("first request should start a refetch")
	}
	for i := 0; i < 5; i++ {
		if g.Request() {
			t.Fatal("requests while running must not start another refetch")
		}
	}
	if !g.Done() {
		t.Fatal("expected exactly one follow-up refetch")
	}
	if !g.Busy() {
		t.Error("gate should stay running for the follow-up")
	}
	if g.Done() {
		t.Error("expected no further refetch")
	}
	if g.Busy() {
		t.Error("gate should be idle")
	}
}

func TestGate_Reset(t *testing.T) {
	var g store.Gate
	g.Request()
	g.Request()
	g.Reset()
	if g.Busy() {
		t.Error("expected idle after reset")
	}
	if !g.Request() {
		t.Error("expected a fresh request to start")
	}
}

func TestCoalescer(t *testing.T) {
	var runs int32
	release := make(chan struct{})
	started := make(chan struct{}, 10)

	c := store.NewCoalescer(func() {
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
	})

	c.Trigger()
	<-started

	// Many triggers while the first run is blocked collapse into one more.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Trigger()
		}()
	}
	wg.Wait()

	close(release)
	c.Wait()

	if got := atomic.LoadInt32(&runs); got != 2 {
		t.Errorf("expected 2 runs, got %d", got)
	}
}

func TestCoalescer_Sequential(t *testing.T) {
	var runs int32
	c := store.NewCoalescer(func() { atomic.AddInt32(&runs, 1) })

	for i := 0; i < 3; i++ {
		c.Trigger()
		c.Wait()
	}
	if got := atomic.LoadInt32(&runs); got != 3 {
		t.Errorf("expected 3 runs, got %d", got)
	}
}

func TestCoalescer_WaitConcurrentWithTrigger(t *testing.T) {
	var runs int32
	c := store.NewCoalescer(func() {
		atomic.AddInt32(&runs, 1)
		time.Sleep(time.Millisecond)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Trigger()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Wait()
			}
		}()
	}
	wg.Wait()
	c.Wait()

	if atomic.LoadInt32(&runs) == 0 {
		t.Error("expected at least one run")
	}
	// Idle again: a new trigger starts a fresh run.
	before := atomic.LoadInt32(&runs)
	c.Trigger()
	c.Wait()
	if got := atomic.LoadInt32(&runs); got != before+1 {
		t.Errorf("expected one more run, got %d after %d", got, before)
	}
}
