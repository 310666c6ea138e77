package main

import (
	"sync"
	"testing"
	"time"
)

// TestWallClockMeasuresFromCreation verifies wall time is milliseconds since the clock was made
func TestWallClockMeasuresFromCreation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c := &WallClock{start: start, now: func() time.Time { return now }}

	if got := c.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime at start = %v, want 0", got)
	}
	now = start.Add(1500 * time.Millisecond)
	if got := c.CurrentTime(); got != 1500 {
		t.Errorf("CurrentTime = %v, want 1500", got)
	}
	now = start.Add(250 * time.Microsecond)
	if got := c.CurrentTime(); got != 0.25 {
		t.Errorf("CurrentTime = %v, want 0.25", got)
	}
}

// TestWallClockReset verifies Reset makes the current instant time zero
func TestWallClockReset(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(3 * time.Second)
	c := &WallClock{start: start, now: func() time.Time { return now }}

	if got := c.CurrentTime(); got != 3000 {
		t.Fatalf("CurrentTime = %v, want 3000", got)
	}
	c.Reset()
	if got := c.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime after Reset = %v, want 0", got)
	}
	now = now.Add(40 * time.Millisecond)
	if got := c.CurrentTime(); got != 40 {
		t.Errorf("CurrentTime = %v, want 40", got)
	}
}

// TestHostClockSetAndRead verifies the host clock returns the last reported time
func TestHostClockSetAndRead(t *testing.T) {
	var c HostClock
	if got := c.CurrentTime(); got != 0 {
		t.Errorf("zero HostClock = %v, want 0", got)
	}
	c.Set(-1000)
	if got := c.CurrentTime(); got != -1000 {
		t.Errorf("CurrentTime = %v, want -1000", got)
	}
	c.Set(12345.678)
	if got := c.CurrentTime(); got != 12345.678 {
		t.Errorf("CurrentTime = %v, want 12345.678", got)
	}
}

// TestHostClockConcurrentAccess exercises Set and CurrentTime from different goroutines
func TestHostClockConcurrentAccess(t *testing.T) {
	var c HostClock
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.Set(float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if v := c.CurrentTime(); v < 0 || v > 999 {
				t.Errorf("torn read %v", v)
				return
			}
		}
	}()
	wg.Wait()
}

// TestSystemClockAfterFunc verifies the default timer fires and can be stopped
func TestSystemClockAfterFunc(t *testing.T) {
	fired := make(chan struct{})
	SystemClock.AfterFunc(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	timer := SystemClock.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	if !timer.Stop() {
		t.Error("Stop on pending timer should return true")
	}
}
