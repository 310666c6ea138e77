package main

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// GameClock provides the session-relative gameplay time in milliseconds
type GameClock interface {
	CurrentTime() float64
}

// Timer represents a pending one-shot callback that can be stopped
type Timer interface {
	Stop() bool
}

// TimerClock schedules callbacks on a background timer, independent of the gameplay clock.
// Tests swap it for a manual implementation.
type TimerClock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the default TimerClock backed by the standard library
var SystemClock TimerClock = systemClock{}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// resettableClock is implemented by clocks that restart at zero when gameplay begins
type resettableClock interface {
	Reset()
}

// WallClock measures gameplay time from the moment it was created or last Reset
type WallClock struct {
	mu    sync.Mutex
	start time.Time
	now   func() time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now(), now: time.Now}
}

// Reset makes the current instant time zero
func (c *WallClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
}

func (c *WallClock) CurrentTime() float64 {
	c.mu.Lock()
	start := c.start
	c.mu.Unlock()
	return float64(c.now().Sub(start)) / float64(time.Millisecond)
}

// HostClock holds the latest time reported by the game host.
// Set is called from the bridge goroutine and CurrentTime from the update loop.
type HostClock struct {
	bits atomic.Uint64
}

func (c *HostClock) Set(ms float64) {
	c.bits.Store(math.Float64bits(ms))
}

func (c *HostClock) CurrentTime() float64 {
	return math.Float64frombits(c.bits.Load())
}
