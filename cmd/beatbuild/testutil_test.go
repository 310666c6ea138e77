package main

import (
	"sync"
	"time"
)

// manualClock is a TimerClock whose timers only fire when the test says so
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs every pending timer, like a real clock reaching their deadlines
func (c *manualClock) Fire() int {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// ForceFire runs every callback regardless of state, simulating a timer that fires late
func (c *manualClock) ForceFire() {
	c.mu.Lock()
	timers := append([]*manualTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range timers {
		t.f()
	}
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recordedInput is one command received by recordingSink
type recordedInput struct {
	kind   string // "move" or "press"
	pos    Vec2
	button MouseButton
	down   bool
}

// recordingSink keeps every input command in order
type recordingSink struct {
	mu     sync.Mutex
	inputs []recordedInput
	locks  []bool
}

func (s *recordingSink) MoveTo(pos Vec2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, recordedInput{kind: "move", pos: pos})
}

func (s *recordingSink) Press(button MouseButton, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, recordedInput{kind: "press", button: button, down: down})
}

func (s *recordingSink) LockUserCursor(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, locked)
}

func (s *recordingSink) Inputs() []recordedInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedInput(nil), s.inputs...)
}

func (s *recordingSink) Locks() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.locks...)
}

// stopSwitch is a StopFlag the test flips by hand
type stopSwitch struct {
	expired bool
}

func (s *stopSwitch) Expired() bool { return s.expired }

// threeFrames is the path used throughout the follower tests
func threeFrames() []ReplayFrame {
	return []ReplayFrame{
		{Time: 0, Position: Vec2{X: 0, Y: 0}},
		{Time: 10, Position: Vec2{X: 5, Y: 5}},
		{Time: 20, Position: Vec2{X: 10, Y: 10}},
	}
}

// waitFor polls cond until it holds or the timeout passes
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
