package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrDoubleArm       = errors.New("watchdog: already armed")
	ErrNotArmed        = errors.New("watchdog: not armed")
	ErrInvalidDeadline = errors.New("watchdog: deadline must not be negative")
)

// WatchdogState is the lifecycle state of a SessionWatchdog
type WatchdogState int32

const (
	StateIdle WatchdogState = iota
	StateArmed
	StateExpired
)

func (s WatchdogState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// EndReason records what ended the session
type EndReason int

const (
	ReasonNone EndReason = iota
	ReasonTimeout
	ReasonFailed
)

func (r EndReason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonFailed:
		return "failed"
	default:
		return "none"
	}
}

// SessionEnded is published once when the watchdog expires
type SessionEnded struct {
	Reason EndReason
	At     time.Time
}

// SessionEndEffect is the teardown run once on expiry. Failures are logged, never retried.
type SessionEndEffect func() error

// SessionWatchdog is a single-shot deadline for a session. It ends either when the timer
// fires or when Terminate is called; whichever wins the compare-and-set runs the effect.
type SessionWatchdog struct {
	state  atomic.Int32
	clock  TimerClock
	effect SessionEndEffect
	log    *logrus.Entry

	mu    sync.Mutex
	timer Timer
	subs  []chan SessionEnded
	ended SessionEnded

	done       chan struct{}
	effectDone chan struct{}
}

// WatchdogOption customises a watchdog
type WatchdogOption func(*SessionWatchdog)

// WithTimerClock replaces the background timer source
func WithTimerClock(c TimerClock) WatchdogOption {
	return func(w *SessionWatchdog) { w.clock = c }
}

// WithWatchdogLogger sets the log entry used for expiry and effect failures
func WithWatchdogLogger(l *logrus.Entry) WatchdogOption {
	return func(w *SessionWatchdog) { w.log = l }
}

func NewSessionWatchdog(effect SessionEndEffect, opts ...WatchdogOption) *SessionWatchdog {
	w := &SessionWatchdog{
		clock:      SystemClock,
		effect:     effect,
		log:        componentLog("watchdog"),
		done:       make(chan struct{}),
		effectDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Arm starts the countdown. Only valid once, from Idle.
func (w *SessionWatchdog) Arm(deadline time.Duration) error {
	if deadline < 0 {
		return ErrInvalidDeadline
	}
	if !w.state.CompareAndSwap(int32(StateIdle), int32(StateArmed)) {
		return fmt.Errorf("%w (state=%s)", ErrDoubleArm, w.State())
	}

	t := w.clock.AfterFunc(deadline, func() {
		if w.expire(ReasonTimeout) {
			w.log.Infof("[WATCHDOG] Deadline of %s reached, ending session", deadline)
		}
	})

	w.mu.Lock()
	w.timer = t
	w.mu.Unlock()

	// Terminate may have won between the CAS and storing the timer
	if w.State() == StateExpired {
		t.Stop()
	}
	w.log.Debugf("[WATCHDOG] Armed with deadline %s", deadline)
	return nil
}

// Terminate ends the session immediately. It is a no-op once expired.
func (w *SessionWatchdog) Terminate() error {
	switch w.State() {
	case StateIdle:
		return ErrNotArmed
	case StateExpired:
		return nil
	}
	if w.expire(ReasonFailed) {
		w.log.Infof("[WATCHDOG] Session terminated early")
	}
	return nil
}

// expire performs the Armed->Expired transition. Only the winning caller returns true.
func (w *SessionWatchdog) expire(reason EndReason) bool {
	if !w.state.CompareAndSwap(int32(StateArmed), int32(StateExpired)) {
		return false
	}

	ev := SessionEnded{Reason: reason, At: time.Now()}

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.ended = ev
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()

	close(w.done)
	for _, ch := range subs {
		ch <- ev
		close(ch)
	}

	go w.runEffect()
	return true
}

func (w *SessionWatchdog) runEffect() {
	defer close(w.effectDone)
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("[WATCHDOG] Session end effect panicked: %v", r)
		}
	}()
	if w.effect == nil {
		return
	}
	if err := w.effect(); err != nil {
		w.log.WithError(err).Warn("[WATCHDOG] Session end effect failed")
	}
}

// Expired reports whether the session has ended. Safe from any goroutine.
func (w *SessionWatchdog) Expired() bool {
	return w.State() == StateExpired
}

func (w *SessionWatchdog) State() WatchdogState {
	return WatchdogState(w.state.Load())
}

// Reason returns why the session ended, or ReasonNone while it is still running
func (w *SessionWatchdog) Reason() EndReason {
	ev, _ := w.Ended()
	return ev.Reason
}

// Ended returns the end event once the watchdog has expired
func (w *SessionWatchdog) Ended() (SessionEnded, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ended, !w.ended.At.IsZero()
}

// Done is closed when the watchdog expires
func (w *SessionWatchdog) Done() <-chan struct{} {
	return w.done
}

// Subscribe returns a channel that receives the SessionEnded event once and is then closed.
func (w *SessionWatchdog) Subscribe() <-chan SessionEnded {
	ch := make(chan SessionEnded, 1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.State() == StateExpired && !w.ended.At.IsZero() {
		ch <- w.ended
		close(ch)
		return ch
	}
	w.subs = append(w.subs, ch)
	return ch
}

// Wait blocks until the end effect has returned or ctx is done
func (w *SessionWatchdog) Wait(ctx context.Context) error {
	select {
	case <-w.effectDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
