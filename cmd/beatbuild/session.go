package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionOptions configures a new Session
type SessionOptions struct {
	Frames            []ReplayFrame
	Sink              InputSink
	Clock             GameClock
	Launcher          BuildLauncher
	Deadline          time.Duration
	TickInterval      time.Duration
	OverallDifficulty float64
	Mapping           PlayfieldMapping
	Prune             bool

	// Publish receives session events; it must not block
	Publish func(ev interface{})
	// TimerClock and Runner are overridden in tests
	TimerClock TimerClock
	Runner     commandRunner
}

// Session is one play with the mod enabled: a replay driven by the game clock,
// a build started at the beginning and torn down at the end.
type Session struct {
	ID  string
	Mod ModInfo

	follower *ReplayFollower
	watchdog *SessionWatchdog
	clock    GameClock
	sink     InputSink
	launcher BuildLauncher
	publish  func(ev interface{})
	log      *logrus.Entry

	overallDifficulty float64
	deadline          time.Duration
	tick              time.Duration

	// mirrors of follower state for readers outside the update loop
	cursor atomic.Int64
	total  int

	mu        sync.Mutex
	startedAt time.Time

	// closed once the cursor is released and the ended event is out
	closed chan struct{}
}

// SessionStatus is a point-in-time view of a session
type SessionStatus struct {
	ID        string    `json:"id"`
	Mod       ModInfo   `json:"mod"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Cursor    int       `json:"cursor"`
	Frames    int       `json:"frames"`
	Finished  bool      `json:"finished"`
	Deadline  string    `json:"deadline"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
	Screen    string    `json:"screen,omitempty"`
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Clock == nil {
		return nil, errors.New("session: clock is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("session: input sink is required")
	}
	if opts.Launcher == nil {
		opts.Launcher = noopLauncher{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Runner == nil {
		opts.Runner = runCommand
	}

	id := uuid.New().String()
	log := logger.WithField("session", shortID(id))

	s := &Session{
		ID:                id,
		Mod:               dockerMod,
		clock:             opts.Clock,
		sink:              opts.Sink,
		launcher:          opts.Launcher,
		publish:           opts.Publish,
		log:               log,
		overallDifficulty: opts.OverallDifficulty,
		deadline:          opts.Deadline,
		tick:              opts.TickInterval,
		total:             len(opts.Frames),
		closed:            make(chan struct{}),
	}

	wdOpts := []WatchdogOption{WithWatchdogLogger(log.WithField("component", "watchdog"))}
	if opts.TimerClock != nil {
		wdOpts = append(wdOpts, WithTimerClock(opts.TimerClock))
	}
	effect := newTeardownEffect(opts.Launcher, opts.Prune, opts.Runner, log.WithField("component", "build"))
	s.watchdog = NewSessionWatchdog(effect, wdOpts...)

	follower, err := NewReplayFollower(opts.Frames, opts.Sink, s.watchdog)
	if err != nil {
		return nil, err
	}
	follower.SetMapping(opts.Mapping)
	s.follower = follower

	return s, nil
}

// Start arms the deadline, takes over the cursor and launches the build.
// However the session ends afterwards, the cursor is handed back and an ended event is emitted.
func (s *Session) Start() error {
	if err := s.watchdog.Arm(s.deadline); err != nil {
		return err
	}
	if c, ok := s.clock.(resettableClock); ok {
		c.Reset()
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if l, ok := s.sink.(CursorLocker); ok {
		l.LockUserCursor(true)
	}
	go s.finish(s.watchdog.Subscribe())

	s.log.Infof("[SESSION] Started %s (%d frames, deadline %s)", s.Mod.Acronym, s.total, s.deadline)
	s.emit(statusEvent(s.Status()))

	if err := s.launcher.Start(); err != nil {
		s.log.WithError(err).Error("[SESSION] Build failed to start, ending session")
		if termErr := s.watchdog.Terminate(); termErr != nil {
			s.log.WithError(termErr).Warn("[SESSION] Failed to end session after launch error")
		}
		return fmt.Errorf("failed to launch build: %w", err)
	}
	return nil
}

// finish releases the cursor once the watchdog expires, whatever ended the session
func (s *Session) finish(ended <-chan SessionEnded) {
	defer close(s.closed)
	ev := <-ended
	if l, ok := s.sink.(CursorLocker); ok {
		l.LockUserCursor(false)
	}
	s.log.Infof("[SESSION] Ended (%s) at cursor %d/%d", ev.Reason, s.cursor.Load(), s.total-1)
	s.emit(endedEvent(ev))
}

// Update runs one tick of the replay. Called from the update loop only.
func (s *Session) Update() bool {
	now := s.clock.CurrentTime()
	if !s.follower.Advance(now) {
		return false
	}
	cursor := s.follower.Cursor()
	s.cursor.Store(int64(cursor))
	s.emit(advanceEvent(cursor, now))
	if s.follower.Finished() {
		s.log.Infof("[SESSION] Replay finished at %.0fms", now)
	}
	return true
}

// Run drives Update on a ticker until the session has ended or ctx is cancelled
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		case <-ticker.C:
			s.Update()
		}
	}
}

// PerformFail ends the session when the player fails. The fail itself is always allowed.
func (s *Session) PerformFail() bool {
	if err := s.watchdog.Terminate(); err != nil {
		s.log.WithError(err).Warn("[SESSION] Fail before session start")
	}
	return true
}

// Done is closed when the session has ended
func (s *Session) Done() <-chan struct{} {
	return s.watchdog.Done()
}

// WaitTeardown blocks until the end-of-session teardown has finished and the cursor is released
func (s *Session) WaitTeardown(ctx context.Context) error {
	if err := s.watchdog.Wait(ctx); err != nil {
		return err
	}
	select {
	case <-s.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	started := s.startedAt
	s.mu.Unlock()

	cursor := int(s.cursor.Load())
	st := SessionStatus{
		ID:        s.ID,
		Mod:       s.Mod,
		State:     s.watchdog.State().String(),
		Cursor:    cursor,
		Frames:    s.total,
		Finished:  cursor == s.total-1,
		Deadline:  s.deadline.String(),
		StartedAt: started,
	}
	if ev, ok := s.watchdog.Ended(); ok {
		st.Reason = ev.Reason.String()
		st.EndedAt = ev.At
	}
	if src, ok := s.launcher.(ScreenSource); ok {
		st.Screen = src.Screen()
	}
	return st
}

func (s *Session) emit(ev interface{}) {
	if s.publish != nil {
		s.publish(ev)
	}
}

func statusEvent(st SessionStatus) map[string]interface{} {
	return map[string]interface{}{
		"type":   "status",
		"status": st,
	}
}

func advanceEvent(cursor int, now float64) map[string]interface{} {
	return map[string]interface{}{
		"type":   "advance",
		"cursor": cursor,
		"time":   now,
	}
}

func endedEvent(ev SessionEnded) map[string]interface{} {
	return map[string]interface{}{
		"type":   "ended",
		"reason": ev.Reason.String(),
		"at":     ev.At,
	}
}
