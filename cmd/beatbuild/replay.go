package main

import (
	"errors"
	"math"
)

// ErrEmptyFrameSequence is returned when a follower is built without frames
var ErrEmptyFrameSequence = errors.New("replay: frame sequence is empty")

// Vec2 is a position in playfield or screen space
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ReplayFrame is a recorded cursor target. Time is in milliseconds relative to session start.
type ReplayFrame struct {
	Time     float64 `json:"time"`
	Position Vec2    `json:"position"`
}

// MouseButton identifies a pointer button
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseRight
)

func (b MouseButton) String() string {
	switch b {
	case MouseLeft:
		return "left"
	case MouseRight:
		return "right"
	default:
		return "unknown"
	}
}

// InputSink receives the synthetic pointer commands. The host maps them into its own input pipeline.
type InputSink interface {
	MoveTo(pos Vec2)
	Press(button MouseButton, down bool)
}

// CursorLocker is implemented by sinks that can stop the user from moving the cursor themselves
type CursorLocker interface {
	LockUserCursor(locked bool)
}

// StopFlag reports whether the session has ended
type StopFlag interface {
	Expired() bool
}

// PlayfieldMapping converts playfield coordinates into screen coordinates
type PlayfieldMapping struct {
	Scale  float64
	Offset Vec2
}

// Apply maps a playfield position. A zero Scale is treated as 1.
func (m PlayfieldMapping) Apply(p Vec2) Vec2 {
	scale := m.Scale
	if scale == 0 {
		scale = 1
	}
	return Vec2{X: p.X*scale + m.Offset.X, Y: p.Y*scale + m.Offset.Y}
}

// ReplayFollower walks a cursor along a pre-recorded path, one frame per call at most.
// It is driven from a single update loop and is not safe for concurrent use.
type ReplayFollower struct {
	frames  []ReplayFrame
	cursor  int
	sink    InputSink
	stop    StopFlag
	mapping PlayfieldMapping
}

// NewReplayFollower creates a follower positioned at the first frame.
// stop may be nil, in which case only running out of frames ends the replay.
func NewReplayFollower(frames []ReplayFrame, sink InputSink, stop StopFlag) (*ReplayFollower, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyFrameSequence
	}
	if sink == nil {
		return nil, errors.New("replay: input sink is nil")
	}
	owned := make([]ReplayFrame, len(frames))
	copy(owned, frames)
	return &ReplayFollower{
		frames: owned,
		sink:   sink,
		stop:   stop,
	}, nil
}

// SetMapping sets the playfield to screen mapping used for emitted moves
func (f *ReplayFollower) SetMapping(m PlayfieldMapping) {
	f.mapping = m
}

// Advance moves to the next frame when it is at least as close to now as the current one.
// Returns true when a frame was advanced and a move+press pair was emitted.
func (f *ReplayFollower) Advance(now float64) bool {
	if f.Finished() {
		return false
	}
	if f.stop != nil && f.stop.Expired() {
		return false
	}

	next := f.frames[f.cursor+1]
	current := f.frames[f.cursor]
	if math.Abs(next.Time-now) > math.Abs(current.Time-now) {
		return false
	}

	f.cursor++
	f.sink.MoveTo(f.mapping.Apply(next.Position))
	f.sink.Press(MouseLeft, true)
	return true
}

// Finished reports whether the cursor sits on the last frame
func (f *ReplayFollower) Finished() bool {
	return f.cursor == len(f.frames)-1
}

// Cursor returns the current frame index
func (f *ReplayFollower) Cursor() int {
	return f.cursor
}

// Len returns the number of frames
func (f *ReplayFollower) Len() int {
	return len(f.frames)
}

// Frame returns the frame at the cursor
func (f *ReplayFollower) Frame() ReplayFrame {
	return f.frames[f.cursor]
}
