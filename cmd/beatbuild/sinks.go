package main

import "github.com/sirupsen/logrus"

// LogSink records input commands in the log. Used for headless runs.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Entry) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) MoveTo(pos Vec2) {
	s.log.Debugf("[INPUT] Move to (%.1f, %.1f)", pos.X, pos.Y)
}

func (s *LogSink) Press(button MouseButton, down bool) {
	s.log.Debugf("[INPUT] Press %s down=%v", button, down)
}

// multiSink fans commands out to several sinks in order
type multiSink []InputSink

func (m multiSink) MoveTo(pos Vec2) {
	for _, s := range m {
		s.MoveTo(pos)
	}
}

func (m multiSink) Press(button MouseButton, down bool) {
	for _, s := range m {
		s.Press(button, down)
	}
}

func (m multiSink) LockUserCursor(locked bool) {
	for _, s := range m {
		if l, ok := s.(CursorLocker); ok {
			l.LockUserCursor(locked)
		}
	}
}
