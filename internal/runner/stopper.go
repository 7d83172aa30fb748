package runner

import (
	"sync"
	"time"
)

// Stopper calls Stop on a manager once a duration has elapsed.
type Stopper struct {
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
	err   error
}

// StopAfter schedules m.Stop after d. A non-positive d never fires; the
// caller stops the run itself.
func StopAfter(m *Manager, d time.Duration) *Stopper {
	s := &Stopper{done: make(chan struct{})}
	if d <= 0 {
		return s
	}
	s.timer = time.AfterFunc(d, func() {
		s.err = m.Stop()
		s.finish()
	})
	return s
}

// Done is closed after the scheduled Stop has returned, or after Cancel.
func (s *Stopper) Done() <-chan struct{} { return s.done }

// Err is the error from the scheduled Stop. Valid once Done is closed.
func (s *Stopper) Err() error { return s.err }

// Cancel disarms the timer. It reports false if Stop already ran.
func (s *Stopper) Cancel() bool {
	if s.timer == nil {
		s.finish()
		return true
	}
	if s.timer.Stop() {
		s.finish()
		return true
	}
	return false
}

func (s *Stopper) finish() {
	s.once.Do(func() { close(s.done) })
}
