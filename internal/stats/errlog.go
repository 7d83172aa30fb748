package stats

import (
	"fmt"
	"sync"
)

// ErrorLog is an append-only queue of failure messages shared by all agents.
// Messages from one agent keep their order; Drain hands each message to
// exactly one caller.
type ErrorLog struct {
	mu      sync.Mutex
	entries []string
	total   uint64
}

func NewErrorLog() *ErrorLog {
	return &ErrorLog{}
}

func (l *ErrorLog) Append(msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.total++
	l.mu.Unlock()
}

func (l *ErrorLog) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Drain removes and returns everything appended since the last drain.
func (l *ErrorLog) Drain() []string {
	l.mu.Lock()
	out := l.entries
	l.entries = nil
	l.mu.Unlock()
	return out
}

// Pending is the number of undrained messages.
func (l *ErrorLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Total counts every message ever appended.
func (l *ErrorLog) Total() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
