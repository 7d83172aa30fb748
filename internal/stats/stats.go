package stats

import (
	"sync/atomic"
	"time"
)

// AgentStatus is the lifecycle phase of one agent as seen by observers.
type AgentStatus int

const (
	StatusWaiting AgentStatus = iota
	StatusRunning
	StatusStopped
)

func (s AgentStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return "waiting"
	}
}

// RuntimeStats is one agent's running totals. Values are immutable once
// published to a Slot; writers build a new value and swap it in.
type RuntimeStats struct {
	Count        uint64
	ErrorCount   uint64
	TotalLatency float64 // seconds
	Latency      float64 // seconds, most recent request
	AvgLatency   float64 // seconds
	TotalBytes   uint64
	Status       AgentStatus
	FirstRequest time.Time
}

// Record returns s updated with one finished request.
func (s RuntimeStats) Record(at time.Time, latency time.Duration, bytes int64, failed bool) RuntimeStats {
	if s.Count == 0 {
		s.FirstRequest = at
	}
	sec := latency.Seconds()
	s.Count++
	if failed {
		s.ErrorCount++
	}
	s.Latency = sec
	s.TotalLatency += sec
	s.AvgLatency = s.TotalLatency / float64(s.Count)
	if bytes > 0 {
		s.TotalBytes += uint64(bytes)
	}
	return s
}

// Slot is the single-writer handle an agent uses to publish its stats.
type Slot struct {
	p    *atomic.Pointer[RuntimeStats]
	hist *SafeHistogram
}

func (s *Slot) Load() RuntimeStats {
	return *s.p.Load()
}

// Record publishes one finished request.
func (s *Slot) Record(latency time.Duration, bytes int64, failed bool) {
	next := s.Load().Record(time.Now(), latency, bytes, failed)
	s.p.Store(&next)
	s.hist.Record(latency)
}

func (s *Slot) SetStatus(status AgentStatus) {
	next := s.Load()
	next.Status = status
	s.p.Store(&next)
}

// Table holds one RuntimeStats per agent, indexed by agent id. Readers never
// block writers and always see a consistent record.
type Table struct {
	slots   []atomic.Pointer[RuntimeStats]
	latency *SafeHistogram
}

func NewTable(agents int) *Table {
	t := &Table{
		slots:   make([]atomic.Pointer[RuntimeStats], agents),
		latency: NewSafeHistogram(),
	}
	for i := range t.slots {
		t.slots[i].Store(&RuntimeStats{})
	}
	return t
}

func (t *Table) Len() int { return len(t.slots) }

// Slot returns the writer handle for agent id. Only that agent may use it.
func (t *Table) Slot(id int) *Slot {
	return &Slot{p: &t.slots[id], hist: t.latency}
}

func (t *Table) Get(id int) RuntimeStats {
	return *t.slots[id].Load()
}

// Snapshot copies every agent's current stats.
func (t *Table) Snapshot() []RuntimeStats {
	out := make([]RuntimeStats, len(t.slots))
	for i := range t.slots {
		out[i] = *t.slots[i].Load()
	}
	return out
}

// Latencies is the run-wide latency histogram fed by every slot.
func (t *Table) Latencies() *SafeHistogram { return t.latency }

// Totals aggregates a set of agent stats.
type Totals struct {
	Agents       int
	Active       int // agents that completed at least one request
	Count        uint64
	ErrorCount   uint64
	TotalLatency float64
	TotalBytes   uint64
}

func Aggregate(all []RuntimeStats) Totals {
	t := Totals{Agents: len(all)}
	for _, s := range all {
		if s.Count > 0 {
			t.Active++
		}
		t.Count += s.Count
		t.ErrorCount += s.ErrorCount
		t.TotalLatency += s.TotalLatency
		t.TotalBytes += s.TotalBytes
	}
	return t
}

// AvgLatency is the mean latency in seconds, or 0 with no requests.
func (t Totals) AvgLatency() float64 {
	if t.Count == 0 {
		return 0
	}
	return t.TotalLatency / float64(t.Count)
}

// ErrorRate is the failure percentage.
func (t Totals) ErrorRate() float64 {
	if t.Count == 0 {
		return 0
	}
	return float64(t.ErrorCount) / float64(t.Count) * 100
}
