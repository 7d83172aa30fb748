// Package monitor turns the engine's live state into periodic snapshots for
// front ends. Each Monitor keeps its own throughput baseline, so several can
// watch the same run.
package monitor

import (
	"context"
	"fmt"
	"time"

	"agentq/internal/stats"
)

// Source is the read side of a run. runner.Manager satisfies it.
type Source interface {
	Stats() *stats.Table
	Errors() *stats.ErrorLog
	StartTime() time.Time
	AgentsStarted() bool
}

type Snapshot struct {
	At            time.Time
	Elapsed       time.Duration
	Agents        []stats.RuntimeStats
	Totals        stats.Totals
	AgentsStarted bool

	AvgLatency    float64 // seconds
	AvgThroughput float64 // requests per second since start
	CurThroughput float64 // requests per second over the last interval

	P50, P90, P99, Max time.Duration

	Host   HostLoad
	Errors []string // drained since the previous poll
}

// Running renders the "n/N" agents column.
func (s Snapshot) Running() string {
	return fmt.Sprintf("%d/%d", s.Totals.Active, s.Totals.Agents)
}

type Option func(*Monitor)

// WithHostSampler replaces the gopsutil host sampler.
func WithHostSampler(fn func() HostLoad) Option {
	return func(m *Monitor) { m.host = fn }
}

// WithoutErrors stops the monitor from draining the error log.
func WithoutErrors() Option {
	return func(m *Monitor) { m.drain = false }
}

func withClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

type Monitor struct {
	src      Source
	interval time.Duration
	host     func() HostLoad
	drain    bool
	now      func() time.Time

	lastCount uint64
}

func New(src Source, interval time.Duration, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	m := &Monitor{
		src:      src,
		interval: interval,
		host:     SampleHost,
		drain:    true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Interval() time.Duration { return m.interval }

// Poll reads the table once. Throughput figures only move once at least one
// request has completed and time has passed since start.
func (m *Monitor) Poll() Snapshot {
	now := m.now()
	snap := Snapshot{At: now, AgentsStarted: m.src.AgentsStarted()}

	table := m.src.Stats()
	if table == nil {
		return snap
	}

	start := m.src.StartTime()
	if !start.IsZero() {
		snap.Elapsed = now.Sub(start)
	}
	snap.Agents = table.Snapshot()
	snap.Totals = stats.Aggregate(snap.Agents)
	snap.AvgLatency = snap.Totals.AvgLatency()

	count := snap.Totals.Count
	if elapsed := snap.Elapsed.Seconds(); count > 0 && elapsed > 0 {
		snap.AvgThroughput = float64(count) / elapsed
		snap.CurThroughput = float64(count-m.lastCount) / m.interval.Seconds()
		m.lastCount = count
	}

	hist := table.Latencies()
	if hist.Count() > 0 {
		snap.P50 = hist.Percentile(50)
		snap.P90 = hist.Percentile(90)
		snap.P99 = hist.Percentile(99)
		snap.Max = hist.Max()
	}

	if m.host != nil {
		snap.Host = m.host()
	}
	if m.drain {
		if errs := m.src.Errors(); errs != nil {
			snap.Errors = errs.Drain()
		}
	}
	return snap
}

// Run polls every interval and hands each snapshot to fn until ctx ends. A
// last poll is delivered on the way out.
func (m *Monitor) Run(ctx context.Context, fn func(Snapshot)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fn(m.Poll())
			return
		case <-ticker.C:
			fn(m.Poll())
		}
	}
}

// HumanizeDuration formats d as hh:mm:ss.
func HumanizeDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}
