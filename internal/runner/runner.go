package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"agentq/internal/resultlog"
	"agentq/internal/script"
	"agentq/internal/stats"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ResultOpener opens the per-run result log.
type ResultOpener func(dir, runID string, log zerolog.Logger) (resultlog.Writer, error)

func openResultLog(dir, runID string, log zerolog.Logger) (resultlog.Writer, error) {
	l, err := resultlog.Open(dir, runID, log)
	if err != nil {
		return nil, err
	}
	return l, nil
}

type Option func(*Manager)

func WithTransport(t Transport) Option {
	return func(m *Manager) { m.transport = t }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithResultOpener(open ResultOpener) Option {
	return func(m *Manager) { m.openResults = open }
}

// Manager owns the script, the agents and the shared run state. Front ends
// read its state while a run is in progress and call Stop to end it.
type Manager struct {
	cfg         Config
	transport   Transport
	openResults ResultOpener
	templates   *TemplateEngine
	log         zerolog.Logger

	state         atomic.Int32
	agentsStarted atomic.Bool
	startedCount  atomic.Int64

	mu        sync.Mutex
	pending   []script.RequestSpec
	script    *script.Script
	runID     string
	startTime time.Time
	table     *stats.Table
	errs      *stats.ErrorLog
	results   resultlog.Writer
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup

	stopMu sync.Mutex
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PacingMode == "" {
		cfg.PacingMode = PacePerPass
	}

	m := &Manager{
		cfg:         cfg,
		openResults: openResultLog,
		templates:   NewTemplateEngine(),
		log:         zerolog.Nop(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		m.transport = NewHTTPTransport(cfg.Timeout)
	}
	return m, nil
}

// AddRequest appends spec to the script used by the next Start.
func (m *Manager) AddRequest(spec script.RequestSpec) error {
	if spec.Repeat == 0 {
		spec.Repeat = 1
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running() {
		return ErrRunning
	}
	m.pending = append(m.pending, spec)
	return nil
}

// Start freezes the script and launches one goroutine per agent. The run
// continues until Stop.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running() {
		return ErrRunning
	}
	if len(m.pending) == 0 {
		return ErrEmptyScript
	}

	sc := script.New(m.pending...)
	compiled := verbatim(sc.Specs())
	var err error
	if !m.cfg.Verbatim {
		if compiled, err = m.templates.Compile(sc.Specs()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScript, err)
		}
	}

	runID := uuid.NewString()
	log := m.log.With().Str("run_id", runID).Logger()

	var results resultlog.Writer
	if m.cfg.LogResponses {
		if results, err = m.openResults(m.cfg.ResultsDir, runID, log); err != nil {
			return fmt.Errorf("open result log: %w", err)
		}
	}

	n := m.cfg.Agents
	ctx, cancel := context.WithCancel(context.Background())
	m.script = sc
	m.runID = runID
	m.table = stats.NewTable(n)
	m.errs = stats.NewErrorLog()
	m.results = results
	m.cancel = cancel
	m.done = make(chan struct{})
	m.startedCount.Store(0)
	m.agentsStarted.Store(m.cfg.RampUp == 0)
	m.startTime = time.Now()

	signal := func() {
		if m.startedCount.Add(1) == int64(n) {
			m.agentsStarted.Store(true)
			log.Info().Msg("all agents started")
		}
	}

	m.state.Store(int32(StateRunning))
	for i := 0; i < n; i++ {
		a := &agent{
			id:        i,
			delay:     m.cfg.StartDelay(i),
			pacing:    m.cfg.Pacing,
			mode:      m.cfg.PacingMode,
			specs:     compiled,
			templates: m.templates,
			transport: m.transport,
			slot:      m.table.Slot(i),
			errs:      m.errs,
			results:   results,
			started:   signal,
			log:       log,
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			a.run(ctx)
		}()
	}

	log.Info().
		Int("agents", n).
		Int("requests", sc.Len()).
		Dur("pacing", m.cfg.Pacing).
		Dur("rampup", m.cfg.RampUp).
		Str("pacing_mode", string(m.cfg.PacingMode)).
		Bool("log_responses", m.cfg.LogResponses).
		Msg("run started")
	return nil
}

// Stop signals every agent, waits for them to exit and finalizes the result
// log. Calling it when no run is active does nothing. Concurrent callers
// return once the first has finished.
func (m *Manager) Stop() error {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	if !m.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}

	m.mu.Lock()
	cancel, results, done, runID := m.cancel, m.results, m.done, m.runID
	m.mu.Unlock()

	log := m.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("stopping agents")
	cancel()
	m.wg.Wait()

	var err error
	if results != nil {
		if err = results.Close(); err != nil {
			err = fmt.Errorf("finalize result log: %w", err)
			log.Error().Err(err).Msg("result log finalize failed")
		}
	}

	totals := stats.Aggregate(m.Stats().Snapshot())
	m.state.Store(int32(StateStopped))
	close(done)
	log.Info().
		Uint64("requests", totals.Count).
		Uint64("errors", totals.ErrorCount).
		Msg("run stopped")
	return err
}

// Wait blocks until the current run has fully stopped. It returns at once
// when no run was ever started.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if m.State() == StateIdle {
		return
	}
	<-done
}

// Done is closed when the current run has fully stopped, whoever stopped it.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// IsComplete reports whether every agent has exited after a stop.
func (m *Manager) IsComplete() bool {
	return m.State() == StateStopped
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Running is true while agents may still be issuing requests.
func (m *Manager) Running() bool {
	return m.running()
}

func (m *Manager) running() bool {
	s := m.State()
	return s == StateRunning || s == StateStopping
}

// AgentsStarted reports whether every agent has begun its first request.
func (m *Manager) AgentsStarted() bool {
	return m.agentsStarted.Load()
}

func (m *Manager) StartTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startTime
}

// Stats is the current run's table, or nil before the first Start.
func (m *Manager) Stats() *stats.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table
}

// Errors is the current run's error log, or nil before the first Start.
func (m *Manager) Errors() *stats.ErrorLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs
}

// Script is the frozen script of the current run.
func (m *Manager) Script() *script.Script {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.script
}

func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}
