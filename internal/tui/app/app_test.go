package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentq/internal/monitor"
	"agentq/internal/runner"
	"agentq/internal/tui/views"
)

func stubFactory(cfg runner.Config) (*runner.Manager, error) {
	tr := runner.TransportFunc(func(ctx context.Context, req runner.Request) (*runner.Response, error) {
		return &runner.Response{Status: 200, Body: []byte("ok")}, nil
	})
	return runner.NewManager(cfg, runner.WithTransport(tr))
}

func newTestModel(t *testing.T, cfg runner.Config) Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases:\n  - url: http://target/\n"), 0644))

	m := NewModel(cfg, path, stubFactory)
	m.Refresh = 10 * time.Millisecond
	m.MonitorOpts = []monitor.Option{monitor.WithHostSampler(nil)}
	m, _ = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

// run executes cmd and every command it batches, returning the messages.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestRunPauseResumeStop(t *testing.T) {
	m := newTestModel(t, runner.Config{Agents: 2, Pacing: 5 * time.Millisecond})

	m, cmd := update(m, key(tea.KeyCtrlR))
	require.NotNil(t, cmd)
	require.NotNil(t, m.Manager)
	mgr := m.Manager
	t.Cleanup(func() { _ = mgr.Stop() })
	assert.True(t, m.Manager.Running())
	assert.Equal(t, ViewDashboard, m.CurrentView)
	assert.Empty(t, m.RunnerView.Err)

	time.Sleep(30 * time.Millisecond)
	m, next := update(m, pollMsg{gen: m.gen})
	assert.NotNil(t, next, "polling continues while running")
	assert.Equal(t, 2, m.DashView.Snap.Totals.Agents)

	oldGen := m.gen
	m, _ = update(m, key(tea.KeyCtrlP))
	assert.Nil(t, m.Monitor)
	assert.True(t, m.DashView.Paused)
	assert.True(t, m.Manager.Running(), "pausing the monitor leaves the run alone")

	_, stale := update(m, pollMsg{gen: oldGen})
	assert.Nil(t, stale)

	m, cmd = update(m, key(tea.KeyCtrlO))
	assert.NotNil(t, cmd)
	assert.NotNil(t, m.Monitor)
	assert.False(t, m.DashView.Paused)
	assert.Greater(t, m.gen, oldGen)

	m, cmd = update(m, key(tea.KeyCtrlS))
	require.NotNil(t, cmd)
	assert.True(t, m.stopping)
	msg := cmd()
	require.IsType(t, stoppedMsg{}, msg)

	m, _ = update(m, msg)
	assert.Equal(t, runner.StateStopped, m.Manager.State())
	assert.True(t, m.DashView.Done)
	assert.Nil(t, m.Monitor)
	assert.False(t, m.stopping)
	assert.Equal(t, "Run stopped.", m.StatusMsg)
	assert.Greater(t, m.DashView.Snap.Totals.Count, uint64(0))
}

func TestDurationStopsRun(t *testing.T) {
	m := newTestModel(t, runner.Config{Agents: 1, Pacing: 10 * time.Millisecond, Duration: time.Second})

	m, _ = update(m, key(tea.KeyCtrlR))
	require.NotNil(t, m.Manager)
	mgr := m.Manager
	t.Cleanup(func() { _ = mgr.Stop() })

	time.Sleep(1100 * time.Millisecond)
	m, cmd := update(m, pollMsg{gen: m.gen})
	assert.True(t, m.stopping)

	var stopped *stoppedMsg
	for _, msg := range run(cmd) {
		if s, ok := msg.(stoppedMsg); ok {
			stopped = &s
		}
	}
	require.NotNil(t, stopped, "elapsed duration schedules a stop")
	require.NoError(t, stopped.err)

	m, _ = update(m, *stopped)
	assert.False(t, m.Manager.Running())
	assert.True(t, m.DashView.Done)
}

func TestRunReportsFormErrors(t *testing.T) {
	m := newTestModel(t, runner.Config{Agents: 1})
	m.RunnerView.Inputs[views.FieldScript].SetValue(filepath.Join(t.TempDir(), "missing.xml"))

	m, cmd := update(m, key(tea.KeyCtrlR))
	assert.Nil(t, cmd)
	assert.Nil(t, m.Manager)
	assert.NotEmpty(t, m.RunnerView.Err)
	assert.Equal(t, ViewRunner, m.CurrentView)
}

func TestViewNavigation(t *testing.T) {
	m := newTestModel(t, runner.Config{Agents: 1})
	assert.Contains(t, m.View(), "Configure")

	m, _ = update(m, key(tea.KeyCtrlRight))
	assert.Equal(t, ViewDashboard, m.CurrentView)
	assert.Contains(t, m.View(), "No run yet")

	m, _ = update(m, key(tea.KeyCtrlRight))
	m, _ = update(m, key(tea.KeyCtrlRight))
	assert.Equal(t, ViewRunner, m.CurrentView)

	m, _ = update(m, key(tea.KeyCtrlLeft))
	assert.Equal(t, ViewHistory, m.CurrentView)

	_, cmd := update(m, key(tea.KeyCtrlQ))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
