package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"agentq/internal/monitor"
	"agentq/internal/runner"
	"agentq/internal/script"
	"agentq/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, cfg runner.Config, status int) *runner.Manager {
	t.Helper()
	tr := runner.TransportFunc(func(ctx context.Context, req runner.Request) (*runner.Response, error) {
		return &runner.Response{Status: status, Body: []byte("body")}, nil
	})
	m, err := runner.NewManager(cfg, runner.WithTransport(tr))
	require.NoError(t, err)
	require.NoError(t, m.AddRequest(script.RequestSpec{Method: "GET", URL: "http://target/", Repeat: 1}))
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

func TestRunStopsAfterDuration(t *testing.T) {
	m := newManager(t, runner.Config{Agents: 2, Pacing: 5 * time.Millisecond, Duration: 300 * time.Millisecond}, 500)
	var out bytes.Buffer

	start := time.Now()
	err := Run(context.Background(), m, Options{Out: &out, Script: "cases.xml", Refresh: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, runner.StateStopped, m.State())

	text := out.String()
	assert.Contains(t, text, "STARTING AGENTQ LOAD TEST")
	assert.Contains(t, text, "cases.xml (1 requests)")
	assert.Contains(t, text, "LOAD TEST RESULTS")
	assert.Contains(t, text, "Agents Running : 2/2")
	assert.Contains(t, text, "FAILURE SUMMARY")
	assert.Contains(t, text, "x GET http://target/: HTTP 500")
	assert.NotContains(t, text, "x agent ")
	assert.NotContains(t, text, "GENERATOR HOST")
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newManager(t, runner.Config{Agents: 1, Pacing: 5 * time.Millisecond}, 200)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(150*time.Millisecond, cancel)

	var out bytes.Buffer
	require.NoError(t, Run(ctx, m, Options{Out: &out, Refresh: 20 * time.Millisecond}))
	assert.Equal(t, runner.StateStopped, m.State())
	assert.NotContains(t, out.String(), "FAILURE SUMMARY")
	assert.Contains(t, out.String(), "until interrupted")
}

func TestRunEndsWhenStoppedElsewhere(t *testing.T) {
	m := newManager(t, runner.Config{Agents: 1, Pacing: 5 * time.Millisecond}, 200)
	time.AfterFunc(100*time.Millisecond, func() { _ = m.Stop() })

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), m, Options{Out: &out, Refresh: 20 * time.Millisecond})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept polling after the manager stopped")
	}
	assert.Equal(t, runner.StateStopped, m.State())
	assert.Contains(t, out.String(), "LOAD TEST RESULTS")
}

func TestRunEndsWhenStoppedElsewhereBeforeDuration(t *testing.T) {
	m := newManager(t, runner.Config{Agents: 1, Pacing: 5 * time.Millisecond, Duration: time.Minute}, 200)
	time.AfterFunc(100*time.Millisecond, func() { _ = m.Stop() })

	start := time.Now()
	require.NoError(t, Run(context.Background(), m, Options{Out: &bytes.Buffer{}, Refresh: 20 * time.Millisecond}))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunRejectsEmptyScript(t *testing.T) {
	m, err := runner.NewManager(runner.Config{Agents: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, Run(context.Background(), m, Options{Out: &bytes.Buffer{}}), runner.ErrEmptyScript)
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----------]", progressBar(0, 10))
	assert.Equal(t, "[█████-----]", progressBar(0.5, 10))
	assert.Equal(t, "[██████████]", progressBar(1.7, 10))
	assert.Equal(t, "[----------]", progressBar(-1, 10))
}

func TestProgressLine(t *testing.T) {
	waiting := monitor.Snapshot{Totals: stats.Totals{Agents: 4, Active: 1}}
	assert.True(t, strings.HasPrefix(progressLine(waiting, time.Minute), "Starting agents... 1/4"))

	snap := monitor.Snapshot{
		AgentsStarted: true,
		Elapsed:       30 * time.Second,
		Totals:        stats.Totals{Agents: 4, Active: 4, Count: 300, ErrorCount: 3},
		AvgLatency:    0.0126,
		AvgThroughput: 10,
		CurThroughput: 12.5,
	}
	line := progressLine(snap, time.Minute)
	assert.Contains(t, line, " 50% | 30s/1m0s")
	assert.Contains(t, line, "Reqs: 300 | Errs: 3 | AvgResp: 0.013s | AvgTp: 10.00 | CurTp: 12.50")

	assert.True(t, strings.HasPrefix(progressLine(snap, 0), "00:00:30 |"))
}

func TestCollectFailures(t *testing.T) {
	got := map[string]int{}
	collectFailures(got, []string{
		"agent 1: GET http://h/: HTTP 500",
		"agent 2: GET http://h/: HTTP 500",
		"agent 2: POST http://h/x: expected content not found",
		"odd message",
	})
	assert.Equal(t, 2, got["GET http://h/: HTTP 500"])
	assert.Equal(t, 1, got["POST http://h/x: expected content not found"])
	assert.Equal(t, 1, got["odd message"])
	assert.Len(t, got, 3)
}
