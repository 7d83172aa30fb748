package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"agentq/internal/monitor"
	"agentq/internal/runner"
)

type Options struct {
	Out      io.Writer
	Script   string        // shown in the header
	Refresh  time.Duration // progress line interval
	HostLoad bool          // include CPU/memory of this machine in the summary
}

// Run drives a headless run: start, print progress until the configured
// duration elapses or ctx is cancelled, stop, print the summary.
func Run(ctx context.Context, mgr *runner.Manager, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Refresh <= 0 {
		opts.Refresh = time.Second
	}
	cfg := mgr.Config()
	out := opts.Out

	if err := mgr.Start(); err != nil {
		return err
	}
	printHeader(out, cfg, opts.Script, mgr)

	stopper := runner.StopAfter(mgr, cfg.Duration)
	stopped := mgr.Done()
	var monOpts []monitor.Option
	if !opts.HostLoad {
		monOpts = append(monOpts, monitor.WithHostSampler(nil))
	}
	mon := monitor.New(mgr, opts.Refresh, monOpts...)
	failures := make(map[string]int)

	ticker := time.NewTicker(opts.Refresh)
	defer ticker.Stop()

	var stopErr error
loop:
	for {
		select {
		case <-ctx.Done():
			stopper.Cancel()
			stopErr = mgr.Stop()
			break loop
		case <-stopper.Done():
			stopErr = stopper.Err()
			break loop
		case <-stopped:
			// stopped elsewhere, e.g. POST /v1/stop
			if !stopper.Cancel() {
				<-stopper.Done()
				stopErr = stopper.Err()
			}
			break loop
		case <-ticker.C:
			snap := mon.Poll()
			collectFailures(failures, snap.Errors)
			fmt.Fprint(out, "\r"+progressLine(snap, cfg.Duration))
		}
	}
	// agents are gone; pick up whatever they logged last
	final := mon.Poll()
	collectFailures(failures, final.Errors)

	printSummary(out, final, failures)
	if cfg.LogResponses {
		fmt.Fprintf(out, "\n💾 Results saved to %s\n", filepath.Join(cfg.ResultsDir, mgr.RunID()))
	}
	return stopErr
}

func printHeader(out io.Writer, cfg runner.Config, script string, mgr *runner.Manager) {
	fmt.Fprintf(out, "\n🚀 STARTING AGENTQ LOAD TEST\n")
	fmt.Fprintf(out, "======================================================================\n")
	if script != "" {
		fmt.Fprintf(out, "Script     : %s (%d requests)\n", script, mgr.Script().Len())
	}
	fmt.Fprintf(out, "Agents     : %d\n", cfg.Agents)
	fmt.Fprintf(out, "Interval   : %s (per %s)\n", cfg.Pacing, cfg.PacingMode)
	fmt.Fprintf(out, "Ramp-up    : %s\n", cfg.RampUp)
	if cfg.Duration > 0 {
		fmt.Fprintf(out, "Duration   : %s\n", cfg.Duration)
	} else {
		fmt.Fprintf(out, "Duration   : until interrupted\n")
	}
	fmt.Fprintf(out, "Run ID     : %s\n", mgr.RunID())
	fmt.Fprintf(out, "======================================================================\n\n")
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// progressLine is blank-padded so a shorter line fully overwrites a longer one.
func progressLine(snap monitor.Snapshot, duration time.Duration) string {
	if !snap.AgentsStarted {
		return fmt.Sprintf("Starting agents... %s %-60s", snap.Running(), "")
	}

	elapsed := snap.Elapsed.Round(time.Second)
	var head string
	if duration > 0 {
		pct := snap.Elapsed.Seconds() / duration.Seconds()
		if pct > 1.0 {
			pct = 1.0
		}
		head = fmt.Sprintf("%s %3.0f%% | %s/%s", progressBar(pct, 20), pct*100, elapsed, duration)
	} else {
		head = monitor.HumanizeDuration(snap.Elapsed)
	}
	return fmt.Sprintf("%s | Reqs: %d | Errs: %d | AvgResp: %.3fs | AvgTp: %.2f | CurTp: %.2f   ",
		head,
		snap.Totals.Count,
		snap.Totals.ErrorCount,
		snap.AvgLatency,
		snap.AvgThroughput,
		snap.CurThroughput,
	)
}

// collectFailures groups error log entries by everything after the agent
// prefix, so the same failure on many agents counts together.
func collectFailures(into map[string]int, entries []string) {
	for _, e := range entries {
		if _, rest, ok := strings.Cut(e, ": "); ok && strings.HasPrefix(e, "agent ") {
			e = rest
		}
		into[e]++
	}
}

func printSummary(out io.Writer, snap monitor.Snapshot, failures map[string]int) {
	t := snap.Totals

	fmt.Fprintf(out, "\n\n📊 LOAD TEST RESULTS\n")
	fmt.Fprintf(out, "======================================================================\n")
	fmt.Fprintf(out, "Run Time       : %s\n", monitor.HumanizeDuration(snap.Elapsed))
	fmt.Fprintf(out, "Agents Running : %s\n", snap.Running())
	fmt.Fprintf(out, "Requests Sent  : %d\n", t.Count)
	fmt.Fprintf(out, "Errors         : %d (%.2f%%)\n", t.ErrorCount, t.ErrorRate())
	fmt.Fprintf(out, "Bytes Received : %d\n", t.TotalBytes)
	fmt.Fprintf(out, "Avg Throughput : %.2f req/s\n", snap.AvgThroughput)
	fmt.Fprintf(out, "\n⏱️  RESPONSE TIMES\n")
	fmt.Fprintf(out, "   Avg : %.3fs\n", snap.AvgLatency)
	fmt.Fprintf(out, "   P50 : %s\n", snap.P50)
	fmt.Fprintf(out, "   P90 : %s\n", snap.P90)
	fmt.Fprintf(out, "   P99 : %s\n", snap.P99)
	fmt.Fprintf(out, "   Max : %s\n", snap.Max)
	if snap.Host != (monitor.HostLoad{}) {
		fmt.Fprintf(out, "\n🖥️  GENERATOR HOST\n")
		fmt.Fprintf(out, "   CPU : %.1f%%\n", snap.Host.CPUPercent)
		fmt.Fprintf(out, "   Mem : %.1f%%\n", snap.Host.MemPercent)
	}

	if len(failures) > 0 {
		type row struct {
			msg   string
			count int
		}
		rows := make([]row, 0, len(failures))
		for msg, n := range failures {
			rows = append(rows, row{msg, n})
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].count != rows[j].count {
				return rows[i].count > rows[j].count
			}
			return rows[i].msg < rows[j].msg
		})
		fmt.Fprintf(out, "\n❌ FAILURE SUMMARY\n")
		for _, r := range rows {
			fmt.Fprintf(out, "   %d x %s\n", r.count, r.msg)
		}
	}
	fmt.Fprintf(out, "======================================================================\n")
}
