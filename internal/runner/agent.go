package runner

import (
	"context"
	"fmt"
	"time"

	"agentq/internal/resultlog"
	"agentq/internal/stats"

	"github.com/rs/zerolog"
)

// agent is one simulated client. It walks the script until the run context
// is cancelled.
type agent struct {
	id        int // 0-based slot index
	delay     time.Duration
	pacing    time.Duration
	mode      PacingMode
	specs     []compiledSpec
	templates *TemplateEngine
	transport Transport
	slot      *stats.Slot
	errs      *stats.ErrorLog
	results   resultlog.Writer
	started   func()
	log       zerolog.Logger
}

func (a *agent) run(ctx context.Context) {
	defer a.slot.SetStatus(stats.StatusStopped)

	if !sleepCtx(ctx, a.delay) {
		return
	}
	a.slot.SetStatus(stats.StatusRunning)

	for {
		for i := range a.specs {
			cs := &a.specs[i]
			for r := 0; r < cs.spec.Repeat; r++ {
				if ctx.Err() != nil {
					return
				}
				a.execute(ctx, cs)
				if a.mode == PacePerRequest && !sleepCtx(ctx, a.pacing) {
					return
				}
			}
		}
		if a.mode != PacePerRequest && !sleepCtx(ctx, a.pacing) {
			return
		}
	}
}

func (a *agent) execute(ctx context.Context, cs *compiledSpec) {
	if a.started != nil {
		a.started()
		a.started = nil
	}

	start := time.Now()
	req, err := cs.render(a.templates, a.id+1)
	var resp *Response
	if err == nil {
		// stop never interrupts a request already on the wire
		resp, err = a.transport.Do(context.WithoutCancel(ctx), req)
	}
	latency := time.Since(start)

	var outcome Outcome
	var status int
	var bytes int64
	if err != nil {
		outcome = failed(err.Error())
	} else {
		if resp.Elapsed > 0 {
			latency = resp.Elapsed
		}
		status = resp.Status
		bytes = resp.Bytes
		if bytes == 0 {
			bytes = int64(len(resp.Body))
		}
		outcome = Verify(cs.spec, resp.Status, resp.Body)
	}

	a.slot.Record(latency, bytes, !outcome.OK)
	if !outcome.OK {
		msg := fmt.Sprintf("agent %d: %s %s: %s", a.id+1, req.Method, req.URL, outcome.Reason())
		a.errs.Append(msg)
		a.log.Debug().Int("agent", a.id+1).Int("status", status).Msg(msg)
	}

	if a.results != nil {
		rec := resultlog.Record{
			AgentID:   a.id + 1,
			Timestamp: start,
			Method:    req.Method,
			URL:       req.URL,
			Status:    status,
			Outcome:   resultlog.OutcomeOK,
			Latency:   latency,
			Bytes:     bytes,
		}
		if !outcome.OK {
			rec.Outcome = resultlog.OutcomeError
			rec.Reason = outcome.Reason()
		}
		a.results.Log(rec)
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
