package api

import (
	"net/http"
	"time"

	"agentq/internal/stats"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type RunResponse struct {
	RunID          string  `json:"run_id"`
	State          string  `json:"state"`
	AgentsStarted  bool    `json:"agents_started"`
	Agents         int     `json:"agents"`
	ActiveAgents   int     `json:"active_agents"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Requests       uint64  `json:"requests"`
	Errors         uint64  `json:"errors"`
	PendingErrors  int     `json:"pending_errors"`
	Bytes          uint64  `json:"bytes"`
	AvgLatency     float64 `json:"avg_latency_seconds"`
}

type AgentResponse struct {
	Agent      int     `json:"agent"`
	Status     string  `json:"status"`
	Requests   uint64  `json:"requests"`
	Errors     uint64  `json:"errors"`
	Bytes      uint64  `json:"bytes"`
	Latency    float64 `json:"latency_seconds"`
	AvgLatency float64 `json:"avg_latency_seconds"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

func (s *Server) getRun(c *gin.Context) {
	resp := RunResponse{
		RunID:         s.ctl.RunID(),
		State:         s.ctl.State().String(),
		AgentsStarted: s.ctl.AgentsStarted(),
		Agents:        s.ctl.Config().Agents,
	}
	if table := s.ctl.Stats(); table != nil {
		t := stats.Aggregate(table.Snapshot())
		resp.ActiveAgents = t.Active
		resp.Requests = t.Count
		resp.Errors = t.ErrorCount
		resp.Bytes = t.TotalBytes
		resp.AvgLatency = t.AvgLatency()
		if start := s.ctl.StartTime(); !start.IsZero() {
			resp.ElapsedSeconds = time.Since(start).Seconds()
		}
	}
	// peek only; the error log belongs to the monitor that drains it
	if errs := s.ctl.Errors(); errs != nil {
		resp.PendingErrors = errs.Pending()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listAgents(c *gin.Context) {
	table := s.ctl.Stats()
	if table == nil {
		c.JSON(http.StatusOK, []AgentResponse{})
		return
	}
	rows := table.Snapshot()
	out := make([]AgentResponse, len(rows))
	for i, r := range rows {
		out[i] = AgentResponse{
			Agent:      i + 1,
			Status:     r.Status.String(),
			Requests:   r.Count,
			Errors:     r.ErrorCount,
			Bytes:      r.TotalBytes,
			Latency:    r.Latency,
			AvgLatency: r.AvgLatency,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) stop(c *gin.Context) {
	if err := s.ctl.Stop(); err != nil {
		s.log.Error().Err(err).Msg("stop failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "stop_failed",
			Message: err.Error(),
		})
		return
	}
	s.getRun(c)
}
