package metrics

import (
	"net/http"
	"strconv"

	"agentq/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentq"

// Source is read on every scrape. runner.Manager satisfies it.
type Source interface {
	Stats() *stats.Table
	AgentsStarted() bool
	Running() bool
}

var (
	requestsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "requests_total"),
		"Requests completed by the agent.", []string{"agent"}, nil)
	errorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "errors_total"),
		"Requests that failed transport or verification.", []string{"agent"}, nil)
	bytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "bytes_total"),
		"Response body bytes received.", []string{"agent"}, nil)
	avgLatencyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "latency_avg_seconds"),
		"Mean request latency.", []string{"agent"}, nil)
	lastLatencyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "latency_last_seconds"),
		"Latency of the most recent request.", []string{"agent"}, nil)
	startedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "agents_started"),
		"1 once every agent has issued its first request.", nil, nil)
	runningDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "run_state"),
		"1 while a run is active.", nil, nil)
)

// Collector exports the Stats Table without keeping any state of its own.
type Collector struct {
	src Source
}

func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- errorsDesc
	ch <- bytesDesc
	ch <- avgLatencyDesc
	ch <- lastLatencyDesc
	ch <- startedDesc
	ch <- runningDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(startedDesc, prometheus.GaugeValue, boolValue(c.src.AgentsStarted()))
	ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.GaugeValue, boolValue(c.src.Running()))

	table := c.src.Stats()
	if table == nil {
		return
	}
	for i, s := range table.Snapshot() {
		agent := strconv.Itoa(i + 1)
		ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(s.Count), agent)
		ch <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue, float64(s.ErrorCount), agent)
		ch <- prometheus.MustNewConstMetric(bytesDesc, prometheus.CounterValue, float64(s.TotalBytes), agent)
		ch <- prometheus.MustNewConstMetric(avgLatencyDesc, prometheus.GaugeValue, s.AvgLatency, agent)
		ch <- prometheus.MustNewConstMetric(lastLatencyDesc, prometheus.GaugeValue, s.Latency, agent)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// NewRegistry returns a private registry holding the run collector.
func NewRegistry(src Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(src))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
