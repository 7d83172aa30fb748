package resultlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

var csvHeader = []string{
	"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
	"threadName", "dataType", "success", "failureMessage", "bytes",
	"sentBytes", "grpThreads", "allThreads", "URL", "Latency", "IdleTime", "Connect",
}

// CSVWriter writes records as JMeter-compatible rows.
type CSVWriter struct {
	w *csv.Writer
}

func NewCSVWriter(out io.Writer) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	return &CSVWriter{w: w}, nil
}

func (c *CSVWriter) Write(rec Record) error {
	ms := strconv.FormatInt(rec.Latency.Milliseconds(), 10)
	return c.w.Write([]string{
		strconv.FormatInt(rec.Timestamp.UnixMilli(), 10),
		ms,
		rec.Method + " " + rec.URL,
		strconv.Itoa(rec.Status),
		http.StatusText(rec.Status),
		fmt.Sprintf("Agent-%d", rec.AgentID),
		"text",
		strconv.FormatBool(rec.Outcome == OutcomeOK),
		rec.Reason,
		strconv.FormatInt(rec.Bytes, 10),
		"0",
		"1",
		"1",
		rec.URL,
		ms,
		"0",
		"0",
	})
}

func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// LatencySummary is expressed in milliseconds.
type LatencySummary struct {
	Mean float64 `json:"mean_ms"`
	P50  float64 `json:"p50_ms"`
	P90  float64 `json:"p90_ms"`
	P95  float64 `json:"p95_ms"`
	P99  float64 `json:"p99_ms"`
	Max  float64 `json:"max_ms"`
}

type URLSummary struct {
	Label   string         `json:"label"`
	Count   int64          `json:"count"`
	Errors  int64          `json:"errors"`
	Latency LatencySummary `json:"latency"`
}

// SecondBucket is one second of the run, offset from the first record.
type SecondBucket struct {
	Second       int64   `json:"second"`
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

type Summary struct {
	RunID      string         `json:"run_id,omitempty"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	Count      int64          `json:"count"`
	Errors     int64          `json:"errors"`
	Bytes      int64          `json:"bytes"`
	Throughput float64        `json:"throughput_rps"`
	Latency    LatencySummary `json:"latency"`
	URLs       []URLSummary   `json:"urls"`
	Timeline   []SecondBucket `json:"timeline"`
	StatusCode map[int]int64  `json:"status_codes"`
}

type urlAgg struct {
	count, errors int64
	hist          *hdrhistogram.Histogram
}

type secondAgg struct {
	count, errors int64
	latency       time.Duration
}

// Summarizer folds records into a Summary one at a time.
type Summarizer struct {
	RunID string

	start, end time.Time
	count      int64
	errors     int64
	bytes      int64
	hist       *hdrhistogram.Histogram
	urls       map[string]*urlAgg
	seconds    map[int64]*secondAgg
	codes      map[int]int64
}

func NewSummarizer() *Summarizer {
	return &Summarizer{
		hist:    newHistogram(),
		urls:    make(map[string]*urlAgg),
		seconds: make(map[int64]*secondAgg),
		codes:   make(map[int]int64),
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
}

func recordLatency(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

func (s *Summarizer) Add(rec Record) {
	if s.count == 0 || rec.Timestamp.Before(s.start) {
		s.start = rec.Timestamp
	}
	if end := rec.Timestamp.Add(rec.Latency); end.After(s.end) {
		s.end = end
	}
	failed := rec.Outcome != OutcomeOK
	s.count++
	if failed {
		s.errors++
	}
	s.bytes += rec.Bytes
	s.codes[rec.Status]++
	recordLatency(s.hist, rec.Latency)

	label := rec.Method + " " + rec.URL
	u, ok := s.urls[label]
	if !ok {
		u = &urlAgg{hist: newHistogram()}
		s.urls[label] = u
	}
	u.count++
	if failed {
		u.errors++
	}
	recordLatency(u.hist, rec.Latency)

	sec := rec.Timestamp.Unix()
	b, ok := s.seconds[sec]
	if !ok {
		b = &secondAgg{}
		s.seconds[sec] = b
	}
	b.count++
	if failed {
		b.errors++
	}
	b.latency += rec.Latency
}

func latencySummary(h *hdrhistogram.Histogram) LatencySummary {
	if h.TotalCount() == 0 {
		return LatencySummary{}
	}
	ms := func(us int64) float64 { return float64(us) / 1000.0 }
	return LatencySummary{
		Mean: h.Mean() / 1000.0,
		P50:  ms(h.ValueAtQuantile(50)),
		P90:  ms(h.ValueAtQuantile(90)),
		P95:  ms(h.ValueAtQuantile(95)),
		P99:  ms(h.ValueAtQuantile(99)),
		Max:  ms(h.Max()),
	}
}

func (s *Summarizer) Summary() Summary {
	out := Summary{
		RunID:      s.RunID,
		Start:      s.start,
		End:        s.end,
		Count:      s.count,
		Errors:     s.errors,
		Bytes:      s.bytes,
		Latency:    latencySummary(s.hist),
		URLs:       make([]URLSummary, 0, len(s.urls)),
		Timeline:   make([]SecondBucket, 0, len(s.seconds)),
		StatusCode: s.codes,
	}
	if span := s.end.Sub(s.start).Seconds(); span > 0 {
		out.Throughput = float64(s.count) / span
	}

	for label, u := range s.urls {
		out.URLs = append(out.URLs, URLSummary{
			Label:   label,
			Count:   u.count,
			Errors:  u.errors,
			Latency: latencySummary(u.hist),
		})
	}
	sort.Slice(out.URLs, func(i, j int) bool { return out.URLs[i].Label < out.URLs[j].Label })

	first := s.start.Unix()
	for sec, b := range s.seconds {
		out.Timeline = append(out.Timeline, SecondBucket{
			Second:       sec - first,
			Requests:     b.count,
			Errors:       b.errors,
			AvgLatencyMs: float64(b.latency.Microseconds()) / float64(b.count) / 1000.0,
		})
	}
	sort.Slice(out.Timeline, func(i, j int) bool { return out.Timeline[i].Second < out.Timeline[j].Second })
	return out
}
