package resultlog

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(n int) []Record {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	recs := make([]Record, n)
	for i := range recs {
		rec := Record{
			AgentID:   i%3 + 1,
			Timestamp: base.Add(time.Duration(i) * 100 * time.Millisecond),
			Method:    "GET",
			URL:       "http://localhost/a",
			Status:    200,
			Outcome:   OutcomeOK,
			Latency:   10 * time.Millisecond,
			Bytes:     4,
		}
		if i%5 == 4 {
			rec.URL = "http://localhost/b"
			rec.Status = 500
			rec.Outcome = OutcomeError
			rec.Reason = "HTTP 500"
		}
		recs[i] = rec
	}
	return recs
}

func TestLoggerWritesReports(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "run-1", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1"), l.Dir())

	recs := sampleRecords(250)
	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(recs); i += 5 {
				l.Log(recs[i])
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")
	l.Log(recs[0])

	f, err := os.Open(filepath.Join(l.Dir(), CSVFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 251)
	assert.Equal(t, csvHeader, rows[0])

	var sum Summary
	data, err := os.ReadFile(filepath.Join(l.Dir(), SummaryFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, int64(250), sum.Count)
	assert.Equal(t, int64(50), sum.Errors)
	assert.Equal(t, int64(1000), sum.Bytes)
	assert.Equal(t, int64(50), sum.StatusCode[500])
	require.Len(t, sum.URLs, 2)
	assert.Equal(t, "GET http://localhost/a", sum.URLs[0].Label)
	assert.Equal(t, int64(200), sum.URLs[0].Count)
	assert.Equal(t, int64(50), sum.URLs[1].Errors)
	assert.InDelta(t, 10.0, sum.Latency.P50, 0.1)
	require.Len(t, sum.Timeline, 25)
	assert.Equal(t, int64(0), sum.Timeline[0].Second)
	assert.Equal(t, int64(10), sum.Timeline[0].Requests)
}

func TestRegenerate(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "run-2", zerolog.Nop())
	require.NoError(t, err)
	for _, rec := range sampleRecords(20) {
		l.Log(rec)
	}
	require.NoError(t, l.Close())

	require.NoError(t, os.Remove(filepath.Join(l.Dir(), CSVFile)))
	require.NoError(t, os.Remove(filepath.Join(l.Dir(), SummaryFile)))

	require.NoError(t, Regenerate(l.Dir()))
	assert.FileExists(t, filepath.Join(l.Dir(), CSVFile))
	assert.FileExists(t, filepath.Join(l.Dir(), SummaryFile))

	assert.Error(t, Regenerate(t.TempDir()))
}

func TestSummarizerEmpty(t *testing.T) {
	sum := NewSummarizer().Summary()
	assert.Zero(t, sum.Count)
	assert.Zero(t, sum.Throughput)
	assert.Empty(t, sum.URLs)
	assert.Equal(t, LatencySummary{}, sum.Latency)
}
