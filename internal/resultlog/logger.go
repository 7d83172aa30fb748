// Package resultlog records every completed request of a run and turns the
// record set into report files when the run ends.
package resultlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agentq/internal/storage"

	"github.com/rs/zerolog"
)

const (
	DBFile      = "results.db"
	CSVFile     = "results.csv"
	SummaryFile = "summary.json"

	batchSize     = 100
	flushInterval = 500 * time.Millisecond
	metaRunID     = "run_id"
)

type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// Record is one completed request.
type Record struct {
	AgentID   int           `json:"agent_id"`
	Timestamp time.Time     `json:"timestamp"`
	Method    string        `json:"method"`
	URL       string        `json:"url"`
	Status    int           `json:"status"`
	Outcome   Outcome       `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	Bytes     int64         `json:"bytes"`
}

// Writer receives records from many agents. Close flushes and writes the
// report files; no Log call may follow it.
type Writer interface {
	Log(rec Record)
	Close() error
}

// Logger is the bbolt-backed Writer. A single goroutine batches records into
// the store so agents never wait on disk.
type Logger struct {
	dir     string
	store   *storage.Store
	records chan Record
	done    chan struct{}
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	err    error
}

// Open creates <dir>/<runID>/ and starts the writer.
func Open(dir, runID string, log zerolog.Logger) (*Logger, error) {
	runDir := filepath.Join(dir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	store, err := storage.Open(filepath.Join(runDir, DBFile))
	if err != nil {
		return nil, err
	}
	if err := store.PutMeta(metaRunID, []byte(runID)); err != nil {
		store.Close()
		return nil, err
	}

	l := &Logger{
		dir:     runDir,
		store:   store,
		records: make(chan Record, batchSize*10),
		done:    make(chan struct{}),
		log:     log.With().Str("component", "resultlog").Str("run_id", runID).Logger(),
	}
	go l.loop()
	l.log.Info().Str("dir", runDir).Msg("result log opened")
	return l, nil
}

// Dir is the run directory holding the store and reports.
func (l *Logger) Dir() string { return l.dir }

func (l *Logger) Log(rec Record) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	l.records <- rec
}

func (l *Logger) loop() {
	defer close(l.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([][]byte, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.store.Append(batch); err != nil {
			l.log.Error().Err(err).Int("records", len(batch)).Msg("flush failed")
			l.err = errors.Join(l.err, err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-l.records:
			if !ok {
				flush()
				return
			}
			b, err := json.Marshal(rec)
			if err != nil {
				l.err = errors.Join(l.err, err)
				continue
			}
			batch = append(batch, b)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close drains pending records, writes results.csv and summary.json, and
// closes the store.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.records)
	l.mu.Unlock()

	<-l.done
	err := l.err
	if rerr := writeReports(l.store, l.dir); rerr != nil {
		err = errors.Join(err, rerr)
	}
	count, cntErr := l.store.Count()
	if cerr := l.store.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if cntErr != nil {
		l.log.Warn().Err(cntErr).Msg("result log finalized, record count unavailable")
		return err
	}
	l.log.Info().Int("records", count).Msg("result log finalized")
	return err
}

// Regenerate rebuilds the report files of a finished run directory.
func Regenerate(dir string) error {
	path := filepath.Join(dir, DBFile)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no result log in %s: %w", dir, err)
	}
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return writeReports(store, dir)
}

func writeReports(store *storage.Store, dir string) error {
	csvFile, err := os.Create(filepath.Join(dir, CSVFile))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	csvw, err := NewCSVWriter(csvFile)
	if err != nil {
		return err
	}
	sum := NewSummarizer()
	if runID, err := store.Meta(metaRunID); err == nil {
		sum.RunID = string(runID)
	}

	err = store.ForEach(func(v []byte) error {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		sum.Add(rec)
		return csvw.Write(rec)
	})
	if err != nil {
		return err
	}
	if err := csvw.Flush(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sum.Summary(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, SummaryFile), data, 0644)
}
