package audit

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jwaldner/strikemap/internal/logger"
	"github.com/jwaldner/strikemap/internal/pricing"
)

var (
	ErrChannelFull = errors.New("audit channel full")
	ErrClosed      = errors.New("audit recorder closed")
)

// BuildRecord describes one finished grid build.
type BuildRecord struct {
	BuildID     string          `json:"build_id"`
	SessionID   string          `json:"session_id,omitempty"`
	Inputs      pricing.Request `json:"inputs"`
	Requests    int             `json:"requests"`
	Failures    int             `json:"failures"`
	Warning     string          `json:"warning,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
	Discarded   bool            `json:"discarded"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Recorder accepts build records without blocking the caller.
type Recorder interface {
	Record(rec BuildRecord) error
}

// Discard drops every record.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(BuildRecord) error { return nil }

// Worker appends each record as one JSON line. A single goroutine owns the
// underlying writer.
type Worker struct {
	mu     sync.RWMutex
	ch     chan BuildRecord
	done   chan struct{}
	closed bool
	out    io.Writer
	file   *os.File
}

// NewWorker starts a worker writing to w.
func NewWorker(w io.Writer, buffer int) *Worker {
	if buffer < 1 {
		buffer = 1
	}
	aw := &Worker{
		ch:   make(chan BuildRecord, buffer),
		done: make(chan struct{}),
		out:  w,
	}
	go aw.run()
	return aw
}

// OpenFile starts a worker appending to path, creating it if needed.
func OpenFile(path string, buffer int) (*Worker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	aw := NewWorker(f, buffer)
	aw.file = f
	return aw, nil
}

// Record queues rec. A full channel drops the record.
func (aw *Worker) Record(rec BuildRecord) error {
	aw.mu.RLock()
	defer aw.mu.RUnlock()

	if aw.closed {
		return ErrClosed
	}

	select {
	case aw.ch <- rec:
		return nil
	default:
		logger.Warn.Printf("audit: dropping record for build %s: %v", rec.BuildID, ErrChannelFull)
		return ErrChannelFull
	}
}

// Close flushes queued records and stops the worker.
func (aw *Worker) Close() error {
	aw.mu.Lock()
	if aw.closed {
		aw.mu.Unlock()
		return nil
	}
	aw.closed = true
	close(aw.ch)
	aw.mu.Unlock()

	<-aw.done
	if aw.file != nil {
		return aw.file.Close()
	}
	return nil
}

func (aw *Worker) run() {
	defer close(aw.done)

	enc := json.NewEncoder(aw.out)
	for rec := range aw.ch {
		if err := enc.Encode(rec); err != nil {
			logger.Warn.Printf("audit: failed to write record for build %s: %v", rec.BuildID, err)
			continue
		}
		logger.Debug.Printf("audit: recorded build %s (%d/%d failed, discarded=%t)",
			rec.BuildID, rec.Failures, rec.Requests, rec.Discarded)
	}
}
