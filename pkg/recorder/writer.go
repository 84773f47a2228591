package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/offlinefirst/taskrecorder/pkg/events"
)

var errWriterClosed = errors.New("session writer closed")

// Writer is the single consumer end of a session: it streams events to the
// log file in sequence order as they arrive. The file handle is exclusively
// owned by the writer for the session's lifetime.
//
// A mid-session I/O fault latches: the error is kept, every row that was
// buffered or appended afterwards is counted as lost, and nothing is
// silently swallowed.
type Writer struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	csv        *csv.Writer
	flushEvery int
	pending    uint64
	written    uint64
	lost       uint64
	fault      error
	closed     bool
	closeErr   error
}

// NewWriter opens path in append/create mode. The header row is written
// exactly once, only when the file did not previously exist, so repeated
// sessions against the same path append below a single header.
func NewWriter(path string, flushEvery int) (*Writer, error) {
	if flushEvery <= 0 {
		flushEvery = 64
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)
	if statErr != nil && !isNew {
		return nil, fmt.Errorf("stat log file: %w", statErr)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	w := &Writer{
		path:       path,
		file:       file,
		csv:        csv.NewWriter(file),
		flushEvery: flushEvery,
	}

	if isNew {
		if err := w.csv.Write(events.Header); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	return w, nil
}

// newSinkWriter builds a writer over an arbitrary sink with no backing file.
// Tests use it to inject write faults.
func newSinkWriter(sink io.Writer, flushEvery int) *Writer {
	if flushEvery <= 0 {
		flushEvery = 64
	}
	return &Writer{csv: csv.NewWriter(sink), flushEvery: flushEvery}
}

// Append serializes one event. After a fault every call counts the event as
// lost and returns the latched error.
func (w *Writer) Append(ev events.InputEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fault != nil {
		w.lost++
		return w.fault
	}
	if w.closed {
		return errWriterClosed
	}

	if err := w.csv.Write(events.EncodeRecord(ev)); err != nil {
		w.latchLocked(err, w.pending+1)
		return err
	}
	w.pending++

	if w.pending >= uint64(w.flushEvery) {
		return w.flushLocked()
	}
	return nil
}

// Flush pushes buffered rows to the file. The writer loop calls it whenever
// the queue momentarily idles so a crash loses at most one batch.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fault != nil {
		return w.fault
	}
	if w.closed {
		return errWriterClosed
	}
	return w.flushLocked()
}

// Close flushes, syncs, and releases the file handle. It is idempotent:
// repeat calls return the first result with no further effect.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.closeErr
	}
	w.closed = true

	err := w.flushLocked()
	if w.fault != nil && err == nil {
		err = w.fault
	}

	if w.file != nil {
		if syncErr := w.file.Sync(); syncErr != nil && err == nil {
			err = syncErr
		}
		if closeErr := w.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	w.closeErr = err
	return err
}

// Written reports rows durably handed to the file.
func (w *Writer) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Lost reports rows accepted by Append that never reached the file.
func (w *Writer) Lost() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lost
}

// Fault returns the latched mid-session I/O error, if any.
func (w *Writer) Fault() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fault
}

// Path reports the output target.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) flushLocked() error {
	if w.pending == 0 {
		return nil
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.latchLocked(err, w.pending)
		return err
	}
	w.written += w.pending
	w.pending = 0
	return nil
}

func (w *Writer) latchLocked(err error, lost uint64) {
	w.fault = err
	w.lost += lost
	w.pending = 0
}
