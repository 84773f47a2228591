package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/taskrecorder/pkg/events"
	"github.com/offlinefirst/taskrecorder/pkg/hook"
)

// Control errors surfaced synchronously by Start/Stop.
var (
	ErrAlreadyRecording  = errors.New("a recording session is already active")
	ErrNotRecording      = errors.New("no recording session is active")
	ErrOutputUnavailable = errors.New("output target unavailable")
)

// State enumerates the controller's lifecycle positions.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

// Status is a non-blocking snapshot for the control surface.
type Status struct {
	State     State
	SessionID string
	Output    string
	StartedAt time.Time
	Elapsed   time.Duration
	Degraded  bool
}

// Summary reports the outcome of one finished session. Dropped counts
// events that were captured during the session but never reached the file
// (write fault or queue shedding); Unrecognized counts raw samples with no
// canonical mapping; Coalesced counts throttled mouse moves. Neither of the
// latter two is a loss.
type Summary struct {
	SessionID     string
	Output        string
	StartedAt     time.Time
	EndedAt       time.Time
	Duration      time.Duration
	EventsWritten uint64
	Dropped       uint64
	Unrecognized  uint64
	Coalesced     uint64
	Degraded      bool
	FailureReason string
}

// Options configures a Recorder.
type Options struct {
	Logger *slog.Logger
	Clock  func() time.Time

	// QueueSoftLimit bounds pending events; 0 means unbounded.
	QueueSoftLimit int
	// MoveThrottle coalesces mouse moves arriving within the window; 0
	// disables coalescing.
	MoveThrottle time.Duration
	// FlushEvery forces a writer flush after this many rows.
	FlushEvery int

	// OpenWriter is swappable for tests; defaults to NewWriter.
	OpenWriter func(path string, flushEvery int) (*Writer, error)
	// OnSessionEnd receives each finished session's summary. It runs on the
	// stopping caller's goroutine; failures there must not fail the stop.
	OnSessionEnd func(Summary)
}

// Recorder is the session controller: the one state machine the control
// surface talks to. Exactly one session records at a time.
type Recorder struct {
	logger       *slog.Logger
	clock        func() time.Time
	softLimit    int
	moveThrottle time.Duration
	flushEvery   int
	openWriter   func(path string, flushEvery int) (*Writer, error)
	onSessionEnd func(Summary)

	mu      sync.Mutex
	state   State
	current *session

	// active is the cheap gate the capture callback consults; nil while not
	// recording so idle-time events are discarded, never buffered.
	active atomic.Pointer[session]
}

type session struct {
	id        string
	output    string
	startedAt time.Time
	queue     *events.Queue
	writer    *Writer
	seq       atomic.Uint64
	unmapped  atomic.Uint64
	coalesced atomic.Uint64
	lastMove  atomic.Int64
	done      chan struct{}
}

// New constructs an idle recorder.
func New(opts Options) (*Recorder, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger must be provided")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	openWriter := opts.OpenWriter
	if openWriter == nil {
		openWriter = NewWriter
	}
	return &Recorder{
		logger:       opts.Logger,
		clock:        clock,
		softLimit:    opts.QueueSoftLimit,
		moveThrottle: opts.MoveThrottle,
		flushEvery:   opts.FlushEvery,
		openWriter:   openWriter,
		onSessionEnd: opts.OnSessionEnd,
		state:        StateIdle,
	}, nil
}

// Start opens the output target and begins a session. It fails with
// ErrAlreadyRecording unless the recorder is idle, and with
// ErrOutputUnavailable when the target cannot be opened; neither failure
// has side effects.
func (r *Recorder) Start(output string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return "", ErrAlreadyRecording
	}

	writer, err := r.openWriter(output, r.flushEvery)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputUnavailable, err)
	}

	sess := &session{
		id:        uuid.NewString(),
		output:    output,
		startedAt: r.clock(),
		queue:     events.NewQueue(r.softLimit),
		writer:    writer,
		done:      make(chan struct{}),
	}

	go r.consume(sess)

	r.current = sess
	r.active.Store(sess)
	r.state = StateRecording

	r.logger.Info("recording started", "session_id", sess.id, "output", output)
	return sess.id, nil
}

// Stop closes the producer side, blocks until the writer has drained,
// flushed and released the file, and returns the session summary. This is
// the only intentionally blocking control operation; a concurrent second
// Stop fails with ErrNotRecording once the first has advanced past
// Recording.
func (r *Recorder) Stop() (Summary, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return Summary{}, ErrNotRecording
	}
	r.state = StateStopping
	sess := r.current
	r.mu.Unlock()

	// Order matters: detach the capture gate first so nothing new enters,
	// then seal the queue. Everything enqueued before the seal is drained.
	r.active.Store(nil)
	sess.queue.Close()
	<-sess.done

	closeErr := sess.writer.Close()

	ended := r.clock()
	summary := Summary{
		SessionID:     sess.id,
		Output:        sess.output,
		StartedAt:     sess.startedAt,
		EndedAt:       ended,
		Duration:      ended.Sub(sess.startedAt),
		EventsWritten: sess.writer.Written(),
		Dropped:       sess.writer.Lost() + sess.queue.DroppedOldest(),
		Unrecognized:  sess.unmapped.Load(),
		Coalesced:     sess.coalesced.Load(),
	}
	if fault := sess.writer.Fault(); fault != nil {
		summary.Degraded = true
		summary.FailureReason = fault.Error()
	} else if closeErr != nil {
		summary.Degraded = true
		summary.FailureReason = closeErr.Error()
	}

	r.mu.Lock()
	r.state = StateIdle
	r.current = nil
	r.mu.Unlock()

	if summary.Degraded {
		r.logger.Error("recording stopped degraded",
			"session_id", summary.SessionID,
			"written", summary.EventsWritten,
			"dropped", summary.Dropped,
			"reason", summary.FailureReason)
	} else {
		r.logger.Info("recording stopped",
			"session_id", summary.SessionID,
			"written", summary.EventsWritten,
			"dropped", summary.Dropped,
			"duration", summary.Duration)
	}

	if r.onSessionEnd != nil {
		r.onSessionEnd(summary)
	}
	return summary, nil
}

// Status is a pure read; it never blocks on capture or write activity.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return Status{State: StateIdle}
	}
	sess := r.current
	return Status{
		State:     r.state,
		SessionID: sess.id,
		Output:    sess.output,
		StartedAt: sess.startedAt,
		Elapsed:   r.clock().Sub(sess.startedAt),
		Degraded:  sess.writer.Fault() != nil,
	}
}

// Sink exposes the capture callback to install on the process hook. It
// normalizes, assigns the session sequence, and enqueues; while no session
// records it discards immediately. It never blocks.
func (r *Recorder) Sink() hook.Handler {
	return r.handleSample
}

func (r *Recorder) handleSample(sample hook.Sample) {
	sess := r.active.Load()
	if sess == nil {
		return
	}

	if sample.Kind == hook.KindMouseMove && r.moveThrottle > 0 {
		at := sample.Time
		if at.IsZero() {
			at = r.clock()
		}
		nanos := at.UnixNano()
		last := sess.lastMove.Load()
		if last != 0 && nanos-last < int64(r.moveThrottle) {
			sess.coalesced.Add(1)
			return
		}
		sess.lastMove.Store(nanos)
	}

	ev, err := events.Normalize(sample)
	if err != nil {
		sess.unmapped.Add(1)
		return
	}

	ev.Sequence = sess.seq.Add(1)
	sess.queue.Push(ev)
}

// consume is the single writer loop: it drains the queue in order, flushing
// whenever the queue momentarily idles.
func (r *Recorder) consume(sess *session) {
	defer close(sess.done)

	faultLogged := false
	for {
		ev, ok := sess.queue.TryPop()
		if !ok {
			if err := sess.writer.Flush(); err != nil && !faultLogged {
				faultLogged = true
				r.logger.Error("session write failure", "session_id", sess.id, "error", err)
			}
			ev, ok = sess.queue.Pop()
			if !ok {
				return
			}
		}
		if err := sess.writer.Append(ev); err != nil && !faultLogged {
			faultLogged = true
			r.logger.Error("session write failure", "session_id", sess.id, "error", err)
		}
	}
}
