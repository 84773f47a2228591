package hook

import (
	"context"
	"sync/atomic"
	"time"
)

// Kind identifies the raw notification type delivered by the platform.
type Kind int

const (
	KindUnknown Kind = iota
	KindKeyDown
	KindKeyUp
	KindFlagsChanged
	KindMouseDown
	KindMouseUp
	KindMouseMove
	KindScroll
)

// Sample is one raw input notification. Fields beyond Kind are populated
// only where the kind carries them: Code for keyboard samples, Button and
// X/Y for mouse buttons, X/Y for motion, DX/DY for scroll wheels.
type Sample struct {
	Time   time.Time
	Kind   Kind
	Code   int64
	Button int64
	X      float64
	Y      float64
	DX     int64
	DY     int64
}

// Handler consumes raw samples. It runs on the platform callback context and
// must return quickly; anything slow belongs downstream.
type Handler func(Sample)

// Source delivers platform input notifications until ctx is cancelled.
type Source interface {
	Stream(ctx context.Context, emit Handler) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, emit Handler) error

// Stream calls the underlying function.
func (f SourceFunc) Stream(ctx context.Context, emit Handler) error {
	return f(ctx, emit)
}

// Script returns a Source that replays the given samples in order. Tests and
// the non-darwin fallback use it.
func Script(samples []Sample) Source {
	return SourceFunc(func(ctx context.Context, emit Handler) error {
		for _, sample := range samples {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(sample)
		}
		return nil
	})
}

// Hook is the single process-wide input registration. Sessions come and go;
// the hook stays registered and only its delivery handler is swapped.
type Hook struct {
	source    Source
	handler   atomic.Pointer[Handler]
	listening atomic.Bool
}

// New constructs a hook around the given source. A nil source selects the
// platform default (Quartz tap on darwin, scripted samples elsewhere).
func New(source Source) *Hook {
	if source == nil {
		source = platformSource()
	}
	return &Hook{source: source}
}

// SetHandler installs the delivery target for subsequent samples. A nil
// handler discards samples, which is the idle-state behaviour between
// sessions.
func (h *Hook) SetHandler(fn Handler) {
	if fn == nil {
		h.handler.Store(nil)
		return
	}
	h.handler.Store(&fn)
}

// Listen registers with the platform and dispatches samples until ctx is
// cancelled or the source fails. It may be called once per process; the
// returned error is fatal for capture.
func (h *Hook) Listen(ctx context.Context) error {
	if !h.listening.CompareAndSwap(false, true) {
		return ErrAlreadyListening
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.source.Stream(ctx, h.dispatch)
}

func (h *Hook) dispatch(sample Sample) {
	fn := h.handler.Load()
	if fn == nil {
		return
	}
	(*fn)(sample)
}
