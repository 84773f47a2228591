package events

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/offlinefirst/taskrecorder/pkg/hook"
)

// ErrUnmapped reports a raw sample with no canonical representation. It is
// non-fatal: the capture path counts the drop and moves on.
var ErrUnmapped = errors.New("unmapped input sample")

// Normalize converts a raw hook sample into a canonical event. Sequence is
// left unset; it belongs to the enqueue step. Coordinates are rounded to the
// integral pixel grid the log format carries.
func Normalize(sample hook.Sample) (InputEvent, error) {
	captured := sample.Time
	if captured.IsZero() {
		captured = time.Now()
	}
	ev := InputEvent{Time: captured}

	switch sample.Kind {
	case hook.KindKeyDown:
		ev.Kind = KeyDown
		ev.P1 = sample.Code
	case hook.KindKeyUp:
		ev.Kind = KeyUp
		ev.P1 = sample.Code
	case hook.KindMouseDown:
		ev.Kind = MouseDown
		ev.P1 = sample.Button
	case hook.KindMouseUp:
		ev.Kind = MouseUp
		ev.P1 = sample.Button
	case hook.KindMouseMove:
		ev.Kind = MouseMove
		ev.P1 = int64(math.Round(sample.X))
		ev.P2 = int64(math.Round(sample.Y))
	case hook.KindScroll:
		ev.Kind = Scroll
		ev.P1 = sample.DX
		ev.P2 = sample.DY
	default:
		return InputEvent{}, fmt.Errorf("%w: kind %d", ErrUnmapped, sample.Kind)
	}

	return ev, nil
}
