package events

import "time"

// Kind tags the canonical event variants. The values are the exact strings
// written to the log's kind column.
type Kind string

const (
	KeyDown   Kind = "KeyDown"
	KeyUp     Kind = "KeyUp"
	MouseDown Kind = "MouseDown"
	MouseUp   Kind = "MouseUp"
	MouseMove Kind = "MouseMove"
	Scroll    Kind = "Scroll"
)

// InputEvent is the canonical record of one user action.
//
// Sequence is assigned at enqueue time, strictly increasing and contiguous
// within a session. Time carries both wall-clock and monotonic readings (Go
// keeps the monotonic component inside time.Time); the log serializes the
// wall clock at microsecond resolution.
type InputEvent struct {
	Sequence uint64
	Time     time.Time
	Kind     Kind
	P1       int64
	P2       int64
}

// ParamCount reports how many of P1/P2 the kind carries. Key and mouse
// button variants use P1 only; motion and scroll use both.
func (k Kind) ParamCount() int {
	switch k {
	case KeyDown, KeyUp, MouseDown, MouseUp:
		return 1
	case MouseMove, Scroll:
		return 2
	default:
		return 0
	}
}

// Valid reports whether k is one of the canonical variants.
func (k Kind) Valid() bool {
	switch k {
	case KeyDown, KeyUp, MouseDown, MouseUp, MouseMove, Scroll:
		return true
	default:
		return false
	}
}
