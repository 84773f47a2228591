package events

import (
	"fmt"
	"strconv"
	"time"
)

// Header is the first row of every newly created session log.
var Header = []string{"sequence", "timestamp", "kind", "param1", "param2"}

// EncodeRecord renders an event as one CSV record in the fixed column order
// sequence,timestamp,kind,param1,param2. The timestamp column is the wall
// clock in microseconds. Variants with a single parameter leave param2 empty.
func EncodeRecord(ev InputEvent) []string {
	record := []string{
		strconv.FormatUint(ev.Sequence, 10),
		strconv.FormatInt(ev.Time.UnixMicro(), 10),
		string(ev.Kind),
		strconv.FormatInt(ev.P1, 10),
		"",
	}
	if ev.Kind.ParamCount() == 2 {
		record[4] = strconv.FormatInt(ev.P2, 10)
	}
	return record
}

// ParseRecord is the inverse of EncodeRecord. The monotonic component of the
// original capture time is not representable in the log and is absent from
// the parsed event.
func ParseRecord(record []string) (InputEvent, error) {
	if len(record) != len(Header) {
		return InputEvent{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(record))
	}

	sequence, err := strconv.ParseUint(record[0], 10, 64)
	if err != nil {
		return InputEvent{}, fmt.Errorf("parse sequence %q: %w", record[0], err)
	}
	micros, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return InputEvent{}, fmt.Errorf("parse timestamp %q: %w", record[1], err)
	}
	kind := Kind(record[2])
	if !kind.Valid() {
		return InputEvent{}, fmt.Errorf("unknown kind %q", record[2])
	}
	p1, err := strconv.ParseInt(record[3], 10, 64)
	if err != nil {
		return InputEvent{}, fmt.Errorf("parse param1 %q: %w", record[3], err)
	}

	ev := InputEvent{
		Sequence: sequence,
		Time:     time.UnixMicro(micros),
		Kind:     kind,
		P1:       p1,
	}

	if kind.ParamCount() == 2 {
		p2, err := strconv.ParseInt(record[4], 10, 64)
		if err != nil {
			return InputEvent{}, fmt.Errorf("parse param2 %q: %w", record[4], err)
		}
		ev.P2 = p2
	} else if record[4] != "" {
		return InputEvent{}, fmt.Errorf("kind %q does not carry param2, got %q", kind, record[4])
	}

	return ev, nil
}
