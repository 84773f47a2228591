// Package events defines the canonical input event model shared by the
// capture pipeline: normalization from raw hook samples, the CSV row codec
// used by the session log, and the unbounded FIFO queue between the capture
// callback and the log writer.
package events
