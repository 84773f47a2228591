// Package hook owns the process-wide input hook registration. On macOS it
// listens through a Quartz event tap (requires Accessibility approval); on
// other platforms a deterministic scripted source stands in so the pipeline
// runs in automated tests.
package hook
