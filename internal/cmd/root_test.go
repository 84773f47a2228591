package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/offlinefirst/taskrecorder/pkg/recorder"
	"github.com/offlinefirst/taskrecorder/pkg/registry"
)

func newTestRoot() (*RootCommand, *bytes.Buffer, *bytes.Buffer) {
	rc := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	rc.stdout = stdout
	rc.stderr = stderr
	return rc, stdout, stderr
}

func TestHelpListsCommands(t *testing.T) {
	rc, stdout, _ := newTestRoot()
	if err := rc.Execute(nil); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	for _, name := range []string{"serve", "record", "sessions", "doctor", "version"} {
		if !strings.Contains(stdout.String(), name) {
			t.Fatalf("help output missing %q:\n%s", name, stdout.String())
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	rc, _, stderr := newTestRoot()
	if err := rc.Execute([]string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(stderr.String(), "Unknown command") {
		t.Fatalf("stderr missing diagnostic:\n%s", stderr.String())
	}
}

func TestVersionCommand(t *testing.T) {
	rc, stdout, _ := newTestRoot()
	if err := rc.Execute([]string{"version"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "taskrec ") {
		t.Fatalf("unexpected version output: %q", stdout.String())
	}
}

func TestInvalidLogLevelRejected(t *testing.T) {
	rc, _, _ := newTestRoot()
	if err := rc.Execute([]string{"--log-level", "loud", "doctor"}); err == nil {
		t.Fatal("expected error for unsupported log level")
	}
}

func TestDoctorReportsEnvironment(t *testing.T) {
	t.Setenv("RECORDER_ACCESSIBILITY", "granted")

	rc, stdout, _ := newTestRoot()
	if err := rc.Execute([]string{"doctor"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "Capture environment:") {
		t.Fatalf("missing environment section:\n%s", out)
	}
	if !strings.Contains(out, "control addr:") {
		t.Fatalf("missing configuration section:\n%s", out)
	}
}

func TestSessionsListsRegistryRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	t.Setenv("RECORDER_REGISTRY__PATH", dbPath)

	reg, err := registry.Open(dbPath)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	started := time.Now().Add(-time.Minute)
	err = reg.Insert(context.Background(), recorder.Summary{
		SessionID:     "11111111-2222-3333-4444-555555555555",
		Output:        "out.csv",
		StartedAt:     started,
		EndedAt:       started.Add(30 * time.Second),
		Duration:      30 * time.Second,
		EventsWritten: 12,
	})
	if err != nil {
		t.Fatalf("insert summary: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("close registry: %v", err)
	}

	rc, stdout, _ := newTestRoot()
	if err := rc.Execute([]string{"sessions"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), "11111111-2222-3333-4444-555555555555") {
		t.Fatalf("session row missing:\n%s", stdout.String())
	}
}

func TestSessionsEmptyRegistry(t *testing.T) {
	t.Setenv("RECORDER_REGISTRY__PATH", filepath.Join(t.TempDir(), "sessions.db"))

	rc, stdout, _ := newTestRoot()
	if err := rc.Execute([]string{"sessions"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), "No sessions recorded.") {
		t.Fatalf("unexpected output:\n%s", stdout.String())
	}
}

func TestResolveOutput(t *testing.T) {
	cases := []struct {
		name      string
		outputDir string
		output    string
		want      string
	}{
		{"bare name joins output dir", "data/recordings", "run.csv", filepath.Join("data", "recordings", "run.csv")},
		{"relative path passes through", "data/recordings", "elsewhere/run.csv", "elsewhere/run.csv"},
		{"absolute path passes through", "data/recordings", "/tmp/run.csv", "/tmp/run.csv"},
		{"empty output dir passes through", "", "run.csv", "run.csv"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveOutput(tc.outputDir, tc.output); got != tc.want {
				t.Fatalf("resolveOutput(%q, %q) = %q, want %q", tc.outputDir, tc.output, got, tc.want)
			}
		})
	}
}
