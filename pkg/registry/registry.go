// Package registry persists one row per finished recording session in a
// local sqlite database so the control surface can list past sessions
// without touching the log files.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/offlinefirst/taskrecorder/pkg/recorder"
)

// Record is one finished session as stored in the index.
type Record struct {
	SessionID     string
	Output        string
	StartedAt     time.Time
	EndedAt       time.Time
	EventsWritten uint64
	Dropped       uint64
	Unrecognized  uint64
	Coalesced     uint64
	Degraded      bool
	FailureReason string
}

type Registry struct {
	db *sql.DB
}

// Open creates or opens the session index at path.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure registry directory: %w", err)
		}
	}

	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Registry{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions(
	  session_id     TEXT    PRIMARY KEY,
	  output         TEXT    NOT NULL,
	  started_at_us  INTEGER NOT NULL,
	  ended_at_us    INTEGER NOT NULL,
	  events_written INTEGER NOT NULL,
	  dropped        INTEGER NOT NULL,
	  unrecognized   INTEGER NOT NULL,
	  coalesced      INTEGER NOT NULL,
	  degraded       INTEGER NOT NULL CHECK (degraded IN (0,1)),
	  failure_reason TEXT    NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at_us);
	`)
	if err != nil {
		return fmt.Errorf("create registry tables: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Insert stores a finished session's summary.
func (r *Registry) Insert(ctx context.Context, summary recorder.Summary) error {
	degraded := 0
	if summary.Degraded {
		degraded = 1
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO sessions(session_id, output, started_at_us, ended_at_us,
	  events_written, dropped, unrecognized, coalesced, degraded, failure_reason)
	VALUES(?,?,?,?,?,?,?,?,?,?)`,
		summary.SessionID,
		summary.Output,
		summary.StartedAt.UnixMicro(),
		summary.EndedAt.UnixMicro(),
		summary.EventsWritten,
		summary.Dropped,
		summary.Unrecognized,
		summary.Coalesced,
		degraded,
		summary.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", summary.SessionID, err)
	}
	return nil
}

// List returns finished sessions, most recent first.
func (r *Registry) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT session_id, output, started_at_us, ended_at_us,
	  events_written, dropped, unrecognized, coalesced, degraded, failure_reason
	FROM sessions ORDER BY started_at_us DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var startedUS, endedUS int64
		var degraded int
		if err := rows.Scan(&rec.SessionID, &rec.Output, &startedUS, &endedUS,
			&rec.EventsWritten, &rec.Dropped, &rec.Unrecognized, &rec.Coalesced,
			&degraded, &rec.FailureReason); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		rec.StartedAt = time.UnixMicro(startedUS)
		rec.EndedAt = time.UnixMicro(endedUS)
		rec.Degraded = degraded == 1
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return records, nil
}

// Get fetches one session by id.
func (r *Registry) Get(ctx context.Context, sessionID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT session_id, output, started_at_us, ended_at_us,
	  events_written, dropped, unrecognized, coalesced, degraded, failure_reason
	FROM sessions WHERE session_id = ?`, sessionID)

	var rec Record
	var startedUS, endedUS int64
	var degraded int
	if err := row.Scan(&rec.SessionID, &rec.Output, &startedUS, &endedUS,
		&rec.EventsWritten, &rec.Dropped, &rec.Unrecognized, &rec.Coalesced,
		&degraded, &rec.FailureReason); err != nil {
		return Record{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	rec.StartedAt = time.UnixMicro(startedUS)
	rec.EndedAt = time.UnixMicro(endedUS)
	rec.Degraded = degraded == 1
	return rec, nil
}
