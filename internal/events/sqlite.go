package events

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rohankatakam/strategos-engine/internal/errors"
)

// SQLiteRecorder is a durable Emitter that appends every event to a SQLite
// database, so a project's event stream survives process restarts and can
// be inspected after the fact. It is additive to, not a replacement for,
// whatever live transport (SSE, logs) the host wires alongside it.
type SQLiteRecorder struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRecorder opens (creating if necessary) a SQLite database at path
// and ensures the events table exists.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to open event log")
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "failed to create events table")
	}

	return &SQLiteRecorder{
		db:     db,
		logger: slog.Default().With("component", "events.sqlite"),
	}, nil
}

// Emit implements Emitter. A write failure is logged and swallowed — the
// event log is a best-effort diagnostic aid, never load-bearing for the
// pipeline's own control flow.
func (r *SQLiteRecorder) Emit(eventType string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("failed to marshal event payload", "type", eventType, "error", err)
		return
	}

	if _, err := r.db.Exec(
		`INSERT INTO events (event_type, payload) VALUES (?, ?)`,
		eventType, string(data),
	); err != nil {
		r.logger.Warn("failed to persist event", "type", eventType, "error", err)
	}
}

// Close closes the underlying database handle.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// PersistedEvent is one row read back from the event log.
type PersistedEvent struct {
	ID         int64
	Type       string
	Payload    map[string]interface{}
	RecordedAt string
}

// Tail returns the most recent n events, oldest first.
func (r *SQLiteRecorder) Tail(n int) ([]PersistedEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, event_type, payload, recorded_at FROM events ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to query event log")
	}
	defer rows.Close()

	var out []PersistedEvent
	for rows.Next() {
		var e PersistedEvent
		var raw string
		if err := rows.Scan(&e.ID, &e.Type, &raw, &e.RecordedAt); err != nil {
			return nil, errors.DatabaseError(err, "failed to scan event row")
		}
		if err := json.Unmarshal([]byte(raw), &e.Payload); err != nil {
			e.Payload = map[string]interface{}{"_unparseable": raw}
		}
		out = append(out, e)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, rows.Err()
}
