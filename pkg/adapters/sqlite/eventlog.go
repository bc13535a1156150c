// Package sqlite persists run notifications in a SQLite event log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrInvalidEvent is returned for events without a type or run ID.
var ErrInvalidEvent = errors.New("invalid event")

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	timestamp  TEXT NOT NULL,
	type       TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	macro      TEXT NOT NULL,
	step_index INTEGER NOT NULL,
	step_kind  TEXT,
	result     TEXT,
	command    TEXT,
	reason     TEXT,
	elapsed_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq);
`

// EventLog appends executor events to a SQLite database.
type EventLog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures an EventLog.
type Option func(*EventLog)

// WithLogger sets the logger used when a hook cannot record an event.
func WithLogger(logger *slog.Logger) Option {
	return func(l *EventLog) {
		l.logger = logger
	}
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway log.
func Open(path string, opts ...Option) (*EventLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure event log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event log: %w", err)
	}

	l := &EventLog{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Append records one event.
func (l *EventLog) Append(ctx context.Context, ev domain.Event) error {
	if ev.Type == "" || ev.RunID == "" {
		return ErrInvalidEvent
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO events (
			id, timestamp, type, run_id, macro, step_index, step_kind, result, command, reason, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		string(ev.Type),
		ev.RunID,
		ev.Macro,
		ev.StepIndex,
		nullable(string(ev.StepKind)),
		nullable(string(ev.Result)),
		nullable(ev.Command),
		nullable(ev.Reason),
		ev.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Query filters events. Zero fields match everything.
type Query struct {
	RunID string
	Type  domain.EventType
	Limit int
}

// Events returns matching events in the order they were recorded.
func (l *EventLog) Events(ctx context.Context, q Query) ([]domain.Event, error) {
	query := `SELECT timestamp, type, run_id, macro, step_index, step_kind, result, command, reason, elapsed_ms FROM events WHERE 1=1`
	args := []any{}
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(q.Type))
	}
	query += ` ORDER BY seq`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			ev                            domain.Event
			ts, typ                       string
			kind, result, command, reason sql.NullString
			elapsed                       sql.NullInt64
		)
		if err := rows.Scan(&ts, &typ, &ev.RunID, &ev.Macro, &ev.StepIndex, &kind, &result, &command, &reason, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("invalid event timestamp %q: %w", ts, err)
		}
		ev.Type = domain.EventType(typ)
		ev.StepKind = domain.StepKind(kind.String)
		ev.Result = domain.StepResult(result.String)
		ev.Command = command.String
		ev.Reason = reason.String
		ev.Elapsed = time.Duration(elapsed.Int64) * time.Millisecond
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return out, nil
}

// Hooks records every executor event. Failures are logged, never propagated into the run.
func (l *EventLog) Hooks() domain.LifecycleHooks {
	record := func(ctx context.Context, e *domain.Event) {
		if err := l.Append(ctx, *e); err != nil {
			l.logger.Warn("event log append failed", "err", err, "type", e.Type, "run", e.RunID)
		}
	}
	return domain.LifecycleHooks{
		OnStepStarted: record,
		OnStepResult:  record,
		OnCommandSent: record,
		OnRunFinished: record,
	}
}

// Close closes the database.
func (l *EventLog) Close() error {
	return l.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
