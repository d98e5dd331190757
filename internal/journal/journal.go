// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package journal records launch sessions and the units they started in a
// SQLite database, so units left running by a launcher that died can be found
// and stopped later.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/orchestrator"
)

// Session statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var ErrUnknownUnit = errors.New("unknown unit")

//go:embed schema.sql
var schemaSQL string

// Journal is an open launch journal.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Journal opened.", "path", path)
	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) timestamp() string {
	return j.now().UTC().Format(time.RFC3339Nano)
}

// Session is one launch recorded in the journal. It implements
// orchestrator.Recorder.
type Session struct {
	ID string
	j  *Journal
}

var _ orchestrator.Recorder = (*Session)(nil)

// Begin records a new session for the given launch files.
func (j *Journal) Begin(ctx context.Context, sources []string) (*Session, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, sources, launcher_pid, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, strings.Join(sources, "\n"), os.Getpid(), j.timestamp(), StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("recording session: %w", err)
	}
	return &Session{ID: id, j: j}, nil
}

func (s *Session) UnitStarted(ctx context.Context, seq int, label string, pid int, argv []string) error {
	encoded, err := json.Marshal(argv)
	if err != nil {
		return err
	}
	_, err = s.j.db.ExecContext(ctx,
		`INSERT INTO units (session_id, seq, label, pid, argv, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, seq, label, pid, string(encoded), s.j.timestamp())
	if err != nil {
		return fmt.Errorf("recording unit %q: %w", label, err)
	}
	return nil
}

func (s *Session) UnitExited(ctx context.Context, label string, exitCode int) error {
	res, err := s.j.db.ExecContext(ctx,
		`UPDATE units SET exited_at = ?, exit_code = ? WHERE session_id = ? AND label = ?`,
		s.j.timestamp(), exitCode, s.ID, label)
	if err != nil {
		return fmt.Errorf("recording exit of unit %q: %w", label, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q in session %s", ErrUnknownUnit, label, s.ID)
	}
	return nil
}

// Finish closes the session with the given status.
func (s *Session) Finish(ctx context.Context, status string) error {
	_, err := s.j.db.ExecContext(ctx,
		`UPDATE sessions SET finished_at = ?, status = ? WHERE id = ?`,
		s.j.timestamp(), status, s.ID)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return nil
}

// Orphan is a unit that was started but never seen exiting.
type Orphan struct {
	SessionID   string
	LauncherPid int
	Seq         int
	Label       string
	Pid         int
	Argv        []string
	StartedAt   time.Time
}

// Orphans lists units without a recorded exit that were not reaped yet,
// oldest session first and in start order within a session.
func (j *Journal) Orphans(ctx context.Context) ([]Orphan, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT u.session_id, s.launcher_pid, u.seq, u.label, u.pid, u.argv, u.started_at
		FROM units u
		JOIN sessions s ON s.id = u.session_id
		WHERE u.exited_at IS NULL AND u.reaped_at IS NULL
		ORDER BY s.started_at, u.seq`)
	if err != nil {
		return nil, fmt.Errorf("querying orphans: %w", err)
	}
	defer rows.Close()

	var out []Orphan
	for rows.Next() {
		var (
			o         Orphan
			argv      string
			startedAt string
		)
		if err := rows.Scan(&o.SessionID, &o.LauncherPid, &o.Seq, &o.Label, &o.Pid, &argv, &startedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(argv), &o.Argv); err != nil {
			return nil, fmt.Errorf("decoding argv of unit %q: %w", o.Label, err)
		}
		if o.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("decoding start time of unit %q: %w", o.Label, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkReaped records that an orphan was stopped or found gone.
func (j *Journal) MarkReaped(ctx context.Context, sessionID, label string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE units SET reaped_at = ? WHERE session_id = ? AND label = ?`,
		j.timestamp(), sessionID, label)
	if err != nil {
		return fmt.Errorf("marking unit %q reaped: %w", label, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q in session %s", ErrUnknownUnit, label, sessionID)
	}
	return nil
}

// SessionStatus returns the recorded status of a session.
func (j *Journal) SessionStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := j.db.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("reading session %s: %w", id, err)
	}
	return status, nil
}
