// Package journal records predictor sessions and their steps in SQLite.
// It is an audit log: predictor state is never restored from it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// #region schema
// planet_id is decimal TEXT: SQLite integers are signed 64-bit.
// external_guess is NULL for steps observed without a prediction.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	capacity_json TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	closed_at     TEXT
);

CREATE TABLE IF NOT EXISTS steps (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	step_index     INTEGER NOT NULL,
	planet_id      TEXT NOT NULL,
	external_guess INTEGER,
	predicted      INTEGER,
	rule           TEXT,
	actual         INTEGER NOT NULL,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE INDEX IF NOT EXISTS idx_steps_session ON steps(session_id, step_index);
`

// timeLayout is fixed width so created_at sorts as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region store-struct
// Store manages the journal database.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region sessions
// CreateSession inserts a session row.
func (s *Store) CreateSession(ctx context.Context, rec SessionRecord) error {
	capJSON, err := json.Marshal(rec.Capacity)
	if err != nil {
		return fmt.Errorf("marshal capacity: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, capacity_json, created_at) VALUES (?, ?, ?)`,
		rec.SessionID, string(capJSON), rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// CloseSession stamps closed_at on an open session.
func (s *Store) CloseSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET closed_at = ? WHERE session_id = ?`,
		at.UTC().Format(timeLayout), sessionID,
	)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("close session %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// GetSession reads one session row.
func (s *Store) GetSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, capacity_json, created_at, closed_at FROM sessions WHERE session_id = ?`,
		sessionID,
	)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return rec, nil
}

const summarySelect = `SELECT s.session_id, s.capacity_json, s.created_at, s.closed_at,
        COUNT(st.id),
        COALESCE(SUM(st.predicted IS NOT NULL), 0),
        COALESCE(SUM(st.predicted = st.actual), 0),
        COALESCE(SUM(st.predicted IS NOT NULL AND st.external_guess = st.actual), 0)
 FROM sessions s LEFT JOIN steps st ON st.session_id = s.session_id`

// ListSessions returns the most recent sessions with their step aggregates.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		summarySelect+` GROUP BY s.session_id ORDER BY s.created_at DESC, s.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Summary returns one session with its step aggregates.
func (s *Store) Summary(ctx context.Context, sessionID string) (SessionSummary, error) {
	row := s.db.QueryRowContext(ctx,
		summarySelect+` WHERE s.session_id = ? GROUP BY s.session_id`, sessionID,
	)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionSummary{}, fmt.Errorf("summary %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return SessionSummary{}, fmt.Errorf("summary %s: %w", sessionID, err)
	}
	return sum, nil
}

func scanSummary(row rowScanner) (SessionSummary, error) {
	var sum SessionSummary
	var capJSON, createdStr string
	var closedStr sql.NullString
	if err := row.Scan(&sum.SessionID, &capJSON, &createdStr, &closedStr,
		&sum.Steps, &sum.Predicted, &sum.Hits, &sum.OracleHits); err != nil {
		return SessionSummary{}, err
	}
	if err := fillSession(&sum.SessionRecord, capJSON, createdStr, closedStr); err != nil {
		return SessionSummary{}, err
	}
	return sum, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var rec SessionRecord
	var capJSON, createdStr string
	var closedStr sql.NullString
	if err := row.Scan(&rec.SessionID, &capJSON, &createdStr, &closedStr); err != nil {
		return SessionRecord{}, err
	}
	if err := fillSession(&rec, capJSON, createdStr, closedStr); err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

func fillSession(rec *SessionRecord, capJSON, createdStr string, closedStr sql.NullString) error {
	if err := json.Unmarshal([]byte(capJSON), &rec.Capacity); err != nil {
		return fmt.Errorf("unmarshal capacity: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if closedStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, closedStr.String)
		rec.ClosedAt = &t
	}
	return nil
}

// #endregion sessions

// #region steps
// LogStep appends a step row.
func LogStep(ctx context.Context, db *sql.DB, rec StepRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var guess, predicted any
	if rec.Predicted != nil {
		guess = boolInt(bool(rec.ExternalGuess))
		predicted = boolInt(bool(*rec.Predicted))
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO steps (session_id, step_index, planet_id, external_guess, predicted, rule, actual, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.Index,
		strconv.FormatUint(uint64(rec.PlanetID), 10),
		guess,
		predicted,
		nullIfEmpty(string(rec.Rule)),
		boolInt(bool(rec.Actual)),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}

// LogStep appends a step row to this store.
func (s *Store) LogStep(ctx context.Context, rec StepRecord) error {
	return LogStep(ctx, s.db, rec)
}

// Steps returns a session's steps in order.
func (s *Store) Steps(ctx context.Context, sessionID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, step_index, planet_id, external_guess, predicted, rule, actual, created_at
		 FROM steps WHERE session_id = ? ORDER BY step_index ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		var planetStr, createdStr string
		var actual int
		var guess, predicted sql.NullInt64
		var rule sql.NullString

		if err := rows.Scan(&rec.SessionID, &rec.Index, &planetStr, &guess, &predicted, &rule, &actual, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		id, err := strconv.ParseUint(planetStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse planet id %q: %w", planetStr, err)
		}
		rec.PlanetID = predictor.PlanetID(id)
		rec.ExternalGuess = predictor.Outcome(guess.Valid && guess.Int64 != 0)
		rec.Actual = predictor.Outcome(actual != 0)
		if predicted.Valid {
			p := predictor.Outcome(predicted.Int64 != 0)
			rec.Predicted = &p
		}
		if rule.Valid {
			rec.Rule = predictor.Rule(rule.String)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion steps

// #region helpers
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
