package state

import (
	"database/sql"
	"fmt"
	"time"
)

// SessionStatus represents the status of a session in the index.
// Finished sessions carry the run status from their final report.
type SessionStatus string

const (
	SessionRunning        SessionStatus = "running"
	SessionSucceeded      SessionStatus = "succeeded"
	SessionBelowThreshold SessionStatus = "below_threshold"
	SessionNoIterations   SessionStatus = "no_iterations"
	SessionAborted        SessionStatus = "aborted"
	SessionFatal          SessionStatus = "fatal"
	// SessionInterrupted marks a run whose process died before finalizing.
	SessionInterrupted SessionStatus = "interrupted"
)

// Finished reports whether the session has left the running state.
func (s SessionStatus) Finished() bool {
	return s != SessionRunning
}

// Session is one row of the session index.
type Session struct {
	ID         string        `json:"id"`
	TargetURL  string        `json:"target_url"`
	SessionDir string        `json:"session_dir"`
	Status     SessionStatus `json:"status"`
	BestScore  float64       `json:"best_score"`
	Iterations int           `json:"iterations"`
	ReportPath string        `json:"report_path"`
	PID        int           `json:"pid"`
	TokensIn   int64         `json:"tokens_in"`
	TokensOut  int64         `json:"tokens_out"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at"`
}

// Outcome is what a finished run reports back to the index.
type Outcome struct {
	Status     SessionStatus
	BestScore  float64
	Iterations int
	ReportPath string
	TokensIn   int64
	TokensOut  int64
	FinishedAt time.Time
}

const sessionColumns = `id, target_url, session_dir, status, best_score, iterations,
	report_path, pid, tokens_in, tokens_out, started_at, finished_at`

// CreateSession creates a new session.
func (db *DB) CreateSession(s *Session) error {
	if s.Status == "" {
		s.Status = SessionRunning
	}
	var finishedAt *string
	if s.FinishedAt != nil {
		f := formatTime(*s.FinishedAt)
		finishedAt = &f
	}

	_, err := db.Exec(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.TargetURL, s.SessionDir, string(s.Status), s.BestScore, s.Iterations,
		s.ReportPath, s.PID, s.TokensIn, s.TokensOut, formatTime(s.StartedAt), finishedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. It returns nil when no row matches.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// UpdateProgress records the latest best score and iteration count of a
// running session.
func (db *DB) UpdateProgress(id string, bestScore float64, iterations int) error {
	_, err := db.Exec(`
		UPDATE sessions SET best_score = ?, iterations = ?
		WHERE id = ? AND status = ?
	`, bestScore, iterations, id, string(SessionRunning))
	if err != nil {
		return fmt.Errorf("update session progress: %w", err)
	}
	return nil
}

// FinishSession stores the outcome of a run.
func (db *DB) FinishSession(id string, o Outcome) error {
	if o.FinishedAt.IsZero() {
		o.FinishedAt = time.Now()
	}
	result, err := db.Exec(`
		UPDATE sessions SET status = ?, best_score = ?, iterations = ?, report_path = ?,
			tokens_in = ?, tokens_out = ?, finished_at = ?, pid = 0
		WHERE id = ?
	`, string(o.Status), o.BestScore, o.Iterations, o.ReportPath,
		o.TokensIn, o.TokensOut, formatTime(o.FinishedAt), id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish session: %s not found", id)
	}
	return nil
}

// DeleteSession deletes a session by ID.
func (db *DB) DeleteSession(id string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListSessions lists sessions newest first, optionally filtered by status.
// A limit of zero or less returns every row.
func (db *DB) ListSessions(status *SessionStatus, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY started_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&s.ID, &s.TargetURL, &s.SessionDir, &s.Status, &s.BestScore, &s.Iterations,
		&s.ReportPath, &s.PID, &s.TokensIn, &s.TokensOut, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	s.StartedAt, _ = parseTime(startedAt)
	s.FinishedAt = parseNullableTime(finishedAt)
	return &s, nil
}
