package state

import "io"

// SessionStore handles session-related persistence operations.
type SessionStore interface {
	CreateSession(s *Session) error
	GetSession(id string) (*Session, error)
	UpdateProgress(id string, bestScore float64, iterations int) error
	FinishSession(id string, o Outcome) error
	ListSessions(status *SessionStatus, limit int) ([]Session, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for the session index so callers can
// run against any backend.
type StateStore interface {
	io.Closer
	Migrator
	SessionStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore   = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ SessionStore = (*DB)(nil)
)
