package state

import (
	"database/sql"
	"fmt"
	"os"
	"syscall"
	"time"
)

// InterruptedSession describes a running session whose process is gone.
type InterruptedSession struct {
	SessionID  string
	TargetURL  string
	SessionDir string
	StartedAt  time.Time
	PID        int
}

// RecoveryManager detects sessions left in the running state by a crashed or
// killed process.
type RecoveryManager struct {
	db    *DB
	alive func(pid int) bool
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db, alive: isProcessAlive}
}

// CheckForInterrupted lists running sessions whose owning process is no
// longer alive. Sessions owned by the calling process are skipped.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedSession, error) {
	status := SessionRunning
	sessions, err := rm.db.ListSessions(&status, 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var interrupted []InterruptedSession
	for _, s := range sessions {
		if s.PID == os.Getpid() || (s.PID > 0 && rm.alive(s.PID)) {
			continue
		}
		interrupted = append(interrupted, InterruptedSession{
			SessionID:  s.ID,
			TargetURL:  s.TargetURL,
			SessionDir: s.SessionDir,
			StartedAt:  s.StartedAt,
			PID:        s.PID,
		})
	}
	return interrupted, nil
}

// MarkInterrupted moves every orphaned running session to the interrupted
// state and returns how many were updated.
func (rm *RecoveryManager) MarkInterrupted() (int, error) {
	orphans, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	now := formatTime(time.Now())
	err = rm.db.Transaction(func(tx *sql.Tx) error {
		for _, o := range orphans {
			_, err := tx.Exec(`
				UPDATE sessions SET status = ?, finished_at = ?, pid = 0
				WHERE id = ? AND status = ?
			`, string(SessionInterrupted), now, o.SessionID, string(SessionRunning))
			if err != nil {
				return fmt.Errorf("mark session %s interrupted: %w", o.SessionID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(orphans), nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
