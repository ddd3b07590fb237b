package loop

import (
	"github.com/ShayCichocki/replica/pkg/models"
)

// RunState is the single source of truth threaded through one cloning
// session. Only the Controller's active stage writes to it; the history is
// append-only and exposed as copies.
type RunState struct {
	SessionID string
	TargetURL string

	// Original is set once during INIT and never modified afterwards.
	Original *models.Fingerprint
	// Current is the most recent normalized capture of the generated page.
	Current *models.Fingerprint
	Specs   []models.ComponentSpec
	Tokens  models.DesignTokens

	// Feedback is the top-N repair list packaged by REFINING.
	Feedback []models.ValidationFailure
	// Problems are the errors from the last failed generation or health check.
	Problems []string

	// Terminal is set when the machine reaches FINALIZED.
	Terminal   bool
	StopReason StopReason
	Err        error

	// Per-iteration retry counters, reset after each validation pass.
	generationFailures int
	healthFailures     int
	// Run-wide retry totals, reported at the end.
	TotalGenerationRetries int
	TotalHealthRetries     int
	// pendingGenErr is the failure of the last generation attempt.
	pendingGenErr error

	TokensIn  int64
	TokensOut int64

	// written is the last generation written to the project directory and
	// bestFiles the generation behind the best record. bestOnDisk is false
	// once a later generation has overwritten the best one.
	written    []models.FileUnit
	bestFiles  []models.FileUnit
	bestOnDisk bool

	machine *Machine
	history []models.IterationRecord
	best    int
}

// NewRunState returns the state of a new session in INIT.
func NewRunState(sessionID, targetURL string) *RunState {
	return &RunState{
		SessionID: sessionID,
		TargetURL: targetURL,
		machine:   NewMachine(),
		best:      -1,
	}
}

// State returns the current machine state.
func (rs *RunState) State() State {
	return rs.machine.State()
}

// Trail returns the states visited so far.
func (rs *RunState) Trail() []State {
	return rs.machine.Trail()
}

// Iteration returns the number of completed validation passes.
func (rs *RunState) Iteration() int {
	return len(rs.history)
}

// History returns a copy of the iteration history.
func (rs *RunState) History() []models.IterationRecord {
	return append([]models.IterationRecord(nil), rs.history...)
}

// Best returns the highest-scoring record, earliest on ties.
func (rs *RunState) Best() (models.IterationRecord, bool) {
	if rs.best < 0 {
		return models.IterationRecord{}, false
	}
	return rs.history[rs.best], true
}

// Attempt returns the 1-based generation attempt within the current iteration.
func (rs *RunState) Attempt() int {
	return rs.generationFailures + rs.healthFailures + 1
}

// record appends a validation result and marks it best if it beats every
// earlier score.
func (rs *RunState) record(rec models.IterationRecord) models.IterationRecord {
	rec.Index = len(rs.history) + 1
	rec.IsBest = rs.best < 0 || rec.Score > rs.history[rs.best].Score
	if rec.IsBest {
		rs.best = len(rs.history)
	}
	rs.history = append(rs.history, rec)
	return rec
}

func (rs *RunState) resetIterationBudgets() {
	rs.generationFailures = 0
	rs.healthFailures = 0
	rs.pendingGenErr = nil
}
