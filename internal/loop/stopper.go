package loop

// StopReason indicates why the refinement loop stopped.
type StopReason string

const (
	// StopReasonNone indicates no stop condition has been met.
	StopReasonNone StopReason = ""
	// StopReasonThreshold indicates the score reached the threshold.
	StopReasonThreshold StopReason = "score_threshold"
	// StopReasonMaxIterations indicates the validation iteration cap was reached.
	StopReasonMaxIterations StopReason = "max_iterations"
	// StopReasonPlateau indicates the score stopped improving.
	StopReasonPlateau StopReason = "plateau"
	// StopReasonHealthBudget indicates health checks kept failing.
	StopReasonHealthBudget StopReason = "health_budget_exhausted"
	// StopReasonGenerationBudget indicates generation kept failing.
	StopReasonGenerationBudget StopReason = "generation_budget_exhausted"
	// StopReasonNoBaseline indicates the original page could not be captured.
	StopReasonNoBaseline StopReason = "no_baseline"
	// StopReasonFatal indicates a non-retryable error.
	StopReasonFatal StopReason = "fatal_error"
	// StopReasonAborted indicates the user cancelled the run.
	StopReasonAborted StopReason = "aborted"
)

// StopConfig holds configuration for stop condition evaluation.
type StopConfig struct {
	// MaxIterations is the validation iteration cap. 0 means no cap.
	MaxIterations int
	// ScoreThreshold is the final score at which the run succeeds.
	ScoreThreshold float64
	// PlateauDelta is the minimum score gain, in points, that counts as
	// improvement. Regressions count as non-improving.
	PlateauDelta float64
	// PlateauWindow is the number of consecutive non-improving iterations
	// that ends the run. 0 disables plateau detection.
	PlateauWindow int
}

// DefaultStopConfig returns the default stop conditions.
func DefaultStopConfig() StopConfig {
	return StopConfig{
		MaxIterations:  5,
		ScoreThreshold: 60,
		PlateauDelta:   1.0,
		PlateauWindow:  2,
	}
}

// StopChecker evaluates stop conditions after each validation pass.
type StopChecker struct {
	config       StopConfig
	plateauCount int
	lastScore    float64
	hasLast      bool
}

// NewStopChecker creates a new StopChecker with the given configuration.
func NewStopChecker(config StopConfig) *StopChecker {
	return &StopChecker{config: config}
}

// Check evaluates the stop conditions for the 1-based iteration that just
// scored score. The threshold is checked first, then the iteration cap, then
// plateau.
func (s *StopChecker) Check(iteration int, score float64) (StopReason, bool) {
	if s.hasLast {
		if score-s.lastScore < s.config.PlateauDelta {
			s.plateauCount++
		} else {
			s.plateauCount = 0
		}
	}
	s.lastScore = score
	s.hasLast = true

	if score >= s.config.ScoreThreshold {
		return StopReasonThreshold, true
	}

	if s.config.MaxIterations > 0 && iteration >= s.config.MaxIterations {
		return StopReasonMaxIterations, true
	}

	if s.config.PlateauWindow > 0 && s.plateauCount >= s.config.PlateauWindow {
		return StopReasonPlateau, true
	}

	return StopReasonNone, false
}

// PlateauCount returns the current run of non-improving iterations.
func (s *StopChecker) PlateauCount() int {
	return s.plateauCount
}
