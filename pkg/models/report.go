package models

import "time"

// RunStatus is the overall outcome of a cloning session.
type RunStatus string

const (
	// RunStatusSucceeded means the best score reached the threshold.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusBelowThreshold means iterations ran but none reached the threshold.
	RunStatusBelowThreshold RunStatus = "below_threshold"
	// RunStatusNoIterations means the run finalized before any validation pass.
	RunStatusNoIterations RunStatus = "no_iterations"
	// RunStatusAborted means the user cancelled the run.
	RunStatusAborted RunStatus = "aborted"
	// RunStatusFatal means a non-retryable error ended the run.
	RunStatusFatal RunStatus = "fatal"
)

// Report is the final session document written to report.json.
type Report struct {
	SessionID           string              `json:"session_id"`
	TargetURL           string              `json:"target_url"`
	Status              RunStatus           `json:"status"`
	StopReason          string              `json:"stop_reason"`
	ScoreThreshold      float64             `json:"score_threshold"`
	BestScore           float64             `json:"best_score"`
	BestIteration       int                 `json:"best_iteration"`
	IterationCount      int                 `json:"iteration_count"`
	HealthRetries       int                 `json:"health_retries"`
	GenerationRetries   int                 `json:"generation_retries"`
	History             []IterationRecord   `json:"history"`
	OutstandingFailures []ValidationFailure `json:"outstanding_failures"`
	// BestProjectDir holds the files of the best iteration after the run.
	BestProjectDir      string              `json:"best_project_dir,omitempty"`
	TokensIn            int64               `json:"tokens_in"`
	TokensOut           int64               `json:"tokens_out"`
	Error               string              `json:"error,omitempty"`
	StartedAt           time.Time           `json:"started_at"`
	FinishedAt          time.Time           `json:"finished_at"`
}

// HasBest reports whether any iteration was recorded.
func (r *Report) HasBest() bool {
	return r.BestIteration > 0
}

// Passed reports whether the run reached the score threshold.
func (r *Report) Passed() bool {
	return r.HasBest() && r.BestScore >= r.ScoreThreshold && r.Status != RunStatusFatal
}
