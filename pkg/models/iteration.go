package models

import "time"

// IterationRecord captures the outcome of one validation pass.
type IterationRecord struct {
	// Index is 1-based.
	Index          int       `json:"index"`
	Score          float64   `json:"score"`
	CSSScore       float64   `json:"css_score"`
	StructureScore float64   `json:"structure_score"`
	// Failures are ranked, highest priority first.
	Failures  []ValidationFailure `json:"failures"`
	Timestamp time.Time           `json:"timestamp"`
	// IsBest is true when the score was strictly greater than every earlier
	// iteration at the time it was recorded.
	IsBest bool `json:"is_best"`
}

// StructureDetail is the persisted form of a structure comparison.
type StructureDetail struct {
	ComponentCountMatch   bool    `json:"component_count_match"`
	ExpectedComponents    int     `json:"expected_components"`
	ActualComponents      int     `json:"actual_components"`
	HierarchyDepthMatch   bool    `json:"hierarchy_depth_match"`
	ExpectedDepth         int     `json:"expected_depth"`
	ActualDepth           int     `json:"actual_depth"`
	RelationshipIntegrity float64 `json:"relationship_integrity"`
	Score                 float64 `json:"score"`
}

// ValidationResult is the per-iteration validation artifact.
type ValidationResult struct {
	Iteration      int                 `json:"iteration"`
	CSSScore       float64             `json:"css_score"`
	StructureScore float64             `json:"structure_score"`
	FinalScore     float64             `json:"final_score"`
	Matches        int                 `json:"matches"`
	Total          int                 `json:"total"`
	MatchedNodes   int                 `json:"matched_nodes"`
	UnmatchedNodes int                 `json:"unmatched_nodes"`
	Structure      StructureDetail     `json:"structure"`
	Failures       []ValidationFailure `json:"failures"`
	Timestamp      time.Time           `json:"timestamp"`
}

// FileUnit is one generated source file.
type FileUnit struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}
