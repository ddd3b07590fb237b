package models

// GenerationRequest is everything the code generator needs for one attempt.
type GenerationRequest struct {
	TargetURL string
	// Iteration is the 1-based validation iteration being produced.
	Iteration int
	// Attempt counts generation attempts within the iteration, from 1.
	Attempt int
	Specs   []ComponentSpec
	Tokens  DesignTokens
	// Failures is the ranked top-N repair list from the previous iteration.
	Failures []ValidationFailure
	// Problems are build, lint, serve or generation errors from the
	// previous attempt, folded into the next prompt.
	Problems []string
}

// IsRefinement reports whether the request carries feedback to repair.
func (r GenerationRequest) IsRefinement() bool {
	return len(r.Failures) > 0 || len(r.Problems) > 0
}

// GenerationResult is the parsed output of one generation attempt.
type GenerationResult struct {
	Files     []FileUnit
	TokensIn  int64
	TokensOut int64
}
