// Package score folds comparison results into a single similarity score.
package score

import "github.com/ShayCichocki/replica/internal/compare"

// Weights of the final score.
const (
	CSSWeight       = 0.7
	StructureWeight = 0.3
)

// Scores are on a 0-100 scale.
type Scores struct {
	CSS       float64 `json:"css_score"`
	Structure float64 `json:"structure_score"`
	Final     float64 `json:"final_score"`
}

// Score computes css, structure and final scores. An empty style
// comparison scores 0 rather than failing.
func Score(style compare.StyleResult, structure compare.StructureResult) Scores {
	var css float64
	if style.Total > 0 {
		css = 100 * float64(style.Matches) / float64(style.Total)
	}
	st := 100 * structure.Score
	return Scores{
		CSS:       css,
		Structure: st,
		Final:     CSSWeight*css + StructureWeight*st,
	}
}
