package score

import (
	"math"
	"testing"

	"github.com/ShayCichocki/replica/internal/compare"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		style     compare.StyleResult
		structure float64
		want      Scores
	}{
		{"perfect", compare.StyleResult{Matches: 4, Total: 4}, 1, Scores{100, 100, 100}},
		{"half css", compare.StyleResult{Matches: 1, Total: 2}, 1, Scores{50, 100, 65}},
		{"empty style", compare.StyleResult{}, 0.5, Scores{0, 50, 15}},
		{"nothing", compare.StyleResult{}, 0, Scores{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.style, compare.StructureResult{Score: tt.structure})
			if math.Abs(got.CSS-tt.want.CSS) > 1e-9 ||
				math.Abs(got.Structure-tt.want.Structure) > 1e-9 ||
				math.Abs(got.Final-tt.want.Final) > 1e-9 {
				t.Fatalf("Score = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	structure := compare.StructureResult{Score: 0.4}
	for total := 1; total <= 20; total++ {
		for m := 0; m < total; m++ {
			lo := Score(compare.StyleResult{Matches: m, Total: total}, structure)
			hi := Score(compare.StyleResult{Matches: m + 1, Total: total}, structure)
			if !(hi.Final > lo.Final) {
				t.Fatalf("%d/%d scored %v, not above %d/%d at %v", m+1, total, hi.Final, m, total, lo.Final)
			}
		}
	}
	// Across different totals, a strictly higher ratio still wins.
	a := Score(compare.StyleResult{Matches: 2, Total: 3}, structure)
	b := Score(compare.StyleResult{Matches: 3, Total: 5}, structure)
	if !(a.Final > b.Final) {
		t.Fatalf("2/3 (%v) should beat 3/5 (%v)", a.Final, b.Final)
	}
}
