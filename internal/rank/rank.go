// Package rank orders validation failures by repair priority.
//
// Priority is base severity weight plus additive bonuses:
// +3 when the element belongs to a layout component, +2 when it belongs to
// a reusable component and +1 when the property is visually salient.
package rank

import (
	"sort"

	"github.com/ShayCichocki/replica/pkg/models"
)

// Priority bonuses.
const (
	LayoutBonus   = 3
	ReusableBonus = 2
	SalientBonus  = 1
)

// Ranker computes priorities against a fixed set of component specs.
type Ranker struct {
	layout   map[string]bool
	reusable map[string]bool
}

// New indexes the covered paths of specs by kind.
func New(specs []models.ComponentSpec) *Ranker {
	r := &Ranker{
		layout:   make(map[string]bool),
		reusable: make(map[string]bool),
	}
	for _, s := range specs {
		var set map[string]bool
		switch s.Kind {
		case models.KindLayout:
			set = r.layout
		case models.KindReusable, models.KindLeaf:
			set = r.reusable
		default:
			continue
		}
		for _, p := range s.Paths {
			set[p] = true
		}
	}
	return r
}

// Priority returns the ranking score of f.
func (r *Ranker) Priority(f models.ValidationFailure) int {
	p := f.Severity.Weight()
	if r.layout[f.Path] {
		p += LayoutBonus
	}
	if r.reusable[f.Path] {
		p += ReusableBonus
	}
	if models.IsSalientProperty(f.Property) {
		p += SalientBonus
	}
	return p
}

// Rank returns a copy of failures with Priority set, sorted by descending
// priority. Equal priorities keep their discovery order.
func (r *Ranker) Rank(failures []models.ValidationFailure) []models.ValidationFailure {
	ranked := make([]models.ValidationFailure, len(failures))
	copy(ranked, failures)
	for i := range ranked {
		ranked[i].Priority = r.Priority(ranked[i])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})
	return ranked
}

// SelectTopN returns the first n entries of ranked. n <= 0 yields an empty
// slice.
func SelectTopN(ranked []models.ValidationFailure, n int) []models.ValidationFailure {
	if n <= 0 {
		return []models.ValidationFailure{}
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}
