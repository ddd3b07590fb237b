package compare

import (
	"math"

	"github.com/ShayCichocki/replica/pkg/models"
)

// Pair links an original element to its generated counterpart. Generated is
// nil when no counterpart was found.
type Pair struct {
	Original  *models.ElementNode
	Generated *models.ElementNode
}

// Matcher pairs original elements with generated ones. Implementations
// return one Pair per original element, in document order.
type Matcher interface {
	Match(original, generated *models.Fingerprint) []Pair
}

// PathMatcher matches elements by identical path first, then falls back to
// a greedy pairing by tag, class overlap and sibling position. The fallback
// is best-effort and not globally optimal.
type PathMatcher struct{}

// NewPathMatcher returns the default matcher.
func NewPathMatcher() *PathMatcher {
	return &PathMatcher{}
}

type located struct {
	node    *models.ElementNode
	sibling int
	order   int
}

func locate(fp *models.Fingerprint) []located {
	var out []located
	fp.Walk(func(v models.Visit) bool {
		out = append(out, located{node: v.Node, sibling: v.Index, order: len(out)})
		return true
	})
	return out
}

// Match implements Matcher.
func (m *PathMatcher) Match(original, generated *models.Fingerprint) []Pair {
	orig := locate(original)
	gen := locate(generated)

	byPath := make(map[string]int, len(gen))
	for i, g := range gen {
		byPath[g.node.Path] = i
	}

	used := make([]bool, len(gen))
	pairs := make([]Pair, len(orig))
	for i, o := range orig {
		pairs[i].Original = o.node
		if j, ok := byPath[o.node.Path]; ok && o.node.Path != "" {
			pairs[i].Generated = gen[j].node
			used[j] = true
		}
	}

	for i, o := range orig {
		if pairs[i].Generated != nil {
			continue
		}
		best, bestScore := -1, math.Inf(-1)
		for j, g := range gen {
			if used[j] || g.node.Tag != o.node.Tag {
				continue
			}
			s := similarity(o, g)
			if s > bestScore {
				best, bestScore = j, s
			}
		}
		if best >= 0 {
			pairs[i].Generated = gen[best].node
			used[best] = true
		}
	}
	return pairs
}

// similarity weights class overlap above sibling proximity.
func similarity(o, g located) float64 {
	dist := math.Abs(float64(o.sibling - g.sibling))
	return 2*jaccard(o.node.Classes, g.node.Classes) + 1/(1+dist)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	seen := make(map[string]int, len(a)+len(b))
	for _, x := range a {
		seen[x] |= 1
	}
	for _, x := range b {
		seen[x] |= 2
	}
	inter := 0
	for _, v := range seen {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(seen))
}
