// Package compare measures how closely a generated page reproduces the
// original, both property by property and structurally.
//
// Everything here is pure: the same inputs always produce the same results,
// and empty inputs degrade to zero matches instead of errors.
package compare

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/replica/internal/detect"
	"github.com/ShayCichocki/replica/pkg/models"
)

// Structure sub-score weights.
const (
	CountWeight     = 0.5
	DepthWeight     = 0.3
	IntegrityWeight = 0.2

	// DepthTolerance is the allowed difference in hierarchy depth.
	DepthTolerance = 1
)

// StyleResult is the outcome of a style comparison.
type StyleResult struct {
	Matches        int
	Total          int
	MatchedNodes   int
	UnmatchedNodes int
	// Failures are in discovery order: document order, then property name.
	Failures []models.ValidationFailure
}

// StructureResult is the outcome of a structure comparison.
type StructureResult struct {
	ComponentCountMatch   bool
	ExpectedComponents    int
	ActualComponents      int
	HierarchyDepthMatch   bool
	ExpectedDepth         int
	ActualDepth           int
	RelationshipIntegrity float64
	// Score is the weighted structure score in [0, 1].
	Score    float64
	Failures []models.ValidationFailure
}

// Detail converts the result to its persisted form.
func (r StructureResult) Detail() models.StructureDetail {
	return models.StructureDetail{
		ComponentCountMatch:   r.ComponentCountMatch,
		ExpectedComponents:    r.ExpectedComponents,
		ActualComponents:      r.ActualComponents,
		HierarchyDepthMatch:   r.HierarchyDepthMatch,
		ExpectedDepth:         r.ExpectedDepth,
		ActualDepth:           r.ActualDepth,
		RelationshipIntegrity: r.RelationshipIntegrity,
		Score:                 r.Score,
	}
}

// Result bundles both comparisons of one validation pass.
type Result struct {
	Style     StyleResult
	Structure StructureResult
}

// Failures returns style failures followed by structure failures.
func (r Result) Failures() []models.ValidationFailure {
	out := make([]models.ValidationFailure, 0, len(r.Style.Failures)+len(r.Structure.Failures))
	out = append(out, r.Style.Failures...)
	return append(out, r.Structure.Failures...)
}

// Comparator runs style and structure comparisons with a shared matcher.
type Comparator struct {
	matcher Matcher
}

// New creates a Comparator. A nil matcher selects PathMatcher.
func New(m Matcher) *Comparator {
	if m == nil {
		m = NewPathMatcher()
	}
	return &Comparator{matcher: m}
}

// Compare matches the two fingerprints once and runs both comparisons.
func (c *Comparator) Compare(original *models.Fingerprint, specs []models.ComponentSpec, generated *models.Fingerprint) Result {
	pairs := c.matcher.Match(original, generated)
	return Result{
		Style:     styleFromPairs(pairs),
		Structure: structureFromPairs(original, specs, generated, pairs),
	}
}

// CompareStyle compares every original property against its generated
// counterpart after normalization.
func (c *Comparator) CompareStyle(original, generated *models.Fingerprint) StyleResult {
	return styleFromPairs(c.matcher.Match(original, generated))
}

// CompareStructure checks component count, hierarchy depth and whether
// each spec's elements stay nested under their root.
func (c *Comparator) CompareStructure(original *models.Fingerprint, specs []models.ComponentSpec, generated *models.Fingerprint) StructureResult {
	return structureFromPairs(original, specs, generated, c.matcher.Match(original, generated))
}

func styleFromPairs(pairs []Pair) StyleResult {
	var res StyleResult
	for _, p := range pairs {
		if p.Generated == nil {
			res.UnmatchedNodes++
		} else {
			res.MatchedNodes++
		}
		for _, prop := range sortedProps(p.Original.Styles) {
			expected := p.Original.Styles[prop]
			res.Total++

			actual := models.MissingValue
			if p.Generated != nil {
				if v, ok := p.Generated.Styles[prop]; ok {
					actual = v
				}
			}
			if actual == expected {
				res.Matches++
				continue
			}
			res.Failures = append(res.Failures, models.NewStyleFailure(p.Original.Path, prop, expected, actual))
		}
	}
	return res
}

func structureFromPairs(original *models.Fingerprint, specs []models.ComponentSpec, generated *models.Fingerprint, pairs []Pair) StructureResult {
	res := StructureResult{
		ExpectedComponents: len(detect.TopLevel(specs)),
		ActualComponents:   len(detect.TopLevel(detect.Detect(generated))),
		ExpectedDepth:      original.Depth(),
		ActualDepth:        generated.Depth(),
	}
	rootPath := ""
	if original != nil && original.Root != nil {
		rootPath = original.Root.Path
	}

	res.ComponentCountMatch = res.ExpectedComponents == res.ActualComponents
	if !res.ComponentCountMatch {
		res.Failures = append(res.Failures, models.NewStructureFailure(rootPath,
			fmt.Sprintf("%d top-level components", res.ExpectedComponents),
			fmt.Sprintf("%d top-level components", res.ActualComponents)))
	}

	diff := res.ExpectedDepth - res.ActualDepth
	if diff < 0 {
		diff = -diff
	}
	res.HierarchyDepthMatch = diff <= DepthTolerance
	if !res.HierarchyDepthMatch {
		res.Failures = append(res.Failures, models.NewStructureFailure(rootPath,
			fmt.Sprintf("depth %d", res.ExpectedDepth),
			fmt.Sprintf("depth %d", res.ActualDepth)))
	}

	mapped := make(map[string]*models.ElementNode, len(pairs))
	for _, p := range pairs {
		if p.Generated != nil {
			mapped[p.Original.Path] = p.Generated
		}
	}
	res.RelationshipIntegrity = 1
	if len(specs) > 0 {
		intact := 0
		for _, spec := range specs {
			if broken, actual := brokenInstance(spec, mapped); broken != "" {
				res.Failures = append(res.Failures, models.NewStructureFailure(broken,
					"nested "+spec.ID, actual))
				continue
			}
			intact++
		}
		res.RelationshipIntegrity = float64(intact) / float64(len(specs))
	}

	res.Score = CountWeight*boolScore(res.ComponentCountMatch) +
		DepthWeight*boolScore(res.HierarchyDepthMatch) +
		IntegrityWeight*res.RelationshipIntegrity
	return res
}

// brokenInstance returns the root of the first instance whose covered
// elements are missing or no longer below the mapped root.
func brokenInstance(spec models.ComponentSpec, mapped map[string]*models.ElementNode) (string, string) {
	for _, root := range spec.Roots {
		genRoot, ok := mapped[root]
		if !ok {
			return root, "missing"
		}
		for _, p := range spec.Paths {
			if !models.IsDescendantPath(p, root) {
				continue
			}
			g, ok := mapped[p]
			if !ok {
				return root, "missing " + p
			}
			if !models.IsDescendantPath(g.Path, genRoot.Path) {
				return root, "flattened"
			}
		}
	}
	return "", ""
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sortedProps(styles map[string]string) []string {
	keys := make([]string, 0, len(styles))
	for k := range styles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
