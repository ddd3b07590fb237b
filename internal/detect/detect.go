// Package detect proposes component regions over a normalized fingerprint.
//
// Three rules run in a fixed order. The semantic rule turns landmark
// elements into layout specs. The reusability rule groups structurally
// identical subtrees that recur at three or more non-overlapping positions.
// The hierarchy rule only annotates specs whose elements nest too deeply or
// fan out too widely. Results are merged with Merge and sorted by root path,
// so the same fingerprint always yields the same spec list.
package detect

import (
	"sort"
	"strings"

	"github.com/ShayCichocki/replica/pkg/models"
)

const (
	// MinRecurrence is the number of independent instances a signature
	// needs before it becomes a reusable spec.
	MinRecurrence = 3
	// MaxNestingDepth is the depth below a spec root past which the spec is
	// annotated for splitting.
	MaxNestingDepth = 3
	// MaxFanout is the child count at which the spec is annotated for splitting.
	MaxFanout = 5
)

var landmarkTags = map[string]bool{
	"header": true,
	"nav":    true,
	"aside":  true,
	"main":   true,
	"footer": true,
}

var landmarkRoles = map[string]bool{
	"banner":        true,
	"navigation":    true,
	"complementary": true,
	"main":          true,
	"contentinfo":   true,
}

// IsLandmark reports whether the node marks a landmark region.
func IsLandmark(n *models.ElementNode) bool {
	return landmarkTags[n.Tag] || landmarkRoles[n.Role]
}

// Detect returns the component specs for fp sorted by root path.
func Detect(fp *models.Fingerprint) []models.ComponentSpec {
	if fp == nil || fp.Root == nil {
		return nil
	}
	idx := fp.Index()

	specs := Merge(nil, semantic(fp)...)
	specs = Merge(specs, reusable(fp)...)
	for i := range specs {
		specs[i].Annotations = hierarchy(specs[i], idx)
	}
	sortSpecs(specs)
	return specs
}

func semantic(fp *models.Fingerprint) []models.ComponentSpec {
	var specs []models.ComponentSpec
	fp.Walk(func(v models.Visit) bool {
		if IsLandmark(v.Node) {
			specs = append(specs, models.ComponentSpec{
				ID:     "layout:" + v.Node.Path,
				Kind:   models.KindLayout,
				Roots:  []string{v.Node.Path},
				Paths:  subtreePaths(v.Node),
				Reason: models.ReasonSemantic,
			})
		}
		return true
	})
	return specs
}

// Signature is the label of n plus the sorted multiset of its children's
// labels. Deeper descendants are ignored so that instances differing only
// in content still match.
func Signature(n *models.ElementNode) string {
	if len(n.Children) == 0 {
		return n.Label()
	}
	labels := make([]string, len(n.Children))
	for i, c := range n.Children {
		labels[i] = c.Label()
	}
	sort.Strings(labels)
	return n.Label() + "[" + strings.Join(labels, ",") + "]"
}

func reusable(fp *models.Fingerprint) []models.ComponentSpec {
	groups := make(map[string][]*models.ElementNode)
	var order []string
	fp.Walk(func(v models.Visit) bool {
		n := v.Node
		if v.Parent == nil {
			return true
		}
		// Bare leaves without classes are too generic to be components.
		if len(n.Children) == 0 && len(n.Classes) == 0 {
			return true
		}
		sig := Signature(n)
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], n)
		return true
	})

	var specs []models.ComponentSpec
	for _, sig := range order {
		instances := independent(groups[sig])
		if len(instances) < MinRecurrence {
			continue
		}
		kind := models.KindReusable
		prefix := "reusable:"
		if len(instances[0].Children) == 0 {
			kind = models.KindLeaf
			prefix = "leaf:"
		}
		spec := models.ComponentSpec{
			ID:         prefix + instances[0].Path,
			Kind:       kind,
			Recurrence: len(instances),
			Reason:     models.ReasonReusable,
			Signature:  sig,
		}
		for _, inst := range instances {
			spec.Roots = append(spec.Roots, inst.Path)
			spec.Paths = append(spec.Paths, subtreePaths(inst)...)
		}
		sort.Strings(spec.Paths)
		specs = append(specs, spec)
	}

	// Smaller specs merge first so that an enclosing pattern replaces the
	// leaf patterns it fully contains.
	sort.SliceStable(specs, func(i, j int) bool {
		return len(specs[i].Paths) < len(specs[j].Paths)
	})
	return specs
}

// independent keeps instances in document order, skipping any nested in an
// instance already kept.
func independent(nodes []*models.ElementNode) []*models.ElementNode {
	var kept []*models.ElementNode
	for _, n := range nodes {
		overlap := false
		for _, k := range kept {
			if models.IsDescendantPath(n.Path, k.Path) || models.IsDescendantPath(k.Path, n.Path) {
				overlap = true
				break
			}
		}
		if !overlap {
			kept = append(kept, n)
		}
	}
	return kept
}

func hierarchy(spec models.ComponentSpec, idx map[string]*models.ElementNode) []string {
	var deep, wide bool
	for _, root := range spec.Roots {
		n, ok := idx[root]
		if !ok {
			continue
		}
		walkDepth(n, 0, func(node *models.ElementNode, depth int) {
			if depth > MaxNestingDepth {
				deep = true
			}
			if len(node.Children) >= MaxFanout {
				wide = true
			}
		})
	}
	var notes []string
	if deep {
		notes = append(notes, models.AnnotationSplitDepth)
	}
	if wide {
		notes = append(notes, models.AnnotationSplitFanout)
	}
	return notes
}

func walkDepth(n *models.ElementNode, depth int, fn func(*models.ElementNode, int)) {
	fn(n, depth)
	for _, c := range n.Children {
		walkDepth(c, depth+1, fn)
	}
}

func subtreePaths(n *models.ElementNode) []string {
	var paths []string
	walkDepth(n, 0, func(node *models.ElementNode, _ int) {
		paths = append(paths, node.Path)
	})
	sort.Strings(paths)
	return paths
}
