package models

import "strings"

// ComponentKind classifies a detected component.
type ComponentKind string

const (
	// KindLayout is a landmark region such as a header or footer.
	KindLayout ComponentKind = "layout"
	// KindReusable is a structure that recurs at several positions.
	KindReusable ComponentKind = "reusable"
	// KindLeaf is a recurring styled element without children.
	KindLeaf ComponentKind = "leaf"
)

// Valid returns true if the kind is a known value.
func (k ComponentKind) Valid() bool {
	switch k {
	case KindLayout, KindReusable, KindLeaf:
		return true
	default:
		return false
	}
}

// Reason codes record which detection rule produced a component.
const (
	ReasonSemantic = "R1"
	ReasonReusable = "R3"
)

// Split annotations attached by the hierarchy rule.
const (
	AnnotationSplitDepth  = "split:depth"
	AnnotationSplitFanout = "split:fanout"
)

// ComponentSpec is a proposed structural or reusable unit of the page.
// Specs are created once per detection pass and never mutated afterwards.
type ComponentSpec struct {
	// ID is stable for a given fingerprint.
	ID string `json:"id"`
	// Kind is layout, reusable or leaf.
	Kind ComponentKind `json:"kind"`
	// Roots are the root element paths of each instance. Layout specs have one.
	Roots []string `json:"roots"`
	// Paths lists every covered element path, sorted.
	Paths []string `json:"paths"`
	// Recurrence is the instance count for reusable and leaf specs.
	Recurrence int `json:"recurrence,omitempty"`
	// Reason is the rule code that produced the spec.
	Reason string `json:"reason"`
	// Signature is the structural signature for reusable specs.
	Signature string `json:"signature,omitempty"`
	// Annotations carries advisory hints such as split:depth.
	Annotations []string `json:"annotations,omitempty"`
}

// Covers reports whether the element path is covered by the spec.
func (c ComponentSpec) Covers(path string) bool {
	for _, p := range c.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// Subsumes reports whether every path of other is covered by c.
func (c ComponentSpec) Subsumes(other ComponentSpec) bool {
	if len(other.Paths) > len(c.Paths) {
		return false
	}
	set := make(map[string]struct{}, len(c.Paths))
	for _, p := range c.Paths {
		set[p] = struct{}{}
	}
	for _, p := range other.Paths {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

// HasAnnotation reports whether the spec carries the annotation.
func (c ComponentSpec) HasAnnotation(a string) bool {
	for _, x := range c.Annotations {
		if x == a {
			return true
		}
	}
	return false
}

// IsDescendantPath reports whether path lies strictly below ancestor.
func IsDescendantPath(path, ancestor string) bool {
	return strings.HasPrefix(path, ancestor+"/")
}
