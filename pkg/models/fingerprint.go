package models

import "time"

// Viewport is the browser window size a fingerprint was captured at.
type Viewport struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Predefined capture viewports.
var (
	ViewportDesktop = Viewport{Name: "desktop", Width: 1920, Height: 1080}
	ViewportTablet  = Viewport{Name: "tablet", Width: 768, Height: 1024}
	ViewportMobile  = Viewport{Name: "mobile", Width: 375, Height: 812}
)

// ViewportByName returns the predefined viewport with the given name.
func ViewportByName(name string) (Viewport, bool) {
	switch name {
	case "desktop", "":
		return ViewportDesktop, true
	case "tablet":
		return ViewportTablet, true
	case "mobile":
		return ViewportMobile, true
	default:
		return Viewport{}, false
	}
}

// Rect is the bounding geometry of an element in page coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns width times height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// ElementNode is one element of a fingerprint tree.
type ElementNode struct {
	// Path is the ancestry-derived identifier, e.g. /html[1]/body[1]/div[2].
	// Empty on raw captures; assigned by normalization.
	Path string `json:"path,omitempty"`
	// Tag is the lowercase element name.
	Tag string `json:"tag"`
	// Role is the ARIA role attribute, if any.
	Role string `json:"role,omitempty"`
	// Classes holds the class-like labels of the element.
	Classes []string `json:"classes,omitempty"`
	// Box is the bounding geometry. Nil means the capture could not read it.
	Box *Rect `json:"box,omitempty"`
	// Styles maps style property name to value.
	Styles map[string]string `json:"styles,omitempty"`
	// Children are ordered by document order.
	Children []*ElementNode `json:"children,omitempty"`
}

// Label returns the tag joined with its classes, e.g. "li.card.active".
func (n *ElementNode) Label() string {
	label := n.Tag
	for _, c := range n.Classes {
		label += "." + c
	}
	return label
}

// Fingerprint is a captured structural and style snapshot of a page.
type Fingerprint struct {
	URL        string       `json:"url"`
	Viewport   Viewport     `json:"viewport"`
	CapturedAt time.Time    `json:"captured_at"`
	Root       *ElementNode `json:"root,omitempty"`
}

// Visit is passed to Walk callbacks.
type Visit struct {
	Node   *ElementNode
	Parent *ElementNode
	// Depth is 0 for the root.
	Depth int
	// Index is the position among the parent's children.
	Index int
}

// Walk visits every node in document order. Returning false from fn skips
// the node's descendants.
func (f *Fingerprint) Walk(fn func(v Visit) bool) {
	if f == nil || f.Root == nil {
		return
	}
	walkNode(f.Root, nil, 0, 0, fn)
}

func walkNode(n, parent *ElementNode, depth, index int, fn func(v Visit) bool) {
	if !fn(Visit{Node: n, Parent: parent, Depth: depth, Index: index}) {
		return
	}
	for i, c := range n.Children {
		walkNode(c, n, depth+1, i, fn)
	}
}

// Nodes returns all nodes in document order.
func (f *Fingerprint) Nodes() []*ElementNode {
	var nodes []*ElementNode
	f.Walk(func(v Visit) bool {
		nodes = append(nodes, v.Node)
		return true
	})
	return nodes
}

// Index maps element path to node.
func (f *Fingerprint) Index() map[string]*ElementNode {
	idx := make(map[string]*ElementNode)
	f.Walk(func(v Visit) bool {
		idx[v.Node.Path] = v.Node
		return true
	})
	return idx
}

// Depth returns the maximum nesting depth, 0 for a single root and -1 for
// an empty fingerprint.
func (f *Fingerprint) Depth() int {
	maxDepth := -1
	f.Walk(func(v Visit) bool {
		if v.Depth > maxDepth {
			maxDepth = v.Depth
		}
		return true
	})
	return maxDepth
}

// Size returns the number of nodes.
func (f *Fingerprint) Size() int {
	n := 0
	f.Walk(func(Visit) bool {
		n++
		return true
	})
	return n
}
