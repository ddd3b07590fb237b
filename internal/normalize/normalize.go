// Package normalize canonicalizes captured fingerprints so that the original
// page and a generated page can be compared property by property.
//
// Normalize is pure and idempotent: normalizing an already normalized
// fingerprint returns an equal fingerprint.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ShayCichocki/replica/pkg/models"
)

// DroppedNode records an element removed during normalization.
type DroppedNode struct {
	ParentTag string `json:"parent_tag"`
	Tag       string `json:"tag"`
	Reason    string `json:"reason"`
}

// Report summarizes what normalization removed.
type Report struct {
	DroppedNodes      []DroppedNode
	DroppedProperties int
}

// Normalize returns a canonical copy of fp. Nodes with unparseable geometry
// or no tag are removed and their children take their place. The root is
// never removed.
func Normalize(fp *models.Fingerprint) (*models.Fingerprint, Report) {
	var rep Report
	if fp == nil {
		return &models.Fingerprint{}, rep
	}
	out := &models.Fingerprint{
		URL:        fp.URL,
		Viewport:   fp.Viewport,
		CapturedAt: fp.CapturedAt,
	}
	if fp.Root == nil {
		return out, rep
	}

	root := cleanNode(fp.Root, &rep)
	if root.Tag == "" {
		root.Tag = "html"
	}
	root.Children = cleanChildren(fp.Root.Children, root.Tag, &rep)
	assignPaths(root, "", 1)
	out.Root = root
	return out, rep
}

// cleanChildren normalizes a child list, splicing in the children of any
// dropped node so that document order is preserved.
func cleanChildren(children []*models.ElementNode, parentTag string, rep *Report) []*models.ElementNode {
	var out []*models.ElementNode
	for _, raw := range children {
		if raw == nil {
			continue
		}
		if reason := invalidReason(raw); reason != "" {
			rep.DroppedNodes = append(rep.DroppedNodes, DroppedNode{
				ParentTag: parentTag,
				Tag:       strings.ToLower(strings.TrimSpace(raw.Tag)),
				Reason:    reason,
			})
			out = append(out, cleanChildren(raw.Children, parentTag, rep)...)
			continue
		}
		n := cleanNode(raw, rep)
		n.Children = cleanChildren(raw.Children, n.Tag, rep)
		out = append(out, n)
	}
	return out
}

func invalidReason(n *models.ElementNode) string {
	if strings.TrimSpace(n.Tag) == "" {
		return "missing tag"
	}
	b := n.Box
	if b == nil {
		return "missing geometry"
	}
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "non-finite geometry"
		}
	}
	if b.Width < 0 || b.Height < 0 {
		return "negative size"
	}
	return ""
}

func cleanNode(raw *models.ElementNode, rep *Report) *models.ElementNode {
	n := &models.ElementNode{
		Tag:     strings.ToLower(strings.TrimSpace(raw.Tag)),
		Role:    strings.ToLower(strings.TrimSpace(raw.Role)),
		Classes: cleanClasses(raw.Classes),
	}
	if raw.Box != nil {
		box := *raw.Box
		n.Box = &box
	}
	if len(raw.Styles) > 0 {
		styles := make(map[string]string, len(raw.Styles))
		// Sorted iteration keeps collisions (backgroundColor vs
		// background-color) deterministic.
		keys := make([]string, 0, len(raw.Styles))
		for k := range raw.Styles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			prop := PropertyName(k)
			if prop == "" {
				rep.DroppedProperties++
				continue
			}
			v, ok := Value(prop, raw.Styles[k])
			if !ok {
				rep.DroppedProperties++
				continue
			}
			styles[prop] = v
		}
		if len(styles) > 0 {
			n.Styles = styles
		}
	}
	return n
}

func cleanClasses(classes []string) []string {
	if len(classes) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(classes))
	var out []string
	for _, c := range classes {
		for _, f := range strings.Fields(c) {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}

// assignPaths sets XPath-like identifiers: the tag plus its 1-based index
// among same-tag siblings.
func assignPaths(n *models.ElementNode, parentPath string, ordinal int) {
	n.Path = fmt.Sprintf("%s/%s[%d]", parentPath, n.Tag, ordinal)
	counts := make(map[string]int)
	for _, c := range n.Children {
		counts[c.Tag]++
		assignPaths(c, n.Path, counts[c.Tag])
	}
}
