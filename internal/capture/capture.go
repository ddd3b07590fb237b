// Package capture produces raw fingerprints of live pages: element tree,
// bounding geometry and style values. BrowserCapturer reads computed styles
// from a real browser; HTMLCapturer reads markup and stylesheets without one.
package capture

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/replica/pkg/models"
)

// skipTags never contribute to a fingerprint.
var skipTags = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"meta":     true,
	"link":     true,
	"title":    true,
	"base":     true,
}

var noisePattern = regexp.MustCompile(`(?i)cookie|tracking|analytics`)

// Properties are the style properties read from every element.
var Properties = []string{
	"color",
	"background-color",
	"background-image",
	"font-family",
	"font-size",
	"font-weight",
	"font-style",
	"line-height",
	"letter-spacing",
	"text-align",
	"text-transform",
	"text-decoration-line",
	"display",
	"position",
	"flex-direction",
	"justify-content",
	"align-items",
	"gap",
	"width",
	"height",
	"margin-top",
	"margin-right",
	"margin-bottom",
	"margin-left",
	"padding-top",
	"padding-right",
	"padding-bottom",
	"padding-left",
	"border-top-width",
	"border-top-style",
	"border-top-color",
	"border-radius",
	"box-shadow",
	"opacity",
}

// inherited lists the properties a child takes from its parent when unset.
var inherited = map[string]bool{
	"color":          true,
	"font-family":    true,
	"font-size":      true,
	"font-weight":    true,
	"font-style":     true,
	"line-height":    true,
	"letter-spacing": true,
	"text-align":     true,
	"text-transform": true,
}

// Skip reports whether an element is boilerplate that should not be
// fingerprinted: non-visual tags and cookie banners, trackers and analytics
// widgets.
func Skip(tag, id string, classes []string) bool {
	if skipTags[tag] {
		return true
	}
	if id != "" && noisePattern.MatchString(id) {
		return true
	}
	for _, c := range classes {
		if noisePattern.MatchString(c) {
			return true
		}
	}
	return false
}

// rawNode is the element shape produced by the capture script.
type rawNode struct {
	Tag      string            `json:"tag"`
	ID       string            `json:"id"`
	Role     string            `json:"role"`
	Classes  []string          `json:"classes"`
	Box      *models.Rect      `json:"box"`
	Styles   map[string]string `json:"styles"`
	Children []*rawNode        `json:"children"`
}

// buildTree converts a captured element tree, dropping skipped subtrees and
// zero-area elements. The children of a zero-area element take its place, so
// display: contents wrappers do not hide their content. The root is always
// kept.
func buildTree(raw *rawNode) *models.ElementNode {
	if raw == nil {
		return nil
	}
	root := toElement(raw)
	root.Children = buildChildren(raw.Children)
	return root
}

func buildChildren(children []*rawNode) []*models.ElementNode {
	var out []*models.ElementNode
	for _, c := range children {
		if c == nil {
			continue
		}
		tag := strings.ToLower(c.Tag)
		if Skip(tag, c.ID, c.Classes) {
			continue
		}
		kids := buildChildren(c.Children)
		if c.Box == nil || c.Box.Area() <= 0 {
			out = append(out, kids...)
			continue
		}
		n := toElement(c)
		n.Children = kids
		out = append(out, n)
	}
	return out
}

func toElement(raw *rawNode) *models.ElementNode {
	n := &models.ElementNode{
		Tag:     strings.ToLower(raw.Tag),
		Role:    raw.Role,
		Classes: raw.Classes,
		Styles:  raw.Styles,
	}
	if raw.Box != nil {
		box := *raw.Box
		n.Box = &box
	}
	return n
}
