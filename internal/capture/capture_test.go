package capture

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/replica/pkg/models"
)

func TestSkip(t *testing.T) {
	tests := []struct {
		tag, id string
		classes []string
		want    bool
	}{
		{"script", "", nil, true},
		{"noscript", "", nil, true},
		{"div", "cookie-banner", nil, true},
		{"div", "", []string{"consent", "CookieNotice"}, true},
		{"iframe", "", []string{"google-analytics"}, true},
		{"div", "", []string{"user-tracking-pixel"}, true},
		{"div", "hero", []string{"card"}, false},
		{"main", "", nil, false},
	}
	for _, tt := range tests {
		if got := Skip(tt.tag, tt.id, tt.classes); got != tt.want {
			t.Errorf("Skip(%q, %q, %v) = %v, want %v", tt.tag, tt.id, tt.classes, got, tt.want)
		}
	}
}

func box(w, h float64) *models.Rect {
	return &models.Rect{Width: w, Height: h}
}

func TestBuildTree_FiltersAndSplices(t *testing.T) {
	raw := &rawNode{Tag: "HTML", Box: box(100, 100), Children: []*rawNode{
		{Tag: "head", Box: box(0, 0)},
		{Tag: "body", Box: box(100, 100), Children: []*rawNode{
			{Tag: "script", Box: box(10, 10)},
			{Tag: "div", ID: "cookie-consent", Box: box(100, 20)},
			{Tag: "div", Classes: []string{"contents"}, Box: box(0, 0), Children: []*rawNode{
				{Tag: "p", Box: box(50, 10)},
				{Tag: "span", Box: box(0, 10)},
			}},
			{Tag: "footer", Box: box(100, 10)},
		}},
	}}

	root := buildTree(raw)

	if root.Tag != "html" {
		t.Fatalf("root tag = %q", root.Tag)
	}
	if len(root.Children) != 1 || root.Children[0].Tag != "body" {
		t.Fatalf("root children = %+v", root.Children)
	}
	var tags []string
	for _, c := range root.Children[0].Children {
		tags = append(tags, c.Tag)
	}
	if got := strings.Join(tags, ","); got != "p,footer" {
		t.Fatalf("body children = %s, want p,footer", got)
	}
}

func TestDecodeTree(t *testing.T) {
	root, err := decodeTree(`{"tag":"html","box":{"x":0,"y":0,"width":10,"height":10},
		"styles":{"color":"rgb(0, 0, 0)"},
		"children":[{"tag":"body","role":"document","classes":["a"],"box":{"x":0,"y":0,"width":10,"height":5}}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if root.Styles["color"] != "rgb(0, 0, 0)" {
		t.Errorf("styles = %v", root.Styles)
	}
	body := root.Children[0]
	if body.Role != "document" || body.Classes[0] != "a" || body.Box.Height != 5 {
		t.Errorf("body = %+v", body)
	}
}

func TestDecodeTree_Malformed(t *testing.T) {
	for _, in := range []string{"", "[]", `{"children":[]}`, "{"} {
		if _, err := decodeTree(in); err == nil {
			t.Errorf("decodeTree(%q) should fail", in)
		}
	}
}
