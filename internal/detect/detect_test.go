package detect

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/replica/internal/normalize"
	"github.com/ShayCichocki/replica/pkg/models"
)

func el(tag, classes string, children ...*models.ElementNode) *models.ElementNode {
	return &models.ElementNode{
		Tag:      tag,
		Classes:  strings.Fields(classes),
		Box:      &models.Rect{Width: 100, Height: 20},
		Children: children,
	}
}

func card() *models.ElementNode {
	return el("li", "card", el("h3", "title"), el("span", "price"))
}

func page(bodyChildren ...*models.ElementNode) *models.Fingerprint {
	fp, _ := normalize.Normalize(&models.Fingerprint{
		Root: el("html", "", el("body", "", bodyChildren...)),
	})
	return fp
}

func shopPage() *models.Fingerprint {
	return page(
		el("header", "", el("nav", "")),
		el("main", "", el("ul", "", card(), card(), card(), card())),
		el("footer", ""),
	)
}

func ids(specs []models.ComponentSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.ID
	}
	return out
}

func TestDetect_Rules(t *testing.T) {
	specs := Detect(shopPage())

	want := []string{
		"layout:/html[1]/body[1]/footer[1]",
		"layout:/html[1]/body[1]/header[1]",
		"layout:/html[1]/body[1]/header[1]/nav[1]",
		"layout:/html[1]/body[1]/main[1]",
		"reusable:/html[1]/body[1]/main[1]/ul[1]/li[1]",
	}
	if got := ids(specs); !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v\nwant %v", got, want)
	}

	cards := specs[4]
	if cards.Kind != models.KindReusable || cards.Reason != models.ReasonReusable {
		t.Errorf("unexpected card spec: %+v", cards)
	}
	if cards.Recurrence != 4 || len(cards.Roots) != 4 || len(cards.Paths) != 12 {
		t.Errorf("recurrence=%d roots=%d paths=%d", cards.Recurrence, len(cards.Roots), len(cards.Paths))
	}
	if specs[1].Reason != models.ReasonSemantic || len(specs[1].Paths) != 2 {
		t.Errorf("header spec = %+v", specs[1])
	}
}

func TestDetect_Deterministic(t *testing.T) {
	a := Detect(shopPage())
	b := Detect(shopPage())
	if !reflect.DeepEqual(a, b) {
		t.Fatal("detect returned different results for the same fingerprint")
	}
}

func TestDetect_EnclosingPatternReplacesLeaves(t *testing.T) {
	specs := Detect(shopPage())
	for _, s := range specs {
		if s.Kind == models.KindLeaf {
			t.Fatalf("leaf spec %s should have been subsumed by the card pattern", s.ID)
		}
	}
}

func TestDetect_LeafPattern(t *testing.T) {
	specs := Detect(page(
		el("a", "btn"), el("a", "btn"), el("a", "btn"),
	))
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1: %v", len(specs), ids(specs))
	}
	if specs[0].Kind != models.KindLeaf || specs[0].Recurrence != 3 {
		t.Errorf("unexpected spec: %+v", specs[0])
	}
}

func TestDetect_BelowRecurrence(t *testing.T) {
	specs := Detect(page(card(), card()))
	if len(specs) != 0 {
		t.Fatalf("two instances should not form a component, got %v", ids(specs))
	}
}

func TestDetect_NestedInstancesCountOnce(t *testing.T) {
	// div.box[div.box] matches both the outer and the middle element, but
	// only the outer one is an independent instance.
	nested := func() *models.ElementNode {
		return el("div", "box", el("div", "box", el("div", "box")))
	}
	if specs := Detect(page(nested(), nested())); len(specs) != 0 {
		t.Fatalf("two independent instances should not form a component, got %v", ids(specs))
	}

	specs := Detect(page(nested(), nested(), nested()))
	if len(specs) != 1 {
		t.Fatalf("got %v, want a single pattern", ids(specs))
	}
	if specs[0].Recurrence != 3 || specs[0].Signature != "div.box[div.box]" {
		t.Errorf("unexpected spec: %+v", specs[0])
	}
}

func TestDetect_HierarchyAnnotations(t *testing.T) {
	links := []*models.ElementNode{el("a", ""), el("a", ""), el("a", ""), el("a", ""), el("a", "")}
	specs := Detect(page(
		el("aside", "", el("div", "", el("div", "", el("div", "", el("div", ""))))),
		el("footer", "", links...),
	))
	if len(specs) != 2 {
		t.Fatalf("got %v", ids(specs))
	}
	aside, footer := specs[0], specs[1]
	if !aside.HasAnnotation(models.AnnotationSplitDepth) || aside.HasAnnotation(models.AnnotationSplitFanout) {
		t.Errorf("aside annotations = %v", aside.Annotations)
	}
	if !footer.HasAnnotation(models.AnnotationSplitFanout) || footer.HasAnnotation(models.AnnotationSplitDepth) {
		t.Errorf("footer annotations = %v", footer.Annotations)
	}
}

func TestDetect_RoleLandmark(t *testing.T) {
	fp := page(&models.ElementNode{Tag: "div", Role: "navigation", Box: &models.Rect{Width: 1, Height: 1}})
	specs := Detect(fp)
	if len(specs) != 1 || specs[0].Kind != models.KindLayout {
		t.Fatalf("got %v", ids(specs))
	}
}

func TestDetect_Empty(t *testing.T) {
	if specs := Detect(&models.Fingerprint{}); specs != nil {
		t.Fatalf("expected nil, got %v", specs)
	}
}

func TestMerge_Subsumption(t *testing.T) {
	small := models.ComponentSpec{ID: "small", Paths: []string{"/a", "/a/b"}}
	other := models.ComponentSpec{ID: "other", Paths: []string{"/c"}}
	big := models.ComponentSpec{ID: "big", Paths: []string{"/a", "/a/b", "/a/c"}}
	partial := models.ComponentSpec{ID: "partial", Paths: []string{"/a/c", "/d"}}

	got := Merge([]models.ComponentSpec{small, other}, big, partial)
	if want := []string{"other", "big", "partial"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("merge = %v, want %v", ids(got), want)
	}

	// An earlier, larger spec is not replaced by a smaller one.
	got = Merge([]models.ComponentSpec{big}, small)
	if want := []string{"big", "small"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("merge = %v, want %v", ids(got), want)
	}
}

func TestTopLevel(t *testing.T) {
	top := TopLevel(Detect(shopPage()))
	want := []string{
		"layout:/html[1]/body[1]/footer[1]",
		"layout:/html[1]/body[1]/header[1]",
		"layout:/html[1]/body[1]/main[1]",
	}
	if got := ids(top); !reflect.DeepEqual(got, want) {
		t.Fatalf("top level = %v, want %v", got, want)
	}
}
