package rank

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/replica/internal/detect"
	"github.com/ShayCichocki/replica/internal/normalize"
	"github.com/ShayCichocki/replica/pkg/models"
)

func el(tag, classes string, children ...*models.ElementNode) *models.ElementNode {
	return &models.ElementNode{
		Tag:      tag,
		Classes:  strings.Fields(classes),
		Box:      &models.Rect{Width: 10, Height: 10},
		Children: children,
	}
}

func TestRank_ReuseBonus(t *testing.T) {
	card := func() *models.ElementNode { return el("li", "card", el("h3", "title")) }
	fp, _ := normalize.Normalize(&models.Fingerprint{Root: el("html", "", el("body", "",
		el("ul", "", card(), card(), card(), card()),
		el("div", "promo"),
	))})
	specs := detect.Detect(fp)
	if len(specs) != 1 || specs[0].Recurrence != 4 {
		t.Fatalf("fixture should detect one 4x reusable card, got %+v", specs)
	}

	inCard := models.NewStyleFailure("/html[1]/body[1]/ul[1]/li[2]", "color", "#000000", "#333333")
	plain := models.NewStyleFailure("/html[1]/body[1]/div[1]", "color", "#000000", "#333333")

	r := New(specs)
	if diff := r.Priority(inCard) - r.Priority(plain); diff != ReusableBonus {
		t.Fatalf("priority difference = %d, want %d", diff, ReusableBonus)
	}

	ranked := r.Rank([]models.ValidationFailure{plain, inCard})
	if ranked[0].Path != inCard.Path {
		t.Errorf("reusable failure should rank first: %+v", ranked)
	}
}

func TestRanker_Priority(t *testing.T) {
	specs := []models.ComponentSpec{
		{ID: "layout", Kind: models.KindLayout, Paths: []string{"/h", "/h/a"}},
		{ID: "reuse", Kind: models.KindReusable, Paths: []string{"/h/a", "/r"}},
	}
	r := New(specs)

	tests := []struct {
		name string
		f    models.ValidationFailure
		want int
	}{
		{"high salient", models.NewStyleFailure("/x", "background-color", "a", "b"), 11},
		{"high in layout", models.NewStyleFailure("/h", "color", "a", "b"), 14},
		{"layout and reusable", models.NewStyleFailure("/h/a", "font-size", "a", "b"), 16},
		{"medium reusable", models.NewStyleFailure("/r", "padding", "a", "b"), 7},
		{"low non-salient", models.NewStyleFailure("/x", "display", "a", "b"), 1},
		{"low salient font", models.NewStyleFailure("/x", "font-family", "a", "b"), 2},
		{"structure", models.NewStructureFailure("/h", "3", "2"), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Priority(tt.f); got != tt.want {
				t.Errorf("Priority = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRank_StableAndDescending(t *testing.T) {
	failures := []models.ValidationFailure{
		models.NewStyleFailure("/a", "display", "block", "flex"),
		models.NewStyleFailure("/b", "color", "#000000", "#ffffff"),
		models.NewStyleFailure("/c", "display", "none", "block"),
		models.NewStyleFailure("/d", "margin", "0px", "4px"),
		models.NewStyleFailure("/e", "color", "#111111", "#ffffff"),
	}

	ranked := New(nil).Rank(failures)

	var order []string
	for i, f := range ranked {
		order = append(order, f.Path)
		if i > 0 && ranked[i-1].Priority < f.Priority {
			t.Fatalf("not descending at %d", i)
		}
	}
	if want := []string{"/b", "/e", "/d", "/a", "/c"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if failures[0].Priority != 0 {
		t.Error("Rank should not modify its input")
	}
}

func TestSelectTopN(t *testing.T) {
	ranked := New(nil).Rank([]models.ValidationFailure{
		models.NewStyleFailure("/a", "color", "x", "y"),
		models.NewStyleFailure("/b", "color", "x", "y"),
		models.NewStyleFailure("/c", "color", "x", "y"),
	})

	for _, n := range []int{-1, 0, 1, 2, 3, 10} {
		got := SelectTopN(ranked, n)
		if got == nil {
			t.Fatalf("SelectTopN(%d) returned nil", n)
		}
		limit := n
		if limit < 0 {
			limit = 0
		}
		if len(got) > limit {
			t.Fatalf("SelectTopN(%d) returned %d items", n, len(got))
		}
		if !reflect.DeepEqual(got, ranked[:len(got)]) {
			t.Fatalf("SelectTopN(%d) is not a prefix", n)
		}
	}
	if len(SelectTopN(ranked, 0)) != 0 {
		t.Fatal("SelectTopN(0) must be empty")
	}
	if len(SelectTopN(nil, 5)) != 0 {
		t.Fatal("SelectTopN(nil, 5) must be empty")
	}
}
