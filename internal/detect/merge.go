package detect

import (
	"sort"

	"github.com/ShayCichocki/replica/pkg/models"
)

// Merge adds incoming specs to existing in order. An incoming spec that
// covers every path of an existing spec replaces it; specs that only
// partially overlap are both kept.
func Merge(existing []models.ComponentSpec, incoming ...models.ComponentSpec) []models.ComponentSpec {
	out := append([]models.ComponentSpec(nil), existing...)
	for _, in := range incoming {
		kept := out[:0]
		for _, cur := range out {
			if in.Subsumes(cur) {
				continue
			}
			kept = append(kept, cur)
		}
		out = append(kept, in)
	}
	return out
}

// TopLevel returns the specs whose root is not nested inside another spec,
// in their original order.
func TopLevel(specs []models.ComponentSpec) []models.ComponentSpec {
	var top []models.ComponentSpec
	for i, s := range specs {
		if len(s.Roots) == 0 {
			continue
		}
		nested := false
		for j, t := range specs {
			if i == j || !t.Covers(s.Roots[0]) {
				continue
			}
			if len(t.Roots) > 0 && s.Covers(t.Roots[0]) {
				// Same region claimed twice: the larger spec, then the earlier one, wins.
				if len(t.Paths) > len(s.Paths) || (len(t.Paths) == len(s.Paths) && j < i) {
					nested = true
					break
				}
				continue
			}
			nested = true
			break
		}
		if !nested {
			top = append(top, s)
		}
	}
	return top
}

// sortSpecs orders specs by first root path, then ID.
func sortSpecs(specs []models.ComponentSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		ri, rj := firstRoot(specs[i]), firstRoot(specs[j])
		if ri != rj {
			return ri < rj
		}
		return specs[i].ID < specs[j].ID
	})
}

func firstRoot(s models.ComponentSpec) string {
	if len(s.Roots) == 0 {
		return ""
	}
	return s.Roots[0]
}
