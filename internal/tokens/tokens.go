// Package tokens extracts the shared visual constants of a page: its color
// palette, spacing scale and typography.
package tokens

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/replica/internal/normalize"
	"github.com/ShayCichocki/replica/pkg/models"
)

const (
	// MinColorOccurrences is how often a color must appear to become a token.
	MinColorOccurrences = 2
	// MinSpacingOccurrences is how often a spacing value must appear to become a token.
	MinSpacingOccurrences = 3
)

var colorNames = []string{"primary", "secondary", "tertiary", "quaternary"}

var spacingNames = []string{"sm", "md", "lg", "xl"}

// counter tallies values and remembers first-seen order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(v string) {
	if _, ok := c.counts[v]; !ok {
		c.order = append(c.order, v)
	}
	c.counts[v]++
}

// atLeast returns the values seen at least min times in first-seen order.
func (c *counter) atLeast(min int) []string {
	var out []string
	for _, v := range c.order {
		if c.counts[v] >= min {
			out = append(out, v)
		}
	}
	return out
}

// Extract builds design tokens from a normalized fingerprint.
func Extract(fp *models.Fingerprint) models.DesignTokens {
	tokens := models.NewDesignTokens()
	colors := newCounter()
	spacing := newCounter()
	typography := newCounter()

	fp.Walk(func(v models.Visit) bool {
		styles := v.Node.Styles
		for _, prop := range sortedKeys(styles) {
			val := styles[prop]
			switch {
			case normalize.IsColorProperty(prop):
				if val != "transparent" && val != "currentcolor" {
					colors.add(val)
				}
			case normalize.IsSpacingProperty(prop):
				// Shorthands like "16px 0px" contribute each length.
				for _, part := range strings.Fields(val) {
					if px, ok := normalize.ParsePx(part); ok && px > 0 {
						spacing.add(part)
					}
				}
			}
		}
		if family := styles["font-family"]; family != "" {
			typography.add(typeface(family, styles["font-size"], styles["font-weight"]))
		}
		return true
	})

	for i, v := range byFrequency(colors) {
		tokens.Color[colorName(i)] = v
	}
	for i, v := range byValue(spacing.atLeast(MinSpacingOccurrences)) {
		tokens.Spacing[spacingName(i)] = v
	}
	for _, v := range typography.order {
		name := typographyName(v)
		for n := 2; tokens.Typography[name] != ""; n++ {
			name = fmt.Sprintf("%s-%d", typographyName(v), n)
		}
		tokens.Typography[name] = v
	}
	return tokens
}

// byFrequency orders colors by descending count, ties by first-seen order.
func byFrequency(c *counter) []string {
	vals := c.atLeast(MinColorOccurrences)
	sort.SliceStable(vals, func(i, j int) bool {
		return c.counts[vals[i]] > c.counts[vals[j]]
	})
	return vals
}

func byValue(vals []string) []string {
	sort.SliceStable(vals, func(i, j int) bool {
		a, _ := normalize.ParsePx(vals[i])
		b, _ := normalize.ParsePx(vals[j])
		return a < b
	})
	return vals
}

func colorName(i int) string {
	if i < len(colorNames) {
		return colorNames[i]
	}
	return fmt.Sprintf("color-%d", i+1)
}

func spacingName(i int) string {
	if i < len(spacingNames) {
		return spacingNames[i]
	}
	return fmt.Sprintf("%dxl", i-len(spacingNames)+2)
}

// typeface encodes a family/size/weight triple as one token value,
// e.g. "inter,sans-serif/16px/700".
func typeface(family, size, weight string) string {
	if size == "" {
		size = "inherit"
	}
	if weight == "" {
		weight = "400"
	}
	return family + "/" + size + "/" + weight
}

// typographyName groups by primary family, then size and weight,
// e.g. "inter-16px-700".
func typographyName(v string) string {
	parts := strings.Split(v, "/")
	family := parts[0]
	if i := strings.IndexByte(family, ','); i >= 0 {
		family = family[:i]
	}
	family = strings.Join(strings.Fields(family), "-")
	return family + "-" + strings.Join(parts[1:], "-")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
