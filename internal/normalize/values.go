package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// rootFontSize is the px size assumed for rem and em units.
const rootFontSize = 16.0

var lengthPattern = regexp.MustCompile(`^(-?(?:\d+\.?\d*|\.\d+))(px|rem|em|pt)?$`)

// noopValues are dropped because they carry no visual information on their own.
var noopValues = map[string]bool{
	"inherit":      true,
	"initial":      true,
	"unset":        true,
	"revert":       true,
	"revert-layer": true,
}

var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"lime":    "#00ff00",
	"green":   "#008000",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"cyan":    "#00ffff",
	"aqua":    "#00ffff",
	"magenta": "#ff00ff",
	"fuchsia": "#ff00ff",
	"gray":    "#808080",
	"grey":    "#808080",
	"silver":  "#c0c0c0",
	"maroon":  "#800000",
	"olive":   "#808000",
	"navy":    "#000080",
	"purple":  "#800080",
	"teal":    "#008080",
	"orange":  "#ffa500",
}

var fontWeights = map[string]string{
	"normal": "400",
	"bold":   "700",
}

// PropertyName converts camelCase names to lowercase kebab-case, so
// backgroundColor and background-color compare equal. Names that are already
// hyphenated are only lowercased. Custom properties (--*) are case-sensitive
// and kept as written.
func PropertyName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "--") {
		return name
	}
	if strings.Contains(name, "-") {
		return strings.ToLower(name)
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsColorProperty reports whether the property holds a single color value.
func IsColorProperty(prop string) bool {
	return prop == "color" || strings.HasSuffix(prop, "-color") || prop == "fill" || prop == "stroke"
}

// IsSpacingProperty reports whether the property is a padding or margin.
func IsSpacingProperty(prop string) bool {
	return strings.HasPrefix(prop, "padding") || strings.HasPrefix(prop, "margin")
}

func isLengthProperty(prop string) bool {
	if IsSpacingProperty(prop) {
		return true
	}
	switch prop {
	case "width", "height", "min-width", "max-width", "min-height", "max-height",
		"top", "left", "right", "bottom", "gap", "row-gap", "column-gap",
		"font-size", "letter-spacing", "word-spacing", "border-radius", "border-width":
		return true
	}
	return strings.HasPrefix(prop, "border") && (strings.HasSuffix(prop, "-width") || strings.HasSuffix(prop, "-radius"))
}

// Value canonicalizes a property value. The second result is false when the
// property is a no-op for visual comparison and should be dropped.
func Value(prop, value string) (string, bool) {
	v := strings.TrimSpace(value)
	lower := strings.ToLower(v)
	if lower == "" || noopValues[lower] {
		return "", false
	}

	if IsColorProperty(prop) {
		if c, alpha, ok := CanonicalColor(lower); ok {
			if alpha <= 0 {
				return "", false
			}
			return c, true
		}
		if lower == "currentcolor" {
			return "currentcolor", true
		}
	}

	if prop == "font-family" {
		return fontFamily(v), true
	}
	if prop == "font-weight" {
		if w, ok := fontWeights[lower]; ok {
			return w, true
		}
	}

	layers := splitTopLevel(lower, ',')
	split := make([][]string, len(layers))
	// A bare 0 next to other lengths (box-shadow: 0 0 2px) is a length too.
	zeroIsLength := isLengthProperty(prop)
	for i, layer := range layers {
		split[i] = splitTopLevel(strings.TrimSpace(layer), ' ')
		for _, tok := range split[i] {
			if _, ok := CanonicalLength(tok, false); ok {
				zeroIsLength = true
			}
		}
	}
	for i, tokens := range split {
		out := tokens[:0]
		for _, tok := range tokens {
			if tok == "" {
				continue
			}
			out = append(out, token(tok, zeroIsLength))
		}
		layers[i] = strings.Join(out, " ")
	}
	return strings.Join(layers, ","), true
}

func token(tok string, zeroIsLength bool) string {
	if c, alpha, ok := CanonicalColor(tok); ok {
		if alpha <= 0 {
			return "transparent"
		}
		return c
	}
	if l, ok := CanonicalLength(tok, zeroIsLength); ok {
		return l
	}
	return tok
}

// CanonicalLength converts px, rem, em and pt lengths to px. Unitless zero is
// only treated as a length when zeroIsLength is set.
func CanonicalLength(tok string, zeroIsLength bool) (string, bool) {
	m := lengthPattern.FindStringSubmatch(tok)
	if m == nil {
		return "", false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", false
	}
	switch m[2] {
	case "px":
	case "rem", "em":
		n *= rootFontSize
	case "pt":
		n = n * 4 / 3
	case "":
		if n != 0 || !zeroIsLength {
			return "", false
		}
	}
	return formatNumber(n) + "px", true
}

// ParsePx returns the numeric px value of a canonical length.
func ParsePx(v string) (float64, bool) {
	if !strings.HasSuffix(v, "px") {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatNumber(n float64) string {
	n = math.Round(n*100) / 100
	if n == 0 {
		n = 0 // drop negative zero
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// CanonicalColor parses hex, rgb(a), hsl(a) and a small set of named colors.
// Opaque colors render as #rrggbb, translucent ones as rgba(r,g,b,a).
func CanonicalColor(v string) (string, float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "transparent" {
		return "transparent", 0, true
	}
	if hex, ok := namedColors[v]; ok {
		v = hex
	}

	var c colorful.Color
	alpha := 1.0
	switch {
	case strings.HasPrefix(v, "#"):
		var err error
		switch len(v) {
		case 4, 7:
			c, err = colorful.Hex(v)
		case 5, 9:
			// #rgba / #rrggbbaa
			split := len(v) - (len(v)-1)/4
			c, err = colorful.Hex(v[:split])
			if err == nil {
				a, perr := strconv.ParseUint(expandHex(v[split:]), 16, 8)
				if perr != nil {
					return "", 0, false
				}
				alpha = float64(a) / 255
			}
		default:
			return "", 0, false
		}
		if err != nil {
			return "", 0, false
		}
	case strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba("):
		args, ok := funcArgs(v)
		if !ok || (len(args) != 3 && len(args) != 4) {
			return "", 0, false
		}
		var ch [3]float64
		for i := 0; i < 3; i++ {
			x, ok := channel(args[i], 255)
			if !ok {
				return "", 0, false
			}
			ch[i] = x / 255
		}
		c = colorful.Color{R: ch[0], G: ch[1], B: ch[2]}
		if len(args) == 4 {
			a, ok := channel(args[3], 1)
			if !ok {
				return "", 0, false
			}
			alpha = a
		}
	case strings.HasPrefix(v, "hsl(") || strings.HasPrefix(v, "hsla("):
		args, ok := funcArgs(v)
		if !ok || (len(args) != 3 && len(args) != 4) {
			return "", 0, false
		}
		h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
		if err != nil {
			return "", 0, false
		}
		s, ok1 := channel(args[1], 1)
		l, ok2 := channel(args[2], 1)
		if !ok1 || !ok2 || !strings.HasSuffix(args[1], "%") || !strings.HasSuffix(args[2], "%") {
			return "", 0, false
		}
		h = math.Mod(h, 360)
		if h < 0 {
			h += 360
		}
		c = colorful.Hsl(h, s, l)
		if len(args) == 4 {
			a, ok := channel(args[3], 1)
			if !ok {
				return "", 0, false
			}
			alpha = a
		}
	default:
		return "", 0, false
	}

	alpha = math.Round(math.Max(0, math.Min(1, alpha))*1000) / 1000
	c = c.Clamped()
	if alpha >= 1 {
		return c.Hex(), 1, true
	}
	if alpha <= 0 {
		return "transparent", 0, true
	}
	r, g, b := c.RGB255()
	return "rgba(" + strconv.Itoa(int(r)) + "," + strconv.Itoa(int(g)) + "," + strconv.Itoa(int(b)) + "," +
		strconv.FormatFloat(alpha, 'f', -1, 64) + ")", alpha, true
}

func expandHex(s string) string {
	if len(s) == 1 {
		return s + s
	}
	return s
}

// funcArgs splits "fn(a, b c / d)" into its arguments.
func funcArgs(v string) ([]string, bool) {
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return nil, false
	}
	inner := v[open+1 : len(v)-1]
	inner = strings.NewReplacer(",", " ", "/", " ").Replace(inner)
	return strings.Fields(inner), true
}

// channel parses a number or percentage; percentages scale to max.
func channel(s string, max float64) (float64, bool) {
	if strings.HasSuffix(s, "%") {
		n, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		return n / 100 * max, true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func fontFamily(v string) string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// splitTopLevel splits on sep outside parentheses.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
