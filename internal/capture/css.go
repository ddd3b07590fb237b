package capture

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gorilla/css/scanner"
)

// Declaration is one property: value pair.
type Declaration struct {
	Property string
	Value    string
}

// selector is a compound simple selector such as div.card#main. Selectors
// with combinators, attributes or pseudo-classes are not supported and never
// match.
type selector struct {
	tag         string
	id          string
	classes     []string
	specificity int
}

// Rule is a style rule with its selectors and declarations.
type Rule struct {
	selectors []selector
	Decls     []Declaration
	order     int
}

var simpleSelector = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]*|\*)?((?:[.#][A-Za-z0-9_-]+)*)$`)

// ParseDeclarations parses a declaration list such as an inline style
// attribute. Later declarations of the same property win.
func ParseDeclarations(text string) []Declaration {
	return declarations(tokens(text))
}

// ParseStylesheet parses the style rules of a stylesheet. At-rule blocks
// such as @media are skipped.
func ParseStylesheet(text string) []Rule {
	toks := tokens(text)
	var rules []Rule
	var prelude []*scanner.Token

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Type == scanner.TokenAtKeyword:
			i = skipAtRule(toks, i)
			prelude = nil
		case isChar(t, "{"):
			end := matchingBrace(toks, i)
			body := toks[i+1:]
			if end > i {
				body = toks[i+1 : end]
			}
			sels := parseSelectors(render(prelude))
			if len(sels) > 0 {
				rules = append(rules, Rule{
					selectors: sels,
					Decls:     declarations(body),
					order:     len(rules),
				})
			}
			prelude = nil
			i = end
		default:
			prelude = append(prelude, t)
		}
	}
	return rules
}

// Cascade resolves the declarations that apply to an element, ordered by
// specificity then source order, so applying them in order yields the
// winning values.
func Cascade(rules []Rule, tag, id string, classes []string) []Declaration {
	type match struct {
		specificity int
		order       int
		decls       []Declaration
	}
	var matches []match
	for _, r := range rules {
		best := -1
		for _, s := range r.selectors {
			if s.matches(tag, id, classes) && s.specificity > best {
				best = s.specificity
			}
		}
		if best >= 0 {
			matches = append(matches, match{best, r.order, r.Decls})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].specificity != matches[j].specificity {
			return matches[i].specificity < matches[j].specificity
		}
		return matches[i].order < matches[j].order
	})

	var out []Declaration
	for _, m := range matches {
		out = append(out, m.decls...)
	}
	return out
}

func (s selector) matches(tag, id string, classes []string) bool {
	if s.tag != "" && s.tag != "*" && s.tag != tag {
		return false
	}
	if s.id != "" && s.id != id {
		return false
	}
	for _, want := range s.classes {
		found := false
		for _, c := range classes {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func parseSelectors(prelude string) []selector {
	var out []selector
	for _, part := range strings.Split(prelude, ",") {
		part = strings.TrimSpace(part)
		m := simpleSelector.FindStringSubmatch(part)
		if part == "" || m == nil {
			continue
		}
		s := selector{tag: strings.ToLower(m[1])}
		if s.tag != "" && s.tag != "*" {
			s.specificity = 1
		}
		rest := m[2]
		for rest != "" {
			end := strings.IndexAny(rest[1:], ".#") + 1
			if end == 0 {
				end = len(rest)
			}
			name := rest[1:end]
			if rest[0] == '#' {
				s.id = name
				s.specificity += 100
			} else {
				s.classes = append(s.classes, name)
				s.specificity += 10
			}
			rest = rest[end:]
		}
		out = append(out, s)
	}
	return out
}

func declarations(toks []*scanner.Token) []Declaration {
	var out []Declaration
	var current []*scanner.Token
	flush := func() {
		if d, ok := declaration(current); ok {
			out = append(out, d)
		}
		current = nil
	}
	depth := 0
	for _, t := range toks {
		switch {
		case t.Type == scanner.TokenFunction || isChar(t, "("):
			depth++
		case isChar(t, ")"):
			depth--
		case isChar(t, ";") && depth == 0:
			flush()
			continue
		}
		current = append(current, t)
	}
	flush()
	return out
}

func declaration(toks []*scanner.Token) (Declaration, bool) {
	for i, t := range toks {
		if !isChar(t, ":") {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(render(toks[:i])))
		value := strings.TrimSpace(render(toks[i+1:]))
		value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		if prop == "" || value == "" || strings.ContainsAny(prop, " {}") {
			return Declaration{}, false
		}
		return Declaration{Property: prop, Value: value}, true
	}
	return Declaration{}, false
}

// tokens scans text, dropping comments and collapsing whitespace.
func tokens(text string) []*scanner.Token {
	s := scanner.New(text)
	var out []*scanner.Token
	for {
		t := s.Next()
		if t.Type == scanner.TokenEOF || t.Type == scanner.TokenError {
			return out
		}
		if t.Type == scanner.TokenComment || t.Type == scanner.TokenCDO || t.Type == scanner.TokenCDC || t.Type == scanner.TokenBOM {
			continue
		}
		out = append(out, t)
	}
}

func render(toks []*scanner.Token) string {
	var b strings.Builder
	for _, t := range toks {
		if t.Type == scanner.TokenS {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(t.Value)
	}
	return b.String()
}

func isChar(t *scanner.Token, c string) bool {
	return t.Type == scanner.TokenChar && t.Value == c
}

// skipAtRule returns the index of the last token of the at-rule starting at i.
func skipAtRule(toks []*scanner.Token, i int) int {
	for j := i + 1; j < len(toks); j++ {
		if isChar(toks[j], ";") {
			return j
		}
		if isChar(toks[j], "{") {
			return matchingBrace(toks, j)
		}
	}
	return len(toks) - 1
}

// matchingBrace returns the index of the brace closing the one at open, or
// the last index when the block is unterminated.
func matchingBrace(toks []*scanner.Token, open int) int {
	depth := 0
	for j := open; j < len(toks); j++ {
		switch {
		case isChar(toks[j], "{"):
			depth++
		case isChar(toks[j], "}"):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(toks) - 1
}
