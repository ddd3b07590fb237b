package project

import (
	"path"
	"strings"
)

// DefaultProtected lists generated paths the writer refuses to touch:
// dependency and VCS directories, secrets and lockfiles owned by the
// package manager.
var DefaultProtected = []string{
	".git/**",
	"node_modules/**",
	"**/.env",
	"**/.env.*",
	"**/*.pem",
	"**/*.key",
	"package-lock.json",
	"pnpm-lock.yaml",
	"yarn.lock",
}

// Guard matches relative project paths against protected glob patterns.
// Patterns support * within a segment and ** across segments.
type Guard struct {
	patterns []string
}

// NewGuard creates a guard for the given patterns.
func NewGuard(patterns ...string) *Guard {
	return &Guard{patterns: append([]string(nil), patterns...)}
}

// Protected reports whether rel matches a protected pattern, and which one.
func (g *Guard) Protected(rel string) (bool, string) {
	if g == nil {
		return false, ""
	}
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	for _, p := range g.patterns {
		if matchGlobPattern(rel, p) {
			return true, p
		}
	}
	return false, ""
}

// matchGlobPattern matches a path against a glob pattern with ** support.
func matchGlobPattern(p, pattern string) bool {
	return matchParts(strings.Split(p, "/"), strings.Split(pattern, "/"))
}

// matchParts recursively matches path segments against pattern segments.
func matchParts(segs, pattern []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}

	head, rest := pattern[0], pattern[1:]
	if head == "**" {
		if len(rest) == 0 {
			return true
		}
		for i := 0; i <= len(segs); i++ {
			if matchParts(segs[i:], rest) {
				return true
			}
		}
		return false
	}

	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(head, segs[0]); err != nil || !ok {
		return false
	}
	return matchParts(segs[1:], rest)
}
