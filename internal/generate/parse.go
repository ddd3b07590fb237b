package generate

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/ShayCichocki/replica/pkg/models"
)

const (
	fileStart = "=== FILE:"
	fileEnd   = "=== END FILE ==="
)

// ErrNoFiles is returned when the output holds no file blocks.
var ErrNoFiles = errors.New("no file blocks in model output")

// ErrUnterminated is returned when the last file block is never closed,
// which is how truncated output shows up.
var ErrUnterminated = errors.New("unterminated file block")

// ParseFiles extracts file units from model output. A path that repeats
// keeps its last content. Paths must be relative and stay inside the
// project.
func ParseFiles(output string) ([]models.FileUnit, error) {
	var files []models.FileUnit
	index := make(map[string]int)

	var current string
	var body []string
	open := false

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case !open && strings.HasPrefix(trimmed, fileStart):
			p, err := cleanPath(strings.TrimSuffix(strings.TrimPrefix(trimmed, fileStart), "==="))
			if err != nil {
				return nil, err
			}
			current, body, open = p, nil, true
		case open && trimmed == fileEnd:
			unit := models.FileUnit{Path: current, Content: stripFence(body)}
			if i, ok := index[current]; ok {
				files[i] = unit
			} else {
				index[current] = len(files)
				files = append(files, unit)
			}
			open = false
		case open:
			body = append(body, line)
		}
	}

	if open {
		return files, fmt.Errorf("%w: %s", ErrUnterminated, current)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return files, nil
}

func cleanPath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.Trim(p, "`\"'")
	if p == "" {
		return "", errors.New("file block without a path")
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute path %q", p)
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("path %q escapes the project", p)
	}
	return p, nil
}

// stripFence removes a markdown code fence wrapped around the whole body.
func stripFence(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) >= 2 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[1 : len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
