// Package project writes generated source files into the project directory
// that the health checks build and serve.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/replica/internal/runlog"
	"github.com/ShayCichocki/replica/pkg/models"
)

// ErrPathEscape is returned for a file path that resolves outside the
// project directory.
var ErrPathEscape = errors.New("path escapes project directory")

// Writer writes file units under a single project directory. Files written
// by an earlier generation but absent from the latest one are removed so the
// project always reflects exactly one generation.
type Writer struct {
	dir   string
	guard *Guard

	mu       sync.Mutex
	manifest map[string]struct{}
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithGuard replaces the default protected-path guard. A nil guard allows
// every path inside the project.
func WithGuard(g *Guard) WriterOption {
	return func(w *Writer) {
		w.guard = g
	}
}

// NewWriter creates the project directory if needed and returns a Writer
// rooted at its absolute path.
func NewWriter(dir string, opts ...WriterOption) (*Writer, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create project dir: %w", err)
	}

	w := &Writer{
		dir:      abs,
		guard:    NewGuard(DefaultProtected...),
		manifest: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the absolute project directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Resolve maps a generated relative path to an absolute path inside the
// project directory.
func (w *Writer) Resolve(rel string) (string, error) {
	rel = strings.ReplaceAll(strings.TrimSpace(rel), "\\", "/")
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%q: %w", rel, ErrPathEscape)
	}
	full := filepath.Join(w.dir, filepath.FromSlash(rel))
	back, err := filepath.Rel(w.dir, full)
	if err != nil || back == "." || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrPathEscape)
	}
	return full, nil
}

// Write validates every path, writes each file atomically and removes files
// left over from the previous generation. Protected paths are skipped.
// Nothing is written if any path escapes the project directory.
func (w *Writer) Write(ctx context.Context, files []models.FileUnit) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	targets := make(map[string]string, len(files))
	var order []string
	for _, f := range files {
		full, err := w.Resolve(f.Path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(w.dir, full)
		rel = filepath.ToSlash(rel)
		if ok, pattern := w.guard.Protected(rel); ok {
			runlog.Logf("[project] skipping protected path %s (%s)", rel, pattern)
			continue
		}
		if _, dup := targets[rel]; !dup {
			order = append(order, rel)
		}
		targets[rel] = f.Content
	}

	next := make(map[string]struct{}, len(order))
	for _, rel := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeAtomic(filepath.Join(w.dir, filepath.FromSlash(rel)), []byte(targets[rel])); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		next[rel] = struct{}{}
	}

	for _, rel := range w.stale(next) {
		if err := os.Remove(filepath.Join(w.dir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", rel, err)
		}
		runlog.Logf("[project] removed stale file %s", rel)
	}
	w.manifest = next
	return nil
}

// Files returns the relative paths written by the last Write, sorted.
func (w *Writer) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedKeys(w.manifest)
}

func (w *Writer) stale(next map[string]struct{}) []string {
	var out []string
	for _, rel := range sortedKeys(w.manifest) {
		if _, ok := next[rel]; !ok {
			out = append(out, rel)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writeAtomic writes data to a temp file in the target directory and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
