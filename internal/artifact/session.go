// Package artifact lays out a session directory and persists every stage
// output as a JSON document inside it.
package artifact

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File names inside a session directory. They are part of the stable
// artifact contract read by the CLI and external tooling.
const (
	OriginalFingerprintFile = "original.fingerprint.json"
	ComponentsFile          = "components.json"
	TokensFile              = "tokens.json"
	TokensYAMLFile          = "tokens.yaml"
	ReportFile              = "report.json"
	IterationsDir           = "iterations"
	ProjectDir              = "project"
	LogsDir                 = "logs"
	SignalsDir              = "signals"
)

var unsafeHostChars = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)

// Session is one cloning run's directory on disk.
type Session struct {
	ID        string
	Dir       string
	TargetURL string
	StartedAt time.Time
}

// NewSession creates <outputDir>/<host>_<YYYYmmdd_HHMMSS>_<id8> and its
// subdirectories.
func NewSession(outputDir, targetURL string, now time.Time) (*Session, error) {
	id := uuid.New().String()
	name := fmt.Sprintf("%s_%s_%s", HostSlug(targetURL), now.Format("20060102_150405"), id[:8])

	dir, err := filepath.Abs(filepath.Join(outputDir, name))
	if err != nil {
		return nil, fmt.Errorf("resolve session dir: %w", err)
	}
	for _, sub := range []string{IterationsDir, ProjectDir, LogsDir, SignalsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}

	return &Session{
		ID:        id,
		Dir:       dir,
		TargetURL: targetURL,
		StartedAt: now,
	}, nil
}

// HostSlug turns the host of rawURL into a file-name-safe token.
func HostSlug(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.Trim(unsafeHostChars.ReplaceAllString(host, "_"), "_.")
	if host == "" {
		return "site"
	}
	return host
}

// Path joins elem onto the session directory.
func (s *Session) Path(elem ...string) string {
	return filepath.Join(append([]string{s.Dir}, elem...)...)
}

// ReportPath returns the location of report.json.
func (s *Session) ReportPath() string { return s.Path(ReportFile) }

// ProjectDir returns the directory generated files are written to.
func (s *Session) ProjectDir() string { return s.Path(ProjectDir) }

// LogPath returns the session debug log.
func (s *Session) LogPath() string { return s.Path(LogsDir, "run.log") }

// SignalsDir returns the directory watched for control files.
func (s *Session) SignalsDir() string { return s.Path(SignalsDir) }

// IterationFingerprintPath returns iterations/iter-NN.fingerprint.json.
func IterationFingerprintPath(dir string, iteration int) string {
	return filepath.Join(dir, IterationsDir, fmt.Sprintf("iter-%02d.fingerprint.json", iteration))
}

// IterationValidationPath returns iterations/iter-NN.validation.json.
func IterationValidationPath(dir string, iteration int) string {
	return filepath.Join(dir, IterationsDir, fmt.Sprintf("iter-%02d.validation.json", iteration))
}

// IterationFilesPath returns iterations/iter-NN.files.json.
func IterationFilesPath(dir string, iteration int) string {
	return filepath.Join(dir, IterationsDir, fmt.Sprintf("iter-%02d.files.json", iteration))
}
