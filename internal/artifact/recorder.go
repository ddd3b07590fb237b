package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/replica/internal/loop"
	"github.com/ShayCichocki/replica/pkg/models"
)

// Recorder writes stage outputs into a session directory.
type Recorder struct {
	dir string
}

var _ loop.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder for the session.
func NewRecorder(s *Session) *Recorder {
	return &Recorder{dir: s.Dir}
}

// SaveBaseline writes the original fingerprint, the detected components and
// the design tokens, the latter also as YAML.
func (r *Recorder) SaveBaseline(fp *models.Fingerprint, specs []models.ComponentSpec, tokens models.DesignTokens) error {
	if specs == nil {
		specs = []models.ComponentSpec{}
	}
	if err := writeJSON(filepath.Join(r.dir, OriginalFingerprintFile), fp); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(r.dir, ComponentsFile), specs); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(r.dir, TokensFile), tokens); err != nil {
		return err
	}

	data, err := yaml.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TokensYAMLFile, err)
	}
	return writeFile(filepath.Join(r.dir, TokensYAMLFile), data)
}

// SaveIteration writes the generated fingerprint and validation result of
// one iteration.
func (r *Recorder) SaveIteration(fp *models.Fingerprint, result models.ValidationResult) error {
	if result.Iteration < 1 {
		return fmt.Errorf("save iteration: invalid index %d", result.Iteration)
	}
	if result.Failures == nil {
		result.Failures = []models.ValidationFailure{}
	}
	if err := writeJSON(IterationFingerprintPath(r.dir, result.Iteration), fp); err != nil {
		return err
	}
	return writeJSON(IterationValidationPath(r.dir, result.Iteration), result)
}

// SaveFiles writes the generated files of one iteration so any iteration's
// project can be rebuilt after the run.
func (r *Recorder) SaveFiles(iteration int, files []models.FileUnit) error {
	if iteration < 1 {
		return fmt.Errorf("save files: invalid index %d", iteration)
	}
	if files == nil {
		files = []models.FileUnit{}
	}
	return writeJSON(IterationFilesPath(r.dir, iteration), files)
}

// LoadFiles reads iterations/iter-NN.files.json from a session directory.
func LoadFiles(dir string, iteration int) ([]models.FileUnit, error) {
	var files []models.FileUnit
	if err := readJSON(IterationFilesPath(dir, iteration), &files); err != nil {
		return nil, err
	}
	return files, nil
}

// SaveReport writes report.json.
func (r *Recorder) SaveReport(report *models.Report) error {
	if report == nil {
		return errors.New("save report: nil report")
	}
	out := *report
	if out.History == nil {
		out.History = []models.IterationRecord{}
	}
	if out.OutstandingFailures == nil {
		out.OutstandingFailures = []models.ValidationFailure{}
	}
	return writeJSON(filepath.Join(r.dir, ReportFile), &out)
}

// LoadReport reads a report from a session directory or a report.json path.
func LoadReport(path string) (*models.Report, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ReportFile)
	}
	var report models.Report
	if err := readJSON(path, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// LoadFingerprint reads a persisted fingerprint snapshot.
func LoadFingerprint(path string) (*models.Fingerprint, error) {
	var fp models.Fingerprint
	if err := readJSON(path, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}

// LoadValidation reads iterations/iter-NN.validation.json from a session directory.
func LoadValidation(dir string, iteration int) (*models.ValidationResult, error) {
	var res models.ValidationResult
	if err := readJSON(IterationValidationPath(dir, iteration), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, append(data, '\n'))
}

// writeFile replaces path atomically through a temp file and rename.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
