package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/replica/pkg/models"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(t.TempDir(), "https://www.example.com:8443/pricing?x=1", time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSession_Layout(t *testing.T) {
	s := newTestSession(t)

	name := filepath.Base(s.Dir)
	if !regexp.MustCompile(`^www\.example\.com_20250304_050607_[0-9a-f]{8}$`).MatchString(name) {
		t.Errorf("session dir name = %q", name)
	}
	if !strings.HasPrefix(s.ID, name[len(name)-8:]) {
		t.Errorf("dir suffix should be the id prefix: %s vs %s", name, s.ID)
	}
	for _, sub := range []string{IterationsDir, ProjectDir, LogsDir, SignalsDir} {
		if info, err := os.Stat(s.Path(sub)); err != nil || !info.IsDir() {
			t.Errorf("missing subdirectory %s", sub)
		}
	}
	if s.ReportPath() != filepath.Join(s.Dir, "report.json") {
		t.Errorf("ReportPath = %s", s.ReportPath())
	}
}

func TestHostSlug(t *testing.T) {
	tests := map[string]string{
		"https://example.com/a":     "example.com",
		"http://localhost:3000":     "localhost",
		"https://sub.site.io/x?y=z": "sub.site.io",
		"not a url":                 "not_a_url",
		"":                          "site",
		"https://[::1]:80/":         "1",
	}
	for in, want := range tests {
		if got := HostSlug(in); got != want {
			t.Errorf("HostSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecorder_SaveBaseline(t *testing.T) {
	s := newTestSession(t)
	r := NewRecorder(s)

	fp := &models.Fingerprint{URL: s.TargetURL, Root: &models.ElementNode{Tag: "html", Path: "/html[1]"}}
	tokens := models.NewDesignTokens()
	tokens.Color["primary"] = "#1a73e8"

	if err := r.SaveBaseline(fp, nil, tokens); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}

	got, err := LoadFingerprint(s.Path(OriginalFingerprintFile))
	if err != nil {
		t.Fatalf("LoadFingerprint: %v", err)
	}
	if got.Root == nil || got.Root.Path != "/html[1]" {
		t.Errorf("fingerprint = %+v", got)
	}

	data, _ := os.ReadFile(s.Path(ComponentsFile))
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("components.json = %s, want []", data)
	}

	yml, err := os.ReadFile(s.Path(TokensYAMLFile))
	if err != nil {
		t.Fatalf("read tokens.yaml: %v", err)
	}
	if !strings.Contains(string(yml), "primary:") || !strings.Contains(string(yml), "#1a73e8") {
		t.Errorf("tokens.yaml = %s", yml)
	}

	var tok models.DesignTokens
	data, _ = os.ReadFile(s.Path(TokensFile))
	if err := json.Unmarshal(data, &tok); err != nil || tok.Color["primary"] != "#1a73e8" {
		t.Errorf("tokens.json = %s (%v)", data, err)
	}
}

func TestRecorder_SaveIteration(t *testing.T) {
	s := newTestSession(t)
	r := NewRecorder(s)

	res := models.ValidationResult{Iteration: 3, FinalScore: 42.5}
	if err := r.SaveIteration(&models.Fingerprint{}, res); err != nil {
		t.Fatalf("SaveIteration: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.Dir, "iterations", "iter-03.fingerprint.json")); err != nil {
		t.Errorf("fingerprint snapshot missing: %v", err)
	}
	got, err := LoadValidation(s.Dir, 3)
	if err != nil {
		t.Fatalf("LoadValidation: %v", err)
	}
	if got.FinalScore != 42.5 || got.Failures == nil {
		t.Errorf("validation = %+v", got)
	}

	if err := r.SaveIteration(&models.Fingerprint{}, models.ValidationResult{}); err == nil {
		t.Error("expected error for iteration 0")
	}
}

func TestRecorder_SaveFiles(t *testing.T) {
	s := newTestSession(t)
	r := NewRecorder(s)

	files := []models.FileUnit{
		{Path: "index.html", Content: "<h1>hi</h1>"},
		{Path: "css/site.css", Content: "h1 { color: red; }"},
	}
	if err := r.SaveFiles(2, files); err != nil {
		t.Fatalf("SaveFiles: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir, "iterations", "iter-02.files.json")); err != nil {
		t.Errorf("files snapshot missing: %v", err)
	}

	got, err := LoadFiles(s.Dir, 2)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(got) != 2 || got[1] != files[1] {
		t.Errorf("files = %+v", got)
	}

	if err := r.SaveFiles(0, files); err == nil {
		t.Error("expected error for iteration 0")
	}
	if _, err := LoadFiles(s.Dir, 9); err == nil {
		t.Error("expected error for missing snapshot")
	}
}

func TestRecorder_SaveReport(t *testing.T) {
	s := newTestSession(t)
	r := NewRecorder(s)

	report := &models.Report{
		SessionID:      s.ID,
		TargetURL:      s.TargetURL,
		Status:         models.RunStatusNoIterations,
		StopReason:     "fatal_error",
		ScoreThreshold: 60,
	}
	if err := r.SaveReport(report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if report.History != nil {
		t.Error("SaveReport should not modify its argument")
	}

	raw, _ := os.ReadFile(s.ReportPath())
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("report.json: %v", err)
	}
	for _, key := range []string{
		"session_id", "target_url", "status", "stop_reason", "best_score", "best_iteration",
		"iteration_count", "health_retries", "generation_retries", "history",
		"outstanding_failures", "tokens_in", "tokens_out", "started_at", "finished_at",
	} {
		if _, ok := fields[key]; !ok {
			t.Errorf("report.json missing %q", key)
		}
	}
	if h, ok := fields["history"].([]any); !ok || len(h) != 0 {
		t.Errorf("history = %v, want []", fields["history"])
	}

	for _, path := range []string{s.Dir, s.ReportPath()} {
		got, err := LoadReport(path)
		if err != nil {
			t.Fatalf("LoadReport(%s): %v", path, err)
		}
		if got.SessionID != s.ID || got.Status != models.RunStatusNoIterations {
			t.Errorf("loaded report = %+v", got)
		}
	}
}

func TestRecorder_OverwriteLeavesNoTempFiles(t *testing.T) {
	s := newTestSession(t)
	r := NewRecorder(s)

	for i := 0; i < 3; i++ {
		if err := r.SaveReport(&models.Report{IterationCount: i}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := LoadReport(s.Dir)
	if err != nil || got.IterationCount != 2 {
		t.Fatalf("report = %+v, %v", got, err)
	}

	entries, _ := os.ReadDir(s.Dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadReport_Missing(t *testing.T) {
	if _, err := LoadReport(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing report")
	}
}
