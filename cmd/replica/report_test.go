package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/replica/pkg/models"
)

func sampleReport() *models.Report {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Report{
		SessionID:      "abc",
		TargetURL:      "https://example.com",
		Status:         models.RunStatusBelowThreshold,
		StopReason:     "plateau",
		ScoreThreshold: 60,
		BestScore:      48.2,
		BestIteration:  2,
		BestProjectDir: "/tmp/out/example.com_x/project",
		IterationCount: 3,
		History: []models.IterationRecord{
			{Index: 1, Score: 40.1},
			{Index: 2, Score: 48.2, IsBest: true},
			{Index: 3, Score: 47.9},
		},
		OutstandingFailures: []models.ValidationFailure{
			{Path: "/html[1]/body[1]/h1[1]", Property: "color", Expected: "#ff0000", Actual: "#000000", Severity: models.SeverityHigh, Priority: 130},
			{Path: "/html[1]/body[1]/p[1]", Property: "margin-top", Expected: "16px", Actual: "8px", Severity: models.SeverityMedium, Priority: 80},
			{Path: "/html[1]/body[1]/p[2]", Property: "font-size", Expected: "14px", Actual: "12px", Severity: models.SeverityLow, Priority: 40},
		},
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	writeReport(&buf, sampleReport(), 2)
	out := buf.String()

	for _, want := range []string{
		"https://example.com",
		"below_threshold (plateau)",
		"48.2 / 60.0 (iteration 2)",
		"iter 2",
		"best",
		`expected "#ff0000", got "#000000"`,
		"... 1 more",
		"Duration:     1m",
		"Project:      /tmp/out/example.com_x/project",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "font-size") {
		t.Error("failures beyond the limit should not be listed")
	}
}

func TestWriteReport_NoIterations(t *testing.T) {
	r := &models.Report{
		Status:         models.RunStatusNoIterations,
		StopReason:     "no_baseline",
		ScoreThreshold: 60,
		Error:          "capture original: timeout",
	}
	var buf bytes.Buffer
	writeReport(&buf, r, 10)
	out := buf.String()

	if !strings.Contains(out, "none / 60.0") {
		t.Errorf("expected no best score:\n%s", out)
	}
	if !strings.Contains(out, "capture original: timeout") {
		t.Errorf("expected error line:\n%s", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{72 * time.Hour, "3d"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
