package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/replica/internal/artifact"
	"github.com/ShayCichocki/replica/internal/generate"
	"github.com/ShayCichocki/replica/pkg/models"
)

var (
	reportJSON     bool
	reportFailures int
)

var reportCmd = &cobra.Command{
	Use:   "report <session-dir|report.json>",
	Short: "Print a persisted session report",
	Long: `Print the final report of a finished session: outcome, per-iteration
scores and the best iteration's outstanding failures.

Examples:
  replica report output/example.com_20260101_120000_1a2b3c4d
  replica report output/example.com_20260101_120000_1a2b3c4d --json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the raw report JSON")
	reportCmd.Flags().IntVar(&reportFailures, "failures", 10, "Number of outstanding failures to list")
}

func runReport(cmd *cobra.Command, args []string) error {
	report, err := artifact.LoadReport(args[0])
	if err != nil {
		return err
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	writeReport(os.Stdout, report, reportFailures)
	if !report.Passed() {
		return &exitError{code: 1}
	}
	return nil
}

// writeReport renders a human-readable report.
func writeReport(w io.Writer, r *models.Report, maxFailures int) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, bold.Sprint("=== replica report ==="))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Session:      %s\n", r.SessionID)
	fmt.Fprintf(w, "Target:       %s\n", r.TargetURL)

	status := color.New(color.FgRed).Sprint(r.Status)
	if r.Passed() {
		status = color.New(color.FgGreen).Sprint(r.Status)
	}
	fmt.Fprintf(w, "Status:       %s (%s)\n", status, r.StopReason)
	if r.HasBest() {
		fmt.Fprintf(w, "Best score:   %.1f / %.1f (iteration %d)\n", r.BestScore, r.ScoreThreshold, r.BestIteration)
	} else {
		fmt.Fprintf(w, "Best score:   none / %.1f\n", r.ScoreThreshold)
	}
	if r.BestProjectDir != "" {
		fmt.Fprintf(w, "Project:      %s\n", r.BestProjectDir)
	}
	fmt.Fprintf(w, "Iterations:   %d (health retries %d, generation retries %d)\n", r.IterationCount, r.HealthRetries, r.GenerationRetries)
	fmt.Fprintf(w, "Tokens:       %d in / %d out (~$%.2f)\n", r.TokensIn, r.TokensOut, generate.EstimateCost(r.TokensIn, r.TokensOut))
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration:     %s\n", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error:        %s\n", r.Error)
	}

	if len(r.History) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold.Sprint("History"))
		for _, rec := range r.History {
			marker := ""
			if rec.IsBest {
				marker = color.New(color.FgGreen).Sprint("  best")
			}
			fmt.Fprintf(w, "  iter %-3d %5.1f  (css %5.1f, structure %5.1f, %d failures)%s\n",
				rec.Index, rec.Score, rec.CSSScore, rec.StructureScore, len(rec.Failures), marker)
		}
	}

	if len(r.OutstandingFailures) > 0 && maxFailures > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold.Sprint("Outstanding failures"))
		for i, f := range r.OutstandingFailures {
			if i == maxFailures {
				fmt.Fprintf(w, "  ... %d more\n", len(r.OutstandingFailures)-maxFailures)
				break
			}
			fmt.Fprintf(w, "  [%3d] %-6s %s %s: expected %q, got %q\n",
				f.Priority, f.Severity, f.Path, f.Property, f.Expected, f.Actual)
		}
	}
}
