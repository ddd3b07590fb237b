package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitError carries a process exit code out of a command without printing
// anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "replica",
	Short: "Clone a website into a working codebase",
	Long: `Replica captures a live web page, generates a project that reproduces it,
builds and serves that project, and scores it against the original.

Each validation pass compares the generated page's normalized DOM and
computed styles with the original's. The most important differences are
fed back into the next generation until the score reaches the threshold,
stops improving, or the iteration budget runs out.

Every run writes a session directory containing the original fingerprint,
per-iteration fingerprints and validation results, the generated project,
logs and a final report.json.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
