package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/replica/internal/artifact"
	"github.com/ShayCichocki/replica/internal/signal"
)

var abortCmd = &cobra.Command{
	Use:   "abort <session-dir>",
	Short: "Ask a running clone to stop",
	Long: `Abort writes the abort signal into a session's signals directory. The
running clone stops at its next state transition, keeps its last completed
iteration and writes its report as usual.`,
	Args: cobra.ExactArgs(1),
	RunE: runAbort,
}

func runAbort(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("not a session directory: %s", dir)
	}
	sess := &artifact.Session{Dir: dir}
	if _, err := os.Stat(sess.ReportPath()); err == nil {
		printStatus("⚠", "Session already finished", color.FgYellow)
		return nil
	}

	if err := signal.SendAbort(sess.SignalsDir()); err != nil {
		return fmt.Errorf("send abort: %w", err)
	}
	printStatus("✓", "Abort requested for "+dir, color.FgGreen)
	return nil
}
