package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/replica/internal/state"
)

var (
	statusLimit  int
	statusPurge  time.Duration
	statusForget string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show running and recent clone sessions",
	Long: `Display clone sessions recorded in the session index.

Shows:
  - Running sessions and their best score so far
  - Sessions whose process exited without finishing
  - Recently finished sessions with status, score and token usage

Use --forget with a session ID or its short prefix to drop one finished
session from the index. The session directory on disk is left alone.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent sessions to show")
	statusCmd.Flags().DurationVar(&statusPurge, "purge", 0, "Delete finished sessions older than this from the index (e.g. 720h)")
	statusCmd.Flags().StringVar(&statusForget, "forget", "", "Remove one finished session from the index by ID or ID prefix")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := state.GlobalDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No sessions yet. Run 'replica clone <url>' to start.")
		return nil
	}

	db, err := state.OpenGlobal()
	if err != nil {
		return fmt.Errorf("open session index: %w", err)
	}
	defer db.Close()

	if statusPurge > 0 {
		n, err := db.PurgeOldSessions(statusPurge)
		if err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		fmt.Printf("Purged %d session(s) older than %s\n\n", n, formatDuration(statusPurge))
	}

	if statusForget != "" {
		s, err := forgetSession(db, statusForget)
		if err != nil {
			return err
		}
		fmt.Printf("Removed session %s (%s) from the index\n\n", shortID(s.ID), s.TargetURL)
	}

	interrupted, err := state.NewRecoveryManager(db).CheckForInterrupted()
	if err != nil {
		return fmt.Errorf("check interrupted sessions: %w", err)
	}
	stale := make(map[string]bool, len(interrupted))
	for _, s := range interrupted {
		stale[s.SessionID] = true
	}

	running := state.SessionRunning
	active, err := db.ListSessions(&running, 0)
	if err != nil {
		return fmt.Errorf("list running sessions: %w", err)
	}

	if len(active) == 0 {
		fmt.Println("No running sessions.")
	} else {
		fmt.Println("Running Sessions:")
		for _, s := range active {
			displaySession(s, stale[s.ID])
		}
	}

	return displayRecentSessions(db, statusLimit)
}

// forgetSession deletes one finished session from the index. id may be any
// unique prefix of the session ID.
func forgetSession(db *state.DB, id string) (*state.Session, error) {
	sessions, err := db.ListSessions(nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var matches []state.Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, id) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no session matches %q", id)
	case 1:
	default:
		return nil, fmt.Errorf("%q matches %d sessions, use a longer prefix", id, len(matches))
	}

	s := matches[0]
	if !s.Status.Finished() {
		return nil, fmt.Errorf("session %s is still running", shortID(s.ID))
	}
	if err := db.DeleteSession(s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func displaySession(s state.Session, stale bool) {
	elapsed := formatDuration(time.Since(s.StartedAt))
	fmt.Printf("  %s  %s\n", shortID(s.ID), s.TargetURL)
	status := color.New(color.FgCyan).Sprint(s.Status)
	if stale {
		status = color.New(color.FgYellow).Sprintf("%s (process %d gone)", s.Status, s.PID)
	}
	fmt.Printf("    Status: %s, started %s ago\n", status, elapsed)
	fmt.Printf("    Best: %.1f after %d iteration(s)\n", s.BestScore, s.Iterations)
	fmt.Printf("    Dir: %s\n", s.SessionDir)
}

func displayRecentSessions(db *state.DB, limit int) error {
	sessions, err := db.ListSessions(nil, 0)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	var recent []state.Session
	for _, s := range sessions {
		if s.Status.Finished() {
			recent = append(recent, s)
			if len(recent) >= limit {
				break
			}
		}
	}

	if len(recent) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("Recent Sessions:")
	for _, s := range recent {
		ago := formatDuration(time.Since(s.StartedAt))
		if s.FinishedAt != nil {
			ago = formatDuration(time.Since(*s.FinishedAt))
		}
		fmt.Printf("  %s  %-15s %5.1f  %2d iter  %s tok  %s ago  %s\n",
			shortID(s.ID),
			statusColor(s.Status).Sprint(s.Status),
			s.BestScore,
			s.Iterations,
			formatNumber(s.TokensIn+s.TokensOut),
			ago,
			s.TargetURL)
	}

	return nil
}

func statusColor(s state.SessionStatus) *color.Color {
	switch s {
	case state.SessionSucceeded:
		return color.New(color.FgGreen)
	case state.SessionBelowThreshold, state.SessionNoIterations:
		return color.New(color.FgYellow)
	case state.SessionRunning:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgRed)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		result.WriteString(s[:offset])
		result.WriteString(",")
	}
	for i := offset; i < len(s); i += 3 {
		result.WriteString(s[i : i+3])
		if i+3 < len(s) {
			result.WriteString(",")
		}
	}
	return result.String()
}
