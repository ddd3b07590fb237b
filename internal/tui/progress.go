package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/replica/internal/loop"
	"github.com/ShayCichocki/replica/pkg/models"
)

// maxLogLines is how many activity entries stay on screen.
const maxLogLines = 8

// ProgressState tracks the current cloning session for display.
type ProgressState struct {
	TargetURL      string
	SessionDir     string
	Phase          loop.State
	Iteration      int
	MaxIterations  int
	Attempt        int
	BestScore      float64
	ScoreThreshold float64
	// Scores maps iteration index to its final score.
	Scores map[int]float64
}

// ProgressMsg carries a controller progress event into the program.
type ProgressMsg struct {
	Event loop.ProgressEvent
}

// DoneMsg is sent when the session has finalized.
type DoneMsg struct {
	Report *models.Report
	Err    error
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Phase     string
	Message   string
}

// ProgressApp is the bubbletea model for `replica clone --tui`.
type ProgressApp struct {
	state   ProgressState
	logs    []LogEntry
	spinner spinner.Model
	width   int

	done     bool
	report   *models.Report
	err      error
	aborting bool
	quitting bool
	onAbort  func() error

	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	phaseStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	bestStyle     lipgloss.Style
	logStyle      lipgloss.Style
	logTimeStyle  lipgloss.Style
	errorStyle    lipgloss.Style
	doneStyle     lipgloss.Style
	hintStyle     lipgloss.Style
}

// NewProgressApp creates the progress model. onAbort is called the first time
// the user presses q; it should ask the controller to stop.
func NewProgressApp(targetURL, sessionDir string, maxIterations int, threshold float64, onAbort func() error) *ProgressApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &ProgressApp{
		state: ProgressState{
			TargetURL:      targetURL,
			SessionDir:     sessionDir,
			Phase:          loop.StateInit,
			MaxIterations:  maxIterations,
			ScoreThreshold: threshold,
			Scores:         make(map[int]float64),
		},
		spinner: s,
		onAbort: onAbort,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),
		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),
		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		bestStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),
		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),
		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// SetRefreshRate sets the spinner frame interval. Non-positive values are ignored.
func (a *ProgressApp) SetRefreshRate(d time.Duration) {
	if d > 0 {
		a.spinner.Spinner.FPS = d
	}
}

// Init implements tea.Model.
func (a *ProgressApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *ProgressApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if a.done || a.aborting {
				a.quitting = true
				return a, tea.Quit
			}
			a.aborting = true
			a.addLog("ABORT", "Stopping at the next state transition")
			if a.onAbort != nil {
				if err := a.onAbort(); err != nil {
					a.addLog("ABORT", fmt.Sprintf("abort signal failed: %v", err))
				}
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case ProgressMsg:
		a.apply(msg.Event)

	case DoneMsg:
		a.done = true
		a.report = msg.Report
		a.err = msg.Err
		a.state.Phase = loop.StateFinalized
	}

	return a, nil
}

func (a *ProgressApp) apply(ev loop.ProgressEvent) {
	if ev.State != "" {
		a.state.Phase = ev.State
	}
	if ev.Iteration > 0 {
		a.state.Iteration = ev.Iteration
	}
	if ev.MaxIterations > 0 {
		a.state.MaxIterations = ev.MaxIterations
	}
	a.state.Attempt = ev.Attempt
	if ev.BestScore > a.state.BestScore {
		a.state.BestScore = ev.BestScore
	}
	if ev.State == loop.StateValidating {
		a.state.Scores[ev.Iteration] = ev.Score
		if ev.Score > a.state.BestScore {
			a.state.BestScore = ev.Score
		}
	}
	if ev.Message != "" {
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		a.logs = append(a.logs, LogEntry{Timestamp: ts, Phase: string(ev.State), Message: ev.Message})
	}
}

func (a *ProgressApp) addLog(phase, message string) {
	a.logs = append(a.logs, LogEntry{Timestamp: time.Now(), Phase: phase, Message: message})
}

// State returns the current display state.
func (a *ProgressApp) State() ProgressState {
	return a.state
}

// View implements tea.Model.
func (a *ProgressApp) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.headerStyle.Render("=== replica clone ==="))
	b.WriteString("\n\n")

	a.row(&b, "Target:", a.state.TargetURL)
	if a.state.SessionDir != "" {
		a.row(&b, "Session:", a.state.SessionDir)
	}

	phase := a.phaseStyle.Render(string(a.state.Phase))
	if !a.done {
		phase = a.spinner.View() + " " + phase
	}
	b.WriteString(a.labelStyle.Render("Phase:"))
	b.WriteString(phase)
	b.WriteString("\n")

	iter := fmt.Sprintf("%d", a.state.Iteration)
	if a.state.MaxIterations > 0 {
		iter = fmt.Sprintf("%d/%d", a.state.Iteration, a.state.MaxIterations)
	}
	if a.state.Attempt > 1 {
		iter += fmt.Sprintf(" (attempt %d)", a.state.Attempt)
	}
	a.row(&b, "Iteration:", iter)

	b.WriteString(a.labelStyle.Render("Best score:"))
	b.WriteString(a.renderScoreBar(a.state.BestScore, 30))
	b.WriteString("\n")

	if len(a.state.Scores) > 0 {
		b.WriteString("\n")
		b.WriteString(a.renderScores())
	}

	b.WriteString("\n")
	b.WriteString(a.renderLogs())

	b.WriteString("\n")
	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
		b.WriteString("\n")
		b.WriteString(a.hintStyle.Render("Press q to exit"))
	case a.done:
		b.WriteString(a.renderOutcome())
		b.WriteString("\n")
		b.WriteString(a.hintStyle.Render("Press q to exit"))
	case a.aborting:
		b.WriteString(a.hintStyle.Render("Aborting... press q again to leave now"))
	default:
		b.WriteString(a.hintStyle.Render("Press q to abort"))
	}
	b.WriteString("\n")

	return b.String()
}

func (a *ProgressApp) row(b *strings.Builder, label, value string) {
	b.WriteString(a.labelStyle.Render(label))
	b.WriteString(a.valueStyle.Render(value))
	b.WriteString("\n")
}

// renderScoreBar renders a 0-100 score with a threshold marker.
func (a *ProgressApp) renderScoreBar(score float64, width int) string {
	pct := score
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	bar := a.progressFull.Render(strings.Repeat("█", filled)) +
		a.progressEmpty.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s %.1f / %.0f", bar, score, a.state.ScoreThreshold)
}

func (a *ProgressApp) renderScores() string {
	idx := make([]int, 0, len(a.state.Scores))
	for i := range a.state.Scores {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	var b strings.Builder
	for _, i := range idx {
		line := fmt.Sprintf("  iter %d  %5.1f", i, a.state.Scores[i])
		if a.state.Scores[i] == a.state.BestScore {
			line = a.bestStyle.Render(line + "  best")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (a *ProgressApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	start := 0
	if len(a.logs) > maxLogLines {
		start = len(a.logs) - maxLogLines
	}
	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		phase := lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(16).
			Render(entry.Phase)
		fmt.Fprintf(&b, "  %s %s %s\n", ts, phase, a.logStyle.Render(entry.Message))
	}
	return b.String()
}

func (a *ProgressApp) renderOutcome() string {
	r := a.report
	if r == nil {
		return a.doneStyle.Render("Session finished.")
	}
	msg := fmt.Sprintf("%s after %d iteration(s), best %.1f (%s)", r.Status, r.IterationCount, r.BestScore, r.StopReason)
	if r.Passed() {
		return a.doneStyle.Render(msg)
	}
	return a.errorStyle.Render(msg)
}

// NewProgressProgram creates a new Bubbletea program for the clone progress view.
func NewProgressProgram(app *ProgressApp) *tea.Program {
	return tea.NewProgram(app, tea.WithAltScreen())
}
