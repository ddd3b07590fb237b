package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ShayCichocki/replica/internal/artifact"
	"github.com/ShayCichocki/replica/internal/capture"
	"github.com/ShayCichocki/replica/internal/config"
	"github.com/ShayCichocki/replica/internal/exec"
	"github.com/ShayCichocki/replica/internal/generate"
	"github.com/ShayCichocki/replica/internal/health"
	"github.com/ShayCichocki/replica/internal/loop"
	"github.com/ShayCichocki/replica/internal/project"
	"github.com/ShayCichocki/replica/internal/runlog"
	"github.com/ShayCichocki/replica/internal/signal"
	"github.com/ShayCichocki/replica/internal/state"
	"github.com/ShayCichocki/replica/internal/tui"
	"github.com/ShayCichocki/replica/pkg/models"
)

var (
	cloneMaxIterations int
	cloneThreshold     float64
	cloneTopN          int
	cloneViewport      string
	cloneStatic        bool
	cloneTUI           bool
	cloneOutputDir     string
	cloneStack         string
)

var cloneCmd = &cobra.Command{
	Use:   "clone <url>",
	Short: "Clone a web page and iterate until it matches",
	Long: `Clone captures the page at <url>, generates a project reproducing it and
refines that project until its validation score reaches the threshold.

Loop:
  1. Capture the original page and derive components and design tokens
  2. Generate the project (regenerated on malformed output)
  3. Install, build and lint it; serve it on a local port
  4. Capture the generated page and score it against the original
  5. Feed the top-ranked differences into the next generation

The run stops when the best score reaches the threshold, when the score
stops improving, or when the iteration cap is reached. The report path is
printed on exit. The exit code is 0 only when the threshold was reached.

Abort a running clone with Ctrl+C, with 'q' in the --tui view, or from
another shell with 'replica abort <session-dir>'.

Examples:
  replica clone https://example.com
  replica clone https://example.com --max-iterations 8 --threshold 75
  replica clone https://example.com --viewport mobile --tui
  replica clone https://example.com --static    # no browser, HTML + CSS only`,
	Args: cobra.ExactArgs(1),
	RunE: runClone,
}

func init() {
	cloneCmd.Flags().IntVar(&cloneMaxIterations, "max-iterations", 0, "Maximum validation iterations (overrides loop.max_iterations)")
	cloneCmd.Flags().Float64Var(&cloneThreshold, "threshold", 0, "Score threshold 0-100 (overrides loop.score_threshold)")
	cloneCmd.Flags().IntVar(&cloneTopN, "top-n", 0, "Failures fed back per refinement (overrides loop.top_n)")
	cloneCmd.Flags().StringVar(&cloneViewport, "viewport", "", "Viewport: desktop, tablet or mobile (overrides browser.viewport)")
	cloneCmd.Flags().BoolVar(&cloneStatic, "static", false, "Capture with the static HTML capturer instead of a browser")
	cloneCmd.Flags().BoolVar(&cloneTUI, "tui", false, "Show the interactive progress view")
	cloneCmd.Flags().StringVar(&cloneOutputDir, "output", "", "Session output directory (overrides output.dir)")
	cloneCmd.Flags().StringVar(&cloneStack, "stack", "", "Target stack hint for generation (overrides project.stack)")
}

func runClone(cmd *cobra.Command, args []string) error {
	targetURL, err := validateTargetURL(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCloneFlags(cfg, cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	vp, err := resolveViewport(cfg.Browser)
	if err != nil {
		return err
	}

	session, err := artifact.NewSession(cfg.Output.Dir, targetURL, time.Now())
	if err != nil {
		return err
	}
	logger := runlog.ForSession(session.Dir)
	defer logger.Close()
	runlog.SetDefault(logger)
	runlog.Logf("[clone] session %s for %s", session.ID, targetURL)

	index := openIndex(session)
	if index != nil {
		defer index.Close()
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, stopWatch, err := signal.WithAbort(ctx, session.SignalsDir())
	if err != nil {
		return abandonSession(session, index, cfg.Loop.ScoreThreshold, fmt.Errorf("watch abort signal: %w", err))
	}
	defer stopWatch()

	deps, tracker, closeDeps, err := buildCollaborators(cfg, session)
	if err != nil {
		return abandonSession(session, index, cfg.Loop.ScoreThreshold, err)
	}
	defer closeDeps()

	loopCfg := buildLoopConfig(cfg, targetURL, vp)

	printHeader(targetURL, session, loopCfg)

	var program *tea.Program
	var app *tui.ProgressApp
	if cloneTUI {
		app = tui.NewProgressApp(targetURL, session.Dir, loopCfg.Stop.MaxIterations, loopCfg.Stop.ScoreThreshold, func() error {
			return signal.SendAbort(session.SignalsDir())
		})
		app.SetRefreshRate(cfg.TUI.RefreshRate)
		program = tui.NewProgressProgram(app)
	}

	onProgress := func(ev loop.ProgressEvent) {
		if ev.State == loop.StateValidating && index != nil {
			if err := index.UpdateProgress(session.ID, ev.BestScore, ev.Iteration); err != nil {
				runlog.Logf("[clone] update session index: %v", err)
			}
		}
		if program != nil {
			program.Send(tui.ProgressMsg{Event: ev})
			return
		}
		printProgress(ev)
	}

	controller := loop.NewController(loopCfg, deps,
		loop.WithSessionID(session.ID),
		loop.WithRecorder(artifact.NewRecorder(session)),
		loop.WithLogger(logger),
		loop.WithProgressCallback(onProgress),
	)

	var report *models.Report
	var runErr error
	if program != nil {
		report, runErr = runWithTUI(ctx, cancel, controller, program)
	} else {
		report, runErr = controller.Run(ctx)
	}

	if index != nil {
		if err := index.FinishSession(session.ID, outcomeFor(report, session)); err != nil {
			runlog.Logf("[clone] finish session index: %v", err)
		}
	}

	printSummary(report, runErr, tracker)
	fmt.Printf("Report: %s\n", session.ReportPath())

	if report == nil || !report.Passed() {
		return &exitError{code: 1}
	}
	return nil
}

// abandonSession finalizes a session that failed before the loop started:
// it writes a fatal report, closes the index entry and prints the report path.
func abandonSession(session *artifact.Session, index *state.DB, threshold float64, cause error) error {
	report := fatalReport(session, threshold, cause)
	if err := artifact.NewRecorder(session).SaveReport(report); err != nil {
		runlog.Logf("[clone] save report: %v", err)
	}
	if index != nil {
		if err := index.FinishSession(session.ID, outcomeFor(report, session)); err != nil {
			runlog.Logf("[clone] finish session index: %v", err)
		}
	}

	printSummary(report, cause, nil)
	fmt.Printf("Report: %s\n", session.ReportPath())
	return &exitError{code: 1}
}

// fatalReport builds the report of a session that never ran an iteration.
func fatalReport(session *artifact.Session, threshold float64, cause error) *models.Report {
	return &models.Report{
		SessionID:      session.ID,
		TargetURL:      session.TargetURL,
		Status:         models.RunStatusFatal,
		StopReason:     string(loop.StopReasonFatal),
		ScoreThreshold: threshold,
		Error:          cause.Error(),
		StartedAt:      session.StartedAt,
		FinishedAt:     time.Now(),
	}
}

// runWithTUI runs the controller in the background while the progress view
// owns the terminal. Leaving the view early cancels the run and waits for the
// report so it is always persisted.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, controller *loop.Controller, program *tea.Program) (*models.Report, error) {
	type result struct {
		report *models.Report
		err    error
	}
	done := make(chan result, 1)

	go func() {
		report, err := controller.Run(ctx)
		program.Send(tui.DoneMsg{Report: report, Err: err})
		done <- result{report, err}
	}()

	if _, err := program.Run(); err != nil {
		runlog.Logf("[clone] progress view: %v", err)
	}
	cancel()
	r := <-done
	return r.report, r.err
}

// validateTargetURL accepts absolute http(s) URLs only.
func validateTargetURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: must be an absolute http or https address", raw)
	}
	return u.String(), nil
}

// applyCloneFlags copies explicitly set flags over the loaded configuration.
func applyCloneFlags(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("max-iterations") {
		cfg.Loop.MaxIterations = cloneMaxIterations
	}
	if flags.Changed("threshold") {
		cfg.Loop.ScoreThreshold = cloneThreshold
	}
	if flags.Changed("top-n") {
		cfg.Loop.TopN = cloneTopN
	}
	if flags.Changed("viewport") {
		cfg.Browser.Viewport = cloneViewport
	}
	if flags.Changed("static") {
		cfg.Browser.Static = cloneStatic
	}
	if flags.Changed("output") {
		cfg.Output.Dir = cloneOutputDir
	}
	if flags.Changed("stack") {
		cfg.Project.Stack = cloneStack
	}
}

// resolveViewport picks the named viewport, with explicit width and height
// overriding its size.
func resolveViewport(b config.BrowserConfig) (models.Viewport, error) {
	vp, ok := models.ViewportByName(b.Viewport)
	if !ok {
		return models.Viewport{}, fmt.Errorf("unknown viewport %q (want desktop, tablet or mobile)", b.Viewport)
	}
	if b.ViewportWidth > 0 {
		vp.Width = b.ViewportWidth
	}
	if b.ViewportHeight > 0 {
		vp.Height = b.ViewportHeight
	}
	return vp, nil
}

// buildLoopConfig maps configuration onto the controller's limits.
func buildLoopConfig(cfg *config.Config, targetURL string, vp models.Viewport) loop.Config {
	lc := loop.DefaultConfig()
	lc.TargetURL = targetURL
	lc.Viewport = vp
	lc.Stop = loop.StopConfig{
		MaxIterations:  cfg.Loop.MaxIterations,
		ScoreThreshold: cfg.Loop.ScoreThreshold,
		PlateauDelta:   cfg.Loop.PlateauDelta,
		PlateauWindow:  cfg.Loop.PlateauWindow,
	}
	lc.TopN = cfg.Loop.TopN
	lc.HealthRetries = cfg.Loop.HealthRetries
	lc.GenerationRetries = cfg.Loop.GenerationRetries
	lc.CaptureRetries = cfg.Loop.CaptureRetries
	lc.ReadyTimeout = cfg.Timeouts.Ready
	lc.CaptureTimeout = cfg.Timeouts.Capture
	lc.BuildTimeout = cfg.Timeouts.Build
	lc.GenerateTimeout = cfg.Timeouts.Generate
	return lc
}

// projectCommands maps project configuration onto health commands.
func projectCommands(p config.ProjectConfig) health.Commands {
	return health.Commands{
		Install:  p.InstallCmd,
		Build:    p.BuildCmd,
		Lint:     p.LintCmd,
		Serve:    p.ServeCmd,
		ServeURL: p.ServeURL,
	}
}

// buildCollaborators wires the capture, generation, project and health
// collaborators. It also returns the API usage tracker and a function that
// releases the browser, if any.
func buildCollaborators(cfg *config.Config, session *artifact.Session) (loop.Collaborators, *generate.TokenTracker, func(), error) {
	noop := func() {}

	clientCfg := generate.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return loop.Collaborators{}, nil, noop, err
		}
		clientCfg.APIKey = key
	}
	client, err := generate.NewClient(clientCfg)
	if err != nil {
		return loop.Collaborators{}, nil, noop, fmt.Errorf("create API client: %w", err)
	}
	generator := generate.NewClaudeGenerator(client,
		generate.WithMaxTokens(cfg.Anthropic.MaxTokens),
		generate.WithStack(cfg.Project.Stack),
	)

	projectDir := cfg.Project.Dir
	if projectDir == "" {
		projectDir = session.ProjectDir()
	}
	writer, err := project.NewWriter(projectDir)
	if err != nil {
		return loop.Collaborators{}, nil, noop, fmt.Errorf("create project writer: %w", err)
	}

	runner := exec.NewRunner()
	cmds := projectCommands(cfg.Project)

	deps := loop.Collaborators{
		Generator: generator,
		Writer:    writer,
		Checker:   health.NewChecker(runner, cmds),
		Server:    health.NewServer(runner, runner, cmds),
	}

	if cfg.Browser.Static {
		deps.Capturer = capture.NewHTMLCapturer(&http.Client{Timeout: cfg.Timeouts.Capture})
		return deps, client.Tracker(), noop, nil
	}

	browser := capture.NewBrowserCapturer(capture.BrowserConfig{
		RemoteURL:  cfg.Browser.RemoteURL,
		Bin:        cfg.Browser.Bin,
		Headless:   cfg.Browser.Headless,
		Stealth:    cfg.Browser.Stealth,
		SettleTime: cfg.Browser.SettleTime,
	})
	deps.Capturer = browser
	return deps, client.Tracker(), func() {
		if err := browser.Close(); err != nil {
			runlog.Logf("[clone] close browser: %v", err)
		}
	}, nil
}

// openIndex opens the session index and registers the session. The index is
// best effort: failures are reported and the run continues without it.
func openIndex(session *artifact.Session) *state.DB {
	db, err := state.OpenGlobal()
	if err != nil {
		printStatus("⚠", fmt.Sprintf("Session index unavailable: %v", err), color.FgYellow)
		return nil
	}

	if n, err := state.NewRecoveryManager(db).MarkInterrupted(); err != nil {
		runlog.Logf("[clone] mark interrupted sessions: %v", err)
	} else if n > 0 {
		printStatus("⚠", fmt.Sprintf("Marked %d stale session(s) as interrupted", n), color.FgYellow)
	}

	err = db.CreateSession(&state.Session{
		ID:         session.ID,
		TargetURL:  session.TargetURL,
		SessionDir: session.Dir,
		PID:        os.Getpid(),
		StartedAt:  session.StartedAt,
	})
	if err != nil {
		printStatus("⚠", fmt.Sprintf("Session index unavailable: %v", err), color.FgYellow)
		db.Close()
		return nil
	}
	return db
}

// outcomeFor converts a final report into the index outcome.
func outcomeFor(report *models.Report, session *artifact.Session) state.Outcome {
	if report == nil {
		return state.Outcome{
			Status:     state.SessionFatal,
			ReportPath: session.ReportPath(),
			FinishedAt: time.Now(),
		}
	}
	return state.Outcome{
		Status:     state.SessionStatus(report.Status),
		BestScore:  report.BestScore,
		Iterations: report.IterationCount,
		ReportPath: session.ReportPath(),
		TokensIn:   report.TokensIn,
		TokensOut:  report.TokensOut,
		FinishedAt: report.FinishedAt,
	}
}

func printHeader(targetURL string, session *artifact.Session, lc loop.Config) {
	fmt.Println(color.New(color.Bold).Sprint("=== replica clone ==="))
	fmt.Println()
	fmt.Printf("Target:       %s\n", targetURL)
	fmt.Printf("Session:      %s\n", session.Dir)
	fmt.Printf("Viewport:     %s (%dx%d)\n", lc.Viewport.Name, lc.Viewport.Width, lc.Viewport.Height)
	fmt.Printf("Iterations:   %d\n", lc.Stop.MaxIterations)
	fmt.Printf("Threshold:    %.1f\n", lc.Stop.ScoreThreshold)
	fmt.Println()
}

func printProgress(ev loop.ProgressEvent) {
	if ev.Message == "" {
		return
	}
	stateColor := color.New(color.FgCyan)
	if ev.State == loop.StateValidating {
		stateColor = color.New(color.FgMagenta)
	}
	prefix := stateColor.Sprintf("[%s]", ev.State)
	if ev.Iteration > 0 && ev.MaxIterations > 0 {
		prefix += fmt.Sprintf(" %d/%d", ev.Iteration, ev.MaxIterations)
	}
	fmt.Printf("%s %s\n", prefix, ev.Message)
}

func printSummary(report *models.Report, runErr error, tracker *generate.TokenTracker) {
	fmt.Println()
	if report == nil {
		printStatus("✗", fmt.Sprintf("Run failed: %v", runErr), color.FgRed)
		return
	}
	if report.Passed() {
		printStatus("✓", fmt.Sprintf("Score %.1f reached threshold %.1f (iteration %d)", report.BestScore, report.ScoreThreshold, report.BestIteration), color.FgGreen)
	} else {
		printStatus("✗", fmt.Sprintf("%s: best score %.1f below threshold %.1f", report.Status, report.BestScore, report.ScoreThreshold), color.FgRed)
	}
	fmt.Printf("  Stop reason:  %s\n", report.StopReason)
	fmt.Printf("  Iterations:   %d\n", report.IterationCount)
	fmt.Printf("  Tokens:       %d in / %d out (~$%.2f)\n", report.TokensIn, report.TokensOut, generate.EstimateCost(report.TokensIn, report.TokensOut))
	if tracker != nil {
		fmt.Printf("  API calls:    %d (~$%.2f billed)\n", tracker.Calls(), tracker.Cost())
	}
	if runErr != nil {
		fmt.Printf("  Error:        %v\n", runErr)
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
