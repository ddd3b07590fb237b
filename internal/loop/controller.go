// Package loop drives the capture, generate, check, validate and refine
// cycle as an explicit state machine.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ShayCichocki/replica/internal/compare"
	"github.com/ShayCichocki/replica/internal/detect"
	"github.com/ShayCichocki/replica/internal/normalize"
	"github.com/ShayCichocki/replica/internal/rank"
	"github.com/ShayCichocki/replica/internal/runlog"
	"github.com/ShayCichocki/replica/internal/score"
	"github.com/ShayCichocki/replica/internal/tokens"
	"github.com/ShayCichocki/replica/pkg/models"
)

// Capturer returns a raw fingerprint of the page at url.
type Capturer interface {
	Capture(ctx context.Context, url string, vp models.Viewport) (*models.Fingerprint, error)
}

// Generator produces source files from specs, tokens and feedback.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// Writer writes generated files into the project directory.
type Writer interface {
	Write(ctx context.Context, files []models.FileUnit) error
	Dir() string
}

// Checker runs compile and lint checks and returns the problems found.
type Checker interface {
	Check(ctx context.Context, dir string) ([]string, error)
}

// Instance is a running local server for the generated project.
type Instance interface {
	URL() string
	WaitReady(ctx context.Context) error
	Stop() error
}

// Server starts the generated project.
type Server interface {
	Start(ctx context.Context, dir string) (Instance, error)
}

// Recorder persists stage outputs.
type Recorder interface {
	SaveBaseline(fp *models.Fingerprint, specs []models.ComponentSpec, tokens models.DesignTokens) error
	SaveIteration(fp *models.Fingerprint, result models.ValidationResult) error
	SaveFiles(iteration int, files []models.FileUnit) error
	SaveReport(report *models.Report) error
}

// Collaborators are the external systems the controller drives.
type Collaborators struct {
	Capturer  Capturer
	Generator Generator
	Writer    Writer
	Checker   Checker
	Server    Server
}

// Config holds the loop limits and timeouts.
type Config struct {
	TargetURL string
	Viewport  models.Viewport
	Stop      StopConfig
	// TopN bounds the repair list passed to the next generation.
	TopN int
	// HealthRetries is the number of failed health checks tolerated per
	// validation iteration.
	HealthRetries int
	// GenerationRetries is the number of failed generations tolerated per
	// validation iteration.
	GenerationRetries int
	// CaptureRetries is the number of extra attempts for each capture.
	CaptureRetries int

	ReadyTimeout    time.Duration
	CaptureTimeout  time.Duration
	BuildTimeout    time.Duration
	GenerateTimeout time.Duration
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		Viewport:          models.ViewportDesktop,
		Stop:              DefaultStopConfig(),
		TopN:              10,
		HealthRetries:     3,
		GenerationRetries: 3,
		CaptureRetries:    3,
		ReadyTimeout:      60 * time.Second,
		CaptureTimeout:    45 * time.Second,
		BuildTimeout:      5 * time.Minute,
		GenerateTimeout:   10 * time.Minute,
	}
}

// ProgressEvent represents a progress update from the controller.
type ProgressEvent struct {
	State State
	// Iteration is the 1-based iteration being worked on.
	Iteration     int
	MaxIterations int
	// Attempt is the generation attempt within the iteration.
	Attempt   int
	Score     float64
	BestScore float64
	Message   string
	Timestamp time.Time
}

// ProgressCallback is called when progress events occur.
type ProgressCallback func(event ProgressEvent)

// Controller runs one cloning session.
type Controller struct {
	cfg  Config
	deps Collaborators

	sessionID  string
	recorder   Recorder
	comparator *compare.Comparator
	logger     *runlog.Logger
	onProgress ProgressCallback
	now        func() time.Time
}

// ControllerOption is a functional option for configuring a Controller.
type ControllerOption func(*Controller)

// WithSessionID sets the session identifier recorded in the report.
func WithSessionID(id string) ControllerOption {
	return func(c *Controller) {
		c.sessionID = id
	}
}

// WithRecorder sets where stage outputs are persisted.
func WithRecorder(r Recorder) ControllerOption {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithMatcher replaces the element matching strategy.
func WithMatcher(m compare.Matcher) ControllerOption {
	return func(c *Controller) {
		c.comparator = compare.New(m)
	}
}

// WithLogger sets the session logger.
func WithLogger(l *runlog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithProgressCallback sets a callback for progress events.
func WithProgressCallback(cb ProgressCallback) ControllerOption {
	return func(c *Controller) {
		c.onProgress = cb
	}
}

// NewController creates a Controller.
func NewController(cfg Config, deps Collaborators, opts ...ControllerOption) *Controller {
	c := &Controller{
		cfg:        cfg,
		deps:       deps,
		comparator: compare.New(nil),
		logger:     runlog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) emitProgress(rs *RunState, event ProgressEvent) {
	if c.onProgress == nil {
		return
	}
	event.State = rs.State()
	event.MaxIterations = c.cfg.Stop.MaxIterations
	event.Timestamp = c.now()
	if event.Iteration == 0 {
		event.Iteration = rs.Iteration() + 1
	}
	if best, ok := rs.Best(); ok {
		event.BestScore = best.Score
	}
	c.onProgress(event)
}

func (c *Controller) log(rs *RunState, format string, args ...interface{}) {
	c.logger.Stage(rs.Iteration()+1, string(rs.State()), format, args...)
}

// Run executes the session until FINALIZED and returns the final report.
// The report is always non-nil. The error is the fatal error that ended the
// run, if any.
func (c *Controller) Run(ctx context.Context) (*models.Report, error) {
	rs := NewRunState(c.sessionID, c.cfg.TargetURL)
	stopper := NewStopChecker(c.cfg.Stop)
	started := c.now()

	for !rs.machine.Done() {
		// Cancellation is only observed between stages.
		if ctx.Err() != nil {
			c.log(rs, "cancelled: %v", ctx.Err())
			c.end(rs, StopReasonAborted, nil)
			continue
		}

		next, err := c.step(ctx, rs, stopper)
		if err != nil {
			c.log(rs, "fatal: %v", err)
			c.end(rs, StopReasonFatal, err)
			continue
		}
		if next == StateFinalized {
			rs.Terminal = true
		}
		if err := rs.machine.Transition(next); err != nil {
			c.end(rs, StopReasonFatal, err)
		}
	}

	report := c.report(rs, started)
	report.BestProjectDir = c.restoreBest(ctx, rs)
	if c.recorder != nil {
		if err := c.recorder.SaveReport(report); err != nil {
			c.log(rs, "save report: %v", err)
		}
	}
	c.emitProgress(rs, ProgressEvent{
		Iteration: rs.Iteration(),
		Message:   fmt.Sprintf("Finalized: %s (best %.1f)", report.StopReason, report.BestScore),
	})
	return report, rs.Err
}

// end forces the transition to FINALIZED.
func (c *Controller) end(rs *RunState, reason StopReason, err error) {
	if rs.StopReason == StopReasonNone {
		rs.StopReason = reason
	}
	if err != nil && rs.Err == nil {
		rs.Err = err
	}
	rs.Terminal = true
	if !rs.machine.Done() {
		// FINALIZED is reachable from every non-terminal state.
		_ = rs.machine.Transition(StateFinalized)
	}
}

// restoreBest leaves the best iteration's files in the project directory
// and returns that directory, or "" when there is no best iteration.
func (c *Controller) restoreBest(ctx context.Context, rs *RunState) string {
	best, ok := rs.Best()
	if !ok || rs.bestFiles == nil {
		return ""
	}
	if !rs.bestOnDisk {
		// The run may already be cancelled; the restore still has to happen.
		if err := c.deps.Writer.Write(context.WithoutCancel(ctx), rs.bestFiles); err != nil {
			c.log(rs, "restore iteration %d files: %v", best.Index, err)
			return ""
		}
		rs.bestOnDisk = true
		c.log(rs, "restored files of best iteration %d", best.Index)
	}
	return c.deps.Writer.Dir()
}

// step runs the stage for the current state and returns the next state.
// Panics in the pure layers are programming defects and end the run.
func (c *Controller) step(ctx context.Context, rs *RunState, stopper *StopChecker) (next State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v\n%s", rs.State(), r, debug.Stack())
		}
	}()

	switch rs.State() {
	case StateInit:
		return c.initialize(ctx, rs)
	case StateGenerating:
		return c.generate(ctx, rs)
	case StateHealthChecking:
		return c.healthCheck(ctx, rs)
	case StateValidating:
		return c.validate(rs, stopper), nil
	case StateRefining:
		return c.refine(rs), nil
	default:
		return "", fmt.Errorf("no stage for state %s", rs.State())
	}
}

func (c *Controller) initialize(ctx context.Context, rs *RunState) (State, error) {
	c.emitProgress(rs, ProgressEvent{Message: "Capturing " + c.cfg.TargetURL})

	raw, err := c.capture(ctx, rs, c.cfg.TargetURL)
	if err != nil {
		if ctx.Err() != nil {
			rs.StopReason = StopReasonAborted
			return StateFinalized, nil
		}
		rs.StopReason = StopReasonNoBaseline
		return "", fmt.Errorf("%w: %v", models.ErrNoBaseline, err)
	}

	fp, rep := normalize.Normalize(raw)
	for _, d := range rep.DroppedNodes {
		c.log(rs, "dropped <%s> under <%s>: %s", d.Tag, d.ParentTag, d.Reason)
	}
	rs.Original = fp
	rs.Specs = detect.Detect(fp)
	rs.Tokens = tokens.Extract(fp)
	c.log(rs, "baseline: %d elements, %d components, %d tokens", fp.Size(), len(rs.Specs), rs.Tokens.Count())

	if c.recorder != nil {
		if err := c.recorder.SaveBaseline(rs.Original, rs.Specs, rs.Tokens); err != nil {
			c.log(rs, "save baseline: %v", err)
		}
	}
	return StateGenerating, nil
}

func (c *Controller) capture(ctx context.Context, rs *RunState, url string) (*models.Fingerprint, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.CaptureRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cctx, cancel := withTimeout(ctx, c.cfg.CaptureTimeout)
		fp, err := c.deps.Capturer.Capture(cctx, url, c.cfg.Viewport)
		cancel()
		if err == nil && fp != nil && fp.Root != nil {
			return fp, nil
		}
		if err == nil {
			err = errors.New("empty fingerprint")
		}
		lastErr = models.NewCaptureError(err)
		c.log(rs, "capture %s attempt %d: %v", url, attempt+1, err)
	}
	return nil, lastErr
}

func (c *Controller) generate(ctx context.Context, rs *RunState) (State, error) {
	req := models.GenerationRequest{
		TargetURL: rs.TargetURL,
		Iteration: rs.Iteration() + 1,
		Attempt:   rs.Attempt(),
		Specs:     rs.Specs,
		Tokens:    rs.Tokens,
		Failures:  rs.Feedback,
		Problems:  rs.Problems,
	}
	c.emitProgress(rs, ProgressEvent{
		Attempt: req.Attempt,
		Message: fmt.Sprintf("Generating (attempt %d, %d failures, %d problems)", req.Attempt, len(req.Failures), len(req.Problems)),
	})

	gctx, cancel := withTimeout(ctx, c.cfg.GenerateTimeout)
	res, err := c.deps.Generator.Generate(gctx, req)
	cancel()
	if res != nil {
		rs.TokensIn += res.TokensIn
		rs.TokensOut += res.TokensOut
	}
	if err == nil && (res == nil || len(res.Files) == 0) {
		err = models.NewGenerationError(errors.New("no files generated"), true)
	}
	if err != nil {
		if ctx.Err() != nil {
			return StateHealthChecking, nil
		}
		if !models.IsRetryable(err) {
			return "", err
		}
		c.log(rs, "generation failed: %v", err)
		rs.pendingGenErr = err
		return StateHealthChecking, nil
	}

	if err := c.deps.Writer.Write(ctx, res.Files); err != nil {
		return "", fmt.Errorf("write generated files: %w", err)
	}
	c.log(rs, "wrote %d files", len(res.Files))
	rs.written = res.Files
	rs.bestOnDisk = false
	rs.pendingGenErr = nil
	return StateHealthChecking, nil
}

func (c *Controller) healthCheck(ctx context.Context, rs *RunState) (State, error) {
	if err := rs.pendingGenErr; err != nil {
		rs.pendingGenErr = nil
		rs.generationFailures++
		rs.TotalGenerationRetries++
		if rs.generationFailures > c.cfg.GenerationRetries {
			c.log(rs, "generation budget exhausted after %d failures", rs.generationFailures)
			rs.StopReason = StopReasonGenerationBudget
			return StateFinalized, nil
		}
		rs.Problems = []string{"generation failed: " + err.Error()}
		return StateGenerating, nil
	}

	c.emitProgress(rs, ProgressEvent{Attempt: rs.Attempt(), Message: "Building and checking generated project"})

	fp, problems := c.checkAndCapture(ctx, rs)
	if problems != nil {
		if ctx.Err() != nil {
			return StateGenerating, nil
		}
		rs.healthFailures++
		rs.TotalHealthRetries++
		c.log(rs, "health check failed (%d/%d): %s", rs.healthFailures, c.cfg.HealthRetries, strings.Join(problems, "; "))
		if rs.healthFailures > c.cfg.HealthRetries {
			rs.StopReason = StopReasonHealthBudget
			return StateFinalized, nil
		}
		rs.Problems = problems
		return StateGenerating, nil
	}

	normalized, rep := normalize.Normalize(fp)
	for _, d := range rep.DroppedNodes {
		c.log(rs, "dropped generated <%s> under <%s>: %s", d.Tag, d.ParentTag, d.Reason)
	}
	rs.Current = normalized
	rs.Problems = nil
	return StateValidating, nil
}

// checkAndCapture builds, serves and captures the generated project. A
// non-nil problem list means the health check failed.
func (c *Controller) checkAndCapture(ctx context.Context, rs *RunState) (*models.Fingerprint, []string) {
	dir := c.deps.Writer.Dir()

	bctx, cancel := withTimeout(ctx, c.cfg.BuildTimeout)
	problems, err := c.deps.Checker.Check(bctx, dir)
	cancel()
	if err != nil || len(problems) > 0 {
		if len(problems) == 0 {
			problems = []string{err.Error()}
		}
		return nil, problems
	}

	inst, err := c.deps.Server.Start(ctx, dir)
	if err != nil {
		return nil, []string{"start server: " + err.Error()}
	}
	defer func() {
		if err := inst.Stop(); err != nil {
			c.log(rs, "stop server: %v", err)
		}
	}()

	rctx, cancel := withTimeout(ctx, c.cfg.ReadyTimeout)
	err = inst.WaitReady(rctx)
	cancel()
	if err != nil {
		return nil, []string{fmt.Sprintf("server not ready within %s: %v", c.cfg.ReadyTimeout, err)}
	}

	fp, err := c.capture(ctx, rs, inst.URL())
	if err != nil {
		return nil, []string{"capture generated page: " + err.Error()}
	}
	return fp, nil
}

func (c *Controller) validate(rs *RunState, stopper *StopChecker) State {
	res := c.comparator.Compare(rs.Original, rs.Specs, rs.Current)
	scores := score.Score(res.Style, res.Structure)
	ranked := rank.New(rs.Specs).Rank(res.Failures())

	rec := rs.record(models.IterationRecord{
		Score:          scores.Final,
		CSSScore:       scores.CSS,
		StructureScore: scores.Structure,
		Failures:       ranked,
		Timestamp:      c.now(),
	})
	rs.resetIterationBudgets()
	if rec.IsBest {
		rs.bestFiles = rs.written
		rs.bestOnDisk = true
	}

	c.log(rs, "score %.2f (css %.2f, structure %.2f), %d/%d properties, %d failures",
		rec.Score, rec.CSSScore, rec.StructureScore, res.Style.Matches, res.Style.Total, len(ranked))

	if c.recorder != nil {
		result := models.ValidationResult{
			Iteration:      rec.Index,
			CSSScore:       scores.CSS,
			StructureScore: scores.Structure,
			FinalScore:     scores.Final,
			Matches:        res.Style.Matches,
			Total:          res.Style.Total,
			MatchedNodes:   res.Style.MatchedNodes,
			UnmatchedNodes: res.Style.UnmatchedNodes,
			Structure:      res.Structure.Detail(),
			Failures:       ranked,
			Timestamp:      rec.Timestamp,
		}
		if err := c.recorder.SaveIteration(rs.Current, result); err != nil {
			c.log(rs, "save iteration: %v", err)
		}
		if err := c.recorder.SaveFiles(rec.Index, rs.written); err != nil {
			c.log(rs, "save iteration files: %v", err)
		}
	}

	c.emitProgress(rs, ProgressEvent{
		Iteration: rec.Index,
		Score:     rec.Score,
		Message:   fmt.Sprintf("Iteration %d scored %.1f", rec.Index, rec.Score),
	})

	reason, stop := stopper.Check(rec.Index, rec.Score)
	if stop {
		rs.StopReason = reason
		return StateFinalized
	}
	if n := stopper.PlateauCount(); n > 0 {
		c.log(rs, "no improvement for %d iteration(s)", n)
	}
	return StateRefining
}

func (c *Controller) refine(rs *RunState) State {
	last := rs.history[len(rs.history)-1]
	rs.Feedback = rank.SelectTopN(last.Failures, c.cfg.TopN)
	rs.Problems = nil
	c.log(rs, "refining with top %d of %d failures", len(rs.Feedback), len(last.Failures))
	return StateGenerating
}

func (c *Controller) report(rs *RunState, started time.Time) *models.Report {
	report := &models.Report{
		SessionID:         rs.SessionID,
		TargetURL:         rs.TargetURL,
		StopReason:        string(rs.StopReason),
		ScoreThreshold:    c.cfg.Stop.ScoreThreshold,
		IterationCount:    rs.Iteration(),
		HealthRetries:     rs.TotalHealthRetries,
		GenerationRetries: rs.TotalGenerationRetries,
		History:           rs.History(),
		TokensIn:          rs.TokensIn,
		TokensOut:         rs.TokensOut,
		StartedAt:         started,
		FinishedAt:        c.now(),
	}
	if rs.Err != nil {
		report.Error = rs.Err.Error()
	}
	if best, ok := rs.Best(); ok {
		report.BestScore = best.Score
		report.BestIteration = best.Index
		report.OutstandingFailures = best.Failures
	}

	switch {
	case rs.StopReason == StopReasonAborted:
		report.Status = models.RunStatusAborted
	case rs.Err != nil:
		report.Status = models.RunStatusFatal
	case !report.HasBest():
		report.Status = models.RunStatusNoIterations
	case report.BestScore >= report.ScoreThreshold:
		report.Status = models.RunStatusSucceeded
	default:
		report.Status = models.RunStatusBelowThreshold
	}
	return report
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
