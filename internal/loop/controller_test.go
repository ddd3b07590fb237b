package loop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/ShayCichocki/replica/internal/compare"
	"github.com/ShayCichocki/replica/pkg/models"
)

const (
	targetURL    = "https://target.test"
	generatedURL = "http://localhost:3000"
)

var propKeys = []string{"color", "background-color", "font-size", "padding", "margin", "width", "height", "display", "gap", "border-color"}

var propValues = map[string]string{
	"color":            "#111111",
	"background-color": "#222222",
	"font-size":        "16px",
	"padding":          "4px",
	"margin":           "8px",
	"width":            "100px",
	"height":           "50px",
	"display":          "block",
	"gap":              "2px",
	"border-color":     "#333333",
}

// pageWith returns a raw fingerprint whose single styled element carries
// the first n of the ten reference properties. With identical structure the
// final score is 30 + 7n.
func pageWith(url string, n int) *models.Fingerprint {
	styles := make(map[string]string)
	for _, k := range propKeys[:n] {
		styles[k] = propValues[k]
	}
	box := &models.Rect{Width: 100, Height: 100}
	return &models.Fingerprint{
		URL: url,
		Root: &models.ElementNode{Tag: "html", Box: box, Children: []*models.ElementNode{
			{Tag: "body", Box: box, Children: []*models.ElementNode{
				{Tag: "div", Box: box, Styles: styles},
			}},
		}},
	}
}

type fakeCapturer struct {
	originalErr error
	// generated holds the matching property count per generated capture;
	// the last value repeats.
	generated []int
	origCalls int
	genCalls  int
}

func (f *fakeCapturer) Capture(ctx context.Context, url string, vp models.Viewport) (*models.Fingerprint, error) {
	if url == targetURL {
		f.origCalls++
		if f.originalErr != nil {
			return nil, f.originalErr
		}
		return pageWith(url, len(propKeys)), nil
	}
	i := f.genCalls
	if i >= len(f.generated) {
		i = len(f.generated) - 1
	}
	f.genCalls++
	return pageWith(url, f.generated[i]), nil
}

type fakeGenerator struct {
	err      func(req models.GenerationRequest) error
	requests []models.GenerationRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		if err := f.err(req); err != nil {
			return &models.GenerationResult{TokensIn: 10}, err
		}
	}
	return &models.GenerationResult{
		Files:     []models.FileUnit{{Path: "index.html", Content: fmt.Sprintf("<html>iteration-%d</html>", req.Iteration)}},
		TokensIn:  100,
		TokensOut: 50,
	}, nil
}

// fakeWriter keeps the files of the last write, which is what a real
// project directory would hold.
type fakeWriter struct {
	writes int
	files  []models.FileUnit
}

func (f *fakeWriter) Write(ctx context.Context, files []models.FileUnit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.writes++
	f.files = files
	return nil
}

func (f *fakeWriter) content() string {
	if len(f.files) == 0 {
		return ""
	}
	return f.files[0].Content
}

func (f *fakeWriter) Dir() string { return "/tmp/project" }

type fakeChecker struct {
	problems func(call int) []string
	calls    int
}

func (f *fakeChecker) Check(ctx context.Context, dir string) ([]string, error) {
	f.calls++
	if f.problems == nil {
		return nil, nil
	}
	return f.problems(f.calls), nil
}

type fakeInstance struct{ stopped *int }

func (i fakeInstance) URL() string { return generatedURL }

func (i fakeInstance) WaitReady(ctx context.Context) error { return nil }

func (i fakeInstance) Stop() error {
	*i.stopped++
	return nil
}

type fakeServer struct {
	startErr error
	started  int
	stopped  int
}

func (f *fakeServer) Start(ctx context.Context, dir string) (Instance, error) {
	f.started++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return fakeInstance{stopped: &f.stopped}, nil
}

type fakeRecorder struct {
	baselines  int
	iterations []models.ValidationResult
	files      map[int][]models.FileUnit
	report     *models.Report
}

func (f *fakeRecorder) SaveBaseline(*models.Fingerprint, []models.ComponentSpec, models.DesignTokens) error {
	f.baselines++
	return nil
}

func (f *fakeRecorder) SaveIteration(_ *models.Fingerprint, r models.ValidationResult) error {
	f.iterations = append(f.iterations, r)
	return nil
}

func (f *fakeRecorder) SaveFiles(iteration int, files []models.FileUnit) error {
	if f.files == nil {
		f.files = make(map[int][]models.FileUnit)
	}
	f.files[iteration] = files
	return nil
}

func (f *fakeRecorder) SaveReport(r *models.Report) error {
	f.report = r
	return nil
}

type harness struct {
	capturer  *fakeCapturer
	generator *fakeGenerator
	writer    *fakeWriter
	checker   *fakeChecker
	server    *fakeServer
	recorder  *fakeRecorder
	cfg       Config
}

func newHarness(generated ...int) *harness {
	cfg := DefaultConfig()
	cfg.TargetURL = targetURL
	return &harness{
		capturer:  &fakeCapturer{generated: generated},
		generator: &fakeGenerator{},
		writer:    &fakeWriter{},
		checker:   &fakeChecker{},
		server:    &fakeServer{},
		recorder:  &fakeRecorder{},
		cfg:       cfg,
	}
}

func (h *harness) run(ctx context.Context, opts ...ControllerOption) (*models.Report, error) {
	deps := Collaborators{
		Capturer:  h.capturer,
		Generator: h.generator,
		Writer:    h.writer,
		Checker:   h.checker,
		Server:    h.server,
	}
	opts = append([]ControllerOption{WithRecorder(h.recorder), WithSessionID("test")}, opts...)
	return NewController(h.cfg, deps, opts...).Run(ctx)
}

func scores(history []models.IterationRecord) []float64 {
	out := make([]float64, len(history))
	for i, r := range history {
		out[i] = r.Score
	}
	return out
}

func TestController_ReachesThreshold(t *testing.T) {
	h := newHarness(10)

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != models.RunStatusSucceeded || report.StopReason != string(StopReasonThreshold) {
		t.Fatalf("status=%s reason=%s", report.Status, report.StopReason)
	}
	if report.IterationCount != 1 || report.BestIteration != 1 || math.Abs(report.BestScore-100) > 1e-9 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.Passed() {
		t.Error("report should pass")
	}
	if h.recorder.baselines != 1 || len(h.recorder.iterations) != 1 || h.recorder.report != report {
		t.Errorf("recorder saw baselines=%d iterations=%d", h.recorder.baselines, len(h.recorder.iterations))
	}
	if report.TokensIn != 100 || report.TokensOut != 50 {
		t.Errorf("tokens in=%d out=%d", report.TokensIn, report.TokensOut)
	}
	if h.server.started != 1 || h.server.stopped != 1 {
		t.Errorf("server started=%d stopped=%d", h.server.started, h.server.stopped)
	}
}

func TestController_Plateau(t *testing.T) {
	// 30 + 7*2 = 44 every iteration: two zero deltas end the run at iteration 3.
	h := newHarness(2)

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.IterationCount != 3 {
		t.Fatalf("iterations = %d (%v), want 3", report.IterationCount, scores(report.History))
	}
	if report.StopReason != string(StopReasonPlateau) || report.Status != models.RunStatusBelowThreshold {
		t.Fatalf("status=%s reason=%s", report.Status, report.StopReason)
	}
	if report.Passed() {
		t.Error("below-threshold run should not pass")
	}
}

func TestController_SelectsBestNotLast(t *testing.T) {
	h := newHarness(4, 2, 1)
	h.cfg.Stop.PlateauWindow = 0
	h.cfg.Stop.MaxIterations = 3

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StopReason != string(StopReasonMaxIterations) {
		t.Fatalf("reason = %s", report.StopReason)
	}
	if report.BestIteration != 1 || math.Abs(report.BestScore-58) > 1e-9 {
		t.Fatalf("best = %d (%v), want iteration 1 at 58", report.BestIteration, report.BestScore)
	}
	want := []bool{true, false, false}
	for i, rec := range report.History {
		if rec.IsBest != want[i] {
			t.Errorf("history[%d].IsBest = %v", i, rec.IsBest)
		}
		if rec.Index != i+1 {
			t.Errorf("history[%d].Index = %d", i, rec.Index)
		}
	}
	if len(report.OutstandingFailures) != len(report.History[0].Failures) {
		t.Error("outstanding failures should come from the best iteration")
	}
}

func TestController_RestoresBestFiles(t *testing.T) {
	// 58, 44, 37: the last generation on disk is the worst one.
	h := newHarness(4, 2, 1)
	h.cfg.Stop.PlateauWindow = 0
	h.cfg.Stop.MaxIterations = 3

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.BestIteration != 1 {
		t.Fatalf("best iteration = %d, want 1", report.BestIteration)
	}
	if got := h.writer.content(); got != "<html>iteration-1</html>" {
		t.Errorf("project holds %q, want the iteration 1 files", got)
	}
	if h.writer.writes != 4 {
		t.Errorf("writes = %d, want 3 generations and 1 restore", h.writer.writes)
	}
	if report.BestProjectDir != "/tmp/project" {
		t.Errorf("BestProjectDir = %q", report.BestProjectDir)
	}
	if len(h.recorder.files) != 3 || h.recorder.files[3][0].Content != "<html>iteration-3</html>" {
		t.Errorf("recorded files = %+v", h.recorder.files)
	}
}

func TestController_BestFilesAlreadyOnDisk(t *testing.T) {
	h := newHarness(10)

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.writer.writes != 1 {
		t.Errorf("writes = %d, want no restore when the last generation is best", h.writer.writes)
	}
	if report.BestProjectDir != "/tmp/project" {
		t.Errorf("BestProjectDir = %q", report.BestProjectDir)
	}
}

func TestController_RestoresBestAfterHealthBudget(t *testing.T) {
	// Iteration 1 validates; every later build fails until the budget runs out.
	h := newHarness(4)
	h.cfg.Stop.PlateauWindow = 0
	h.checker.problems = func(call int) []string {
		if call == 1 {
			return nil
		}
		return []string{"build failed"}
	}

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StopReason != string(StopReasonHealthBudget) || report.BestIteration != 1 {
		t.Fatalf("reason=%s best=%d", report.StopReason, report.BestIteration)
	}
	if got := h.writer.content(); got != "<html>iteration-1</html>" {
		t.Errorf("project holds %q, want the iteration 1 files", got)
	}
}

func TestController_NoBestNoRestore(t *testing.T) {
	h := newHarness(10)
	h.checker.problems = func(int) []string { return []string{"build failed"} }

	report, _ := h.run(context.Background())
	if report.BestProjectDir != "" {
		t.Errorf("BestProjectDir = %q, want empty without iterations", report.BestProjectDir)
	}
	if want := h.cfg.HealthRetries + 1; h.writer.writes != want {
		t.Errorf("writes = %d, want %d", h.writer.writes, want)
	}
}

func TestController_RefinementCarriesTopN(t *testing.T) {
	h := newHarness(2)
	h.cfg.TopN = 3

	if _, err := h.run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	reqs := h.generator.requests
	if len(reqs) != 3 {
		t.Fatalf("generator called %d times, want 3", len(reqs))
	}
	if reqs[0].IsRefinement() {
		t.Error("first request should carry no feedback")
	}
	if len(reqs[1].Failures) != 3 || reqs[1].Iteration != 2 {
		t.Fatalf("second request: iteration %d, %d failures", reqs[1].Iteration, len(reqs[1].Failures))
	}
	for i := 1; i < len(reqs[1].Failures); i++ {
		if reqs[1].Failures[i-1].Priority < reqs[1].Failures[i].Priority {
			t.Fatal("feedback is not ranked")
		}
	}
}

func TestController_HealthFailureIsNotAnIteration(t *testing.T) {
	h := newHarness(10)
	h.checker.problems = func(call int) []string {
		if call == 1 {
			return []string{"src/App.tsx: missing import"}
		}
		return nil
	}

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.IterationCount != 1 || report.HealthRetries != 1 {
		t.Fatalf("iterations=%d healthRetries=%d", report.IterationCount, report.HealthRetries)
	}
	reqs := h.generator.requests
	if len(reqs) != 2 {
		t.Fatalf("generator called %d times", len(reqs))
	}
	if reqs[1].Iteration != 1 || reqs[1].Attempt != 2 {
		t.Errorf("retry request iteration=%d attempt=%d", reqs[1].Iteration, reqs[1].Attempt)
	}
	if len(reqs[1].Problems) != 1 || !strings.Contains(reqs[1].Problems[0], "missing import") {
		t.Errorf("problems not folded into retry: %v", reqs[1].Problems)
	}
}

func TestController_AlwaysFailingHealthCheckTerminates(t *testing.T) {
	h := newHarness(10)
	h.checker.problems = func(int) []string { return []string{"build failed"} }

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StopReason != string(StopReasonHealthBudget) || report.Status != models.RunStatusNoIterations {
		t.Fatalf("status=%s reason=%s", report.Status, report.StopReason)
	}
	if want := h.cfg.HealthRetries + 1; h.checker.calls != want || len(h.generator.requests) != want {
		t.Fatalf("checks=%d generations=%d, want %d each", h.checker.calls, len(h.generator.requests), want)
	}
	if report.HasBest() || report.Passed() {
		t.Error("no iteration should have been recorded")
	}
}

func TestController_ServerStartFailureCountsAsHealthFailure(t *testing.T) {
	h := newHarness(10)
	h.server.startErr = errors.New("port in use")
	h.cfg.HealthRetries = 1

	report, _ := h.run(context.Background())
	if report.StopReason != string(StopReasonHealthBudget) || report.HealthRetries != 2 {
		t.Fatalf("reason=%s healthRetries=%d", report.StopReason, report.HealthRetries)
	}
}

func TestController_GenerationBudget(t *testing.T) {
	h := newHarness(10)
	h.generator.err = func(models.GenerationRequest) error {
		return models.NewGenerationError(errors.New("unterminated file block"), true)
	}

	report, err := h.run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StopReason != string(StopReasonGenerationBudget) {
		t.Fatalf("reason = %s", report.StopReason)
	}
	if want := h.cfg.GenerationRetries + 1; len(h.generator.requests) != want {
		t.Fatalf("generator called %d times, want %d", len(h.generator.requests), want)
	}
	if h.checker.calls != 0 || h.writer.writes != 0 {
		t.Error("failed generations must not be built or written")
	}
	if report.TokensIn != int64(10*len(h.generator.requests)) {
		t.Errorf("tokens of failed attempts not counted: %d", report.TokensIn)
	}
}

func TestController_NonRetryableGenerationIsFatal(t *testing.T) {
	h := newHarness(2)
	authErr := models.NewGenerationError(errors.New("401 unauthorized"), false)
	h.generator.err = func(req models.GenerationRequest) error {
		if req.Iteration == 2 {
			return authErr
		}
		return nil
	}

	report, err := h.run(context.Background())
	if !errors.Is(err, authErr) {
		t.Fatalf("err = %v, want the generation error", err)
	}
	if report.Status != models.RunStatusFatal || report.StopReason != string(StopReasonFatal) {
		t.Fatalf("status=%s reason=%s", report.Status, report.StopReason)
	}
	if report.IterationCount != 1 || report.BestIteration != 1 {
		t.Fatalf("best iteration so far should be kept: %+v", report)
	}
}

func TestController_NoBaseline(t *testing.T) {
	h := newHarness(10)
	h.capturer.originalErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	report, err := h.run(context.Background())
	if !errors.Is(err, models.ErrNoBaseline) {
		t.Fatalf("err = %v, want ErrNoBaseline", err)
	}
	if h.capturer.origCalls != h.cfg.CaptureRetries+1 {
		t.Fatalf("original captured %d times", h.capturer.origCalls)
	}
	if report.Status != models.RunStatusFatal || report.StopReason != string(StopReasonNoBaseline) {
		t.Fatalf("status=%s reason=%s", report.Status, report.StopReason)
	}
	if len(h.generator.requests) != 0 {
		t.Error("nothing should be generated without a baseline")
	}
}

func TestController_CancelKeepsLastRecord(t *testing.T) {
	h := newHarness(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := h.run(ctx, WithProgressCallback(func(ev ProgressEvent) {
		if ev.State == StateValidating {
			cancel()
		}
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != models.RunStatusAborted || report.StopReason != string(StopReasonAborted) {
		t.Fatalf("status=%s reason=%s", report.Status, report.StopReason)
	}
	if report.IterationCount != 1 || len(h.generator.requests) != 1 {
		t.Fatalf("iterations=%d generations=%d", report.IterationCount, len(h.generator.requests))
	}
}

type panicMatcher struct{}

func (panicMatcher) Match(*models.Fingerprint, *models.Fingerprint) []compare.Pair {
	panic("index out of range")
}

func TestController_PanicIsFatal(t *testing.T) {
	h := newHarness(10)

	report, err := h.run(context.Background(), WithMatcher(panicMatcher{}))
	if err == nil || !strings.Contains(err.Error(), "panic in VALIDATING") {
		t.Fatalf("err = %v", err)
	}
	if report.Status != models.RunStatusFatal {
		t.Fatalf("status = %s", report.Status)
	}
}

func TestController_TrailIsLegal(t *testing.T) {
	h := newHarness(2)
	var trail []State
	_, _ = h.run(context.Background(), WithProgressCallback(func(ev ProgressEvent) {
		if len(trail) == 0 || trail[len(trail)-1] != ev.State {
			trail = append(trail, ev.State)
		}
	}))
	if trail[len(trail)-1] != StateFinalized {
		t.Fatalf("run did not end in FINALIZED: %v", trail)
	}
	finals := 0
	for _, s := range trail {
		if s == StateFinalized {
			finals++
		}
	}
	if finals != 1 {
		t.Fatalf("FINALIZED reported %d times", finals)
	}
}
