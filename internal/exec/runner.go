package exec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// stopGrace is how long Stop waits after SIGTERM before killing.
const stopGrace = 5 * time.Second

// outputTail bounds the output kept for a background process.
const outputTail = 64 * 1024

// ExecRunner implements CommandRunner and Starter using os/exec.
type ExecRunner struct {
	// Env is appended to the parent environment of every command.
	Env []string
}

// NewRunner creates a new ExecRunner.
func NewRunner(env ...string) *ExecRunner {
	return &ExecRunner{Env: env}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.Env = r.environ()
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killGroup(cmd) }
	cmd.WaitDelay = stopGrace
	return cmd.CombinedOutput()
}

// RunShell executes a shell command through "sh -c".
func (r *ExecRunner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	return r.Run(ctx, workDir, "sh", "-c", command)
}

// Exists checks if a file exists at the given path.
func (r *ExecRunner) Exists(_ context.Context, workDir string, path string) bool {
	if !filepath.IsAbs(path) && workDir != "" {
		path = filepath.Join(workDir, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// Start launches command through "sh -c" in its own process group. The
// process is stopped when ctx is cancelled.
func (r *ExecRunner) Start(ctx context.Context, workDir string, command string, env ...string) (Process, error) {
	cmd := exec.Command("sh", "-c", command)
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.Env = append(r.environ(), env...)
	setProcessGroup(cmd)

	out := newTailBuffer(outputTail)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}

	p := &shellProcess{cmd: cmd, out: out, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = p.Stop()
		case <-p.done:
		}
	}()
	return p, nil
}

func (r *ExecRunner) environ() []string {
	if len(r.Env) == 0 {
		return nil
	}
	return append(os.Environ(), r.Env...)
}

type shellProcess struct {
	cmd  *exec.Cmd
	out  *tailBuffer
	done chan struct{}
	err  error

	stopOnce sync.Once
}

func (p *shellProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *shellProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *shellProcess) Err() error {
	if !p.Exited() {
		return nil
	}
	return p.err
}

func (p *shellProcess) Output() string {
	return p.out.String()
}

func (p *shellProcess) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		if p.Exited() {
			return
		}
		if termErr := terminateGroup(p.cmd); termErr != nil {
			err = killGroup(p.cmd)
		}
		select {
		case <-p.done:
		case <-time.After(stopGrace):
			err = killGroup(p.cmd)
			<-p.done
		}
	})
	return err
}

// tailBuffer is an io.Writer that keeps the last max bytes written.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Verify ExecRunner implements CommandRunner and Starter at compile time.
var (
	_ CommandRunner = (*ExecRunner)(nil)
	_ Starter       = (*ExecRunner)(nil)
)
