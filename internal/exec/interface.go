// Package exec runs the external commands of a generated project: install,
// build and lint steps, and the long-running dev server.
package exec

import (
	"context"
)

// CommandRunner defines the interface for running external commands to
// completion. This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a shell command through "sh -c".
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)

	// Exists reports whether path exists, relative to workDir if not absolute.
	Exists(ctx context.Context, workDir string, path string) bool
}

// Process is a background command started by a Starter.
type Process interface {
	// Pid returns the operating system process id.
	Pid() int
	// Exited reports whether the process has terminated.
	Exited() bool
	// Err returns the exit error once the process has terminated.
	Err() error
	// Output returns the tail of the combined stdout/stderr output.
	Output() string
	// Stop terminates the process and its children. Safe to call more than once.
	Stop() error
}

// Starter launches long-running shell commands such as dev servers.
type Starter interface {
	Start(ctx context.Context, workDir string, command string, env ...string) (Process, error)
}
