// Package health checks that a generated project compiles, lints cleanly and
// serves, and exposes the served project to the capture stage.
package health

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/replica/internal/exec"
)

// maxProblems bounds the problem lines reported per failing step.
const maxProblems = 20

// Commands configures the install, build, lint and serve steps of a generated
// project. Empty commands are skipped. In Serve and ServeURL, {port} is
// replaced by the port chosen for the run.
type Commands struct {
	Install  string
	Build    string
	Lint     string
	Serve    string
	ServeURL string
}

// DetectCommands fills unset commands from the project layout: an npm project
// gets npm scripts, anything else is treated as a static site.
func DetectCommands(ctx context.Context, runner exec.CommandRunner, dir string, cmds Commands) Commands {
	if !runner.Exists(ctx, dir, "package.json") {
		return cmds
	}
	if cmds.Install == "" {
		cmds.Install = "npm install --no-audit --no-fund"
	}
	if cmds.Build == "" {
		cmds.Build = "npm run build --if-present"
	}
	if cmds.Lint == "" {
		cmds.Lint = "npm run lint --if-present"
	}
	if cmds.Serve == "" {
		cmds.Serve = "npm run dev -- --port {port} --strictPort"
		if cmds.ServeURL == "" {
			cmds.ServeURL = "http://127.0.0.1:{port}/"
		}
	}
	return cmds
}

// Checker runs build and lint commands in a project directory.
type Checker struct {
	runner exec.CommandRunner
	cmds   Commands
}

// NewChecker creates a Checker. Commands left empty are filled per project
// with DetectCommands on each Check.
func NewChecker(runner exec.CommandRunner, cmds Commands) *Checker {
	return &Checker{runner: runner, cmds: cmds}
}

// Check runs the install and build steps, then the lint step if they passed. It returns
// the problem lines found; an error means a step could not be judged, e.g. a
// timeout.
func (c *Checker) Check(ctx context.Context, dir string) ([]string, error) {
	cmds := DetectCommands(ctx, c.runner, dir, c.cmds)

	steps := []struct{ name, command string }{
		{"install", cmds.Install},
		{"build", cmds.Build},
		{"lint", cmds.Lint},
	}
	for _, step := range steps {
		if step.command == "" {
			continue
		}
		output, err := c.runner.RunShell(ctx, dir, step.command)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", step.name, ctx.Err())
		}
		if err != nil {
			return ExtractProblems(step.name, string(output)), nil
		}
	}
	return nil, nil
}

var (
	ansiPattern    = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	problemPattern = regexp.MustCompile(`(?i)\berror\b|\bfailed\b|\bcannot\b|\S+\.(tsx?|jsx?|css|s[ac]ss|html|vue|svelte)[:(]\d+`)
)

// ExtractProblems picks the error lines out of a failed step's output. When
// no line looks like an error, the tail of the output is used instead.
func ExtractProblems(step, output string) []string {
	var lines []string
	for _, line := range strings.Split(ansiPattern.ReplaceAllString(output, ""), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	var problems []string
	for _, line := range lines {
		if problemPattern.MatchString(line) {
			problems = append(problems, step+": "+line)
			if len(problems) == maxProblems {
				return problems
			}
		}
	}
	if len(problems) > 0 {
		return problems
	}

	if len(lines) == 0 {
		return []string{step + ": command failed with no output"}
	}
	if len(lines) > maxProblems {
		lines = lines[len(lines)-maxProblems:]
	}
	for _, line := range lines {
		problems = append(problems, step+": "+line)
	}
	return problems
}
