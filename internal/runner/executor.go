// Package runner executes the external programs mutools drives: sbatch for
// restarts, ffmpeg for movies and git for releases.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/banshee-data/mutools/internal/monitoring"
)

// Logger defines the interface for debug logging.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// monitoringLogger forwards to monitoring.Debugf.
type monitoringLogger struct{}

func (monitoringLogger) Debugf(format string, args ...interface{}) {
	monitoring.Debugf(format, args...)
}

// Runner runs a program in dir and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// Executor is the Runner used by the commands.
type Executor struct {
	Builder Builder
	DryRun  bool
	// Out receives the dry-run lines.
	Out    io.Writer
	Logger Logger
}

// NewExecutor creates a new command executor.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{
		Builder: ExecBuilder{},
		DryRun:  dryRun,
		Out:     os.Stdout,
		Logger:  monitoringLogger{},
	}
}

// SetLogger sets the debug logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	if logger != nil {
		e.Logger = logger
	}
}

// Run executes a command. In dry-run mode the command line is printed and
// nothing runs.
func (e *Executor) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	line := CommandLine(name, args...)
	if e.DryRun {
		msg := fmt.Sprintf("[DRY-RUN] Would execute: %s", line)
		if e.Out != nil {
			fmt.Fprintln(e.Out, msg)
		}
		return msg, nil
	}

	e.Logger.Debugf("Executing: %s (dir=%s)", line, dir)
	cmd := e.Builder.Build(ctx, name, args...)
	if dir != "" {
		cmd.SetDir(dir)
	}
	out, err := cmd.Run()
	output := string(out)
	if err != nil {
		e.Logger.Debugf("Command failed: %v, output: %s", err, output)
		if msg := strings.TrimSpace(output); msg != "" {
			return output, fmt.Errorf("%s: %w: %s", line, err, msg)
		}
		return output, fmt.Errorf("%s: %w", line, err)
	}
	return output, nil
}

// CommandLine renders a command for display, quoting arguments that
// contain blanks or quotes.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{name}, args...) {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
