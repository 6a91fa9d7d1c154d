package runner

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
)

// Command is one prepared invocation of an external program.
type Command interface {
	// Run executes the command and returns the combined output (stdout+stderr).
	Run() ([]byte, error)

	// SetDir sets the working directory.
	SetDir(dir string)

	// SetStdin sets the stdin for the command.
	SetStdin(stdin []byte)
}

// Builder prepares commands. The abstraction lets tests record what would
// have been run without starting processes.
type Builder interface {
	Build(ctx context.Context, name string, args ...string) Command
}

// ExecCommand wraps exec.Cmd to implement Command.
type ExecCommand struct {
	cmd *exec.Cmd
}

// Run executes the command and returns combined output.
func (c *ExecCommand) Run() ([]byte, error) { return c.cmd.CombinedOutput() }

// SetDir sets the working directory.
func (c *ExecCommand) SetDir(dir string) { c.cmd.Dir = dir }

// SetStdin sets stdin for the command.
func (c *ExecCommand) SetStdin(stdin []byte) { c.cmd.Stdin = bytes.NewReader(stdin) }

// ExecBuilder builds commands with exec.CommandContext.
type ExecBuilder struct{}

// Build creates an ExecCommand that is killed when ctx is done.
func (ExecBuilder) Build(ctx context.Context, name string, args ...string) Command {
	return &ExecCommand{cmd: exec.CommandContext(ctx, name, args...)}
}

// MockCommand records one built command.
type MockCommand struct {
	Name  string
	Args  []string
	Dir   string
	Stdin []byte
	// RunCalled indicates whether Run was called.
	RunCalled bool

	output []byte
	err    error
}

// Run returns the configured output and error.
func (m *MockCommand) Run() ([]byte, error) {
	m.RunCalled = true
	return m.output, m.err
}

// SetDir records the working directory.
func (m *MockCommand) SetDir(dir string) { m.Dir = dir }

// SetStdin records the stdin data.
func (m *MockCommand) SetStdin(stdin []byte) { m.Stdin = stdin }

// MockBuilder implements Builder for testing.
type MockBuilder struct {
	mu sync.Mutex
	// Commands records all commands that were built.
	Commands []*MockCommand
	// Respond returns the output and error of a command. Nil means success
	// with no output.
	Respond func(name string, args []string) ([]byte, error)
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{}
}

// Build records the command and returns it.
func (b *MockBuilder) Build(_ context.Context, name string, args ...string) Command {
	b.mu.Lock()
	defer b.mu.Unlock()

	cmd := &MockCommand{Name: name, Args: append([]string(nil), args...)}
	if b.Respond != nil {
		cmd.output, cmd.err = b.Respond(name, args)
	}
	b.Commands = append(b.Commands, cmd)
	return cmd
}

// Lines returns the command lines that were run, in order.
func (b *MockBuilder) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for _, c := range b.Commands {
		if c.RunCalled {
			out = append(out, CommandLine(c.Name, c.Args...))
		}
	}
	return out
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockBuilder) LastCommand() *MockCommand {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.Commands) == 0 {
		return nil
	}
	return b.Commands[len(b.Commands)-1]
}
