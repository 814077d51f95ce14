package execcontext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Output holds the captured streams of a finished command.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Combined returns stdout followed by stderr, trimmed.
func (o Output) Combined() string {
	return strings.TrimSpace(string(o.Stdout) + "\n" + string(o.Stderr))
}

// Runner executes external commands. It blocks until the command exits or ctx
// is done.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
	LookPath(name string) (string, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Cmd      string
	ExitCode int
	Output   Output
}

func (e *ExitError) Error() string {
	out := e.Output.Combined()
	if out == "" {
		return fmt.Sprintf("%s: exit status %d", e.Cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Cmd, e.ExitCode, out)
}

// CommandRunner runs commands on the local host through os/exec.
type CommandRunner struct {
	execCtx Context
}

// NewRunner returns a Runner bound to execCtx. A nil execCtx runs commands as-is.
func NewRunner(execCtx Context) *CommandRunner {
	if execCtx == nil {
		execCtx = New(nil, nil)
	}
	return &CommandRunner{execCtx: execCtx}
}

// Run implements Runner.
func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	ApplyToCmd(r.execCtx, cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s: %w", FormatCmd(r.execCtx, append([]string{name}, args...)...), ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{
			Cmd:      FormatCmd(r.execCtx, append([]string{name}, args...)...),
			ExitCode: exitErr.ExitCode(),
			Output:   out,
		}
	}

	return out, fmt.Errorf("failed to run %s: %w", name, err)
}

// LookPath implements Runner.
func (r *CommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
