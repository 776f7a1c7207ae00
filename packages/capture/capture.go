package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
)

// ErrTimeout is returned when the runner does not exit within the timeout
var ErrTimeout = errors.New("runner timed out")

// Output is everything observed from one runner invocation
type Output struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Invoker launches the runner process. Command holds the executable and any
// leading arguments (e.g. "dotnet vstest.console.dll").
type Invoker struct {
	Command []string
	Env     []string // appended to os.Environ()
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewInvoker creates an invoker for the given command
func NewInvoker(command []string, opts ...Option) *Invoker {
	inv := &Invoker{
		Command: command,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Option configures an Invoker
type Option func(*Invoker)

// WithEnv adds KEY=VALUE pairs to the runner environment
func WithEnv(env []string) Option {
	return func(inv *Invoker) {
		inv.Env = append(inv.Env, env...)
	}
}

// WithTimeout bounds each invocation
func WithTimeout(d time.Duration) Option {
	return func(inv *Invoker) {
		inv.Timeout = d
	}
}

// WithDir sets the runner working directory
func WithDir(dir string) Option {
	return func(inv *Invoker) {
		inv.Dir = dir
	}
}

// WithLogger sets the logger used for invocation events
func WithLogger(l *slog.Logger) Option {
	return func(inv *Invoker) {
		if l != nil {
			inv.Logger = l
		}
	}
}

// Invoke runs the runner with args and blocks until it exits. A non-zero exit
// code is reported in Output, not as an error; failing to start the process
// or hitting the timeout is.
func (inv *Invoker) Invoke(ctx context.Context, args []string) (*Output, error) {
	if len(inv.Command) == 0 {
		return nil, errors.New("runner command is empty")
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	argv := append(append([]string(nil), inv.Command[1:]...), args...)
	cmd := exec.CommandContext(ctx, inv.Command[0], argv...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	out := &Output{
		Command: append([]string{inv.Command[0]}, argv...),
	}

	inv.logger().Debug("invoking runner", "command", inv.Command[0], "args", argv)

	start := time.Now()
	runErr := cmd.Run()
	out.Duration = time.Since(start)
	out.Stdout = Normalize(stdout.String())
	out.Stderr = Normalize(stderr.String())

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, fmt.Errorf("%w after %v", ErrTimeout, out.Duration.Round(time.Millisecond))
		}
		return out, ctx.Err()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return out, fmt.Errorf("failed to run %s: %w", inv.Command[0], runErr)
		}
		out.ExitCode = exitErr.ExitCode()
	}

	inv.logger().Debug("runner exited",
		"exitCode", out.ExitCode,
		"duration", out.Duration,
		"stdoutBytes", len(out.Stdout),
		"stderrBytes", len(out.Stderr))

	return out, nil
}

func (inv *Invoker) logger() *slog.Logger {
	if inv.Logger == nil {
		return slog.Default()
	}
	return inv.Logger
}

// Normalize strips ANSI escapes and converts CRLF line endings to LF
func Normalize(s string) string {
	s = stripansi.Strip(s)
	return strings.ReplaceAll(s, "\r\n", "\n")
}
