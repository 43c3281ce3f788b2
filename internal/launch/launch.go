// Package launch runs a simulator binary and captures its combined output.
package launch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// An Invocation describes one simulator run.
type Invocation struct {
	Binary string
	Args   []string

	// OutFile receives stdout and stderr interleaved as the process wrote
	// them.
	OutFile    string
	ExpectedRC int

	Env     []string // appended to the current environment
	Dir     string
	Timeout time.Duration // zero means no timeout
}

// An Outcome describes a finished run.
type Outcome struct {
	ExitCode int
	Duration time.Duration
	Output   []byte
}

// An ExitCodeError is returned when a process exits with a different code
// than expected.
type ExitCodeError struct {
	Binary   string
	Expected int
	Actual   int
	Output   []byte
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("%s exited with code %d, expected %d%s", e.Binary, e.Actual, e.Expected, tail(e.Output, 10))
}

// ErrTimeout is returned when the process is killed because its timeout
// expired.
var ErrTimeout = errors.New("simulator timed out")

// tail formats the last n lines of output for an error message.
func tail(output []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return ""
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return "; output ends with:\n\t" + strings.Join(lines, "\n\t")
}

// Command returns the command line for inv, for logging.
func (inv *Invocation) Command() string {
	return strings.Join(append([]string{inv.Binary}, inv.Args...), " ")
}

// Run runs inv to completion. The captured output is written to inv.OutFile
// even when the exit code does not match, so that it can be inspected.
func Run(ctx context.Context, inv *Invocation) (*Outcome, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	setProcessGroup(cmd)
	cmd.WaitDelay = time.Second

	// stdout and stderr share one writer so that exec uses a single pipe and
	// the relative order of the two streams is preserved.
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	runErr := cmd.Run()
	outcome := &Outcome{
		Duration: time.Since(start),
		Output:   output.Bytes(),
	}

	if inv.OutFile != "" {
		if err := os.MkdirAll(filepath.Dir(inv.OutFile), 0o755); err != nil {
			return nil, err
		}
		if err := atomic.WriteFile(inv.OutFile, bytes.NewReader(outcome.Output)); err != nil {
			return nil, fmt.Errorf("writing output: %w", err)
		}
	}

	if runErr != nil {
		switch err := ctx.Err(); {
		case errors.Is(err, context.DeadlineExceeded):
			return outcome, fmt.Errorf("%w after %s: %s", ErrTimeout, inv.Timeout, inv.Command())
		case err != nil:
			return outcome, fmt.Errorf("running %s: %w", inv.Command(), err)
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("running %s: %w", inv.Binary, runErr)
		}
		outcome.ExitCode = exitErr.ExitCode()
	}

	if outcome.ExitCode != inv.ExpectedRC {
		return outcome, &ExitCodeError{
			Binary:   inv.Binary,
			Expected: inv.ExpectedRC,
			Actual:   outcome.ExitCode,
			Output:   outcome.Output,
		}
	}
	return outcome, nil
}
