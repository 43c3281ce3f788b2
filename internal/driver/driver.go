// Package driver runs scenarios of a suite against a simulator and compares
// their output with reference files.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/kmrgirish/simsuite"
	"github.com/kmrgirish/simsuite/internal/compare"
	"github.com/kmrgirish/simsuite/internal/filter"
	"github.com/kmrgirish/simsuite/internal/launch"
)

// A Suite is a set of scenarios sharing a model file and output filters.
type Suite struct {
	Name  string
	Dir   string
	Model string

	// Filters returns fresh filters for one comparison. Filters carry
	// per-stream state so they are not shared between concurrent runs.
	Filters func() []filter.Filter
}

// DefaultFilters drops the benign warning printed when a thread has no
// components, and everything from the first fatal error on.
func DefaultFilters() []filter.Filter {
	return []filter.Filter{
		filter.StartsWith("WARNING: No components are"),
		filter.IgnoreAllAfter("SST Fatal"),
	}
}

// A Driver runs scenarios of one suite against a simulator binary and
// compares their output with the suite's reference files.
type Driver struct {
	Suite     Suite
	Simulator string
	RunDir    string
	Timeout   time.Duration
	Env       []string

	// Rewrite copies captured output over the reference file after each
	// run that exited with the expected code.
	Rewrite bool

	Logger *slog.Logger
}

// A Result describes one scenario run.
type Result struct {
	Suite    string
	Scenario simsuite.Scenario
	Paths    simsuite.Paths
	ExitCode int
	Duration time.Duration

	Match bool
	Diff  string
}

// Message describes a content mismatch, naming both files.
func (r *Result) Message() string {
	return fmt.Sprintf("Output/Compare file %s does not match Reference File %s", r.Paths.Output, r.Paths.Reference)
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

// Run runs one scenario. A content mismatch is reported in the result; an
// unexpected exit code, a missing reference, or a failed launch are errors.
func (d *Driver) Run(ctx context.Context, s simsuite.Scenario) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	paths := simsuite.PathsFor(d.Suite.Name, d.Suite.Dir, d.Suite.Model, d.RunDir, s)
	logger := d.logger().With("suite", d.Suite.Name, "scenario", s.Name)

	inv := &launch.Invocation{
		Binary:     d.Simulator,
		Args:       append([]string{paths.Model}, s.ExtraArgs...),
		OutFile:    paths.Output,
		ExpectedRC: s.ExpectedRC,
		Env:        d.Env,
		Timeout:    d.Timeout,
	}
	logger.Debug("launching simulator", "cmd", inv.Command(), "out", paths.Output)

	outcome, err := launch.Run(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("scenario %s/%s: %w", d.Suite.Name, s.Name, err)
	}

	if d.Rewrite {
		if err := rewriteReference(paths.Reference, outcome.Output); err != nil {
			return nil, err
		}
		logger.Info("rewrote reference", "ref", paths.Reference)
	}

	filters := DefaultFilters()
	if d.Suite.Filters != nil {
		filters = d.Suite.Filters()
	}
	diff, err := compare.FilteredDiff(paths.Output, paths.Reference, s.Sorted(), filters...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s/%s: %w", d.Suite.Name, s.Name, err)
	}

	res := &Result{
		Suite:    d.Suite.Name,
		Scenario: s,
		Paths:    paths,
		ExitCode: outcome.ExitCode,
		Duration: outcome.Duration,
		Match:    diff.Equal,
		Diff:     diff.Diff,
	}
	logger.Debug("compared output", "match", res.Match, "sorted", s.Sorted())
	return res, nil
}

func rewriteReference(path string, output []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(output)); err != nil {
		return fmt.Errorf("rewriting reference %s: %w", path, err)
	}
	return nil
}
