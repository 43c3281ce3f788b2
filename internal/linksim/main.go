// Package linksim is a small discrete-event simulator of components
// exchanging events over links with latency. It is the reference simulator
// for the Links test suite: it reads a model file, validates the link graph
// the way SST does, and prints one line per delivered event.
package linksim

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	zapslog "github.com/tommoulard/zap-slog"
	"go.uber.org/zap"
)

const usage = `usage: linksim [flags] model.hcl

Flags:
`

// Main runs linksim with the given arguments and returns the process exit
// code: 0 on success, 1 on a model or simulation error, 2 on a usage error.
// Flags may appear before or after the model file.
func Main(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("linksim", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\nElements:\n  %s\n", strings.Join(Elements(), "\n  "))
	}
	modelOptions := flags.String("model-options", "", "value available to the model as model_options")
	numThreads := flags.Int("num-threads", 1, "number of components simulated concurrently")
	stopAt := flags.Duration("stop-at", 0, "stop at this simulated time (0 runs until idle)")
	verbose := flags.Bool("verbose", false, "log engine diagnostics to stderr")

	var positional []string
	for {
		if err := flags.Parse(args); err != nil {
			return 2
		}
		args = flags.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) != 1 {
		flags.Usage()
		return 2
	}
	if *numThreads < 1 {
		fmt.Fprintf(stderr, "linksim: --num-threads must be at least 1, got %d\n", *numThreads)
		return 2
	}
	if *stopAt < 0 {
		fmt.Fprintf(stderr, "linksim: --stop-at must not be negative, got %s\n", *stopAt)
		return 2
	}

	logger := zap.NewNop()
	if *verbose {
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		l, err := zap.NewProduction(zapslog.WrapCore(slog.New(handler)))
		if err != nil {
			fmt.Fprintf(stderr, "linksim: %v\n", err)
			return 1
		}
		defer l.Sync()
		logger = l
	}

	err := run(context.Background(), positional[0], *modelOptions, RunOptions{
		Threads: *numThreads,
		StopAt:  stopAt.Nanoseconds(),
	}, stdout, logger)
	if err != nil {
		var fatal *FatalError
		if errors.As(err, &fatal) {
			fatal.Report(stdout)
		} else {
			fmt.Fprintf(stderr, "linksim: %v\n", err)
		}
		return 1
	}
	return 0
}

func run(ctx context.Context, path, options string, opts RunOptions, w io.Writer, logger *zap.Logger) error {
	start := time.Now()
	m, err := LoadModel(path, options)
	if err != nil {
		return err
	}
	sim, err := Build(m, logger)
	if err != nil {
		return err
	}
	end, err := sim.Run(ctx, w, opts)
	if err != nil {
		return err
	}
	logger.Info("simulation done", zap.Int64("simulated_ns", end), zap.Duration("elapsed", time.Since(start)))
	_, err = fmt.Fprintf(w, "Simulation is complete, simulated time: %d ns\n", end)
	return err
}
