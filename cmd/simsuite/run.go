package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kmrgirish/simsuite"
	"github.com/kmrgirish/simsuite/internal/config"
	"github.com/kmrgirish/simsuite/internal/driver"
	"github.com/kmrgirish/simsuite/internal/history"
	"github.com/kmrgirish/simsuite/internal/launch"
	"github.com/kmrgirish/simsuite/internal/suitetool"
)

type job struct {
	suite    *config.Suite
	scenario simsuite.Scenario
}

func (j job) name() string {
	return j.suite.Name + "/" + j.scenario.Name
}

// selectJobs lists the scenarios matching any of the selectors (all when
// there are none) and the pattern.
func selectJobs(cfg *config.Config, selectors []string, pattern *regexp.Regexp) ([]job, error) {
	for _, sel := range selectors {
		suiteName, scenarioName := splitSelector(sel)
		s, ok := cfg.Suite(suiteName)
		if !ok {
			return nil, fmt.Errorf("no suite %s in %s", suiteName, cfg.Source)
		}
		if scenarioName == "" {
			continue
		}
		found := false
		for _, sc := range s.Scenarios {
			found = found || sc.Name == scenarioName
		}
		if !found {
			return nil, fmt.Errorf("no scenario %s in suite %s", scenarioName, suiteName)
		}
	}

	selected := func(suite, scenario string) bool {
		if pattern != nil && !pattern.MatchString(suite+"/"+scenario) {
			return false
		}
		if len(selectors) == 0 {
			return true
		}
		for _, sel := range selectors {
			selSuite, selScenario := splitSelector(sel)
			if selSuite == suite && (selScenario == "" || selScenario == scenario) {
				return true
			}
		}
		return false
	}

	var jobs []job
	for _, s := range cfg.Suites {
		for _, sc := range s.Scenarios {
			if selected(s.Name, sc.Name) {
				jobs = append(jobs, job{suite: s, scenario: sc.Scenario()})
			}
		}
	}
	return jobs, nil
}

// resolveSimulator finds the simulator binary. $SIMSUITE_SIMULATOR wins
// over the config file; names without a path separator are looked up in
// PATH.
func resolveSimulator(cfg *config.Config) (string, error) {
	sim := cfg.Simulator
	if env := os.Getenv(suitetool.SimulatorEnv); env != "" {
		sim = env
	}
	if strings.ContainsRune(sim, '/') || strings.ContainsRune(sim, filepath.Separator) {
		sim = cfg.Path(sim)
		if _, err := os.Stat(sim); err != nil {
			return "", fmt.Errorf("simulator: %w", err)
		}
		return sim, nil
	}
	return exec.LookPath(sim)
}

type runner struct {
	cfg       *config.Config
	simulator string
	runDir    string
	rewrite   bool
	db        *history.DB
	logger    *slog.Logger

	mu     sync.Mutex
	passed int
	failed int
}

func (r *runner) driver(s *config.Suite) *driver.Driver {
	dir := r.cfg.Path(s.Dir)
	if dir == "" {
		dir = r.cfg.Dir
	}
	return &driver.Driver{
		Suite: driver.Suite{
			Name:    s.Name,
			Dir:     dir,
			Model:   s.Model,
			Filters: s.FilterFunc(),
		},
		Simulator: r.simulator,
		RunDir:    r.runDir,
		Timeout:   r.cfg.TimeoutDuration(),
		Rewrite:   r.rewrite,
		Logger:    r.logger,
	}
}

// run runs one job and records its result. Failures are counted, not
// returned, so that one failing scenario does not stop the others.
func (r *runner) run(ctx context.Context, j job) error {
	logger := r.logger.With("suite", j.suite.Name, "scenario", j.scenario.Name)
	start := time.Now()

	rec := &history.Run{
		Suite:    j.suite.Name,
		Scenario: j.scenario.Name,
		Start:    start,
	}

	res, err := r.driver(j.suite).Run(ctx, j.scenario)
	switch {
	case err != nil:
		var exitErr *launch.ExitCodeError
		if errors.As(err, &exitErr) {
			rec.ExitCode = exitErr.Actual
		}
		rec.Duration = time.Since(start)
		rec.Diff = err.Error()
		logger.Error("scenario failed", "err", err)
	case !res.Match:
		rec.ExitCode = res.ExitCode
		rec.Duration = res.Duration
		rec.Output = res.Paths.Output
		rec.Diff = res.Diff
		logger.Error("scenario failed", "err", res.Message(), "diff", res.Diff)
	default:
		rec.ExitCode = res.ExitCode
		rec.Duration = res.Duration
		rec.Output = res.Paths.Output
		rec.Passed = true
		logger.Info("scenario passed", "duration", res.Duration.Round(time.Millisecond))
	}

	if ctx.Err() != nil && !rec.Passed {
		// interrupted runs are not recorded
		return ctx.Err()
	}

	if err := r.db.Record(rec); err != nil {
		return fmt.Errorf("recording %s: %w", j.name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	status := "ok  "
	if rec.Passed {
		r.passed++
	} else {
		r.failed++
		status = "FAIL"
	}
	fmt.Printf("%s\t%s\t%.3fs\n", status, j.name(), rec.Duration.Seconds())
	return nil
}

func runCommand(args []string) int {
	flags := flag.NewFlagSet(commandName("run"), flag.ContinueOnError)
	configPath := flags.String("config", "", "config file (default "+config.FileName+")")
	parallel := flags.Int("j", 0, "number of scenarios run at once (default from config)")
	pattern := flags.String("run", "", "run only scenarios whose suite/scenario matches this regexp")
	rewrite := flags.Bool("rewrite", false, "overwrite reference files with captured output")
	verbose := flags.Bool("v", false, "log at debug level")
	logFormat := flags.String("logformat", "", "log format: pretty|json|text (default from config)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	var re *regexp.Regexp
	if *pattern != "" {
		var err error
		re, err = regexp.Compile(*pattern)
		if err != nil {
			fmt.Fprintf(os.Stderr, "simsuite: bad -run pattern: %s\n", err)
			return 2
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(wd, *configPath)
	if err != nil {
		log.Fatal(err)
	}

	format := cfg.LogFormat
	if *logFormat != "" {
		format = *logFormat
	}
	level := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(os.Stderr, format, level)

	jobs, err := selectJobs(cfg, flags.Args(), re)
	if err != nil {
		log.Fatal(err)
	}
	if len(jobs) == 0 {
		fmt.Println("no scenarios to run")
		return 0
	}

	simulator, err := resolveSimulator(cfg)
	if err != nil {
		log.Fatal(err)
	}
	runDir := cfg.Path(cfg.OutputDir)
	if env := os.Getenv(suitetool.RunDirEnv); env != "" {
		runDir = env
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		log.Fatal(err)
	}
	db, err := history.Open(cfg.Path(cfg.History))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	logger.Debug("running scenarios", "config", cfg.Source, "simulator", simulator, "scenarios", len(jobs), "out", runDir)

	r := &runner{
		cfg:       cfg,
		simulator: simulator,
		runDir:    runDir,
		rewrite:   *rewrite || suitetool.Rewrite(),
		db:        db,
		logger:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	limit := cfg.Parallel
	if *parallel > 0 {
		limit = *parallel
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, j := range jobs {
		g.Go(func() error {
			return r.run(ctx, j)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("run aborted", "err", err)
		return 1
	}

	fmt.Printf("%d passed, %d failed\n", r.passed, r.failed)
	if r.failed > 0 {
		return 1
	}
	return 0
}
