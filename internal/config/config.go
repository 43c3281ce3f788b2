// Package config loads .simsuite.json, the file listing the suites and
// scenarios the simsuite command runs. The file is JSON with comments and
// trailing commas allowed.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tailscale/hujson"

	"github.com/kmrgirish/simsuite"
	"github.com/kmrgirish/simsuite/internal/filter"
)

// FileName is the config file looked up in the working directory.
const FileName = ".simsuite.json"

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")

	ErrNoSuites          = errors.New("no suites configured")
	ErrSuiteIncomplete   = errors.New("suite needs a name and a model")
	ErrDuplicateSuite    = errors.New("duplicate suite")
	ErrDuplicateScenario = errors.New("duplicate scenario")
	ErrBadTimeout        = errors.New("timeout must be a positive duration")
	ErrBadParallel       = errors.New("parallel must not be negative")
	ErrBadLogFormat      = errors.New("log_format must be pretty, json or text")
	ErrBadLogLevel       = errors.New("unknown log_level")
)

// A Config is the contents of a config file.
type Config struct {
	// Simulator is a path (relative to the config file) or a command name
	// looked up in PATH.
	Simulator string `json:"simulator,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
	History   string `json:"history,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
	Parallel  int    `json:"parallel,omitempty"`
	LogFormat string `json:"log_format,omitempty"`
	LogLevel  string `json:"log_level,omitempty"`

	Suites []*Suite `json:"suites"`

	// Dir is the directory holding the config file; relative paths are
	// resolved against it.
	Dir    string `json:"-"`
	Source string `json:"-"`
}

// A Suite is one model file and the scenarios run against it. Dir holds the
// model and its refFiles directory.
type Suite struct {
	Name      string      `json:"name"`
	Dir       string      `json:"dir,omitempty"`
	Model     string      `json:"model"`
	Filters   *Filters    `json:"filters,omitempty"`
	Scenarios []*Scenario `json:"scenarios"`
}

// Filters replaces the default output filters of a suite.
type Filters struct {
	DropPrefix  []string `json:"drop_prefix,omitempty"`
	IgnoreAfter []string `json:"ignore_after,omitempty"`
}

// A Scenario is one simulator run of a suite. RC is the expected exit code.
type Scenario struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
	RC   int      `json:"rc"`
}

// Default returns the settings used for fields a config file leaves out.
func Default() *Config {
	return &Config{
		Simulator: "linksim",
		OutputDir: filepath.Join(".simsuite", "test_outputs", "run_data"),
		History:   filepath.Join(".simsuite", "history.sqlite3"),
		Timeout:   "60s",
		Parallel:  runtime.NumCPU(),
		LogFormat: "pretty",
		LogLevel:  "info",
	}
}

// Load reads the config file at path, or FileName in workDir when path is
// empty. Relative paths are taken relative to workDir.
func Load(workDir, path string) (*Config, error) {
	if path == "" {
		path = FileName
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return nil, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	cfg.Dir = filepath.Dir(path)
	cfg.Source = path
	return cfg, nil
}

// Parse decodes and validates a config, filling in defaults for fields the
// data leaves out.
func Parse(data []byte) (*Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := Default()
	parallel := cfg.Parallel
	cfg.Parallel = 0
	if err := json.Unmarshal(standardized, cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if cfg.Parallel < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrBadParallel, cfg.Parallel)
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = parallel
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("%w, got %q", ErrBadTimeout, c.Timeout)
	}
	switch c.LogFormat {
	case "pretty", "json", "text":
	default:
		return fmt.Errorf("%w, got %q", ErrBadLogFormat, c.LogFormat)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("%w %q", ErrBadLogLevel, c.LogLevel)
	}

	if len(c.Suites) == 0 {
		return ErrNoSuites
	}
	suites := make(map[string]bool)
	for i, s := range c.Suites {
		if s == nil || s.Name == "" || s.Model == "" {
			return fmt.Errorf("suite %d: %w", i, ErrSuiteIncomplete)
		}
		if suites[s.Name] {
			return fmt.Errorf("%w %s", ErrDuplicateSuite, s.Name)
		}
		suites[s.Name] = true

		scenarios := make(map[string]bool)
		for _, sc := range s.Scenarios {
			if sc == nil {
				return fmt.Errorf("suite %s: empty scenario", s.Name)
			}
			if err := sc.Scenario().Validate(); err != nil {
				return fmt.Errorf("suite %s: %w", s.Name, err)
			}
			if scenarios[sc.Name] {
				return fmt.Errorf("%w %s/%s", ErrDuplicateScenario, s.Name, sc.Name)
			}
			scenarios[sc.Name] = true
		}
	}
	return nil
}

// TimeoutDuration is the parsed Timeout. The config has been validated, so
// it is always positive.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Level is the parsed LogLevel.
func (c *Config) Level() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.LogLevel))
	return level
}

// Path resolves p against the config directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Suite finds a suite by name.
func (c *Config) Suite(name string) (*Suite, bool) {
	for _, s := range c.Suites {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// FilterFunc returns a constructor for the suite's filters, or nil when the
// suite uses the default filters.
func (s *Suite) FilterFunc() func() []filter.Filter {
	if s.Filters == nil {
		return nil
	}
	prefixes := s.Filters.DropPrefix
	markers := s.Filters.IgnoreAfter
	return func() []filter.Filter {
		var filters []filter.Filter
		for _, p := range prefixes {
			filters = append(filters, filter.StartsWith(p))
		}
		for _, m := range markers {
			filters = append(filters, filter.IgnoreAllAfter(m))
		}
		return filters
	}
}

// Scenario converts s for the driver.
func (s *Scenario) Scenario() simsuite.Scenario {
	return simsuite.Scenario{
		Name:       s.Name,
		ExtraArgs:  s.Args,
		ExpectedRC: s.RC,
	}
}
