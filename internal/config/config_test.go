package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kmrgirish/simsuite"
	"github.com/kmrgirish/simsuite/internal/config"
	"github.com/kmrgirish/simsuite/internal/filter"
)

const linksConfig = `{
  // the Links suite from internal/tests
  "simulator": "bin/linksim",
  "timeout": "2m",
  "parallel": 2,
  "suites": [
    {
      "name": "Links",
      "dir": "internal/tests/links/testdata",
      "model": "test_Links.hcl",
      "scenarios": [
        {"name": "basic"},
        {"name": "dangling", "args": ["--model-options=dangling"], "rc": 1},
        {"name": "wrong_port", "args": ["--model-options=wrong_port"], "rc": 1},
      ],
    },
  ],
}
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(linksConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Simulator != "bin/linksim" || cfg.Parallel != 2 || cfg.TimeoutDuration() != 2*time.Minute {
		t.Errorf("unexpected config %+v", cfg)
	}
	// defaults
	if cfg.LogFormat != "pretty" || cfg.History != filepath.Join(".simsuite", "history.sqlite3") {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	s, ok := cfg.Suite("Links")
	if !ok {
		t.Fatal("missing Links suite")
	}
	var got []simsuite.Scenario
	for _, sc := range s.Scenarios {
		got = append(got, sc.Scenario())
	}
	want := []simsuite.Scenario{
		{Name: "basic"},
		{Name: "dangling", ExtraArgs: []string{"--model-options=dangling"}, ExpectedRC: 1},
		{Name: "wrong_port", ExtraArgs: []string{"--model-options=wrong_port"}, ExpectedRC: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected scenarios (-want +got):\n%s", diff)
	}
	if s.FilterFunc() != nil {
		t.Error("expected default filters")
	}
}

func TestParseDefaultParallel(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"suites": [{"name": "a", "model": "m.hcl"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parallel != runtime.NumCPU() {
		t.Errorf("expected parallel %d, got %d", runtime.NumCPU(), cfg.Parallel)
	}
	if cfg.Level().String() != "INFO" {
		t.Errorf("unexpected level %s", cfg.Level())
	}
}

func TestParseErrors(t *testing.T) {
	testcases := []struct {
		name string
		data string
		err  error
	}{
		{"no suites", `{}`, config.ErrNoSuites},
		{"no model", `{"suites": [{"name": "a"}]}`, config.ErrSuiteIncomplete},
		{"duplicate suite", `{"suites": [{"name": "a", "model": "m"}, {"name": "a", "model": "m"}]}`, config.ErrDuplicateSuite},
		{"duplicate scenario", `{"suites": [{"name": "a", "model": "m", "scenarios": [{"name": "x"}, {"name": "x", "rc": 1}]}]}`, config.ErrDuplicateScenario},
		{"timeout", `{"timeout": "-1s", "suites": [{"name": "a", "model": "m"}]}`, config.ErrBadTimeout},
		{"parallel", `{"parallel": -3, "suites": [{"name": "a", "model": "m"}]}`, config.ErrBadParallel},
		{"log format", `{"log_format": "xml", "suites": [{"name": "a", "model": "m"}]}`, config.ErrBadLogFormat},
		{"log level", `{"log_level": "loud", "suites": [{"name": "a", "model": "m"}]}`, config.ErrBadLogLevel},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.data))
			if !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got %v", tc.err, err)
			}
		})
	}

	if _, err := config.Parse([]byte(`{"suites": [`)); err == nil {
		t.Error("expected error for truncated file")
	}
	if _, err := config.Parse([]byte(`{"suites": [{"name": "a", "model": "m", "scenarios": [{"name": "x", "rc": 300}]}]}`)); err == nil {
		t.Error("expected error for out of range exit code")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := config.Load(dir, ""); !errors.Is(err, config.ErrConfigFileNotFound) {
		t.Errorf("expected ErrConfigFileNotFound, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(linksConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dir != dir || cfg.Source != filepath.Join(dir, config.FileName) {
		t.Errorf("unexpected source %s in %s", cfg.Source, cfg.Dir)
	}
	if got, want := cfg.Path("bin/linksim"), filepath.Join(dir, "bin/linksim"); got != want {
		t.Errorf("Path = %s, want %s", got, want)
	}
	if got := cfg.Path("/abs/linksim"); got != "/abs/linksim" {
		t.Errorf("absolute path rewritten to %s", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"suites": 3}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(dir, "broken.json"); !errors.Is(err, config.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestFilterFunc(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"suites": [{
  "name": "a",
  "model": "m",
  "filters": {"drop_prefix": ["DEBUG"], "ignore_after": ["panic:"]},
}]}`))
	if err != nil {
		t.Fatal(err)
	}
	newFilters := cfg.Suites[0].FilterFunc()
	if newFilters == nil {
		t.Fatal("expected custom filters")
	}
	got := filter.Apply([]string{"a", "DEBUG x", "b", "panic: boom", "c"}, newFilters()...)
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}
