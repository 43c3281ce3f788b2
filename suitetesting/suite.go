package suitetesting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kmrgirish/simsuite"
	"github.com/kmrgirish/simsuite/internal/driver"
	"github.com/kmrgirish/simsuite/internal/filter"
	"github.com/kmrgirish/simsuite/internal/launch"
	"github.com/kmrgirish/simsuite/internal/suitetool"
)

// A Suite runs scenarios of one model file against the simulator.
type Suite struct {
	// Name is used in file names: test_<Name>_<scenario>.out.
	Name string
	// Dir holds the model file and the refFiles directory. It defaults to
	// "testdata" in the package directory.
	Dir   string
	Model string

	// Filters returns fresh filters for each comparison. Nil means the
	// default filters, which drop "WARNING: No components are" lines and
	// everything from the first "SST Fatal" line on.
	Filters func() []filter.Filter

	// Simulator overrides the simulator binary. By default
	// $SIMSUITE_SIMULATOR is used, or else a build of ./cmd/linksim.
	Simulator string
	Timeout   time.Duration
}

// DefaultTimeout bounds a single simulator run.
const DefaultTimeout = 5 * time.Minute

func (s *Suite) dir(t testing.TB) string {
	t.Helper()
	if s.Dir != "" {
		return s.Dir
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	return filepath.Join(wd, "testdata")
}

func (s *Suite) driver(t testing.TB) *driver.Driver {
	t.Helper()

	sim := s.Simulator
	if sim == "" {
		sim = suitetool.SimulatorPath(t)
	}
	runDir, err := suitetool.RunDir()
	if err != nil {
		t.Fatalf("resolving run dir: %s", err)
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &driver.Driver{
		Suite: driver.Suite{
			Name:    s.Name,
			Dir:     s.dir(t),
			Model:   s.Model,
			Filters: s.Filters,
		},
		Simulator: sim,
		RunDir:    runDir,
		Timeout:   timeout,
		Rewrite:   suitetool.Rewrite(),
	}
}

// ComponentTest runs the scenario named name with extra simulator arguments
// and the expected exit code, and fails t unless the filtered output matches
// the scenario's reference file. Output of successful runs is compared
// without regard to line order.
func (s *Suite) ComponentTest(t testing.TB, name string, extraArgs []string, expectedRC int) {
	t.Helper()
	s.Run(t, simsuite.Scenario{Name: name, ExtraArgs: extraArgs, ExpectedRC: expectedRC})
}

// Run is like ComponentTest but takes a Scenario.
func (s *Suite) Run(t testing.TB, scenario simsuite.Scenario) *driver.Result {
	t.Helper()

	d := s.driver(t)
	res, err := d.Run(context.Background(), scenario)
	if err != nil {
		var exitErr *launch.ExitCodeError
		if errors.As(err, &exitErr) {
			t.Fatalf("simulator exit code mismatch: %s", err)
		}
		t.Fatal(err)
	}
	if !res.Match {
		t.Fatalf("%s\n\ndiff (-reference +output):\n%s", res.Message(), res.Diff)
	}
	t.Logf("scenario %s passed in %s (%s)", scenario.Name, res.Duration.Round(time.Millisecond), res.Paths.Output)
	return res
}
