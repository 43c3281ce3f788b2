package suitetool

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/mod/modfile"
)

const (
	Module          = "github.com/kmrgirish/simsuite"
	OutputDirectory = ".simsuite"

	// SimulatorEnv overrides the simulator binary used by tests.
	SimulatorEnv = "SIMSUITE_SIMULATOR"
	// RunDirEnv overrides the directory receiving captured outputs.
	RunDirEnv = "SIMSUITE_RUN_DIR"
	// RewriteEnv, when set to 1, makes tests overwrite reference files with
	// captured outputs.
	RewriteEnv = "SIMSUITE_REWRITE"
)

// FindGoMod finds and parses the go.mod of the module containing the working
// directory. Tests run in their package directory, so this is the module
// under test.
func FindGoMod() (string, *modfile.File, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", nil, err
	}

	for {
		p := filepath.Join(dir, "go.mod")
		data, err := os.ReadFile(p)
		if err == nil {
			file, err := modfile.Parse(p, data, nil)
			if err != nil {
				return "", nil, err
			}
			return p, file, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, err
		}

		// filepath.Dir of the root is the root itself.
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, fmt.Errorf("no go.mod in %s or any parent directory", dir)
		}
		dir = parent
	}
}

func FindGoModDir() (string, error) {
	modFile, _, err := FindGoMod()
	if err != nil {
		return "", err
	}

	return filepath.Dir(modFile), nil
}

// RunDir returns the directory receiving captured outputs, creating it if
// needed. It is $SIMSUITE_RUN_DIR if set and
// <module root>/.simsuite/test_outputs/run_data otherwise.
func RunDir() (string, error) {
	dir := os.Getenv(RunDirEnv)
	if dir == "" {
		modDir, err := FindGoModDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(modDir, OutputDirectory, "test_outputs", "run_data")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Rewrite reports whether reference files should be rewritten.
func Rewrite() bool {
	return os.Getenv(RewriteEnv) == "1"
}

type buildResult struct {
	path string
	err  error
}

var (
	buildOnceMu sync.Mutex
	buildOnce   = make(map[string]func() buildResult)
)

// BuildOnce builds the main package pkg of this module into
// <module root>/.simsuite/bin and returns the binary path. Each package is
// built at most once per process; concurrent callers wait for the build.
func BuildOnce(pkg string) (string, error) {
	buildOnceMu.Lock()
	build, ok := buildOnce[pkg]
	if !ok {
		build = sync.OnceValue(func() buildResult {
			p, err := buildBinary(pkg)
			return buildResult{path: p, err: err}
		})
		buildOnce[pkg] = build
	}
	buildOnceMu.Unlock()

	res := build()
	return res.path, res.err
}

func buildBinary(pkg string) (string, error) {
	modDir, err := FindGoModDir()
	if err != nil {
		return "", err
	}
	binDir := filepath.Join(modDir, OutputDirectory, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", err
	}
	bin := filepath.Join(binDir, path.Base(pkg))

	cmd := exec.Command("go", "build", "-o", bin, pkg)
	cmd.Dir = modDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("go build %s failed: %w\n\n%s", pkg, err, string(out))
	}
	return bin, nil
}

// SimulatorPath returns the simulator binary for tests: $SIMSUITE_SIMULATOR
// if set, otherwise a fresh build of ./cmd/linksim.
func SimulatorPath(tb testing.TB) string {
	tb.Helper()

	if sim := os.Getenv(SimulatorEnv); sim != "" {
		p, err := exec.LookPath(sim)
		if err != nil {
			tb.Fatalf("%s=%s: %s", SimulatorEnv, sim, err)
		}
		return p
	}

	bin, err := BuildOnce("./cmd/linksim")
	if err != nil {
		tb.Fatalf("building simulator: %s", err)
	}
	return bin
}
