package simsuite

import (
	"fmt"
	"path/filepath"
)

// A Scenario is a named configuration of a suite's model: the extra arguments
// passed to the simulator and the exit code the simulator should return.
type Scenario struct {
	Name       string
	ExtraArgs  []string
	ExpectedRC int
}

// Ext returns the extension of the captured output file: "out" for scenarios
// expected to succeed and "err" for scenarios expected to fail.
func (s Scenario) Ext() string {
	if s.ExpectedRC == 0 {
		return "out"
	}
	return "err"
}

// Sorted reports whether output lines are compared as sets. Engines may log in
// any order on success, but early failure output is compared in order.
func (s Scenario) Sorted() bool {
	return s.ExpectedRC == 0
}

// Validate checks that s has a name and an exit code a process can return.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if s.ExpectedRC < 0 || s.ExpectedRC > 255 {
		return fmt.Errorf("scenario %s: expected exit code %d out of range", s.Name, s.ExpectedRC)
	}
	return nil
}

// Paths holds the files involved in one scenario run.
type Paths struct {
	Model     string
	Reference string
	Output    string
}

// ReferenceDirName is the directory below a suite directory holding
// reference outputs.
const ReferenceDirName = "refFiles"

// PathsFor computes the model, reference, and captured output paths for a
// scenario of the named suite.
//
// Reference files always carry the .out extension, also for scenarios that
// are expected to fail and whose captured output is written to a .err file.
func PathsFor(suite, suiteDir, model, runDir string, s Scenario) Paths {
	base := fmt.Sprintf("test_%s_%s", suite, s.Name)
	return Paths{
		Model:     filepath.Join(suiteDir, model),
		Reference: filepath.Join(suiteDir, ReferenceDirName, base+".out"),
		Output:    filepath.Join(runDir, base+"."+s.Ext()),
	}
}
