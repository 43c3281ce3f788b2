/*
Package simsuite contains the types shared by the simsuite scenario runner and
its test helpers. Simsuite tests a discrete-event simulator by running it on a
model file with a handful of scenario configurations and comparing what it
prints with reference files checked in next to the model.

# Scenarios

A [Scenario] names one configuration of a suite's model: extra command-line
arguments for the simulator and the exit code the simulator must return. A
suite named Links with a scenario named dangling uses these files:

	<suite dir>/test_Links.hcl                        model passed to the simulator
	<suite dir>/refFiles/test_Links_dangling.out      reference output
	<run dir>/test_Links_dangling.err                 captured output

Captured output goes to a .out file for scenarios expected to succeed and to
a .err file for scenarios expected to fail. Reference files always end in
.out. See [PathsFor].

# Comparing output

Before comparison both the captured and the reference output are filtered.
By default lines starting with "WARNING: No components are" are dropped, as
is everything from the first line containing "SST Fatal" on: the backtrace a
simulator prints after a fatal error differs from build to build. Output of
successful scenarios is compared without regard to line order, because a
multi-threaded simulator interleaves its output freely. Output of failing
scenarios is compared line by line.

# Writing and running suites

Suites are written as Go tests with the
[github.com/kmrgirish/simsuite/suitetesting] package:

	var links = &suitetesting.Suite{Name: "Links", Model: "test_Links.hcl"}

	func TestLinksDangling(t *testing.T) {
		links.ComponentTest(t, "dangling", []string{"--model-options=dangling"}, 1)
	}

The simulator defaults to linksim from this module, built once per test
process. Set SIMSUITE_SIMULATOR to test another binary, SIMSUITE_RUN_DIR to
choose where captured output goes, and SIMSUITE_REWRITE=1 to overwrite
reference files with captured output.

The same suites can be described in a .simsuite.json file and run with the
simsuite command, which runs scenarios in parallel and keeps a history of
results. See [github.com/kmrgirish/simsuite/cmd/simsuite].
*/
package simsuite
