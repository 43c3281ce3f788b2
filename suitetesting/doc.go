/*
Package suitetesting is a package for writing go tests that run a simulator
on a model file and compare its output with reference files.

A suite directory holds the model file and a refFiles directory with one
reference output per scenario:

	testdata/
		test_Links.hcl
		refFiles/
			test_Links_basic.out
			test_Links_dangling.out

Each test runs one scenario with ComponentTest:

	var links = &suitetesting.Suite{Name: "Links", Model: "test_Links.hcl"}

	func TestLinksDangling(t *testing.T) {
		links.ComponentTest(t, "dangling", []string{"--model-options=dangling"}, 1)
	}

The captured output is written to the run directory as
test_<suite>_<scenario>.out, or .err when the simulator is expected to fail.
Reference files always use the .out extension. Both are filtered before they
are compared: warnings about threads without components are dropped, as is
everything from the first fatal error marker on, since backtraces differ
between runs. Output of scenarios expected to succeed is compared without
regard to line order because components may print concurrently.

# One-time setup

Setup shared by all tests of a package goes in a Module, which runs it once
even when tests run in parallel:

	var linksModule = suitetesting.NewModule(func() { ... })

	func setUp(t *testing.T) {
		linksModule.Initialize(t)
	}

# Environment

SIMSUITE_SIMULATOR selects the simulator binary; by default ./cmd/linksim of
this module is built once per test process. SIMSUITE_RUN_DIR overrides the
run directory, which defaults to .simsuite/test_outputs/run_data in the module
root. With SIMSUITE_REWRITE=1 reference files are overwritten with the
captured output; review the changes before committing them.
*/
package suitetesting
