/*
Simsuite runs simulator scenarios and compares their output with reference
files.

Usage: simsuite <command> [arguments]

The commands are:

	run            run configured scenarios
	diff           compare an output file with a reference file
	history        show recorded runs
	clean          delete old recorded runs
	help           print this help

Scenarios are configured in .simsuite.json in the current directory, or the
file passed with -config. The file is JSON and may contain comments and
trailing commas.

The 'run' command:

Usage: simsuite run [-config file] [-j n] [-run regexp] [-rewrite] [-v] [suite[/scenario] ...]

The run command runs the selected scenarios, all of them by default, with up
to -j simulators at a time. Each scenario's output is written to the output
directory as test_<suite>_<scenario>.out, or .err for scenarios expected to
fail, and compared with refFiles/test_<suite>_<scenario>.out in the suite
directory. Run exits with status 1 if any scenario fails.

The -run flag selects scenarios whose suite/scenario name matches the
regular expression. The -rewrite flag overwrites reference files with the
captured output of scenarios that exit with the expected code.

The 'diff' command:

Usage: simsuite diff [-sort] [-drop-prefix p]... [-ignore-after m]... [-default-filters] out ref

The diff command compares two files the way run does and prints the
differences. It exits with status 1 if they differ.

The 'history' command:

Usage: simsuite history [-config file] [-n n] [suite[/scenario]]

The history command prints the most recent recorded runs.

The 'clean' command:

Usage: simsuite clean [-config file] [-days n]

The clean command deletes recorded runs older than -days days.
*/
package main
