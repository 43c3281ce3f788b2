package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/kmrgirish/simsuite/internal/prettylog"
)

const doc = `Simsuite runs simulator scenarios and compares their output with reference
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
`

func commandName(cmd string) string {
	return fmt.Sprintf("%s %s", path.Base(os.Args[0]), cmd)
}

// newLogger returns a logger writing to w in the given format: pretty,
// json, or text.
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts))
	case "text":
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(slog.NewJSONHandler(prettylog.NewWriter(w), opts))
	}
}

// splitSelector splits "suite/scenario" or "suite".
func splitSelector(s string) (suite, scenario string) {
	suite, scenario, _ = strings.Cut(s, "/")
	return suite, scenario
}

func simsuiteMain() int {
	log.SetFlags(0)
	log.SetPrefix("simsuite: ")

	flags := flag.NewFlagSet("simsuite", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Print(doc)
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		return 2
	}

	if flags.NArg() < 1 {
		flags.Usage()
		return 2
	}
	cmd := flags.Arg(0)
	cmdArgs := flags.Args()[1:]

	switch cmd {
	case "run":
		return runCommand(cmdArgs)
	case "diff":
		return diffCommand(cmdArgs)
	case "history":
		return historyCommand(cmdArgs)
	case "clean":
		return cleanCommand(cmdArgs)
	case "help":
		fmt.Print(doc)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "simsuite: unknown command %q\nRun 'simsuite help' for usage.\n", cmd)
		return 2
	}
}

func main() {
	os.Exit(simsuiteMain())
}
