package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kmrgirish/simsuite/internal/compare"
	"github.com/kmrgirish/simsuite/internal/driver"
	"github.com/kmrgirish/simsuite/internal/filter"
)

type stringsFlag []string

func (s *stringsFlag) String() string {
	return fmt.Sprint(*s)
}

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func diffCommand(args []string) int {
	flags := flag.NewFlagSet(commandName("diff"), flag.ContinueOnError)
	sortLines := flags.Bool("sort", false, "compare lines regardless of order")
	defaults := flags.Bool("default-filters", false, "apply the default simulator output filters")
	var dropPrefix, ignoreAfter stringsFlag
	flags.Var(&dropPrefix, "drop-prefix", "drop lines starting with this prefix (repeatable)")
	flags.Var(&ignoreAfter, "ignore-after", "drop the first line containing this marker and all lines after it (repeatable)")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] out ref\n", commandName("diff"))
		flags.PrintDefaults()
		return 2
	}

	var filters []filter.Filter
	if *defaults {
		filters = driver.DefaultFilters()
	}
	for _, p := range dropPrefix {
		filters = append(filters, filter.StartsWith(p))
	}
	for _, m := range ignoreAfter {
		filters = append(filters, filter.IgnoreAllAfter(m))
	}

	out, ref := flags.Arg(0), flags.Arg(1)
	res, err := compare.FilteredDiff(out, ref, *sortLines, filters...)
	if err != nil {
		log.Fatal(err)
	}
	if !res.Equal {
		fmt.Printf("%s differs from %s (-ref +out):\n%s", out, ref, res.Diff)
		return 1
	}
	return 0
}
