// Package compare compares captured simulator output with reference output
// after filtering both.
package compare

import (
	"bytes"
	"os"
	"slices"

	"github.com/google/go-cmp/cmp"

	"github.com/kmrgirish/simsuite/internal/filter"
)

// A Result is the outcome of a filtered diff. Diff is empty when the outputs
// are equal.
type Result struct {
	Equal bool
	Diff  string
}

// SplitLines splits b into lines. A trailing carriage return is stripped from
// each line and a final newline does not produce an empty last line.
func SplitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	b = bytes.TrimSuffix(b, []byte("\n"))
	var lines []string
	for _, line := range bytes.Split(b, []byte("\n")) {
		lines = append(lines, string(bytes.TrimSuffix(line, []byte("\r"))))
	}
	return lines
}

// ReadLines reads the file at path and splits it with SplitLines.
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(b), nil
}

// wholeLines makes cmp report a changed line as one removed and one added
// line instead of a diff within the line.
var wholeLines = cmp.Comparer(func(x, y string) bool { return x == y })

// Lines filters out and ref with the same filters and compares them. When
// sortLines is set both sides are sorted first so that line order is ignored.
func Lines(out, ref []string, sortLines bool, filters ...filter.Filter) Result {
	out = filter.Apply(out, filters...)
	ref = filter.Apply(ref, filters...)
	if sortLines {
		slices.Sort(out)
		slices.Sort(ref)
	}

	if slices.Equal(out, ref) {
		return Result{Equal: true}
	}
	return Result{
		Equal: false,
		Diff:  cmp.Diff(ref, out, wholeLines),
	}
}

// FilteredDiff reads the captured output outFile and reference refFile and
// compares them with Lines. A missing file is an error, not a mismatch.
func FilteredDiff(outFile, refFile string, sortLines bool, filters ...filter.Filter) (Result, error) {
	out, err := ReadLines(outFile)
	if err != nil {
		return Result{}, err
	}
	ref, err := ReadLines(refFile)
	if err != nil {
		return Result{}, err
	}
	return Lines(out, ref, sortLines, filters...), nil
}
