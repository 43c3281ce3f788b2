// Package filter implements line filters applied to simulator output before
// it is compared with a reference.
package filter

import "strings"

// A Filter decides for each line whether it is kept. Filters may carry
// state across the lines of one stream; Reset clears it before a new stream.
type Filter interface {
	Filter(line string) (string, bool)
	Reset()
}

type startsWith struct {
	prefix string
}

// StartsWith returns a filter that drops every line starting with prefix.
func StartsWith(prefix string) Filter {
	return &startsWith{prefix: prefix}
}

func (f *startsWith) Filter(line string) (string, bool) {
	if strings.HasPrefix(line, f.prefix) {
		return "", false
	}
	return line, true
}

func (f *startsWith) Reset() {}

func (f *startsWith) String() string {
	return "StartsWith(" + f.prefix + ")"
}

type ignoreAllAfter struct {
	marker   string
	keepLine bool
	found    bool
}

// IgnoreAllAfter returns a filter that drops the first line containing marker
// and every line after it.
func IgnoreAllAfter(marker string) Filter {
	return &ignoreAllAfter{marker: marker}
}

// IgnoreAllAfterKeepLine is like IgnoreAllAfter but keeps the line containing
// the marker.
func IgnoreAllAfterKeepLine(marker string) Filter {
	return &ignoreAllAfter{marker: marker, keepLine: true}
}

func (f *ignoreAllAfter) Filter(line string) (string, bool) {
	if f.found {
		return "", false
	}
	if strings.Contains(line, f.marker) {
		f.found = true
		return line, f.keepLine
	}
	return line, true
}

func (f *ignoreAllAfter) Reset() {
	f.found = false
}

func (f *ignoreAllAfter) String() string {
	return "IgnoreAllAfter(" + f.marker + ")"
}

// Apply resets filters and runs lines through them in order. A line dropped
// by one filter is not seen by the filters after it.
func Apply(lines []string, filters ...Filter) []string {
	for _, f := range filters {
		f.Reset()
	}

	out := make([]string, 0, len(lines))
outer:
	for _, line := range lines {
		for _, f := range filters {
			var keep bool
			line, keep = f.Filter(line)
			if !keep {
				continue outer
			}
		}
		out = append(out, line)
	}
	return out
}
