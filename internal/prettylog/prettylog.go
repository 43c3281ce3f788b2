// MIT License
//
// # Copyright (c) 2017 Olivier Poitrey
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// Based on https://github.com/rs/zerolog/blob/master/console.go.

// Package prettylog turns JSON slog records into aligned, optionally
// colored, console lines. Records name their scenario with "suite" and
// "scenario" attributes; multi-line string attributes such as diffs are
// printed indented below the record.
package prettylog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorCyan    = 36

	colorBold     = 1
	colorDarkGray = 90
)

const (
	suiteKey    = "suite"
	scenarioKey = "scenario"
	errorKey    = "err"
)

// Writer is an io.Writer for a slog.JSONHandler. Each Write must hold one
// JSON record.
type Writer struct {
	mu        sync.Mutex
	out       io.Writer
	formatter formatter
}

// NewWriter returns a Writer to out that colors its output when out is a
// terminal. NO_COLOR and TERM=dumb disable color, FORCE_COLOR enables it.
func NewWriter(out io.Writer) *Writer {
	return NewWriterColor(out, useColor(out))
}

// NewWriterColor returns a Writer to out with color explicitly on or off.
func NewWriterColor(out io.Writer, color bool) *Writer {
	return &Writer{
		out:       out,
		formatter: formatter{noColor: !color},
	}
}

func useColor(out io.Writer) bool {
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var writePool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 1024))
	},
}

// Write formats one JSON record. Input that is not a JSON object is passed
// through unchanged and reported as an error.
func (w *Writer) Write(p []byte) (int, error) {
	var evt map[string]any
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, werr := w.out.Write(p); werr != nil {
			return 0, werr
		}
		return len(p), fmt.Errorf("cannot decode record: %w", err)
	}

	buf := writePool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		writePool.Put(buf)
	}()

	w.formatter.header(buf, evt)
	w.formatter.fields(buf, evt)
	buf.WriteByte('\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

type formatter struct {
	noColor bool
}

// colorize wraps s in the ANSI codes c, innermost first.
func (f *formatter) colorize(s string, c ...int) string {
	if f.noColor {
		return s
	}
	for _, c := range c {
		s = fmt.Sprintf("\x1b[%dm%s\x1b[0m", c, s)
	}
	return s
}

func appendPart(buf *bytes.Buffer, s string) {
	if s == "" {
		return
	}
	if buf.Len() > 0 {
		buf.WriteByte(' ')
	}
	buf.WriteString(s)
}

// header writes the fixed columns: time, level, scenario, and message.
func (f *formatter) header(buf *bytes.Buffer, evt map[string]any) {
	appendPart(buf, f.timestamp(evt[slog.TimeKey]))
	level := parseLevel(evt[slog.LevelKey])
	appendPart(buf, f.level(level, evt[slog.LevelKey]))
	appendPart(buf, f.scenario(evt[suiteKey], evt[scenarioKey]))
	if msg, ok := evt[slog.MessageKey].(string); ok && msg != "" {
		if level >= slog.LevelInfo {
			msg = f.colorize(msg, colorBold)
		}
		appendPart(buf, msg)
	}
}

const timeFormat = "15:04:05.000"

func (f *formatter) timestamp(i any) string {
	s, ok := i.(string)
	if !ok {
		return ""
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		s = ts.Format(timeFormat)
	}
	return f.colorize(s, colorDarkGray)
}

func parseLevel(i any) slog.Level {
	var level slog.Level
	if s, ok := i.(string); ok {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return slog.LevelInfo
		}
	}
	return level
}

var levelColors = map[slog.Level]int{
	slog.LevelDebug: colorMagenta,
	slog.LevelInfo:  colorGreen,
	slog.LevelWarn:  colorYellow,
	slog.LevelError: colorRed,
}

var formattedLevels = map[slog.Level]string{
	slog.LevelDebug: "DBG",
	slog.LevelInfo:  "INF",
	slog.LevelWarn:  "WRN",
	slog.LevelError: "ERR",
}

func (f *formatter) level(level slog.Level, raw any) string {
	if raw == nil {
		return "???"
	}
	if s, ok := formattedLevels[level]; ok {
		return f.colorize(s, levelColors[level])
	}
	s := strings.ToUpper(fmt.Sprint(raw))
	return s[:min(3, len(s))]
}

const scenarioWidth = 20

func (f *formatter) scenario(suite, scenario any) string {
	if suite == nil && scenario == nil {
		return ""
	}
	var s string
	switch {
	case suite == nil:
		s = fmt.Sprint(scenario)
	case scenario == nil:
		s = fmt.Sprint(suite)
	default:
		s = fmt.Sprintf("%v/%v", suite, scenario)
	}
	if len(s) < scenarioWidth {
		s += strings.Repeat(" ", scenarioWidth-len(s))
	}
	return f.colorize(s, colorCyan)
}

// needsQuote reports whether s must be quoted to stay one token.
func needsQuote(s string) bool {
	for i := range s {
		if s[i] < 0x20 || s[i] > 0x7e || s[i] == ' ' || s[i] == '\\' || s[i] == '"' {
			return true
		}
	}
	return s == ""
}

// fields writes the remaining attributes as key=value pairs, err first and
// the rest sorted. Multi-line strings follow on their own indented lines.
func (f *formatter) fields(buf *bytes.Buffer, evt map[string]any) {
	var keys []string
	for k := range evt {
		switch k {
		case slog.TimeKey, slog.LevelKey, slog.MessageKey, slog.SourceKey, suiteKey, scenarioKey, errorKey:
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if _, ok := evt[errorKey]; ok {
		keys = slices.Insert(keys, 0, errorKey)
	}

	var blocks []string
	for _, k := range keys {
		if s, ok := evt[k].(string); ok && strings.Contains(strings.TrimRight(s, "\n"), "\n") {
			blocks = append(blocks, k)
			continue
		}
		appendPart(buf, f.colorize(k+"=", colorCyan)+f.value(k, evt[k]))
	}

	for _, k := range blocks {
		buf.WriteByte('\n')
		buf.WriteString("    " + f.colorize(k+":", colorCyan))
		for _, line := range strings.Split(strings.TrimRight(evt[k].(string), "\n"), "\n") {
			buf.WriteString("\n        ")
			buf.WriteString(line)
		}
	}
}

func (f *formatter) value(key string, i any) string {
	var s string
	switch v := i.(type) {
	case string:
		s = v
		if needsQuote(s) {
			s = strconv.Quote(s)
		}
	case json.Number:
		s = v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return f.colorize(fmt.Sprintf("[error: %v]", err), colorRed)
		}
		s = string(b)
	}
	if key == errorKey {
		return f.colorize(s, colorBold, colorRed)
	}
	return s
}
