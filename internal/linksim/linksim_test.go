package linksim

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const ringModel = `
component "c0" {
  type         = "coreTestElement.linkTester"
  forward_hops = 1
}

component "c1" {
  type = "coreTestElement.linkTester"
}

component "c2" {
  type = "coreTestElement.linkTester"
}

link "link0" {
  left    = "c0.right"
  right   = "c1.left"
  latency = "5ns"
}

link "link1" {
  left    = "c1.right"
  right   = model_options == "dangling" ? "" : "c2.left"
  latency = "10ns"
}

link "link2" {
  left    = "c2.right"
  right   = model_options == "wrong_port" ? "c0.bogus" : "c0.left"
  latency = "20ns"
}
`

var ringOutput = []string{
	"5 ns: c1 received event c0:0 on port left (hop 0)",
	"5 ns: c0 received event c1:0 on port right (hop 0)",
	"10 ns: c2 received event c1:1 on port left (hop 0)",
	"10 ns: c1 received event c2:0 on port right (hop 0)",
	"20 ns: c2 received event c0:1 on port right (hop 0)",
	"20 ns: c0 received event c2:1 on port left (hop 0)",
	"25 ns: c2 received event c1:0 on port right (hop 1)",
	"25 ns: c1 received event c2:1 on port left (hop 1)",
}

func lines(b []byte) []string {
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestMatchPort(t *testing.T) {
	testcases := []struct {
		pattern, port string
		match         bool
	}{
		{"left", "left", true},
		{"left", "right", false},
		{"left", "lef", false},
		{"left", "left0", false},
		{"*", "anything", true},
		{"port%d", "port0", true},
		{"port%d", "port123", true},
		{"port%d", "port", true},
		{"port%d", "portx", false},
		{"port%d", "port1x", false},
		{"in%(input)d", "in7", true},
		{"in%(input)d", "out7", false},
		{"in%(input)d_%d", "in3_4", true},
		{"in%(input", "in3", false},
		{"in%(input)x", "in3", false},
	}
	for _, tc := range testcases {
		if got := MatchPort(tc.pattern, tc.port); got != tc.match {
			t.Errorf("MatchPort(%q, %q) = %v, want %v", tc.pattern, tc.port, got, tc.match)
		}
	}
}

func TestLookupElement(t *testing.T) {
	e, err := LookupElement("coreTestElement.linkTester")
	if err != nil {
		t.Fatal(err)
	}
	if !e.ValidPort("port4") || e.ValidPort("in4") {
		t.Errorf("unexpected ports for %s: %v", e.Type(), e.Ports)
	}

	if _, err := LookupElement("coreTestElement.nope"); err == nil || err.Error() != "can't find requested component coreTestElement.nope" {
		t.Errorf("unexpected error %v", err)
	}
	if _, err := LookupElement("linkTester"); err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("unexpected error %v", err)
	}

	if diff := cmp.Diff([]string{"coreTestElement.linkSink", "coreTestElement.linkTester"}, Elements()); diff != "" {
		t.Errorf("unexpected elements (-want +got):\n%s", diff)
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel([]byte(ringModel), "ring.hcl", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Components) != 3 || len(m.Links) != 3 {
		t.Fatalf("got %d components and %d links", len(m.Components), len(m.Links))
	}
	if c := m.Components[0]; c.SendCount != 1 || c.ForwardHops != 1 {
		t.Errorf("unexpected c0 config %+v", c)
	}
	if l := m.Links[1]; l.Right != "c2.left" || l.Latency != 10 {
		t.Errorf("unexpected link1 config %+v", l)
	}

	m, err = ParseModel([]byte(ringModel), "ring.hcl", "dangling")
	if err != nil {
		t.Fatal(err)
	}
	if l := m.Links[1]; l.Right != "" {
		t.Errorf("expected dangling link1, got %+v", l)
	}
}

func TestParseModelErrors(t *testing.T) {
	testcases := []struct {
		name, src, err string
	}{
		{
			name: "syntax",
			src:  `component "c0" {`,
			err:  "failed to parse model",
		},
		{
			name: "missing type",
			src:  `component "c0" {}`,
			err:  "failed to decode model",
		},
		{
			name: "duplicate component",
			src: `component "c0" { type = "coreTestElement.linkTester" }
component "c0" { type = "coreTestElement.linkTester" }`,
			err: "component c0 defined twice",
		},
		{
			name: "bad latency",
			src: `link "l" {
  left    = "a.left"
  right   = "b.right"
  latency = "soon"
}`,
			err: "link l: bad latency",
		},
		{
			name: "zero latency",
			src: `link "l" {
  left    = "a.left"
  right   = "b.right"
  latency = "0s"
}`,
			err: "latency must be positive",
		},
		{
			name: "negative send count",
			src: `component "c0" {
  type       = "coreTestElement.linkTester"
  send_count = -1
}`,
			err: "must not be negative",
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseModel([]byte(tc.src), "bad.hcl", "")
			if err == nil || !strings.Contains(err.Error(), tc.err) {
				t.Errorf("expected error containing %q, got %v", tc.err, err)
			}
		})
	}
}

func buildRing(t *testing.T, options string) (*Simulation, error) {
	t.Helper()
	m, err := ParseModel([]byte(ringModel), "ring.hcl", options)
	if err != nil {
		t.Fatal(err)
	}
	return Build(m, nil)
}

func TestRun(t *testing.T) {
	sim, err := buildRing(t, "")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	end, err := sim.Run(context.Background(), &buf, RunOptions{Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	if end != 25 {
		t.Errorf("expected end time 25, got %d", end)
	}
	if diff := cmp.Diff(ringOutput, lines(buf.Bytes())); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestRunThreads(t *testing.T) {
	for range 20 {
		sim, err := buildRing(t, "")
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if _, err := sim.Run(context.Background(), &buf, RunOptions{Threads: 5}); err != nil {
			t.Fatal(err)
		}
		got := lines(buf.Bytes())
		want := append([]string{
			"WARNING: No components are assigned to thread 3.",
			"WARNING: No components are assigned to thread 4.",
		}, ringOutput...)
		slices.Sort(got)
		slices.Sort(want)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("unexpected output (-want +got):\n%s", diff)
		}
	}
}

func TestRunStopAt(t *testing.T) {
	sim, err := buildRing(t, "")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	end, err := sim.Run(context.Background(), &buf, RunOptions{StopAt: 12})
	if err != nil {
		t.Fatal(err)
	}
	if end != 12 {
		t.Errorf("expected end time 12, got %d", end)
	}
	if diff := cmp.Diff(ringOutput[:4], lines(buf.Bytes())); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestRunCanceled(t *testing.T) {
	sim, err := buildRing(t, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Run(ctx, &bytes.Buffer{}, RunOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSink(t *testing.T) {
	m, err := ParseModel([]byte(`
component "src" {
  type       = "coreTestElement.linkTester"
  send_count = 2
}
component "sink" {
  type         = "coreTestElement.linkSink"
  forward_hops = 3
}
link "l" {
  left  = "src.port0"
  right = "sink.in1"
}
`), "sink.hcl", "")
	if err != nil {
		t.Fatal(err)
	}
	sim, err := Build(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := sim.Run(context.Background(), &buf, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"1 ns: sink received event src:0 on port in1 (hop 0)",
		"1 ns: sink received event src:1 on port in1 (hop 0)",
	}
	if diff := cmp.Diff(want, lines(buf.Bytes())); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestBuildFatal(t *testing.T) {
	testcases := []struct {
		name  string
		model string
		msg   string
	}{
		{
			name:  "unknown type",
			model: `component "c0" { type = "coreTestElement.nope" }`,
			msg:   "can't find requested component coreTestElement.nope",
		},
		{
			name: "dangling",
			model: `component "c0" { type = "coreTestElement.linkTester" }
link "l" {
  left  = "c0.left"
  right = ""
}`,
			msg: "Found dangling link: l. It is connected on one side to component c0.",
		},
		{
			name:  "unconnected",
			model: `link "l" {
  left  = ""
  right = ""
}`,
			msg:   "Found dangling link: l. It is not connected to any component.",
		},
		{
			name: "unknown component",
			model: `component "c0" { type = "coreTestElement.linkTester" }
link "l" {
  left  = "c0.left"
  right = "c9.right"
}`,
			msg: "Link l connects to unknown component c9.",
		},
		{
			name: "unknown port",
			model: `component "c0" { type = "coreTestElement.linkTester" }
component "c1" { type = "coreTestElement.linkSink" }
link "l" {
  left  = "c0.left"
  right = "c1.left"
}`,
			msg: "Attempting to connect to unknown port: left, in component c1 of type coreTestElement.linkSink.",
		},
		{
			name: "connected twice",
			model: `component "c0" { type = "coreTestElement.linkTester" }
component "c1" { type = "coreTestElement.linkTester" }
link "a" {
  left  = "c0.left"
  right = "c1.left"
}
link "b" {
  left  = "c1.right"
  right = "c0.left"
}`,
			msg: "Port left of component c0 is connected to both a and b.",
		},
		{
			name: "self",
			model: `component "c0" { type = "coreTestElement.linkTester" }
link "l" {
  left  = "c0.left"
  right = "c0.left"
}`,
			msg: "Link l connects c0.left to itself.",
		},
		{
			name: "malformed endpoint",
			model: `component "c0" { type = "coreTestElement.linkTester" }
link "l" {
  left  = "c0"
  right = "c0.left"
}`,
			msg: `Link l has malformed endpoint "c0", expected component.port.`,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := ParseModel([]byte(tc.model), "fatal.hcl", "")
			if err != nil {
				t.Fatal(err)
			}
			_, err = Build(m, nil)
			var fatal *FatalError
			if !errors.As(err, &fatal) {
				t.Fatalf("expected *FatalError, got %v", err)
			}
			if fatal.Msg != tc.msg {
				t.Errorf("got message %q, want %q", fatal.Msg, tc.msg)
			}
		})
	}
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ring.hcl")
	if err := os.WriteFile(path, []byte(ringModel), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMainRun(t *testing.T) {
	path := writeModel(t)

	var stdout, stderr bytes.Buffer
	if code := Main([]string{path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	want := append(slices.Clone(ringOutput), "Simulation is complete, simulated time: 25 ns")
	if diff := cmp.Diff(want, lines(stdout.Bytes())); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestMainFatal(t *testing.T) {
	path := writeModel(t)

	var stdout, stderr bytes.Buffer
	// flags after the model file, the way the test driver passes them
	if code := Main([]string{path, "--model-options=wrong_port"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	got := lines(stdout.Bytes())
	if len(got) < 3 {
		t.Fatalf("expected a backtrace, got:\n%s", stdout.String())
	}
	want := []string{
		"FATAL: [0:0] Attempting to connect to unknown port: bogus, in component c0 of type coreTestElement.linkTester.",
		"SST Fatal Backtrace Information:",
	}
	if diff := cmp.Diff(want, got[:2]); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(got[2], "    0 : ") {
		t.Errorf("unexpected frame line %q", got[2])
	}
}

func TestMainUsage(t *testing.T) {
	testcases := [][]string{
		nil,
		{"a.hcl", "b.hcl"},
		{"--num-threads=0", "a.hcl"},
		{"--stop-at=-1ns", "a.hcl"},
		{"--no-such-flag", "a.hcl"},
	}
	for _, args := range testcases {
		var stdout, stderr bytes.Buffer
		if code := Main(args, &stdout, &stderr); code != 2 {
			t.Errorf("Main(%q) = %d, want 2", args, code)
		}
		if stdout.Len() != 0 {
			t.Errorf("Main(%q) wrote to stdout: %s", args, stdout.String())
		}
	}
}

func TestMainMissingModel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Main([]string{filepath.Join(t.TempDir(), "missing.hcl")}, &stdout, &stderr); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "linksim: ") {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}
