package linksim

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// A Model is a set of components and the links between their ports, as
// described by a model file.
type Model struct {
	Components []*ComponentConfig
	Links      []*LinkConfig
}

type ComponentConfig struct {
	Name        string
	Type        string
	SendCount   int
	ForwardHops int
}

type LinkConfig struct {
	Name    string
	Left    string // "component.port", empty if unconnected
	Right   string
	Latency int64 // ns
}

// hclModelFile is the decoding target for model files.
type hclModelFile struct {
	Components []*hclComponent `hcl:"component,block"`
	Links      []*hclLink      `hcl:"link,block"`
}

type hclComponent struct {
	Name        string `hcl:"name,label"`
	Type        string `hcl:"type"`
	SendCount   *int   `hcl:"send_count,optional"`
	ForwardHops *int   `hcl:"forward_hops,optional"`
}

type hclLink struct {
	Name    string  `hcl:"name,label"`
	Left    string  `hcl:"left"`
	Right   string  `hcl:"right"`
	Latency *string `hcl:"latency,optional"`
}

const defaultLatency = "1ns"

// evalContext exposes the --model-options value to model expressions as
// model_options.
func evalContext(options string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"model_options": cty.StringVal(options),
		},
	}
}

// LoadModel reads and decodes the model file at path.
func LoadModel(path string, options string) (*Model, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseModel(src, path, options)
}

// ParseModel decodes a model from HCL source. The filename is used in
// diagnostics.
func ParseModel(src []byte, filename string, options string) (*Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse model %s: %w", filename, diags)
	}

	var parsed hclModelFile
	diags = gohcl.DecodeBody(file.Body, evalContext(options), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode model %s: %w", filename, diags)
	}

	m := &Model{}
	seen := make(map[string]bool)
	for _, c := range parsed.Components {
		if seen[c.Name] {
			return nil, fmt.Errorf("component %s defined twice", c.Name)
		}
		seen[c.Name] = true

		cfg := &ComponentConfig{
			Name:      c.Name,
			Type:      c.Type,
			SendCount: 1,
		}
		if c.SendCount != nil {
			cfg.SendCount = *c.SendCount
		}
		if c.ForwardHops != nil {
			cfg.ForwardHops = *c.ForwardHops
		}
		if cfg.SendCount < 0 || cfg.ForwardHops < 0 {
			return nil, fmt.Errorf("component %s: send_count and forward_hops must not be negative", c.Name)
		}
		m.Components = append(m.Components, cfg)
	}

	seen = make(map[string]bool)
	for _, l := range parsed.Links {
		if seen[l.Name] {
			return nil, fmt.Errorf("link %s defined twice", l.Name)
		}
		seen[l.Name] = true

		latency := defaultLatency
		if l.Latency != nil {
			latency = *l.Latency
		}
		d, err := time.ParseDuration(latency)
		if err != nil {
			return nil, fmt.Errorf("link %s: bad latency %q: %w", l.Name, latency, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("link %s: latency must be positive, got %s", l.Name, latency)
		}

		m.Links = append(m.Links, &LinkConfig{
			Name:    l.Name,
			Left:    strings.TrimSpace(l.Left),
			Right:   strings.TrimSpace(l.Right),
			Latency: d.Nanoseconds(),
		})
	}

	return m, nil
}

// splitEndpoint splits "component.port".
func splitEndpoint(endpoint string) (component, port string, ok bool) {
	component, port, ok = strings.Cut(endpoint, ".")
	if !ok || component == "" || port == "" {
		return "", "", false
	}
	return component, port, true
}
