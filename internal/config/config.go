// Package config loads the per-component option fragments that
// router.Config and window.Config decode into. It generalizes the flag-based
// Config the reference project's binary built at startup: instead of one
// flat struct parsed from CLI flags, a pipeline description names each
// component and carries a raw YAML options block for that component's own
// type to decode.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ComponentConfig is one named entry of a pipeline description: a component
// type tag plus its options, left undecoded until the component's own
// constructor knows what struct to decode them into.
type ComponentConfig struct {
	Type    string    `yaml:"type"`
	Options yaml.Node `yaml:"options"`
}

// Decode unmarshals this component's options block into dst, which should be
// a pointer to the component's own Config type (router.Config, window.Config).
func (c ComponentConfig) Decode(dst any) error {
	if c.Options.Kind == 0 {
		return fmt.Errorf("config: component %q has no options block", c.Type)
	}
	if err := c.Options.Decode(dst); err != nil {
		return fmt.Errorf("config: decoding options for component %q: %w", c.Type, err)
	}
	return nil
}

// Graph is a full pipeline description: a set of named component configs.
// Wiring those components into slots and a running Harness is the graph
// loader's job, out of scope here (spec §1); this package only gets each
// component's options struct decoded and handed back.
type Graph struct {
	Components map[string]ComponentConfig `yaml:"components"`
}

// Load reads and parses a pipeline description from path.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &g, nil
}

// Component looks up a named component's config, erroring if absent.
func (g *Graph) Component(name string) (ComponentConfig, error) {
	cc, ok := g.Components[name]
	if !ok {
		return ComponentConfig{}, fmt.Errorf("config: no component named %q in graph", name)
	}
	return cc, nil
}
