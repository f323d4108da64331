package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleGraph = `
components:
  rtr:
    type: router
    options:
      router_type: sad_nbest
  win:
    type: window
    options:
      low_latency: true
      sampling_frequency: 16000
      analysis_frame_size: 25
      analysis_frame_step_size: 10
      windowing_function: hamming
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte(sampleGraph), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAndDecodeComponents(t *testing.T) {
	g, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rtr, err := g.Component("rtr")
	if err != nil {
		t.Fatalf("Component(rtr): %v", err)
	}
	if rtr.Type != "router" {
		t.Errorf("rtr.Type = %q, want router", rtr.Type)
	}

	var routerOpts struct {
		RouterType string `yaml:"router_type"`
	}
	if err := rtr.Decode(&routerOpts); err != nil {
		t.Fatalf("Decode(rtr): %v", err)
	}
	if routerOpts.RouterType != "sad_nbest" {
		t.Errorf("router_type = %q, want sad_nbest", routerOpts.RouterType)
	}

	win, err := g.Component("win")
	if err != nil {
		t.Fatalf("Component(win): %v", err)
	}
	var windowOpts struct {
		SamplingFrequency float32 `yaml:"sampling_frequency"`
		WindowingFunction string  `yaml:"windowing_function"`
	}
	if err := win.Decode(&windowOpts); err != nil {
		t.Fatalf("Decode(win): %v", err)
	}
	if windowOpts.SamplingFrequency != 16000 {
		t.Errorf("sampling_frequency = %v, want 16000", windowOpts.SamplingFrequency)
	}
	if windowOpts.WindowingFunction != "hamming" {
		t.Errorf("windowing_function = %q, want hamming", windowOpts.WindowingFunction)
	}
}

func TestComponentMissingNameErrors(t *testing.T) {
	g, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := g.Component("nope"); err == nil {
		t.Fatal("expected an error for a component name absent from the graph")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent path")
	}
}
