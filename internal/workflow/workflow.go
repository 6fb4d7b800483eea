// Package workflow defines the declarative workflow document, the typed
// action variants compiled from it, and the error taxonomy shared by the
// session and interpreter layers.
package workflow

import (
	"bytes"
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Viewport is the fixed rendering area all pixel coordinates in a workflow
// are interpreted against. It is applied once at session start and never
// changes for the duration of a run.
type Viewport struct {
	Width  int64 `yaml:"width"`
	Height int64 `yaml:"height"`
}

// Settings holds the per-run browser parameters declared by the document.
type Settings struct {
	Headless bool     `yaml:"headless"`
	Viewport Viewport `yaml:"viewport"`
	// ZoomLevel locks the page zoom so rendered geometry matches the machine
	// the coordinates were recorded on. 0 means the default 1.0.
	ZoomLevel float64 `yaml:"zoom_level"`
	// Pacing caps step dispatch at the given steps per second. 0 disables it.
	Pacing float64 `yaml:"pacing"`
}

// Authentication configures cookie-based session continuity across runs.
type Authentication struct {
	Enabled     bool   `yaml:"enabled"`
	ProfilePath string `yaml:"profile_path"`
}

// Step is one raw workflow entry as declared in YAML. Params stay untyped
// here; Compile turns them into a validated Action.
type Step struct {
	Action      string                 `yaml:"action"`
	Params      map[string]interface{} `yaml:"params"`
	Description string                 `yaml:"description"`
}

// Document is a fully parsed workflow file. It is loaded once at process
// start and treated as immutable afterwards.
type Document struct {
	Settings       Settings       `yaml:"settings"`
	Authentication Authentication `yaml:"authentication"`
	Workflow       []Step         `yaml:"workflow"`
}

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
)

// Load reads and parses a workflow document from path. Unknown YAML fields
// are rejected so typos in a workflow file fail loudly instead of silently
// producing a different run.
func Load(path string) (*Document, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand workflow path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %q: %w", expanded, err)
	}
	return Parse(data)
}

// Parse decodes a workflow document from raw YAML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	// Default headless to true; an explicit `headless: false` in the file
	// still wins.
	doc.Settings.Headless = true

	dec := newStrictDecoder(data)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	doc.applyDefaults()
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func newStrictDecoder(data []byte) *yaml.Decoder {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec
}

func (d *Document) applyDefaults() {
	if d.Settings.Viewport.Width <= 0 {
		d.Settings.Viewport.Width = defaultViewportWidth
	}
	if d.Settings.Viewport.Height <= 0 {
		d.Settings.Viewport.Height = defaultViewportHeight
	}
	if d.Settings.ZoomLevel == 0 {
		d.Settings.ZoomLevel = 1.0
	}
}

func (d *Document) validate() error {
	if len(d.Workflow) == 0 {
		return fmt.Errorf("workflow contains no steps")
	}
	if d.Settings.ZoomLevel < 0 {
		return fmt.Errorf("settings.zoom_level must not be negative")
	}
	if d.Settings.Pacing < 0 {
		return fmt.Errorf("settings.pacing must not be negative")
	}
	if d.Authentication.Enabled && d.Authentication.ProfilePath == "" {
		return fmt.Errorf("authentication.profile_path is required when authentication is enabled")
	}
	return nil
}

// ProfilePath returns the expanded cookie profile path, or "" when
// authentication is disabled.
func (d *Document) ProfilePath() string {
	if !d.Authentication.Enabled {
		return ""
	}
	expanded, err := homedir.Expand(d.Authentication.ProfilePath)
	if err != nil {
		return d.Authentication.ProfilePath
	}
	return expanded
}
