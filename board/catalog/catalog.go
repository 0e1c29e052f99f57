// ABOUTME: Option catalog: filter wheel entries, frame styles and magic-edit presets loaded from YAML.
// ABOUTME: A default catalog is embedded; deployments can override it with their own file.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/snapboard/board/core"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidCatalog indicates a catalog file failed validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Filter is one entry on the filter wheel. CSS is opaque to the board.
type Filter struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	CSS  string `yaml:"css" json:"css"`
}

// FrameStyle describes how a frame renders.
type FrameStyle struct {
	ID          core.Frame `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Paper       string     `yaml:"paper" json:"paper"`
	Ink         string     `yaml:"ink" json:"ink"`
}

// EditPreset is a named magic-edit instruction.
type EditPreset struct {
	Key    string `yaml:"key" json:"key"`
	Label  string `yaml:"label" json:"label"`
	Model  string `yaml:"model" json:"model,omitempty"`
	Prompt string `yaml:"prompt" json:"prompt"`
}

// Catalog is the full set of user-facing options.
type Catalog struct {
	Filters []Filter     `yaml:"filters" json:"filters"`
	Frames  []FrameStyle `yaml:"frames" json:"frames"`
	Edits   []EditPreset `yaml:"edits" json:"edits"`
}

// Default returns the embedded catalog. It panics if the embedded file is invalid.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, or returns the embedded catalog when path is empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Filters) == 0 {
		return fmt.Errorf("%w: at least one filter is required", ErrInvalidCatalog)
	}
	seen := make(map[string]bool)
	for i, f := range c.Filters {
		if f.ID == "" {
			return fmt.Errorf("%w: filter %d has no id", ErrInvalidCatalog, i)
		}
		if seen[f.ID] {
			return fmt.Errorf("%w: duplicate filter %q", ErrInvalidCatalog, f.ID)
		}
		seen[f.ID] = true
	}
	for _, fr := range c.Frames {
		if !fr.ID.Valid() {
			return fmt.Errorf("%w: unknown frame %q", ErrInvalidCatalog, fr.ID)
		}
	}
	keys := make(map[string]bool)
	for i, e := range c.Edits {
		if e.Key == "" || strings.TrimSpace(e.Prompt) == "" {
			return fmt.Errorf("%w: edit preset %d needs a key and a prompt", ErrInvalidCatalog, i)
		}
		if keys[e.Key] {
			return fmt.Errorf("%w: duplicate edit preset %q", ErrInvalidCatalog, e.Key)
		}
		keys[e.Key] = true
	}
	return nil
}

// Filter looks up a filter by id.
func (c *Catalog) Filter(id string) (Filter, bool) {
	for _, f := range c.Filters {
		if f.ID == id {
			return f, true
		}
	}
	return Filter{}, false
}

// FilterIndex returns the wheel position of a filter, or -1.
func (c *Catalog) FilterIndex(id string) int {
	for i, f := range c.Filters {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Frame looks up a frame style.
func (c *Catalog) Frame(id core.Frame) (FrameStyle, bool) {
	for _, f := range c.Frames {
		if f.ID == id {
			return f, true
		}
	}
	return FrameStyle{}, false
}

// Preset looks up a magic-edit preset by key.
func (c *Catalog) Preset(key string) (EditPreset, bool) {
	for _, e := range c.Edits {
		if e.Key == key {
			return e, true
		}
	}
	return EditPreset{}, false
}
