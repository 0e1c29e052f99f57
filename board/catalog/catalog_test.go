// ABOUTME: Tests for the option catalog loader.
package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/board/core"
)

func TestDefaultCatalog(t *testing.T) {
	c := catalog.Default()
	if len(c.Filters) != 24 {
		t.Errorf("filters = %d, want 24", len(c.Filters))
	}
	if c.Filters[0].ID != "normal" {
		t.Errorf("first filter = %q, want normal", c.Filters[0].ID)
	}
	if c.FilterIndex("xpro-ii") != 23 {
		t.Errorf("FilterIndex(xpro-ii) = %d", c.FilterIndex("xpro-ii"))
	}
	if f, ok := c.Filter("1977"); !ok || f.CSS == "" {
		t.Errorf("filter 1977 = %+v, %v", f, ok)
	}
	for _, fr := range core.Frames {
		if _, ok := c.Frame(fr); !ok {
			t.Errorf("frame %s missing", fr)
		}
	}
	p, ok := c.Preset("sketch")
	if !ok || p.Prompt == "" {
		t.Errorf("sketch preset = %+v", p)
	}
	if _, ok := c.Preset("nope"); ok {
		t.Error("unknown preset found")
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"no filters":       "filters: []\n",
		"duplicate filter": "filters: [{id: a}, {id: a}]\n",
		"bad frame":        "filters: [{id: a}]\nframes: [{id: glitter}]\n",
		"empty prompt":     "filters: [{id: a}]\nedits: [{key: x, prompt: ' '}]\n",
		"not yaml":         "filters: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := catalog.Parse([]byte(doc)); !errors.Is(err, catalog.ErrInvalidCatalog) {
				t.Errorf("err = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	c, err := catalog.LoadOrDefault("")
	if err != nil || len(c.Filters) == 0 {
		t.Fatalf("LoadOrDefault(\"\") = %v, %v", c, err)
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "filters:\n  - {id: mono, name: Mono, css: grayscale(1)}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = catalog.LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault(file): %v", err)
	}
	if len(c.Filters) != 1 || c.Filters[0].ID != "mono" {
		t.Errorf("filters = %+v", c.Filters)
	}
}
