// ABOUTME: Embedded page assets: html/template pages rendered by TemplateEngine and the static CSS/JS tree.
// ABOUTME: Pages are parsed together with layout.html so the layout wraps every page.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/gallery"
)

//go:embed templates/*.html
var templateFS embed.FS

// staticFS holds the board client. Subdirectories are listed because
// //go:embed static/* does not recurse.
//
//go:embed static/css/*.css static/js/*.js
var staticFS embed.FS

// PageData holds all data passed to templates for rendering.
type PageData struct {
	Title   string
	Catalog *catalog.Catalog
	// Photos feeds the public gallery page.
	Photos      []gallery.Photo
	GalleryOpen bool
}

// TemplateEngine renders embedded HTML pages.
type TemplateEngine struct {
	templates map[string]*template.Template
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"lower": strings.ToLower,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}

// NewTemplateEngine parses all embedded pages.
func NewTemplateEngine() (*TemplateEngine, error) {
	engine := &TemplateEngine{templates: make(map[string]*template.Template)}
	for _, page := range []string{"board.html", "gallery.html"} {
		t, err := template.New("layout.html").Funcs(templateFuncs()).ParseFS(
			templateFS,
			"templates/layout.html",
			"templates/"+page,
		)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		engine.templates[page] = t
	}
	return engine, nil
}

// Render executes the named page into w as text/html.
func (e *TemplateEngine) Render(w http.ResponseWriter, name string, data any) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.RenderTo(w, name, data)
}

// RenderTo executes the named page into an arbitrary writer.
func (e *TemplateEngine) RenderTo(w io.Writer, name string, data any) error {
	t, ok := e.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}
