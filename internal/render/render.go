// Package render builds the dashboard page and its panel fragments from
// panel records.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/dcrowell/homeboard/internal/models"
)

//go:embed templates/index.html
var templatesFS embed.FS

// Fixed icon URL template; the record's code is substituted in.
const iconURLTemplate = "https://openweathermap.org/img/wn/%s@2x.png"

// PageData holds everything the dashboard page shows. A nil slice renders
// that panel empty.
type PageData struct {
	Clock    string
	Forecast []models.ForecastRecord
	People   []models.PersonRecord
	Tasks    []models.TaskRecord
}

// Renderer renders the dashboard page and individual panel fragments.
type Renderer struct {
	page *template.Template
}

// New parses the embedded page template.
func New() (*Renderer, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"iconURL": func(code string) string {
			return fmt.Sprintf(iconURLTemplate, code)
		},
	}).ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{page: page}, nil
}

// Page writes the full dashboard page.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	return r.page.ExecuteTemplate(w, "index.html", data)
}

// Panel writes one panel fragment. name is one of "weather-panel",
// "comparison-panel", "task-panel". Each call writes a complete fragment
// built only from data, so re-rendering replaces rather than appends.
func (r *Renderer) Panel(w io.Writer, name string, data any) error {
	if r.page.Lookup(name) == nil {
		return fmt.Errorf("panel %q not found", name)
	}
	return r.page.ExecuteTemplate(w, name, data)
}
