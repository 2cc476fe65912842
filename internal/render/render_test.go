package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dcrowell/homeboard/internal/models"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

// TestRenderer_WeatherPanel verifies that N records produce exactly N blocks
// in input order, each carrying the record's date, description, and an icon
// URL containing the record's code.
func TestRenderer_WeatherPanel(t *testing.T) {
	r := newTestRenderer(t)

	records := []models.ForecastRecord{
		{Date: "Monday", Description: "Light Rain", IconCode: "10d", LowTemp: "41°F", HighTemp: "52°F"},
		{Date: "Tuesday", Description: "Clear Sky", IconCode: "01d", LowTemp: "38°F", HighTemp: "55°F"},
		{Date: "Wednesday", Description: "Snow", IconCode: "13d", LowTemp: "28°F", HighTemp: "33°F"},
	}

	var buf bytes.Buffer
	if err := r.Panel(&buf, "weather-panel", records); err != nil {
		t.Fatalf("Panel() error = %v", err)
	}
	out := buf.String()

	if got := strings.Count(out, `class="forecast-day"`); got != len(records) {
		t.Fatalf("rendered %d forecast blocks, want %d", got, len(records))
	}

	for _, rec := range records {
		if !strings.Contains(out, rec.Date) {
			t.Errorf("output missing date %q", rec.Date)
		}
		if !strings.Contains(out, rec.Description) {
			t.Errorf("output missing description %q", rec.Description)
		}
		if !strings.Contains(out, "https://openweathermap.org/img/wn/"+rec.IconCode+"@2x.png") {
			t.Errorf("output missing icon URL for code %q", rec.IconCode)
		}
	}

	// Input order is preserved.
	if strings.Index(out, "Monday") > strings.Index(out, "Tuesday") ||
		strings.Index(out, "Tuesday") > strings.Index(out, "Wednesday") {
		t.Error("forecast blocks out of input order")
	}
}

// TestRenderer_ComparisonPanel verifies one block per person with the name
// and both image URLs passed through unmodified.
func TestRenderer_ComparisonPanel(t *testing.T) {
	r := newTestRenderer(t)

	records := []models.PersonRecord{
		{Name: "Drew", RecoveryImage: "http://display.local/static/img/drew_recovery.svg", SleepImage: "http://display.local/static/img/drew_sleep.svg"},
		{Name: "Sam", RecoveryImage: "http://display.local/static/img/sam_recovery.svg", SleepImage: "http://display.local/static/img/sam_sleep.svg"},
	}

	var buf bytes.Buffer
	if err := r.Panel(&buf, "comparison-panel", records); err != nil {
		t.Fatalf("Panel() error = %v", err)
	}
	out := buf.String()

	if got := strings.Count(out, `class="person"`); got != len(records) {
		t.Fatalf("rendered %d person blocks, want %d", got, len(records))
	}
	for _, rec := range records {
		if !strings.Contains(out, rec.Name) {
			t.Errorf("output missing name %q", rec.Name)
		}
		if !strings.Contains(out, rec.RecoveryImage) {
			t.Errorf("output missing recovery image URL %q", rec.RecoveryImage)
		}
		if !strings.Contains(out, rec.SleepImage) {
			t.Errorf("output missing sleep image URL %q", rec.SleepImage)
		}
	}
}

// TestRenderer_TaskPanel verifies a single ordered list with one entry per
// record in input order.
func TestRenderer_TaskPanel(t *testing.T) {
	r := newTestRenderer(t)

	records := []models.TaskRecord{
		{Date: "March 01, 2025", Task: "Water the plants"},
		{Date: "March 03, 2025", Task: "Change air filter"},
	}

	var buf bytes.Buffer
	if err := r.Panel(&buf, "task-panel", records); err != nil {
		t.Fatalf("Panel() error = %v", err)
	}
	out := buf.String()

	if got := strings.Count(out, "<ol"); got != 1 {
		t.Fatalf("rendered %d ordered lists, want 1", got)
	}
	if got := strings.Count(out, "<li>"); got != len(records) {
		t.Fatalf("rendered %d list entries, want %d", got, len(records))
	}
	if strings.Index(out, "Water the plants") > strings.Index(out, "Change air filter") {
		t.Error("task entries out of input order")
	}
}

// TestRenderer_PanelReplacesPreviousContent verifies re-rendering with a new
// data set produces only the new content, never appending to the old.
func TestRenderer_PanelReplacesPreviousContent(t *testing.T) {
	r := newTestRenderer(t)

	first := []models.TaskRecord{{Date: "March 01, 2025", Task: "Old task"}}
	second := []models.TaskRecord{{Date: "March 02, 2025", Task: "New task"}}

	var buf bytes.Buffer
	if err := r.Panel(&buf, "task-panel", first); err != nil {
		t.Fatalf("Panel() error = %v", err)
	}

	buf.Reset()
	if err := r.Panel(&buf, "task-panel", second); err != nil {
		t.Fatalf("Panel() error = %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "Old task") {
		t.Error("re-render kept stale content")
	}
	if !strings.Contains(out, "New task") {
		t.Error("re-render missing new content")
	}
}

// TestRenderer_EmptyPanels verifies nil data renders an empty panel without error.
func TestRenderer_EmptyPanels(t *testing.T) {
	r := newTestRenderer(t)

	for _, name := range []string{"weather-panel", "comparison-panel", "task-panel"} {
		var buf bytes.Buffer
		if err := r.Panel(&buf, name, nil); err != nil {
			t.Errorf("Panel(%q, nil) error = %v", name, err)
		}
	}
}

// TestRenderer_UnknownPanel verifies an unknown fragment name errors.
func TestRenderer_UnknownPanel(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	if err := r.Panel(&buf, "nope-panel", nil); err == nil {
		t.Fatal("Panel() error = nil, want error")
	}
}

// TestRenderer_Page verifies the full page contains the clock and all four
// DOM anchors the panels mount on.
func TestRenderer_Page(t *testing.T) {
	r := newTestRenderer(t)

	data := PageData{
		Clock:    "9:05:07 AM",
		Forecast: []models.ForecastRecord{{Date: "Monday", Description: "Clear Sky", IconCode: "01d", LowTemp: "38°F", HighTemp: "55°F"}},
		People:   []models.PersonRecord{{Name: "Drew", RecoveryImage: "http://h/static/img/drew_recovery.svg", SleepImage: "http://h/static/img/drew_sleep.svg"}},
		Tasks:    []models.TaskRecord{{Date: "March 01, 2025", Task: "Water the plants"}},
	}

	var buf bytes.Buffer
	if err := r.Page(&buf, data); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`id="clockDisplay"`,
		`id="weatherForecast"`,
		`class="comparison-grid"`,
		`class="task-grid"`,
		"9:05:07 AM",
		"Monday",
		"Drew",
		"Water the plants",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
}
