package weather

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/dcrowell/homeboard/internal/models"
)

// The upstream forecast is 5 days of 3-hour intervals, 8 intervals per day.
const (
	intervalsPerDay = 8
	forecastDays    = 5
)

// Interval is one 3-hour forecast slot.
type Interval struct {
	Time        time.Time
	Description string
	Icon        string
	Low         float64
	High        float64
}

// Summarize reduces 3-hour intervals into one record per completed day, in
// input order. Each day's record carries the weekday name of the day's last
// interval, the midday description title-cased, the day's temperature
// extremes rounded with a °F suffix, and the icon code of the day's last
// interval. Partial trailing days (fewer than 8 intervals) are dropped.
func Summarize(intervals []Interval) []models.ForecastRecord {
	limit := forecastDays * intervalsPerDay
	if len(intervals) < limit {
		limit = len(intervals)
	}

	records := make([]models.ForecastRecord, 0, forecastDays)
	lo, hi := math.Inf(1), math.Inf(-1)
	var descriptions []string

	for i := 0; i < limit; i++ {
		iv := intervals[i]
		if iv.Low < lo {
			lo = iv.Low
		}
		if iv.High > hi {
			hi = iv.High
		}
		descriptions = append(descriptions, iv.Description)

		if (i+1)%intervalsPerDay != 0 {
			continue
		}

		// Index 4 is the middle of the day's 8 slots.
		midday := descriptions[4]
		records = append(records, models.ForecastRecord{
			Date:        iv.Time.Weekday().String(),
			Description: titleCase(midday),
			IconCode:    iv.Icon,
			LowTemp:     fmt.Sprintf("%d°F", int(math.Round(lo))),
			HighTemp:    fmt.Sprintf("%d°F", int(math.Round(hi))),
		})

		lo, hi = math.Inf(1), math.Inf(-1)
		descriptions = descriptions[:0]
	}

	return records
}

// titleCase upper-cases the first letter of each space-separated word,
// matching how the descriptions are displayed on the dashboard
// ("light rain" -> "Light Rain").
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
