package render

import (
	"fmt"
	"time"
)

// FormatClock formats a wall-clock time as "h:mm:ss AM|PM" with the hour in
// 1-12 (hour 0 maps to 12) and minutes/seconds zero-padded.
func FormatClock(t time.Time) string {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	suffix := "AM"
	if t.Hour() >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d:%02d %s", h, t.Minute(), t.Second(), suffix)
}
