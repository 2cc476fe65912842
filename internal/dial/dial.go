// Package dial renders the circular progress dials shown on the comparison
// grid as standalone SVG documents.
package dial

import (
	"fmt"
	"strings"
)

// Gradient endpoints: red below the midpoint, yellow-to-green above it.
const (
	startColor = "#FF0000"
	crossColor = "#FFFF00"
	finalColor = "#06B025"
)

// Metric midpoints: the score at which the dial turns from red toward green.
const (
	MidpointRecovery = 33
	MidpointSleep    = 70
)

const (
	size        = 200
	radius      = 80
	strokeWidth = 20
)

// Render returns an SVG progress dial for the given percentage value.
// The arc length is proportional to the value, the center shows the integer
// percentage, and the title is drawn beneath the dial.
func Render(title string, value, midpoint int) []byte {
	value = clamp(value)
	color := Color(value, midpoint)

	circumference := 2 * 3.14159265 * float64(radius)
	arc := circumference * float64(value) / 100

	cx, cy := size/2, size/2

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, size, size+20, size, size+20)
	fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="none" stroke="#EEEEEE" stroke-width="%d"/>`, cx, cy, radius, strokeWidth)
	// Rotate so the arc starts at 12 o'clock, like a watch face.
	fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="none" stroke="%s" stroke-width="%d" stroke-linecap="round" stroke-dasharray="%.2f %.2f" transform="rotate(-90 %d %d)"/>`,
		cx, cy, radius, color, strokeWidth, arc, circumference-arc, cx, cy)
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" dominant-baseline="central" font-size="40" fill="#222222">%d%%</text>`, cx, cy, value)
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" font-size="24" fill="#222222">%s</text>`, cx, size+14, title)
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// Color returns the dial color for a value against its midpoint. Values at
// or below the midpoint are solid red; above it the color blends linearly
// from yellow to green as the value approaches 100.
func Color(value, midpoint int) string {
	value = clamp(value)
	if midpoint >= 100 {
		midpoint = 99
	}
	if value <= midpoint {
		return startColor
	}
	fraction := float64(value-midpoint) / float64(100-midpoint)
	return blend(crossColor, finalColor, fraction)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// blend linearly interpolates between two #RRGGBB colors.
func blend(from, to string, fraction float64) string {
	fr, fg, fb := splitHex(from)
	tr, tg, tb := splitHex(to)
	mix := func(a, b int) int {
		return a + int(fraction*float64(b-a))
	}
	return fmt.Sprintf("#%02X%02X%02X", mix(fr, tr), mix(fg, tg), mix(fb, tb))
}

func splitHex(hex string) (r, g, b int) {
	fmt.Sscanf(strings.TrimPrefix(hex, "#"), "%02x%02x%02x", &r, &g, &b)
	return r, g, b
}
