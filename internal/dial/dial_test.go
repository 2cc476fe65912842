package dial

import (
	"strings"
	"testing"
)

func TestColor(t *testing.T) {
	tests := []struct {
		name     string
		value    int
		midpoint int
		want     string
	}{
		{name: "zero is red", value: 0, midpoint: MidpointRecovery, want: "#FF0000"},
		{name: "at midpoint is red", value: 33, midpoint: MidpointRecovery, want: "#FF0000"},
		{name: "full score is green", value: 100, midpoint: MidpointRecovery, want: "#06B025"},
		{name: "sleep below midpoint is red", value: 69, midpoint: MidpointSleep, want: "#FF0000"},
		{name: "sleep full score is green", value: 100, midpoint: MidpointSleep, want: "#06B025"},
		{name: "clamped above 100 is green", value: 140, midpoint: MidpointRecovery, want: "#06B025"},
		{name: "clamped below 0 is red", value: -5, midpoint: MidpointRecovery, want: "#FF0000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Color(tc.value, tc.midpoint); got != tc.want {
				t.Fatalf("Color(%d, %d) = %q, want %q", tc.value, tc.midpoint, got, tc.want)
			}
		})
	}
}

func TestColor_BlendsAboveMidpoint(t *testing.T) {
	// Just above the midpoint the dial should be near yellow, not red
	// and not yet green.
	got := Color(MidpointSleep+1, MidpointSleep)
	if got == "#FF0000" || got == "#06B025" {
		t.Fatalf("Color just above midpoint = %q, want a blend", got)
	}
	if !strings.HasPrefix(got, "#") || len(got) != 7 {
		t.Fatalf("Color returned malformed hex %q", got)
	}
}

func TestColor_MonotonicGreenChannel(t *testing.T) {
	// The red channel should fall as the value climbs from the midpoint
	// toward 100 (yellow FFxx00 fading toward green 06xx25).
	prev := 256
	for v := MidpointRecovery + 1; v <= 100; v += 10 {
		r, _, _ := splitHex(Color(v, MidpointRecovery))
		if r > prev {
			t.Fatalf("red channel rose from %d to %d at value %d", prev, r, v)
		}
		prev = r
	}
}

func TestRender(t *testing.T) {
	svg := string(Render("Recovery", 85, MidpointRecovery))

	for _, want := range []string{
		"<svg",
		"</svg>",
		">85%<",
		">Recovery<",
		"stroke-dasharray",
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
}

func TestRender_ClampsValue(t *testing.T) {
	svg := string(Render("Sleep", 150, MidpointSleep))
	if !strings.Contains(svg, ">100%<") {
		t.Error("SVG did not clamp value to 100")
	}

	svg = string(Render("Sleep", -10, MidpointSleep))
	if !strings.Contains(svg, ">0%<") {
		t.Error("SVG did not clamp value to 0")
	}
}

func TestRender_ZeroArcIsEmpty(t *testing.T) {
	svg := string(Render("Recovery", 0, MidpointRecovery))
	if !strings.Contains(svg, `stroke-dasharray="0.00`) {
		t.Error("zero value should render an empty arc")
	}
}
