package render

import (
	"testing"
	"time"
)

// TestFormatClock verifies 12-hour conversion, AM/PM suffix selection, and
// zero-padding of minutes and seconds.
func TestFormatClock(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "midnight maps to 12 AM",
			in:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			want: "12:00:00 AM",
		},
		{
			name: "noon maps to 12 PM",
			in:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			want: "12:00:00 PM",
		},
		{
			name: "morning single digit hour",
			in:   time.Date(2025, 3, 1, 9, 5, 7, 0, time.UTC),
			want: "9:05:07 AM",
		},
		{
			name: "afternoon wraps past twelve",
			in:   time.Date(2025, 3, 1, 13, 30, 45, 0, time.UTC),
			want: "1:30:45 PM",
		},
		{
			name: "last second of the day",
			in:   time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC),
			want: "11:59:59 PM",
		},
		{
			name: "eleven AM stays eleven",
			in:   time.Date(2025, 3, 1, 11, 1, 2, 0, time.UTC),
			want: "11:01:02 AM",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatClock(tc.in)
			if got != tc.want {
				t.Fatalf("FormatClock(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
