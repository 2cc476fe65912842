package traffic

import (
	"testing"
	"time"
)

func TestTracker_ErrorRate(t *testing.T) {
	tr := NewTracker()

	tr.RecordSuccess("weather")
	tr.RecordSuccess("weather")
	tr.RecordError("weather")
	tr.RecordError("tasks")

	errs, total := tr.ErrorRate("weather", time.Minute)
	if errs != 1 || total != 3 {
		t.Fatalf("ErrorRate(weather) = (%d, %d), want (1, 3)", errs, total)
	}

	errs, total = tr.ErrorRate("tasks", time.Minute)
	if errs != 1 || total != 1 {
		t.Fatalf("ErrorRate(tasks) = (%d, %d), want (1, 1)", errs, total)
	}

	errs, total = tr.ErrorRate("whoop", time.Minute)
	if errs != 0 || total != 0 {
		t.Fatalf("ErrorRate(whoop) = (%d, %d), want (0, 0)", errs, total)
	}
}

func TestTracker_WindowExcludesOldOutcomes(t *testing.T) {
	tr := NewTracker()
	tr.RecordError("weather")

	time.Sleep(15 * time.Millisecond)

	errs, total := tr.ErrorRate("weather", 5*time.Millisecond)
	if errs != 0 || total != 0 {
		t.Fatalf("ErrorRate with tiny window = (%d, %d), want (0, 0)", errs, total)
	}

	// The outcome is still visible in a wider window.
	errs, _ = tr.ErrorRate("weather", time.Minute)
	if errs != 1 {
		t.Fatalf("ErrorRate with wide window errs = %d, want 1", errs)
	}
}

func TestTracker_DenialCount(t *testing.T) {
	tr := NewTracker()

	tr.RecordDenied()
	tr.RecordDenied()

	if got := tr.DenialCount(time.Minute); got != 2 {
		t.Fatalf("DenialCount() = %d, want 2", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.RecordError("weather")
	tr.RecordDenied()

	tr.Reset()

	if errs, total := tr.ErrorRate("weather", time.Minute); errs != 0 || total != 0 {
		t.Fatalf("ErrorRate after reset = (%d, %d), want (0, 0)", errs, total)
	}
	if got := tr.DenialCount(time.Minute); got != 0 {
		t.Fatalf("DenialCount after reset = %d, want 0", got)
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	Reset()
	defer Reset()

	RecordSuccess("tasks")
	RecordError("tasks")
	RecordDenied()

	if errs, total := ErrorRate("tasks", time.Minute); errs != 1 || total != 2 {
		t.Fatalf("ErrorRate = (%d, %d), want (1, 2)", errs, total)
	}
	if got := DenialCount(time.Minute); got != 1 {
		t.Fatalf("DenialCount = %d, want 1", got)
	}
}
