// Package traffic keeps sliding windows of upstream call outcomes per data
// source. The health endpoint reads these windows to report per-source status.
package traffic

import (
	"sync"
	"time"
)

// Outcomes older than this are pruned on every write.
const maxAge = 10 * time.Minute

var defaultTracker = NewTracker()

// RecordSuccess records a successful upstream call for the source.
func RecordSuccess(source string) {
	defaultTracker.RecordSuccess(source)
}

// RecordError records a failed upstream call for the source.
func RecordError(source string) {
	defaultTracker.RecordError(source)
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// ErrorRate returns (errorCount, totalCount) for the source within the window.
func ErrorRate(source string, window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(source, window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains per-source sliding windows of outcome timestamps.
type Tracker struct {
	mu        sync.Mutex
	successes map[string][]time.Time
	errors    map[string][]time.Time
	denied    []time.Time
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		successes: make(map[string][]time.Time),
		errors:    make(map[string][]time.Time),
	}
}

// RecordSuccess records a successful outcome for the source.
func (t *Tracker) RecordSuccess(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.successes[source] = appendPruned(t.successes[source], now)
	t.errors[source] = pruned(t.errors[source], now)
}

// RecordError records a failed outcome for the source.
func (t *Tracker) RecordError(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.errors[source] = appendPruned(t.errors[source], now)
	t.successes[source] = pruned(t.successes[source], now)
}

// RecordDenied records a rate-limit denial.
func (t *Tracker) RecordDenied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.denied = appendPruned(t.denied, time.Now())
}

// ErrorRate returns (errorCount, totalCount) for the source within the window.
func (t *Tracker) ErrorRate(source string, window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	errCount := countSince(t.errors[source], cutoff)
	okCount := countSince(t.successes[source], cutoff)
	return errCount, errCount + okCount
}

// DenialCount returns the number of denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denied, time.Now().Add(-window))
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes = make(map[string][]time.Time)
	t.errors = make(map[string][]time.Time)
	t.denied = nil
}

func appendPruned(times []time.Time, now time.Time) []time.Time {
	return append(pruned(times, now), now)
}

func pruned(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-maxAge)
	i := 0
	for ; i < len(times) && times[i].Before(cutoff); i++ {
	}
	if i == 0 {
		return times
	}
	return append(times[:0], times[i:]...)
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}
