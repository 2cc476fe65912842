package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dcrowell/homeboard/internal/models"
)

type fakeFetcher struct {
	forecastCalls atomic.Int32
	tasksCalls    atomic.Int32
	scoresCalls   atomic.Int32
	forecastErr   error
	tasksErr      error
	scoresErr     error
}

func (f *fakeFetcher) Forecast(context.Context) ([]models.ForecastRecord, error) {
	f.forecastCalls.Add(1)
	return nil, f.forecastErr
}

func (f *fakeFetcher) Tasks(context.Context) ([]models.TaskRecord, error) {
	f.tasksCalls.Add(1)
	return nil, f.tasksErr
}

func (f *fakeFetcher) RefreshScores(context.Context) error {
	f.scoresCalls.Add(1)
	return f.scoresErr
}

func TestWarm_FetchesAllPanels(t *testing.T) {
	fetcher := &fakeFetcher{}
	warmer := NewPanelWarmer(fetcher, nil)

	if err := warmer.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if n := fetcher.forecastCalls.Load(); n != 1 {
		t.Errorf("forecast calls = %d, want 1", n)
	}
	if n := fetcher.tasksCalls.Load(); n != 1 {
		t.Errorf("tasks calls = %d, want 1", n)
	}
	if n := fetcher.scoresCalls.Load(); n != 1 {
		t.Errorf("scores calls = %d, want 1", n)
	}
}

func TestWarm_AggregatesErrors(t *testing.T) {
	fetcher := &fakeFetcher{
		tasksErr:  errors.New("task server down"),
		scoresErr: errors.New("whoop down"),
	}
	warmer := NewPanelWarmer(fetcher, nil)

	err := warmer.Warm(context.Background())
	if err == nil {
		t.Fatal("Warm() error = nil, want aggregated error")
	}
	if !strings.Contains(err.Error(), "tasks") {
		t.Errorf("error %q missing tasks failure", err)
	}
	if !strings.Contains(err.Error(), "scores") {
		t.Errorf("error %q missing scores failure", err)
	}
	// The healthy panel still warms.
	if n := fetcher.forecastCalls.Load(); n != 1 {
		t.Errorf("forecast calls = %d, want 1", n)
	}
}

func TestWarmPeriodic_StopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{}
	warmer := NewPanelWarmer(fetcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- warmer.WarmPeriodic(ctx, 5*time.Millisecond)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("WarmPeriodic() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WarmPeriodic() did not stop after cancel")
	}

	if n := fetcher.forecastCalls.Load(); n < 2 {
		t.Errorf("forecast calls = %d, want at least initial warm plus one tick", n)
	}
}
