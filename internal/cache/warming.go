package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dcrowell/homeboard/internal/models"
	"github.com/dcrowell/homeboard/internal/observability"
)

// PanelFetcher is implemented by the service layer to populate each panel's
// cache. Declared here to avoid a circular dependency on the service package.
type PanelFetcher interface {
	Forecast(ctx context.Context) ([]models.ForecastRecord, error)
	Tasks(ctx context.Context) ([]models.TaskRecord, error)
	RefreshScores(ctx context.Context) error
}

// PanelWarmer prefetches all panel data so the dashboard renders instantly
// on first page load.
type PanelWarmer struct {
	fetcher PanelFetcher
	logger  *zap.Logger
}

// NewPanelWarmer creates a PanelWarmer that uses the given fetcher and logger.
func NewPanelWarmer(fetcher PanelFetcher, logger *zap.Logger) *PanelWarmer {
	return &PanelWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches all panels concurrently, populating the cache via the fetcher.
// Returns an aggregated error if any panel failed.
func (w *PanelWarmer) Warm(ctx context.Context) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming panels")
	}

	jobs := map[string]func(context.Context) error{
		"forecast": func(ctx context.Context) error {
			_, err := w.fetcher.Forecast(ctx)
			return err
		},
		"tasks": func(ctx context.Context) error {
			_, err := w.fetcher.Tasks(ctx)
			return err
		},
		"scores": w.fetcher.RefreshScores,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(jobs))
	for name, job := range jobs {
		name, job := name, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := job(ctx); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", name, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("panel warming complete", zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("panel warming: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *PanelWarmer) WarmPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.Warm(ctx); err != nil && w.logger != nil {
		w.logger.Warn("initial panel warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx); err != nil && w.logger != nil {
				w.logger.Warn("periodic panel warm failed", zap.Error(err))
			}
		}
	}
}
