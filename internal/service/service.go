package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dcrowell/homeboard/internal/cache"
	"github.com/dcrowell/homeboard/internal/models"
	"github.com/dcrowell/homeboard/internal/observability"
	"github.com/dcrowell/homeboard/internal/traffic"
)

// ForecastClient fetches the daily forecast records.
type ForecastClient interface {
	FiveDayForecast(ctx context.Context) ([]models.ForecastRecord, error)
}

// TaskClient fetches the task records.
type TaskClient interface {
	List(ctx context.Context) ([]models.TaskRecord, error)
}

// ScoreClient fetches one person's WHOOP scores for a day.
type ScoreClient interface {
	Recovery(ctx context.Context, day time.Time) (int, error)
	Sleep(ctx context.Context, day time.Time) (int, error)
}

// Person pairs a display name with that person's score client.
type Person struct {
	Name   string
	Client ScoreClient
}

// Dashboard orchestrates panel data retrieval using a cache-aside pattern
// over the three upstream sources.
type Dashboard struct {
	forecast    ForecastClient
	taskClient  TaskClient
	people      []Person
	cache       cache.Cache
	forecastTTL time.Duration
	tasksTTL    time.Duration
	now         func() time.Time
}

// NewDashboard creates a Dashboard. forecastTTL and tasksTTL control how long
// panel payloads are cached; WHOOP scores are cached for the calendar day.
func NewDashboard(forecast ForecastClient, taskClient TaskClient, people []Person, c cache.Cache, forecastTTL, tasksTTL time.Duration) *Dashboard {
	return &Dashboard{
		forecast:    forecast,
		taskClient:  taskClient,
		people:      people,
		cache:       c,
		forecastTTL: forecastTTL,
		tasksTTL:    tasksTTL,
		now:         time.Now,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Forecast returns the weather panel records, cache-aside with the upstream
// forecast API as fallback.
func (d *Dashboard) Forecast(ctx context.Context) ([]models.ForecastRecord, error) {
	var records []models.ForecastRecord
	err := d.cached(ctx, "forecast", "weather", d.forecastTTL, &records, func(ctx context.Context) (any, error) {
		return d.forecast.FiveDayForecast(ctx)
	})
	return records, err
}

// Tasks returns the task panel records, cache-aside with the task server as
// fallback.
func (d *Dashboard) Tasks(ctx context.Context) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	err := d.cached(ctx, "tasks", "tasks", d.tasksTTL, &records, func(ctx context.Context) (any, error) {
		return d.taskClient.List(ctx)
	})
	return records, err
}

// People returns the comparison panel records. Image URLs are built from
// baseURL (scheme://host) and point at the dial routes this service serves.
func (d *Dashboard) People(baseURL string) []models.PersonRecord {
	records := make([]models.PersonRecord, 0, len(d.people))
	for _, p := range d.people {
		lower := strings.ToLower(p.Name)
		records = append(records, models.PersonRecord{
			Name:          p.Name,
			RecoveryImage: fmt.Sprintf("%s/static/img/%s_recovery.svg", baseURL, lower),
			SleepImage:    fmt.Sprintf("%s/static/img/%s_sleep.svg", baseURL, lower),
		})
	}
	return records
}

// Scores returns one person's scores for today. Scores refresh once per
// calendar day: the cache key carries the date, so the first request of a
// new day fetches fresh values.
func (d *Dashboard) Scores(ctx context.Context, name string) (models.Scores, error) {
	person, ok := d.findPerson(name)
	if !ok {
		return models.Scores{}, fmt.Errorf("unknown person: %s", name)
	}

	day := d.now()
	key := fmt.Sprintf("scores:%s:%s", strings.ToLower(person.Name), day.Format("2006-01-02"))
	var scores models.Scores
	err := d.cached(ctx, key, "whoop", 24*time.Hour, &scores, func(ctx context.Context) (any, error) {
		recovery, err := person.Client.Recovery(ctx, day)
		if err != nil {
			return nil, err
		}
		sleep, err := person.Client.Sleep(ctx, day)
		if err != nil {
			return nil, err
		}
		return models.Scores{Name: person.Name, Recovery: recovery, Sleep: sleep}, nil
	})
	return scores, err
}

// RefreshScores fetches today's scores for every configured person. Used by
// the panel warmer so the dials are ready before the first page load.
func (d *Dashboard) RefreshScores(ctx context.Context) error {
	var errs []error
	for _, p := range d.people {
		if _, err := d.Scores(ctx, p.Name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("refresh scores: %v", errs)
	}
	return nil
}

func (d *Dashboard) findPerson(name string) (Person, bool) {
	for _, p := range d.people {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Person{}, false
}

// cached implements the cache-aside pattern shared by all panels: check the
// cache under key, fall back to fetch on miss, store the result with ttl.
// Cache errors are non-fatal; upstream outcomes feed the per-source health
// windows.
func (d *Dashboard) cached(ctx context.Context, key, source string, ttl time.Duration, out any, fetch func(context.Context) (any, error)) error {
	start := time.Now()
	logger := loggerFromContext(ctx)

	raw, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
	} else if ok {
		if err := json.Unmarshal(raw, out); err == nil {
			observability.CacheHitsTotal.WithLabelValues(source).Inc()
			if logger != nil {
				logger.Debug("cache hit", zap.String("key", key), zap.Duration("duration", time.Since(start)))
			}
			return nil
		}
		// A payload that no longer decodes is treated as a miss.
		observability.CacheErrorsTotal.WithLabelValues("get", "decode").Inc()
	}

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("key", key), zap.String("source", source))
	}

	value, fetchErr := fetch(ctx)
	if fetchErr != nil {
		traffic.RecordError(source)
		return fmt.Errorf("fetch %s: %w", key, fetchErr)
	}
	traffic.RecordSuccess(source)

	raw, err = json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}

	if setErr := d.cache.Set(ctx, key, raw, ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		if logger != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	if logger != nil {
		logger.Debug("panel served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return nil
}

// categorizeCacheError returns a stable label for cache error metrics
// (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
