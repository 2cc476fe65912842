package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dcrowell/homeboard/internal/breaker"
	"github.com/dcrowell/homeboard/internal/cache"
	"github.com/dcrowell/homeboard/internal/config"
	httphandler "github.com/dcrowell/homeboard/internal/http"
	"github.com/dcrowell/homeboard/internal/lifecycle"
	"github.com/dcrowell/homeboard/internal/observability"
	"github.com/dcrowell/homeboard/internal/render"
	"github.com/dcrowell/homeboard/internal/service"
	"github.com/dcrowell/homeboard/internal/tasks"
	"github.com/dcrowell/homeboard/internal/upstream"
	"github.com/dcrowell/homeboard/internal/weather"
	"github.com/dcrowell/homeboard/internal/whoop"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	newCaller := func(source string, timeout time.Duration) *upstream.Caller {
		caller := upstream.NewCaller(source, timeout, cfg.RetryAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
		if cfg.BreakerEnabled {
			caller.SetBreaker(breaker.New(breaker.Config{
				FailureThreshold: cfg.BreakerFailureThreshold,
				SuccessThreshold: cfg.BreakerSuccessThreshold,
				Timeout:          cfg.BreakerTimeout,
				Source:           source,
				OnStateChange: func(from, to breaker.State) {
					observability.RecordBreakerTransition(source, from.String(), to.String(), int(to))
				},
			}))
			observability.BreakerStateGauge.WithLabelValues(source).Set(0)
		}
		return caller
	}

	weatherClient, err := weather.New(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherZIP, newCaller("weather", cfg.WeatherAPITimeout))
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	taskClient := tasks.New(cfg.TasksURL, cfg.TaskLimit, newCaller("tasks", cfg.TasksTimeout))

	whoopCaller := newCaller("whoop", cfg.WhoopAPITimeout)
	people := make([]service.Person, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		client, err := whoop.New(cfg.WhoopAPIURL, u.Username, u.Password, whoopCaller)
		if err != nil {
			logger.Fatal("whoop client", zap.String("user", u.Name), zap.Error(err))
		}
		people = append(people, service.Person{Name: u.Name, Client: client})
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	dashboard := service.NewDashboard(weatherClient, taskClient, people, cacheSvc, cfg.ForecastTTL, cfg.TasksTTL)

	renderer, err := render.New()
	if err != nil {
		logger.Fatal("renderer", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		StartTime:        time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	handler := httphandler.NewHandler(dashboard, renderer, healthConfig, logger)

	warmCancel := func() {}
	if cfg.WarmPanels {
		warmer := cache.NewPanelWarmer(dashboard, logger)
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx); err != nil {
			logger.Warn("panel warming failed", zap.Error(err))
		}
		cancel()
		if cfg.WarmInterval > 0 {
			var periodicCtx context.Context
			periodicCtx, warmCancel = context.WithCancel(context.Background())
			go func() {
				if err := warmer.WarmPeriodic(periodicCtx, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic panel warming stopped", zap.Error(err))
				}
			}()
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	pageRouter := router.NewRoute().Subrouter()
	pageRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	pageRouter.HandleFunc("/", handler.GetIndex).Methods("GET")
	pageRouter.HandleFunc("/static/img/{name}_{metric}.svg", handler.GetDial).Methods("GET")

	panelRouter := router.NewRoute().Subrouter()
	panelRouter.Use(httphandler.RateLimitMiddleware(limiter))
	panelRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	panelRouter.HandleFunc("/weather", handler.GetWeather).Methods("GET")
	panelRouter.HandleFunc("/comparison", handler.GetComparison).Methods("GET")
	panelRouter.HandleFunc("/tasks", handler.GetTasks).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	warmCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
