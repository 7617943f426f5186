package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	_ "time/tzdata" // the event zone must load on hosts without zoneinfo

	"github.com/gorilla/mux"

	"github.com/okian/audax/internal/adapters/feed"
	"github.com/okian/audax/internal/adapters/http/api"
	"github.com/okian/audax/internal/adapters/http/swagger"
	app "github.com/okian/audax/internal/app"
	"github.com/okian/audax/internal/config"
	"github.com/okian/audax/internal/domain/progress"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/timefmt"
	"github.com/okian/audax/internal/domain/tracker"
	"github.com/okian/audax/pkg/logger"
	"github.com/okian/audax/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// pkg/metrics exports its own runtime gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts, err := serviceOptions(cfg)
	if err != nil {
		loggerInstance.Error(ctx, "invalid tracking configuration", logger.Error(err))
		return
	}

	svc := app.New(append(opts, app.WithLogger(loggerInstance))...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	router := newRouter(ctx, cfg, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	loggerInstance.Info(ctx, "tracker stopped")
}

// newRouter registers the business API and the API docs.
func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service) *mux.Router {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc, svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithArrivals(cfg.ArrivalsWindowMinutes, cfg.ArrivalsLimit),
	).Register(ctx, r)
	return r
}

// serviceOptions turns the loaded configuration into service options.
func serviceOptions(cfg *config.Config) ([]app.Option, error) {
	var source feed.Source
	if cfg.FeedURL != "" {
		source = feed.NewHTTPSource(cfg.FeedURL, feed.WithTimeout(cfg.FeedTimeout))
	} else {
		source = feed.NewFileSource(cfg.FeedFile)
	}

	routes, err := buildRoutes(cfg)
	if err != nil {
		return nil, err
	}
	times, err := buildNormalizer(cfg)
	if err != nil {
		return nil, err
	}

	return []app.Option{
		app.WithSource(source),
		app.WithCache(cfg.FeedCacheSize, cfg.FeedTTL),
		app.WithRoutes(routes),
		app.WithNormalizer(times),
		app.WithEngineOptions(
			tracker.WithPolicy(progress.Policy{
				GraceMinutes:    cfg.GraceMinutes,
				DefaultSpeedKmh: cfg.DefaultSpeedKmh,
				NextControlCap:  cfg.NextControlCap,
			}),
			tracker.WithStallMinutes(cfg.StallMinutes),
			tracker.WithArrivals(cfg.ArrivalsWindowMinutes, cfg.ArrivalsLimit),
		),
		app.WithQueueSize(cfg.RefreshQueueSize),
		app.WithRefreshInterval(cfg.RefreshInterval()),
		app.WithMaxLimit(cfg.MaxLeaderboardLimit),
	}, nil
}

// buildRoutes uses the route file when configured and lays wave overrides
// over the scheduled starts.
func buildRoutes(cfg *config.Config) (*route.Model, error) {
	var opts []route.Option
	if cfg.RouteFile != "" {
		a, b, err := config.LoadRoutes(cfg.RouteFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, route.WithVariants(a, b))
	}

	overrides, err := cfg.Waves()
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		waves := route.DefaultWaves()
		for code, tod := range overrides {
			waves[code] = tod
		}
		opts = append(opts, route.WithWaves(waves))
	}

	m, err := route.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	return m, nil
}

func buildNormalizer(cfg *config.Config) (*timefmt.Normalizer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []timefmt.Option{
		timefmt.WithLocation(loc),
		timefmt.WithNaiveArithmetic(cfg.NaiveTime),
	}
	date, ok, err := cfg.EventDate()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, timefmt.WithEventStart(date.Year(), date.Month(), date.Day()))
	}
	return timefmt.New(opts...), nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that only change between refreshes.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}

	if riders, ok := stats["riders"].(int); ok {
		metrics.UpdateRepositoryRecordsTotal(riders)
	}
}
