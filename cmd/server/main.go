package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/config"
	"github.com/arjunmehta-dev/taskforge/internal/coordinator"
	"github.com/arjunmehta-dev/taskforge/internal/health"
	"github.com/arjunmehta-dev/taskforge/internal/httpapi"
	"github.com/arjunmehta-dev/taskforge/internal/httpapi/handler"
	ctxlog "github.com/arjunmehta-dev/taskforge/internal/log"
	"github.com/arjunmehta-dev/taskforge/internal/metrics"
	"github.com/arjunmehta-dev/taskforge/internal/queue"
	"github.com/arjunmehta-dev/taskforge/internal/queue/memqueue"
	"github.com/arjunmehta-dev/taskforge/internal/queue/redisqueue"
	"github.com/arjunmehta-dev/taskforge/internal/stats"
	"github.com/arjunmehta-dev/taskforge/internal/store/postgres"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

// main boots the submission API: it accepts, lists, and introspects
// jobs, but never executes them — execution is cmd/worker's job.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	store := postgres.NewJobStore(pool)

	var fastQueue queue.FastQueue
	if cfg.UseFastQueue {
		fastQueue, err = redisqueue.New(cfg.RedisURL, logger)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer fastQueue.(*redisqueue.Queue).Close()
	} else {
		fastQueue = memqueue.New()
	}

	reclaimEvery := time.Duration(cfg.ReclaimScanIntervalSeconds) * time.Second
	coord := coordinator.New(store, fastQueue, reclaimEvery, logger)

	statsSvc := stats.New(store, fastQueue, logger)

	metrics.Register()
	checker := health.NewChecker(store, fastQueue, logger, prometheus.DefaultRegisterer)

	jobHandler := handler.NewJobHandler(coord, statsSvc, cfg.BulkSubmitCap, logger)
	router := httpapi.NewRouter(logger, jobHandler, cfg.ClerkJWKSURL, []byte(cfg.JWTSecret))

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	healthMux := checker.Mux()
	metricsSrv.Handler = mergeMux(metricsSrv.Handler, healthMux)

	go func() {
		logger.Info("api server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

// mergeMux layers b's routes alongside a's handler, since net/http.Server
// only carries one Handler and the metrics and health endpoints are
// built by two separate packages.
func mergeMux(a, b http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", a)
	mux.Handle("/livez", b)
	mux.Handle("/readyz", b)
	return mux
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
