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
	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/executor"
	"github.com/arjunmehta-dev/taskforge/internal/handlers"
	"github.com/arjunmehta-dev/taskforge/internal/health"
	ctxlog "github.com/arjunmehta-dev/taskforge/internal/log"
	"github.com/arjunmehta-dev/taskforge/internal/metrics"
	"github.com/arjunmehta-dev/taskforge/internal/queue"
	"github.com/arjunmehta-dev/taskforge/internal/queue/memqueue"
	"github.com/arjunmehta-dev/taskforge/internal/queue/redisqueue"
	"github.com/arjunmehta-dev/taskforge/internal/registry"
	"github.com/arjunmehta-dev/taskforge/internal/stats"
	"github.com/arjunmehta-dev/taskforge/internal/store/postgres"
	"github.com/arjunmehta-dev/taskforge/internal/workerpool"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

// main boots the execution side of the engine: a pool of workers that
// poll the coordinator, run jobs through the registry, and persist
// outcomes, plus the coordinator's reclaim scan and the stats gauge
// refresh loop, both of which are this process's responsibility alone.
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
	coord.OnReclaimRescued(func(n int) {
		metrics.ReclaimScanRescuedTotal.Add(float64(n))
	})

	reg := registry.New()
	handlers.RegisterAll(reg)

	jobTimeout := time.Duration(cfg.JobTimeoutSeconds) * time.Second
	exec := executor.New(reg, jobTimeout, cfg.RetryBackoffBase, logger)

	pollInterval := time.Duration(cfg.PollIntervalSeconds * float64(time.Second))
	shutdownGrace := time.Duration(cfg.ShutdownGraceSeconds) * time.Second
	workers := workerpool.New(coord, exec, store, fastQueue, cfg.MaxWorkers, pollInterval, shutdownGrace, logger)
	workers.OnJobComplete(func(outcome domain.Outcome, duration time.Duration) {
		label := "retrying"
		switch {
		case outcome.Success:
			label = "succeeded"
		case outcome.Next == domain.NextTerminal:
			label = "failed"
		}
		metrics.JobsCompletedTotal.WithLabelValues(label).Inc()
		metrics.JobExecutionDuration.WithLabelValues(label).Observe(duration.Seconds())
	})

	statsSvc := stats.New(store, fastQueue, logger)
	statsSvc.OnQueueDepthRefresh(func(depth stats.QueueDepth) {
		metrics.QueueDepth.WithLabelValues("fast").Set(float64(depth.Fast))
		metrics.QueueDepth.WithLabelValues("durable").Set(float64(depth.DurableReady))
	})

	metrics.Register()
	checker := health.NewChecker(store, fastQueue, logger, prometheus.DefaultRegisterer)

	go coord.RunReclaimScan(ctx)
	go statsSvc.RunGaugeRefresh(ctx, 15*time.Second)

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	healthMux := checker.Mux()
	metricsSrv.Handler = mergeMux(metricsSrv.Handler, healthMux)

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	logger.Info("worker pool started", "max_workers", cfg.MaxWorkers)

	// Run blocks until ctx is cancelled and every in-flight execution has
	// either completed or been force-cancelled past shutdownGrace.
	workers.Run(ctx)
	stop()
	logger.Info("workers drained, shutting down metrics server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("worker process shut down")
}

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
