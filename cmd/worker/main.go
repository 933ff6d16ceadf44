package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clubattendance/internal/attendance"
	"clubattendance/internal/config"
	"clubattendance/internal/logger"
	"clubattendance/internal/metrics"
	"clubattendance/internal/queue"
	"clubattendance/internal/store"
)

// Worker consumes check-in events and maintains the weekly tallies in redis.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	lg, err := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogDir)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Close()

	if cfg.QueueBackend != "redis" {
		lg.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		lg.Warnf("redis at %s not reachable yet, will keep retrying", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	tally := store.NewTally(redisClient.Client)

	metricsSrv := serveMetrics(cfg.WorkerMetricsPort, lg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		lg.Fatalf("queue consume init failed: %v", err)
	}

	lg.Infof("worker started, waiting for messages...")
	for msg := range messages {
		handle(ctx, tally, msg, lg)
	}
	lg.Infof("worker stopped")
}

func handle(ctx context.Context, tally *store.Tally, msg queue.Message, lg *logger.Logger) {
	if msg.Type != attendance.EventCheckIn {
		metrics.WorkerEvents.WithLabelValues("skipped").Inc()
		return
	}
	evt, err := attendance.DecodeEvent(msg.Body)
	if err != nil {
		lg.Warnf("undecodable check-in event: %v", err)
		metrics.WorkerEvents.WithLabelValues("invalid").Inc()
		return
	}
	if err := tally.Record(ctx, evt); err != nil {
		lg.Errorf("tally record %s failed: %v", evt.RecordID, err)
		metrics.WorkerEvents.WithLabelValues("failed").Inc()
		return
	}
	lg.Debugf("record %s tallied for week %d session %s", evt.RecordID, evt.WeekNumber, evt.SessionTime)
	metrics.WorkerEvents.WithLabelValues("tallied").Inc()
}

func serveMetrics(port string, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}
