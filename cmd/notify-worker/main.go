package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dentacare/clinic-portal/cmd/mainconfig"
	"github.com/dentacare/clinic-portal/internal/app/bootstrap"
	"github.com/dentacare/clinic-portal/internal/config"
	"github.com/dentacare/clinic-portal/internal/notify"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// notify-worker drains the SQS notification queue and sends patient emails.
func main() {
	mainconfig.LoadEnv(nil)
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.NotifyQueueURL == "" || cfg.UseMemoryQueue {
		logger.Error("notify worker requires NOTIFY_QUEUE_URL and USE_MEMORY_QUEUE=false")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue, err := bootstrap.BuildNotifyQueue(cfg, &awsCfg)
	if err != nil {
		logger.Error("failed to build notify queue", "error", err)
		os.Exit(1)
	}

	worker := notify.NewWorker(queue, bootstrap.BuildMailer(cfg, &awsCfg, logger), logger,
		notify.WithWorkerCount(cfg.WorkerCount),
		notify.WithMetrics(metrics.NewPortalMetrics(prometheus.NewRegistry())),
	)
	worker.Start(ctx)
	logger.Info("notify worker started", "workers", cfg.WorkerCount, "provider", cfg.EmailProvider)

	<-ctx.Done()
	logger.Info("notify worker shutting down")
	worker.Wait()
}
