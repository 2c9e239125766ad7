package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"wardline.app/api/common/logger"
	"wardline.app/api/common/otel"
	"wardline.app/api/core/config"
	"wardline.app/api/internal/notify"
	"wardline.app/api/internal/queue"
	"wardline.app/api/internal/worker"
)

const (
	maxDeliveryAttempts = 5
	shutdownTimeout     = 30 * time.Second
)

func main() {
	fmt.Printf("%s\n", banner)

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(context.Background(), cfg.OTel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "otel: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if telemetry != nil {
		if tErr := telemetry.Shutdown(flushCtx); tErr != nil {
			slog.ErrorContext(flushCtx, "otel shutdown failed", "error", tErr)
		}
	}
	if err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

// run delivers notifications until ctx is cancelled. The delivery loop, the
// reclaimer and the metrics endpoint share one lifetime: if any of them fails
// the others are stopped too.
func run(ctx context.Context, cfg config.Config) error {
	slog.InfoContext(ctx, "wardline worker starting",
		"env", cfg.Env,
		"group", cfg.Redis.Group,
		"consumer", cfg.Redis.Consumer)

	redisClient, err := queue.Dial(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Redis.Stream,
		Group:        cfg.Redis.Group,
		Consumer:     cfg.Redis.Consumer,
		DLQStream:    cfg.Redis.DLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		RequeueDelay: time.Second,
	})
	if err != nil {
		return err
	}

	w := worker.New(consumer, notify.NewDeliverer(mailer(ctx, cfg.SendGrid)), worker.Config{
		MaxAttempts: maxDeliveryAttempts,
	})
	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:      cfg.Redis.Stream,
		Group:       cfg.Redis.Group,
		Consumer:    cfg.Redis.Consumer + "-reclaimer",
		MinIdle:     5 * time.Minute,
		Interval:    time.Minute,
		BatchSize:   10,
		MaxAttempts: maxDeliveryAttempts,
	}, consumer, w.Handle)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		reclaimer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.InfoContext(gctx, "metrics listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("worker draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("worker stopped")
	return err
}

func mailer(ctx context.Context, cfg config.SendGridConfig) notify.Mailer {
	if !cfg.Enabled() {
		slog.WarnContext(ctx, "sendgrid not configured, emails are only logged")
		return notify.LogMailer{}
	}
	return notify.NewSendGridMailer(cfg.APIKey, cfg.FromEmail, cfg.FromName)
}

const banner = `
██╗    ██╗ █████╗ ██████╗ ██████╗ ██╗     ██╗███╗   ██╗███████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██║    ██║██╔══██╗██╔══██╗██╔══██╗██║     ██║████╗  ██║██╔════╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██║ █╗ ██║███████║██████╔╝██║  ██║██║     ██║██╔██╗ ██║█████╗      ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║███╗██║██╔══██║██╔══██╗██║  ██║██║     ██║██║╚██╗██║██╔══╝      ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
╚███╔███╔╝██║  ██║██║  ██║██████╔╝███████╗██║██║ ╚████║███████╗    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
 ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚══════╝╚═╝╚═╝  ╚═══╝╚══════╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
