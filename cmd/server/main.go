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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"wardline.app/api/common/id"
	"wardline.app/api/common/logger"
	"wardline.app/api/common/otel"
	"wardline.app/api/core/config"
	"wardline.app/api/core/db"
	"wardline.app/api/internal/billing"
	"wardline.app/api/internal/http/middleware"
	httprouter "wardline.app/api/internal/http/router"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/notify"
	"wardline.app/api/internal/queue"
	"wardline.app/api/internal/service"
	"wardline.app/api/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Printf("%s\n", banner)

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// The OTel log bridge has to exist before logger.Setup picks a handler.
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
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg config.Config) error {
	slog.InfoContext(ctx, "wardline api starting",
		"env", cfg.Env,
		"node_id", cfg.NodeID,
		"otel", cfg.OTel.Enabled())

	if err := id.Init(cfg.NodeID); err != nil {
		return err
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := prometheus.Register(database.PoolCollector()); err != nil {
		slog.WarnContext(ctx, "db pool metrics not registered", "error", err)
	}

	redisClient, err := queue.Dial(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	services := service.NewServices(service.Deps{
		Stores:    store.NewStores(database.Conn()),
		TxRunner:  service.NewTxRunner(database),
		Notifier:  notify.NewQueueNotifier(queue.NewRedisProducer(redisClient, queue.ProducerConfig{Stream: cfg.Redis.Stream, MaxLen: cfg.Redis.StreamMaxLen})),
		Passwords: service.NewBcryptHasher(cfg.Auth.BcryptCost),
		Sessions:  service.NewJWTSessions(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
		Billing:   billingGateway(ctx, cfg.Stripe),
		BillingURLs: service.BillingURLs{
			CheckoutSuccess: cfg.FrontendURL + "/teams/setup",
			CheckoutCancel:  cfg.FrontendURL + "/subscription/checkout?cancelled=true",
			PortalReturn:    cfg.Stripe.PortalReturnTo,
		},
		FrontendURL: cfg.FrontendURL,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: setupRouter(cfg, services, middleware.NewRedisRateLimiter(redisClient), map[string]httprouter.HealthCheck{
			"database": database.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "port", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("draining http server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("api stopped")
	return nil
}

// billingGateway returns nil when Stripe is not configured; billing routes then
// answer 503.
func billingGateway(ctx context.Context, cfg config.StripeConfig) billing.Gateway {
	if !cfg.Enabled() {
		slog.WarnContext(ctx, "stripe not configured, billing disabled")
		return nil
	}
	return billing.NewStripeGateway(billing.StripeConfig{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
		Prices: map[model.SubscriptionPlan]string{
			model.SubscriptionPlanBasic:   cfg.PriceBasic,
			model.SubscriptionPlanPremium: cfg.PricePremium,
		},
	})
}

func setupRouter(cfg config.Config, services *service.Services, limiter middleware.RateLimiter, checks map[string]httprouter.HealthCheck) *gin.Engine {
	router := gin.New()
	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)

	// The span must exist before the access logger runs, and the logger sits
	// outside Recovery so panics still get an access line.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Logger(), middleware.Recovery(), metrics.Handler())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		RateLimiter: limiter,
		Metrics:     metrics,
		Gatherer:    prometheus.DefaultGatherer,
		RateLimit:   cfg.RateLimit.Requests,
		RateWindow:  cfg.RateLimit.Window,
		Checks:      checks,
	})
	return router
}

const banner = `
██╗    ██╗ █████╗ ██████╗ ██████╗ ██╗     ██╗███╗   ██╗███████╗     █████╗ ██████╗ ██╗
██║    ██║██╔══██╗██╔══██╗██╔══██╗██║     ██║████╗  ██║██╔════╝    ██╔══██╗██╔══██╗██║
██║ █╗ ██║███████║██████╔╝██║  ██║██║     ██║██╔██╗ ██║█████╗      ███████║██████╔╝██║
██║███╗██║██╔══██║██╔══██╗██║  ██║██║     ██║██║╚██╗██║██╔══╝      ██╔══██║██╔═══╝ ██║
╚███╔███╔╝██║  ██║██║  ██║██████╔╝███████╗██║██║ ╚████║███████╗    ██║  ██║██║     ██║
 ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚══════╝╚═╝╚═╝  ╚═══╝╚══════╝    ╚═╝  ╚═╝╚═╝     ╚═╝
`
