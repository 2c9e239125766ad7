package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wardline.app/api/internal/http/handler"
	"wardline.app/api/internal/http/middleware"
	"wardline.app/api/internal/service"
)

// HealthCheck reports whether a dependency can serve traffic.
type HealthCheck func(ctx context.Context) error

const readyTimeout = 2 * time.Second

type RouterConfig struct {
	RateLimiter middleware.RateLimiter
	Metrics     *middleware.Metrics
	Gatherer    prometheus.Gatherer
	RateLimit   int
	RateWindow  time.Duration
	// Checks back /ready, keyed by component name.
	Checks map[string]HealthCheck
}

// guards are the middleware chains shared by the route groups.
type guards struct {
	auth      gin.HandlerFunc
	verified  gin.HandlerFunc
	rateLimit gin.HandlerFunc
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", readiness(cfg.Checks))
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authService := services.Auth()
	g := guards{
		auth:      middleware.RequireAuth(authService),
		verified:  middleware.RequireVerified(),
		rateLimit: middleware.RateLimit(cfg.RateLimiter, cfg.Metrics, cfg.RateLimit, cfg.RateWindow),
	}

	v1 := router.Group("/api/v1")
	{
		AuthRouter(v1.Group("/auth"), handler.NewAuthHandler(authService), g)

		invitationHandler := handler.NewInvitationHandler(services.Invitations())
		InvitationRouter(v1.Group("/invitations"), invitationHandler, g)

		teamHandler := handler.NewTeamHandler(services.Teams())
		TeamRouter(v1.Group("/teams"), teamHandler, invitationHandler, g)

		subscriptionHandler := handler.NewSubscriptionHandler(services.Subscriptions(), services.Teams())
		SubscriptionRouter(v1.Group("/subscriptions"), subscriptionHandler, g)
		v1.POST("/webhooks/stripe", subscriptionHandler.Webhook)

		PatientRouter(v1.Group("/patients"), handler.NewPatientHandler(services.Patients()), g)
	}
}

// readiness runs every check and answers 503 with the failing components when
// any of them is down.
func readiness(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		components := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
				components[name] = gin.H{"status": "down", "error": err.Error()}
				continue
			}
			components[name] = gin.H{"status": "up"}
		}
		c.JSON(code, gin.H{"status": status, "components": components})
	}
}
