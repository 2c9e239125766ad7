package router_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"wardline.app/api/internal/http/middleware"
	"wardline.app/api/internal/http/router"
	"wardline.app/api/internal/service"
	"wardline.app/api/internal/store"
)

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) middleware.RateDecision {
	return middleware.RateDecision{Allowed: false, Count: 11, WindowEnd: time.Now().Add(time.Minute)}
}

var _ = Describe("SetupRoutes", func() {
	var engine *gin.Engine

	build := func(limiter middleware.RateLimiter) {
		gin.SetMode(gin.TestMode)
		reg := prometheus.NewRegistry()
		metrics := middleware.NewMetrics(reg)

		// Stores are never reached: every request below stops at a guard.
		services := service.NewServices(service.Deps{
			Stores:   store.NewStores(nil),
			Sessions: service.NewJWTSessions("router-test", time.Hour),
		})

		engine = gin.New()
		engine.Use(metrics.Handler())
		router.SetupRoutes(engine, services, router.RouterConfig{
			RateLimiter: limiter,
			Metrics:     metrics,
			Gatherer:    reg,
			RateLimit:   10,
			RateWindow:  time.Minute,
		})
	}

	serve := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		build(nil)
	})

	It("serves health without authentication", func() {
		w := serve(http.MethodGet, "/health")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"ok"`))
	})

	It("reports readiness per component", func() {
		gin.SetMode(gin.TestMode)
		engine = gin.New()
		router.SetupRoutes(engine, service.NewServices(service.Deps{Stores: store.NewStores(nil)}), router.RouterConfig{
			Checks: map[string]router.HealthCheck{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
		})

		w := serve(http.MethodGet, "/ready")

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(w.Body.String()).To(ContainSubstring(`"degraded"`))
		Expect(w.Body.String()).To(ContainSubstring("connection refused"))
	})

	It("is ready with no failing checks", func() {
		w := serve(http.MethodGet, "/ready")

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("exposes the registered collectors on /metrics", func() {
		serve(http.MethodGet, "/health")

		w := serve(http.MethodGet, "/metrics")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("wardline_api_http_requests_total"))
	})

	DescribeTable("guards member routes with a bearer session",
		func(method, path string) {
			Expect(serve(method, path).Code).To(Equal(http.StatusUnauthorized))
		},
		Entry("current user", http.MethodGet, "/api/v1/auth/me"),
		Entry("my team", http.MethodGet, "/api/v1/teams/me"),
		Entry("team invitations", http.MethodGet, "/api/v1/teams/42/invitations"),
		Entry("invitation accept", http.MethodPost, "/api/v1/invitations/tok/accept"),
		Entry("subscription status", http.MethodGet, "/api/v1/subscriptions/status"),
		Entry("patients", http.MethodGet, "/api/v1/patients"),
	)

	It("rate limits the public auth endpoints", func() {
		build(denyAll{})

		w := serve(http.MethodPost, "/api/v1/auth/login")

		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		Expect(w.Header().Get("Retry-After")).NotTo(BeEmpty())
	})
})
