package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/internal/billing"
	"wardline.app/api/internal/http/handler"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

var _ = Describe("SubscriptionHandler", func() {
	var (
		router *gin.Engine
		subs   *mockSubscriptionService
		teams  *mockTeamService
		actor  *model.User
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		subs = &mockSubscriptionService{}
		teams = &mockTeamService{}
		actor = &model.User{ID: 10, EmailVerified: true}
		h := handler.NewSubscriptionHandler(subs, teams)

		router = gin.New()
		router.POST("/webhooks/stripe", h.Webhook)
		rg := router.Group("/subscriptions", func(c *gin.Context) { as(actor)(c) })
		rg.POST("/checkout", h.Checkout)
		rg.GET("/status", h.Status)
		rg.POST("/downgrade", h.Downgrade)
	})

	It("returns the checkout url", func() {
		subs.checkoutFn = func(_ context.Context, _ *model.User, plan model.SubscriptionPlan) (*billing.CheckoutSession, error) {
			Expect(plan).To(Equal(model.SubscriptionPlanPremium))
			return &billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/subscriptions/checkout", strings.NewReader(`{"plan":"premium"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("https://checkout.test/cs_1"))
	})

	It("returns 409 when the downgrade would strand members", func() {
		req := httptest.NewRequest(http.MethodPost, "/subscriptions/downgrade", nil)
		subs.downgradeFn = func(context.Context, *model.User) (*model.Team, error) {
			return nil, service.ErrTooManyForDowngrade
		}
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("includes the member count in the status", func() {
		subs.statusFn = func(context.Context, *model.User) (*service.SubscriptionOverview, error) {
			days := 3
			return &service.SubscriptionOverview{HasTeam: true, Team: &model.Team{ID: 42}, DaysRemaining: &days}, nil
		}
		teams.listMembersFn = func(context.Context, *model.User, int64) ([]model.User, error) {
			return []model.User{{ID: 1}, {ID: 2}}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/subscriptions/status", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"member_count":2`))
		Expect(w.Body.String()).To(ContainSubstring(`"days_remaining":3`))
	})

	Describe("Webhook", func() {
		It("hands the raw body and signature to the service", func() {
			subs.handleWebhookFn = func(_ context.Context, payload []byte, signature string) error {
				Expect(string(payload)).To(Equal(`{"id":"evt_1"}`))
				Expect(signature).To(Equal("t=1,v1=abc"))
				return nil
			}
			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 400 for unverifiable payloads", func() {
			subs.handleWebhookFn = func(context.Context, []byte, string) error { return service.ErrInvalidWebhook }
			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
