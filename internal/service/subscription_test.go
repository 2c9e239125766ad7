package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/internal/billing"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

var _ = Describe("SubscriptionService", func() {
	var (
		ctx     context.Context
		db      *memDB
		clock   *fakeClock
		gateway *mockGateway
		urls    service.BillingURLs
		svc     service.SubscriptionService
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newMemDB()
		clock = newFakeClock()
		gateway = &mockGateway{}
		urls = service.BillingURLs{
			CheckoutSuccess: "https://app.wardline.test/teams/setup",
			CheckoutCancel:  "https://app.wardline.test/subscription/checkout?cancelled=true",
			PortalReturn:    "https://app.wardline.test/teams/manage",
		}
		svc = service.NewSubscriptionService(db, gateway, urls, clock.Now)
	})

	Describe("Checkout", func() {
		It("starts a hosted checkout for users without a team", func() {
			buyer := db.seedUser("Bea", "bea@wardline.test", true)
			var captured billing.CheckoutRequest
			gateway.createCheckoutFn = func(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
				captured = req
				return &billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil
			}

			session, err := svc.Checkout(ctx, buyer, model.SubscriptionPlanPremium)

			Expect(err).NotTo(HaveOccurred())
			Expect(session.URL).To(Equal("https://checkout.test/cs_1"))
			Expect(captured.UserID).To(Equal(buyer.ID))
			Expect(captured.Plan).To(Equal(model.SubscriptionPlanPremium))
			Expect(captured.SuccessURL).To(Equal(urls.CheckoutSuccess))
		})

		It("rejects unknown plans", func() {
			buyer := db.seedUser("Bea", "bea@wardline.test", true)

			_, err := svc.Checkout(ctx, buyer, model.SubscriptionPlan("gold"))

			Expect(err).To(MatchError(service.ErrInvalidPlan))
		})

		It("rejects users already on a team", func() {
			team := db.seedTeam("Ward 4", model.BasicMemberLimit)
			member := db.seedMember(team.ID, "Max", "max@wardline.test", model.TeamRoleMember)

			_, err := svc.Checkout(ctx, member, model.SubscriptionPlanBasic)

			Expect(err).To(MatchError(service.ErrAlreadyInTeam))
		})

		It("reports billing as unavailable without a gateway", func() {
			svc = service.NewSubscriptionService(db, nil, urls, clock.Now)
			buyer := db.seedUser("Bea", "bea@wardline.test", true)

			_, err := svc.Checkout(ctx, buyer, model.SubscriptionPlanBasic)

			Expect(err).To(MatchError(service.ErrBillingUnavailable))
		})
	})

	Describe("Portal", func() {
		It("requires a billing account", func() {
			team := db.seedTeam("Ward 4", model.BasicMemberLimit)
			owner := db.seedMember(team.ID, "Olivia", "olivia@wardline.test", model.TeamRoleOwner)

			_, err := svc.Portal(ctx, owner)
			Expect(err).To(MatchError(service.ErrNoBillingAccount))

			t := db.teams[team.ID]
			ref := "cus_123"
			t.BillingCustomerRef = &ref
			db.teams[team.ID] = t

			url, err := svc.Portal(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://portal.test/cus_123"))
		})
	})

	Describe("Status", func() {
		It("reports users without a team", func() {
			loner := db.seedUser("Lo", "lo@wardline.test", true)

			overview, err := svc.Status(ctx, loner)

			Expect(err).NotTo(HaveOccurred())
			Expect(overview.HasTeam).To(BeFalse())
		})

		It("counts the remaining trial days", func() {
			team := db.seedTeam("Ward 4", model.BasicMemberLimit)
			t := db.teams[team.ID]
			t.SubscriptionStatus = model.SubscriptionStatusTrial
			ends := clock.Now().Add(10*24*time.Hour + time.Hour)
			t.TrialEndsAt = &ends
			db.teams[team.ID] = t
			member := db.seedMember(team.ID, "Max", "max@wardline.test", model.TeamRoleOwner)

			overview, err := svc.Status(ctx, member)

			Expect(err).NotTo(HaveOccurred())
			Expect(overview.Team.ID).To(Equal(team.ID))
			Expect(overview.DaysRemaining).To(HaveValue(Equal(10)))
		})
	})

	Describe("Downgrade", func() {
		var (
			team  *model.Team
			owner *model.User
		)

		BeforeEach(func() {
			team = db.seedTeam("Ward 4", model.PremiumMemberLimit)
			t := db.teams[team.ID]
			ref := "sub_123"
			t.BillingSubscriptionRef = &ref
			db.teams[team.ID] = t
			owner = db.seedMember(team.ID, "Olivia", "olivia@wardline.test", model.TeamRoleOwner)
			for _, email := range []string{"a@w.test", "b@w.test", "c@w.test", "d@w.test"} {
				db.seedMember(team.ID, email, email, model.TeamRoleMember)
			}
		})

		It("moves a team of five to basic and updates the provider", func() {
			var key string
			gateway.changePlanFn = func(_ context.Context, ref string, plan model.SubscriptionPlan, k string) error {
				Expect(ref).To(Equal("sub_123"))
				Expect(plan).To(Equal(model.SubscriptionPlanBasic))
				key = k
				return nil
			}

			downgraded, err := svc.Downgrade(ctx, owner)

			Expect(err).NotTo(HaveOccurred())
			Expect(downgraded.Plan()).To(Equal(model.SubscriptionPlanBasic))
			Expect(downgraded.MemberLimit).To(Equal(model.BasicMemberLimit))
			Expect(db.team(team.ID).MemberLimit).To(Equal(model.BasicMemberLimit))
			Expect(key).NotTo(BeEmpty())
		})

		It("commits the downgrade before calling the provider", func() {
			gateway.changePlanFn = func(context.Context, string, model.SubscriptionPlan, string) error {
				Expect(db.mu.TryLock()).To(BeTrue(), "provider called inside a transaction")
				db.mu.Unlock()
				Expect(db.team(team.ID).Plan()).To(Equal(model.SubscriptionPlanBasic))
				Expect(db.team(team.ID).MemberLimit).To(Equal(model.BasicMemberLimit))
				return nil
			}

			_, err := svc.Downgrade(ctx, owner)

			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.changePlanCalls).To(Equal(1))
		})

		It("refuses when more than five members remain", func() {
			db.seedMember(team.ID, "F", "f@w.test", model.TeamRoleMember)

			_, err := svc.Downgrade(ctx, owner)

			Expect(err).To(MatchError(service.ErrTooManyForDowngrade))
			Expect(errors.Is(err, service.ErrConflict)).To(BeTrue())
			Expect(gateway.changePlanCalls).To(BeZero())
			Expect(db.team(team.ID).Plan()).To(Equal(model.SubscriptionPlanPremium))
		})

		It("is owner-only", func() {
			admin := db.seedUser("Ada", "ada@wardline.test", true)

			_, err := svc.Downgrade(ctx, admin)

			Expect(err).To(MatchError(service.ErrOwnerOnly))
		})

		It("keeps the premium plan when the provider call fails", func() {
			gateway.changePlanFn = func(context.Context, string, model.SubscriptionPlan, string) error {
				return errors.New("stripe down")
			}

			_, err := svc.Downgrade(ctx, owner)

			Expect(err).To(MatchError(ContainSubstring("stripe down")))
			Expect(db.team(team.ID).Plan()).To(Equal(model.SubscriptionPlanPremium))
			Expect(db.team(team.ID).MemberLimit).To(Equal(model.PremiumMemberLimit))
		})

		It("leaves a plan changed by someone else alone when the provider fails", func() {
			gateway.changePlanFn = func(context.Context, string, model.SubscriptionPlan, string) error {
				t := db.teams[team.ID]
				t.SubscriptionPlan = nil
				db.teams[team.ID] = t
				return errors.New("stripe down")
			}

			_, err := svc.Downgrade(ctx, owner)

			Expect(err).To(HaveOccurred())
			Expect(db.team(team.ID).SubscriptionPlan).To(BeNil())
		})

		It("rejects teams that are not on premium", func() {
			_, err := svc.Downgrade(ctx, owner)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Downgrade(ctx, owner)
			Expect(err).To(MatchError(service.ErrNotOnPremium))
		})
	})

	Describe("HandleWebhook", func() {
		emit := func(evt *billing.Event) {
			gateway.parseEventFn = func([]byte, string) (*billing.Event, error) { return evt, nil }
		}

		It("rejects payloads the gateway cannot verify", func() {
			err := svc.HandleWebhook(ctx, []byte("{}"), "bad")

			Expect(err).To(MatchError(service.ErrInvalidWebhook))
		})

		It("creates the paid team once per subscription", func() {
			buyer := db.seedUser("Bea", "bea@wardline.test", true)
			emit(&billing.Event{
				ID:              "evt_1",
				Type:            billing.EventCheckoutCompleted,
				UserID:          buyer.ID,
				Plan:            model.SubscriptionPlanPremium,
				CustomerRef:     "cus_1",
				SubscriptionRef: "sub_1",
			})

			Expect(svc.HandleWebhook(ctx, nil, "sig")).To(Succeed())
			Expect(svc.HandleWebhook(ctx, nil, "sig")).To(Succeed())

			Expect(db.teams).To(HaveLen(1))
			stored := db.user(buyer.ID)
			Expect(stored.Membership).NotTo(BeNil())
			Expect(stored.Membership.Role).To(Equal(model.TeamRoleOwner))

			created := db.teams[stored.Membership.TeamID]
			Expect(created.Name).To(Equal("Bea's Team"))
			Expect(created.SubscriptionStatus).To(Equal(model.SubscriptionStatusActive))
			Expect(created.MemberLimit).To(Equal(model.PremiumMemberLimit))
			Expect(created.BillingCustomerRef).To(HaveValue(Equal("cus_1")))
		})

		DescribeTable("maps subscription updates onto the team",
			func(evtType billing.EventType, providerStatus string, expected model.SubscriptionStatus) {
				team := db.seedTeam("Ward 4", model.BasicMemberLimit)
				t := db.teams[team.ID]
				ref := "sub_9"
				t.BillingSubscriptionRef = &ref
				db.teams[team.ID] = t
				emit(&billing.Event{ID: "evt_9", Type: evtType, SubscriptionRef: ref, ProviderStatus: providerStatus})

				Expect(svc.HandleWebhook(ctx, nil, "sig")).To(Succeed())

				Expect(db.team(team.ID).SubscriptionStatus).To(Equal(expected))
			},
			Entry("past due stays active", billing.EventSubscriptionUpdated, "past_due", model.SubscriptionStatusActive),
			Entry("unpaid expires", billing.EventSubscriptionUpdated, "unpaid", model.SubscriptionStatusExpired),
			Entry("canceled", billing.EventSubscriptionUpdated, "canceled", model.SubscriptionStatusCancelled),
			Entry("incomplete reads as trial", billing.EventSubscriptionUpdated, "incomplete", model.SubscriptionStatusTrial),
			Entry("deleted subscription", billing.EventSubscriptionDeleted, "", model.SubscriptionStatusCancelled),
		)

		It("ignores events for unknown subscriptions", func() {
			emit(&billing.Event{ID: "evt_x", Type: billing.EventSubscriptionDeleted, SubscriptionRef: "sub_unknown"})

			Expect(svc.HandleWebhook(ctx, nil, "sig")).To(Succeed())
		})
	})
})
