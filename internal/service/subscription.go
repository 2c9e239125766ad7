package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wardline.app/api/common/id"
	"wardline.app/api/internal/billing"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/store"
)

// SubscriptionOverview is the billing summary shown to a member of a team.
type SubscriptionOverview struct {
	HasTeam       bool
	Team          *model.Team
	DaysRemaining *int
}

// BillingURLs are the frontend pages the payment provider redirects back to.
type BillingURLs struct {
	CheckoutSuccess string
	CheckoutCancel  string
	PortalReturn    string
}

type SubscriptionService interface {
	Checkout(ctx context.Context, actor *model.User, plan model.SubscriptionPlan) (*billing.CheckoutSession, error)
	Portal(ctx context.Context, actor *model.User) (string, error)
	Status(ctx context.Context, actor *model.User) (*SubscriptionOverview, error)
	Downgrade(ctx context.Context, actor *model.User) (*model.Team, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type subscriptionService struct {
	txRunner TxRunner
	gateway  billing.Gateway
	urls     BillingURLs
	now      func() time.Time
}

// NewSubscriptionService builds the billing service. A nil gateway disables every
// provider-backed operation with ErrBillingUnavailable.
func NewSubscriptionService(txRunner TxRunner, gateway billing.Gateway, urls BillingURLs, now func() time.Time) SubscriptionService {
	if now == nil {
		now = time.Now
	}
	return &subscriptionService{txRunner: txRunner, gateway: gateway, urls: urls, now: now}
}

func (s *subscriptionService) Checkout(ctx context.Context, actor *model.User, plan model.SubscriptionPlan) (*billing.CheckoutSession, error) {
	if !plan.Valid() {
		return nil, ErrInvalidPlan
	}
	if s.gateway == nil {
		return nil, ErrBillingUnavailable
	}
	if actor.HasTeam() {
		return nil, ErrAlreadyInTeam
	}

	session, err := s.gateway.CreateCheckout(ctx, billing.CheckoutRequest{
		UserID:     actor.ID,
		Email:      actor.Email,
		Plan:       plan,
		SuccessURL: s.urls.CheckoutSuccess,
		CancelURL:  s.urls.CheckoutCancel,
	})
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			return nil, ErrBillingUnavailable
		}
		return nil, err
	}

	slog.InfoContext(ctx, "checkout session created", "user_id", actor.ID, "plan", plan)
	return session, nil
}

func (s *subscriptionService) Portal(ctx context.Context, actor *model.User) (string, error) {
	if s.gateway == nil {
		return "", ErrBillingUnavailable
	}
	if !actor.HasTeam() {
		return "", ErrNoTeam
	}

	var customerRef string
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		team, err := getTeam(ctx, sp, actor.Membership.TeamID)
		if err != nil {
			return err
		}
		if team.BillingCustomerRef == nil {
			return ErrNoBillingAccount
		}
		customerRef = *team.BillingCustomerRef
		return nil
	})
	if err != nil {
		return "", err
	}

	return s.gateway.CreatePortal(ctx, customerRef, s.urls.PortalReturn)
}

func (s *subscriptionService) Status(ctx context.Context, actor *model.User) (*SubscriptionOverview, error) {
	if !actor.HasTeam() {
		return &SubscriptionOverview{HasTeam: false}, nil
	}

	var team *model.Team
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		team, err = getTeam(ctx, sp, actor.Membership.TeamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	overview := &SubscriptionOverview{HasTeam: true, Team: team}
	if team.SubscriptionStatus == model.SubscriptionStatusTrial && team.TrialEndsAt != nil {
		days := int(team.TrialEndsAt.Sub(s.now()).Hours() / 24)
		overview.DaysRemaining = &days
		if days < 0 {
			*overview.DaysRemaining = 0
		}
	}
	return overview, nil
}

// Downgrade moves a premium team to basic. The plan change commits before the
// provider is told, so the team row is never locked across a network call and
// the lower member limit applies from the moment the request succeeds. If the
// provider then refuses, the team is put back on premium.
func (s *subscriptionService) Downgrade(ctx context.Context, actor *model.User) (*model.Team, error) {
	var (
		team            *model.Team
		subscriptionRef string
		key             string
	)
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		owner, err := sp.Users().GetByID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("getting actor: %w", err)
		}
		if !owner.HasTeam() || owner.Membership.Role != model.TeamRoleOwner {
			return ErrOwnerOnly
		}

		team, err = lockTeam(ctx, sp, owner.Membership.TeamID)
		if err != nil {
			return err
		}
		if team.Plan() != model.SubscriptionPlanPremium {
			return ErrNotOnPremium
		}

		members, err := sp.Teams().CountMembers(ctx, team.ID)
		if err != nil {
			return fmt.Errorf("counting members: %w", err)
		}
		if members > model.BasicMemberLimit {
			return ErrTooManyForDowngrade
		}

		if team.BillingSubscriptionRef != nil {
			if s.gateway == nil {
				return ErrBillingUnavailable
			}
			subscriptionRef = *team.BillingSubscriptionRef
			key = downgradeKey(team)
		}

		setPlan(team, model.SubscriptionPlanBasic)
		if err := sp.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("downgrading team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if subscriptionRef != "" {
		if err := s.gateway.ChangePlan(ctx, subscriptionRef, model.SubscriptionPlanBasic, key); err != nil {
			s.revertDowngrade(ctx, team.ID)
			return nil, fmt.Errorf("changing provider plan: %w", err)
		}
	}

	slog.InfoContext(ctx, "team downgraded to basic", "team_id", team.ID)
	return team, nil
}

// revertDowngrade restores premium after the provider rejected a downgrade,
// unless something else has changed the plan in the meantime.
func (s *subscriptionService) revertDowngrade(ctx context.Context, teamID int64) {
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		team, err := lockTeam(ctx, sp, teamID)
		if err != nil {
			return err
		}
		if team.Plan() != model.SubscriptionPlanBasic {
			return nil
		}
		setPlan(team, model.SubscriptionPlanPremium)
		return sp.Teams().Update(ctx, team)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to restore premium after provider error; plan out of sync",
			"team_id", teamID,
			"error", err)
	}
}

func setPlan(team *model.Team, plan model.SubscriptionPlan) {
	team.SubscriptionPlan = &plan
	team.MemberLimit = plan.MemberLimit()
}

// downgradeKey is stable for a given team state, so a retried request does not
// change the provider subscription twice.
func downgradeKey(team *model.Team) string {
	name := fmt.Sprintf("downgrade:%d:%d", team.ID, team.UpdatedAt.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (s *subscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return ErrBillingUnavailable
	}

	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		slog.WarnContext(ctx, "rejected billing webhook", "error", err)
		return ErrInvalidWebhook
	}

	slog.InfoContext(ctx, "billing event received", "event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case billing.EventCheckoutCompleted:
		return s.completeCheckout(ctx, event)
	case billing.EventSubscriptionUpdated:
		return s.setSubscriptionStatus(ctx, event, billing.MapSubscriptionStatus(event.ProviderStatus))
	case billing.EventSubscriptionDeleted:
		return s.setSubscriptionStatus(ctx, event, model.SubscriptionStatusCancelled)
	case billing.EventPaymentFailed:
		slog.WarnContext(ctx, "subscription payment failed",
			"event_id", event.ID,
			"customer_ref", event.CustomerRef,
		)
	}
	return nil
}

// completeCheckout creates the paid team. Replayed events are absorbed.
func (s *subscriptionService) completeCheckout(ctx context.Context, event *billing.Event) error {
	if event.UserID == 0 {
		slog.WarnContext(ctx, "checkout event without user", "event_id", event.ID)
		return nil
	}

	var team *model.Team
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if event.SubscriptionRef != "" {
			if _, err := sp.Teams().GetBySubscriptionRef(ctx, event.SubscriptionRef); err == nil {
				return nil
			} else if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("checking subscription: %w", err)
			}
		}

		user, err := sp.Users().GetByIDForUpdate(ctx, event.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				slog.WarnContext(ctx, "checkout event for unknown user", "event_id", event.ID, "user_id", event.UserID)
				return nil
			}
			return fmt.Errorf("getting user: %w", err)
		}
		if user.HasTeam() {
			slog.WarnContext(ctx, "checkout completed for user already in a team", "user_id", user.ID)
			return nil
		}

		plan := event.Plan
		team = &model.Team{
			ID:                 id.New(),
			Name:               fmt.Sprintf("%s's Team", user.Name),
			SubscriptionStatus: model.SubscriptionStatusActive,
			SubscriptionPlan:   &plan,
			MemberLimit:        plan.MemberLimit(),
		}
		if event.CustomerRef != "" {
			team.BillingCustomerRef = &event.CustomerRef
		}
		if event.SubscriptionRef != "" {
			team.BillingSubscriptionRef = &event.SubscriptionRef
		}
		if err := sp.Teams().Create(ctx, team); err != nil {
			return fmt.Errorf("creating team: %w", err)
		}

		user.JoinTeam(team.ID, model.TeamRoleOwner)
		if err := sp.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("assigning owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if team != nil {
		slog.InfoContext(ctx, "team created from checkout",
			"team_id", team.ID,
			"user_id", event.UserID,
			"plan", event.Plan,
		)
	}
	return nil
}

func (s *subscriptionService) setSubscriptionStatus(ctx context.Context, event *billing.Event, status model.SubscriptionStatus) error {
	return s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		found, err := sp.Teams().GetBySubscriptionRef(ctx, event.SubscriptionRef)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				slog.InfoContext(ctx, "billing event for unknown subscription", "event_id", event.ID)
				return nil
			}
			return fmt.Errorf("finding team: %w", err)
		}
		team, err := lockTeam(ctx, sp, found.ID)
		if err != nil {
			return err
		}
		if team.SubscriptionStatus == status {
			return nil
		}
		team.SubscriptionStatus = status
		if err := sp.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("updating subscription status: %w", err)
		}
		slog.InfoContext(ctx, "subscription status changed",
			"team_id", team.ID,
			"subscription_status", status,
		)
		return nil
	})
}
