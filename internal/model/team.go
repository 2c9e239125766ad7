package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	}
	return false
}

type SubscriptionPlan string

const (
	SubscriptionPlanBasic   SubscriptionPlan = "basic"
	SubscriptionPlanPremium SubscriptionPlan = "premium"
)

const (
	BasicMemberLimit   = 5
	PremiumMemberLimit = 15
)

func (p SubscriptionPlan) Valid() bool {
	return p == SubscriptionPlanBasic || p == SubscriptionPlanPremium
}

// MemberLimit returns the seat cap that comes with the plan.
func (p SubscriptionPlan) MemberLimit() int {
	if p == SubscriptionPlanPremium {
		return PremiumMemberLimit
	}
	return BasicMemberLimit
}

// TeamDeletion holds the soft-delete pair. Both timestamps are always set together.
type TeamDeletion struct {
	DeletedAt    time.Time `json:"deleted_at"`
	ScheduledFor time.Time `json:"deletion_scheduled_for"`
}

type Team struct {
	ID                     int64              `json:"id"`
	Name                   string             `json:"name"`
	SubscriptionStatus     SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan       *SubscriptionPlan  `json:"subscription_plan,omitempty"`
	MemberLimit            int                `json:"member_limit"`
	TrialEndsAt            *time.Time         `json:"trial_ends_at,omitempty"`
	BillingCustomerRef     *string            `json:"-"`
	BillingSubscriptionRef *string            `json:"-"`
	Deletion               *TeamDeletion      `json:"deletion,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

func (t *Team) IsDeleted() bool {
	return t.Deletion != nil
}

func (t *Team) Plan() SubscriptionPlan {
	if t.SubscriptionPlan == nil {
		return ""
	}
	return *t.SubscriptionPlan
}
