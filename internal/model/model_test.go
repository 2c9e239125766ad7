package model_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/internal/model"
)

var _ = Describe("InvitationStatus", func() {
	DescribeTable("transitions",
		func(from, to model.InvitationStatus, allowed bool) {
			Expect(from.CanTransitionTo(to)).To(Equal(allowed))
		},
		Entry("pending to accepted", model.InvitationStatusPending, model.InvitationStatusAccepted, true),
		Entry("pending to cancelled", model.InvitationStatusPending, model.InvitationStatusCancelled, true),
		Entry("pending to expired", model.InvitationStatusPending, model.InvitationStatusExpired, true),
		Entry("pending to pending", model.InvitationStatusPending, model.InvitationStatusPending, false),
		Entry("accepted to cancelled", model.InvitationStatusAccepted, model.InvitationStatusCancelled, false),
		Entry("cancelled to pending", model.InvitationStatusCancelled, model.InvitationStatusPending, false),
		Entry("expired to accepted", model.InvitationStatusExpired, model.InvitationStatusAccepted, false),
		Entry("pending to unknown", model.InvitationStatusPending, model.InvitationStatus("revoked"), false),
	)

	It("treats only known values as valid", func() {
		Expect(model.InvitationStatusExpired.Valid()).To(BeTrue())
		Expect(model.InvitationStatus("revoked").Valid()).To(BeFalse())
	})
})

var _ = Describe("Invitation.LapsedAt", func() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	It("lapses a pending invitation past its expiry", func() {
		inv := model.Invitation{Status: model.InvitationStatusPending, ExpiresAt: now.Add(-time.Second)}
		Expect(inv.LapsedAt(now)).To(BeTrue())
	})

	It("keeps a pending invitation alive at the exact expiry instant", func() {
		inv := model.Invitation{Status: model.InvitationStatusPending, ExpiresAt: now}
		Expect(inv.LapsedAt(now)).To(BeFalse())
	})

	It("never lapses a terminal invitation", func() {
		inv := model.Invitation{Status: model.InvitationStatusAccepted, ExpiresAt: now.Add(-time.Hour)}
		Expect(inv.LapsedAt(now)).To(BeFalse())
	})
})

var _ = Describe("User membership", func() {
	var user *model.User

	BeforeEach(func() {
		user = &model.User{ID: 1, Role: model.UserRoleBasic}
	})

	It("sets team and role together and promotes the tier", func() {
		user.JoinTeam(42, model.TeamRoleAdmin)

		Expect(user.HasTeam()).To(BeTrue())
		Expect(user.InTeam(42)).To(BeTrue())
		Expect(user.InTeam(43)).To(BeFalse())
		Expect(user.Role).To(Equal(model.UserRoleAdvanced))

		role, ok := user.TeamRoleIn(42)
		Expect(ok).To(BeTrue())
		Expect(role).To(Equal(model.TeamRoleAdmin))
	})

	It("clears both on leave and demotes the tier", func() {
		user.JoinTeam(42, model.TeamRoleMember)
		user.LeaveTeam()

		Expect(user.Membership).To(BeNil())
		Expect(user.Role).To(Equal(model.UserRoleBasic))
		_, ok := user.TeamRoleIn(42)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("TeamRole", func() {
	It("never lets the owner role be assigned directly", func() {
		Expect(model.TeamRoleOwner.Assignable()).To(BeFalse())
		Expect(model.TeamRoleAdmin.Assignable()).To(BeTrue())
		Expect(model.TeamRoleMember.Assignable()).To(BeTrue())
	})

	It("lets owners and admins manage members", func() {
		Expect(model.TeamRoleOwner.CanManageMembers()).To(BeTrue())
		Expect(model.TeamRoleAdmin.CanManageMembers()).To(BeTrue())
		Expect(model.TeamRoleMember.CanManageMembers()).To(BeFalse())
	})
})

var _ = Describe("SubscriptionPlan", func() {
	It("maps plans to seat caps", func() {
		Expect(model.SubscriptionPlanBasic.MemberLimit()).To(Equal(5))
		Expect(model.SubscriptionPlanPremium.MemberLimit()).To(Equal(15))
		Expect(model.SubscriptionPlan("gold").Valid()).To(BeFalse())
	})

	It("reports an unset plan as empty", func() {
		team := model.Team{}
		Expect(team.Plan()).To(BeEmpty())
		Expect(team.IsDeleted()).To(BeFalse())
	})
})
