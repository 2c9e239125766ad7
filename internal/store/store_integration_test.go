//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/common/id"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/notify"
	"wardline.app/api/internal/service"
	"wardline.app/api/internal/store"
)

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, string, notify.Kind, map[string]string) bool {
	return true
}

func newTeam(ctx context.Context, stores *store.Stores, limit int) *model.Team {
	plan := model.SubscriptionPlanBasic
	team := &model.Team{
		ID:                 id.New(),
		Name:               "Ward 4",
		SubscriptionStatus: model.SubscriptionStatusActive,
		SubscriptionPlan:   &plan,
		MemberLimit:        limit,
	}
	Expect(stores.Teams().Create(ctx, team)).To(Succeed())
	return team
}

func newUser(ctx context.Context, stores *store.Stores, email string, membership *model.Membership) *model.User {
	user := &model.User{
		ID:            id.New(),
		Name:          email,
		Email:         email,
		PasswordHash:  "x",
		Role:          model.UserRoleBasic,
		IsActive:      true,
		EmailVerified: true,
	}
	if membership != nil {
		user.JoinTeam(membership.TeamID, membership.Role)
	}
	Expect(stores.Users().Create(ctx, user)).To(Succeed())
	return user
}

func newInvitation(ctx context.Context, stores *store.Stores, teamID, invitedBy int64, email string, expiresAt time.Time) *model.Invitation {
	inv := &model.Invitation{
		ID:        id.New(),
		TeamID:    teamID,
		Email:     email,
		InvitedBy: invitedBy,
		Role:      model.TeamRoleMember,
		Token:     "tok-" + email,
		Status:    model.InvitationStatusPending,
		ExpiresAt: expiresAt,
	}
	Expect(stores.Invitations().Create(ctx, inv)).To(Succeed())
	return inv
}

var _ = Describe("Postgres stores", func() {
	var (
		ctx    context.Context
		stores *store.Stores
		team   *model.Team
		owner  *model.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx)
		stores = store.NewStores(database.Conn())
		team = newTeam(ctx, stores, model.BasicMemberLimit)
		owner = newUser(ctx, stores, "owner@wardline.test", &model.Membership{TeamID: team.ID, Role: model.TeamRoleOwner})
	})

	Describe("users", func() {
		It("looks up emails case-insensitively and rejects duplicates", func() {
			found, err := stores.Users().GetByEmail(ctx, "OWNER@wardline.test")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(owner.ID))
			Expect(found.Membership).To(Equal(&model.Membership{TeamID: team.ID, Role: model.TeamRoleOwner}))

			dup := &model.User{ID: id.New(), Name: "x", Email: "Owner@Wardline.test", PasswordHash: "x", Role: model.UserRoleBasic}
			Expect(stores.Users().Create(ctx, dup)).To(MatchError(store.ErrDuplicate))
		})

		It("enforces a single owner per team", func() {
			second := newUser(ctx, stores, "second@wardline.test", nil)
			second.JoinTeam(team.ID, model.TeamRoleOwner)

			Expect(stores.Users().Update(ctx, second)).To(MatchError(store.ErrDuplicate))
		})

		It("counts members and clears memberships", func() {
			nurse := newUser(ctx, stores, "nurse@wardline.test", &model.Membership{TeamID: team.ID, Role: model.TeamRoleMember})

			n, err := stores.Teams().CountMembers(ctx, team.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			nurse.LeaveTeam()
			Expect(stores.Users().Update(ctx, nurse)).To(Succeed())

			reloaded, err := stores.Users().GetByID(ctx, nurse.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Membership).To(BeNil())
			Expect(reloaded.Role).To(Equal(model.UserRoleBasic))
		})
	})

	Describe("teams", func() {
		It("round-trips the deletion pair", func() {
			now := time.Now().UTC().Truncate(time.Microsecond)
			team.Deletion = &model.TeamDeletion{DeletedAt: now, ScheduledFor: now.AddDate(0, 0, 30)}
			Expect(stores.Teams().Update(ctx, team)).To(Succeed())

			reloaded, err := stores.Teams().GetByID(ctx, team.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Deletion).NotTo(BeNil())
			Expect(reloaded.Deletion.ScheduledFor).To(BeTemporally("==", now.AddDate(0, 0, 30)))

			reloaded.Deletion = nil
			Expect(stores.Teams().Update(ctx, reloaded)).To(Succeed())
			Expect(reloaded.IsDeleted()).To(BeFalse())
		})

		It("reports missing teams", func() {
			_, err := stores.Teams().GetByID(ctx, 1)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("invitations", func() {
		It("allows one pending invitation per team and email", func() {
			newInvitation(ctx, stores, team.ID, owner.ID, "nia@wardline.test", time.Now().Add(time.Hour))

			dup := &model.Invitation{
				ID: id.New(), TeamID: team.ID, Email: "NIA@wardline.test", InvitedBy: owner.ID,
				Role: model.TeamRoleMember, Token: "other", Status: model.InvitationStatusPending,
				ExpiresAt: time.Now().Add(time.Hour),
			}
			Expect(stores.Invitations().Create(ctx, dup)).To(MatchError(store.ErrDuplicate))

			found, err := stores.Invitations().GetPendingByTeamAndEmail(ctx, team.ID, "Nia@Wardline.test")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Token).To(Equal("tok-nia@wardline.test"))
		})

		It("excludes lapsed invitations from the live pending count", func() {
			now := time.Now()
			newInvitation(ctx, stores, team.ID, owner.ID, "a@wardline.test", now.Add(time.Hour))
			newInvitation(ctx, stores, team.ID, owner.ID, "b@wardline.test", now.Add(-time.Hour))

			n, err := stores.Invitations().CountLivePendingByTeam(ctx, team.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("filters the team listing by status", func() {
			inv := newInvitation(ctx, stores, team.ID, owner.ID, "a@wardline.test", time.Now().Add(time.Hour))
			newInvitation(ctx, stores, team.ID, owner.ID, "b@wardline.test", time.Now().Add(time.Hour))
			inv.Status = model.InvitationStatusCancelled
			Expect(stores.Invitations().Update(ctx, inv)).To(Succeed())

			cancelled := model.InvitationStatusCancelled
			listed, err := stores.Invitations().ListByTeam(ctx, team.ID, &cancelled)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].ID).To(Equal(inv.ID))

			all, err := stores.Invitations().ListByTeam(ctx, team.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})
	})

	Describe("patients", func() {
		It("scopes every lookup to the team", func() {
			other := newTeam(ctx, stores, model.BasicMemberLimit)
			p := &model.Patient{ID: id.New(), TeamID: team.ID, RUT: "1-9", Name: "Juan", Unit: "UCI", Status: model.PatientStatusWaiting}
			Expect(stores.Patients().Create(ctx, p)).To(Succeed())

			_, err := stores.Patients().GetByID(ctx, other.ID, p.ID)
			Expect(err).To(MatchError(store.ErrNotFound))

			Expect(stores.Patients().Delete(ctx, other.ID, p.ID)).To(MatchError(store.ErrNotFound))

			listed, err := stores.Patients().ListByTeam(ctx, team.ID, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
		})
	})
})

var _ = Describe("Concurrent acceptance", func() {
	var (
		ctx    context.Context
		stores *store.Stores
		svc    service.InvitationService
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx)
		stores = store.NewStores(database.Conn())
		svc = service.NewInvitationService(
			service.NewTxRunner(database),
			discardNotifier{},
			service.NewBcryptHasher(4),
			service.NewJWTSessions("integration", time.Hour),
			"https://app.wardline.test",
			time.Now,
		)
	})

	It("accepts the same invitation exactly once", func() {
		team := newTeam(ctx, stores, model.BasicMemberLimit)
		owner := newUser(ctx, stores, "owner@wardline.test", &model.Membership{TeamID: team.ID, Role: model.TeamRoleOwner})
		invitee := newUser(ctx, stores, "nia@wardline.test", nil)
		inv := newInvitation(ctx, stores, team.ID, owner.ID, invitee.Email, time.Now().Add(time.Hour))

		errs := acceptConcurrently(ctx, svc, inv.Token, invitee, invitee)

		Expect(successes(errs)).To(Equal(1))
		for _, err := range errs {
			if err != nil {
				Expect(errors.Is(err, service.ErrConflict)).To(BeTrue(), "unexpected error %v", err)
			}
		}
		n, err := stores.Teams().CountMembers(ctx, team.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
	})

	It("never fills the team past its member limit", func() {
		team := newTeam(ctx, stores, 2)
		owner := newUser(ctx, stores, "owner@wardline.test", &model.Membership{TeamID: team.ID, Role: model.TeamRoleOwner})
		a := newUser(ctx, stores, "a@wardline.test", nil)
		b := newUser(ctx, stores, "b@wardline.test", nil)
		invA := newInvitation(ctx, stores, team.ID, owner.ID, a.Email, time.Now().Add(time.Hour))
		invB := newInvitation(ctx, stores, team.ID, owner.ID, b.Email, time.Now().Add(time.Hour))

		var (
			wg   sync.WaitGroup
			errA error
			errB error
		)
		wg.Add(2)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			_, errA = svc.Accept(ctx, invA.Token, a)
		}()
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			_, errB = svc.Accept(ctx, invB.Token, b)
		}()
		wg.Wait()

		Expect(successes([]error{errA, errB})).To(Equal(1))
		n, err := stores.Teams().CountMembers(ctx, team.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
	})

	It("commits the lapse before reporting expiry", func() {
		team := newTeam(ctx, stores, model.BasicMemberLimit)
		owner := newUser(ctx, stores, "owner@wardline.test", &model.Membership{TeamID: team.ID, Role: model.TeamRoleOwner})
		invitee := newUser(ctx, stores, "nia@wardline.test", nil)
		inv := newInvitation(ctx, stores, team.ID, owner.ID, invitee.Email, time.Now().Add(-time.Minute))

		_, err := svc.Accept(ctx, inv.Token, invitee)

		Expect(err).To(MatchError(service.ErrInvitationExpired))
		reloaded, err := stores.Invitations().GetByID(ctx, inv.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Status).To(Equal(model.InvitationStatusExpired))
	})
})

func acceptConcurrently(ctx context.Context, svc service.InvitationService, token string, actors ...*model.User) []error {
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			_, errs[i] = svc.Accept(ctx, token, actor)
		}()
	}
	wg.Wait()
	return errs
}

func successes(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}
