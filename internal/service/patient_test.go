package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
	"wardline.app/api/internal/store"
)

var _ = Describe("PatientService", func() {
	var (
		ctx       context.Context
		mockStore *mockPatientStore
		svc       service.PatientService
		nurse     *model.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockStore = &mockPatientStore{}
		svc = service.NewPatientService(mockStore)
		nurse = &model.User{ID: 7, Membership: &model.Membership{TeamID: 42, Role: model.TeamRoleMember}}
	})

	It("rejects users without a team instead of listing everything", func() {
		called := false
		mockStore.listByTeamFn = func(context.Context, int64, int32, int32) ([]model.Patient, error) {
			called = true
			return nil, nil
		}

		_, err := svc.List(ctx, &model.User{ID: 8}, 0, 0)

		Expect(err).To(MatchError(service.ErrNotTeamMember))
		Expect(called).To(BeFalse())
	})

	It("lists the actor's team with clamped paging", func() {
		mockStore.listByTeamFn = func(_ context.Context, teamID int64, limit, offset int32) ([]model.Patient, error) {
			Expect(teamID).To(Equal(int64(42)))
			Expect(limit).To(Equal(int32(service.MaxPatientPageSize)))
			Expect(offset).To(BeZero())
			return []model.Patient{{ID: 1, TeamID: 42}}, nil
		}

		patients, err := svc.List(ctx, nurse, 10000, -5)

		Expect(err).NotTo(HaveOccurred())
		Expect(patients).To(HaveLen(1))
	})

	It("creates patients in the actor's team with a default status", func() {
		var captured *model.Patient
		mockStore.createFn = func(_ context.Context, p *model.Patient) error {
			captured = p
			return nil
		}

		p, err := svc.Create(ctx, nurse, service.PatientInput{RUT: " 12.345.678-5 ", Name: "Juan", Unit: "UCI"})

		Expect(err).NotTo(HaveOccurred())
		Expect(p.TeamID).To(Equal(int64(42)))
		Expect(p.RUT).To(Equal("12.345.678-5"))
		Expect(p.Status).To(Equal(model.PatientStatusWaiting))
		Expect(captured).To(BeIdenticalTo(p))
	})

	It("maps a duplicate rut to a conflict", func() {
		mockStore.createFn = func(context.Context, *model.Patient) error { return store.ErrDuplicate }

		_, err := svc.Create(ctx, nurse, service.PatientInput{RUT: "1-9", Name: "Juan", Unit: "UCI"})

		Expect(err).To(MatchError(service.ErrPatientRUTExists))
	})

	It("validates status values", func() {
		_, err := svc.Create(ctx, nurse, service.PatientInput{RUT: "1-9", Name: "Juan", Unit: "UCI", Status: "discharged"})

		Expect(err).To(MatchError(service.ErrInvalidPatient))
	})

	It("cannot reach another team's patient", func() {
		mockStore.getByIDFn = func(_ context.Context, teamID, _ int64) (*model.Patient, error) {
			Expect(teamID).To(Equal(int64(42)))
			return nil, store.ErrNotFound
		}

		_, err := svc.Update(ctx, nurse, 99, service.PatientInput{RUT: "1-9", Name: "Juan", Unit: "UCI"})

		Expect(err).To(MatchError(service.ErrPatientNotFound))
	})

	It("deletes within the team", func() {
		mockStore.deleteFn = func(_ context.Context, teamID, id int64) error {
			Expect(teamID).To(Equal(int64(42)))
			Expect(id).To(Equal(int64(5)))
			return nil
		}

		Expect(svc.Delete(ctx, nurse, 5)).To(Succeed())
	})
})
