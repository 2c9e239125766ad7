package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"wardline.app/api/common/id"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/store"
)

const (
	DefaultPatientPageSize = 100
	MaxPatientPageSize     = 500
)

// PatientInput is the writable part of a patient record.
type PatientInput struct {
	RUT                  string
	Name                 string
	Age                  *int32
	Status               model.PatientStatus
	Unit                 string
	BedNumber            *int32
	HasEndingSoonProgram bool
}

// PatientService scopes every patient operation to the actor's team.
// Users without a team are rejected rather than shown an unscoped list.
type PatientService interface {
	List(ctx context.Context, actor *model.User, limit, offset int32) ([]model.Patient, error)
	Get(ctx context.Context, actor *model.User, patientID int64) (*model.Patient, error)
	Create(ctx context.Context, actor *model.User, in PatientInput) (*model.Patient, error)
	Update(ctx context.Context, actor *model.User, patientID int64, in PatientInput) (*model.Patient, error)
	Delete(ctx context.Context, actor *model.User, patientID int64) error
}

type patientService struct {
	patientStore store.PatientStore
}

func NewPatientService(patientStore store.PatientStore) PatientService {
	return &patientService{patientStore: patientStore}
}

func (s *patientService) List(ctx context.Context, actor *model.User, limit, offset int32) ([]model.Patient, error) {
	teamID, err := patientTeam(actor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPatientPageSize
	}
	if limit > MaxPatientPageSize {
		limit = MaxPatientPageSize
	}
	if offset < 0 {
		offset = 0
	}

	patients, err := s.patientStore.ListByTeam(ctx, teamID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	return patients, nil
}

func (s *patientService) Get(ctx context.Context, actor *model.User, patientID int64) (*model.Patient, error) {
	teamID, err := patientTeam(actor)
	if err != nil {
		return nil, err
	}
	p, err := s.patientStore.GetByID(ctx, teamID, patientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return p, nil
}

func (s *patientService) Create(ctx context.Context, actor *model.User, in PatientInput) (*model.Patient, error) {
	teamID, err := patientTeam(actor)
	if err != nil {
		return nil, err
	}
	in, err = validPatient(in)
	if err != nil {
		return nil, err
	}

	p := &model.Patient{ID: id.New(), TeamID: teamID}
	in.applyTo(p)
	if err := s.patientStore.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrPatientRUTExists
		}
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	slog.InfoContext(ctx, "patient created", "patient_id", p.ID, "team_id", teamID)
	return p, nil
}

func (s *patientService) Update(ctx context.Context, actor *model.User, patientID int64, in PatientInput) (*model.Patient, error) {
	p, err := s.Get(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}
	in, err = validPatient(in)
	if err != nil {
		return nil, err
	}

	in.applyTo(p)
	if err := s.patientStore.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrPatientRUTExists
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("updating patient: %w", err)
	}
	return p, nil
}

func (s *patientService) Delete(ctx context.Context, actor *model.User, patientID int64) error {
	teamID, err := patientTeam(actor)
	if err != nil {
		return err
	}
	if err := s.patientStore.Delete(ctx, teamID, patientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("deleting patient: %w", err)
	}

	slog.InfoContext(ctx, "patient deleted", "patient_id", patientID, "team_id", teamID)
	return nil
}

func patientTeam(actor *model.User) (int64, error) {
	if !actor.HasTeam() {
		return 0, ErrNotTeamMember
	}
	return actor.Membership.TeamID, nil
}

func validPatient(in PatientInput) (PatientInput, error) {
	in.RUT = strings.TrimSpace(in.RUT)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Status == "" {
		in.Status = model.PatientStatusWaiting
	}
	if in.RUT == "" || in.Name == "" || in.Unit == "" || !in.Status.Valid() {
		return in, ErrInvalidPatient
	}
	if in.Age != nil && *in.Age < 0 {
		return in, ErrInvalidPatient
	}
	return in, nil
}

func (in PatientInput) applyTo(p *model.Patient) {
	p.RUT = in.RUT
	p.Name = in.Name
	p.Age = in.Age
	p.Status = in.Status
	p.Unit = in.Unit
	p.BedNumber = in.BedNumber
	p.HasEndingSoonProgram = in.HasEndingSoonProgram
}
