package dto

import (
	"time"

	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

type PatientRequest struct {
	RUT                  string              `json:"rut" binding:"required,max=20"`
	Name                 string              `json:"name" binding:"required,max=255"`
	Age                  *int32              `json:"age" binding:"omitempty,min=0,max=150"`
	Status               model.PatientStatus `json:"status"`
	Unit                 string              `json:"unit" binding:"required,max=100"`
	BedNumber            *int32              `json:"bed_number" binding:"omitempty,min=0"`
	HasEndingSoonProgram bool                `json:"has_ending_soon_program"`
}

func (r PatientRequest) Input() service.PatientInput {
	return service.PatientInput{
		RUT:                  r.RUT,
		Name:                 r.Name,
		Age:                  r.Age,
		Status:               r.Status,
		Unit:                 r.Unit,
		BedNumber:            r.BedNumber,
		HasEndingSoonProgram: r.HasEndingSoonProgram,
	}
}

type ListPatientsQuery struct {
	Limit  int32 `form:"limit"`
	Offset int32 `form:"offset"`
}

type PatientResponse struct {
	ID                   int64               `json:"id,string"`
	RUT                  string              `json:"rut"`
	Name                 string              `json:"name"`
	Age                  *int32              `json:"age,omitempty"`
	Status               model.PatientStatus `json:"status"`
	Unit                 string              `json:"unit"`
	BedNumber            *int32              `json:"bed_number,omitempty"`
	HasEndingSoonProgram bool                `json:"has_ending_soon_program"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func ToPatientResponse(p *model.Patient) PatientResponse {
	return PatientResponse{
		ID:                   p.ID,
		RUT:                  p.RUT,
		Name:                 p.Name,
		Age:                  p.Age,
		Status:               p.Status,
		Unit:                 p.Unit,
		BedNumber:            p.BedNumber,
		HasEndingSoonProgram: p.HasEndingSoonProgram,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func ToPatientResponses(patients []model.Patient) []PatientResponse {
	resp := make([]PatientResponse, len(patients))
	for i := range patients {
		resp[i] = ToPatientResponse(&patients[i])
	}
	return resp
}
