package model

import "time"

type PatientStatus string

const (
	PatientStatusWaiting  PatientStatus = "waiting"
	PatientStatusActive   PatientStatus = "active"
	PatientStatusArchived PatientStatus = "archived"
)

func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStatusWaiting, PatientStatusActive, PatientStatusArchived:
		return true
	}
	return false
}

type Patient struct {
	ID                   int64         `json:"id"`
	TeamID               int64         `json:"team_id"`
	RUT                  string        `json:"rut"`
	Name                 string        `json:"name"`
	Age                  *int32        `json:"age,omitempty"`
	Status               PatientStatus `json:"status"`
	Unit                 string        `json:"unit"`
	BedNumber            *int32        `json:"bed_number,omitempty"`
	HasEndingSoonProgram bool          `json:"has_ending_soon_program"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}
