package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"wardline.app/api/core/db"
	"wardline.app/api/internal/model"
)

const patientColumns = `id, team_id, rut, name, age, status, unit, bed_number, has_ending_soon_program,
	created_at, updated_at`

type patientStore struct {
	db db.DBTX
}

func newPatientStore(conn db.DBTX) PatientStore {
	return &patientStore{db: conn}
}

func (s *patientStore) Create(ctx context.Context, p *model.Patient) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO patients (id, team_id, rut, name, age, status, unit, bed_number, has_ending_soon_program)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+patientColumns,
		p.ID, p.TeamID, p.RUT, p.Name, p.Age, string(p.Status), p.Unit, p.BedNumber, p.HasEndingSoonProgram,
	)
	created, err := scanPatient(row)
	if err != nil {
		return mapErr(err)
	}
	*p = *created
	return nil
}

func (s *patientStore) GetByID(ctx context.Context, teamID, id int64) (*model.Patient, error) {
	p, err := scanPatient(s.db.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE team_id = $1 AND id = $2`, teamID, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (s *patientStore) ListByTeam(ctx context.Context, teamID int64, limit, offset int32) ([]model.Patient, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+patientColumns+` FROM patients
		WHERE team_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		teamID, limit, offset,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return collect(rows, scanPatient)
}

func (s *patientStore) Update(ctx context.Context, p *model.Patient) error {
	row := s.db.QueryRow(ctx, `
		UPDATE patients SET
			rut = $3,
			name = $4,
			age = $5,
			status = $6,
			unit = $7,
			bed_number = $8,
			has_ending_soon_program = $9,
			updated_at = now()
		WHERE team_id = $1 AND id = $2
		RETURNING `+patientColumns,
		p.TeamID, p.ID, p.RUT, p.Name, p.Age, string(p.Status), p.Unit, p.BedNumber, p.HasEndingSoonProgram,
	)
	updated, err := scanPatient(row)
	if err != nil {
		return mapErr(err)
	}
	*p = *updated
	return nil
}

func (s *patientStore) Delete(ctx context.Context, teamID, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM patients WHERE team_id = $1 AND id = $2`, teamID, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row rowScanner) (*model.Patient, error) {
	var (
		p       model.Patient
		status  string
		created pgtype.Timestamptz
		updated pgtype.Timestamptz
	)
	if err := row.Scan(
		&p.ID, &p.TeamID, &p.RUT, &p.Name, &p.Age, &status, &p.Unit, &p.BedNumber, &p.HasEndingSoonProgram,
		&created, &updated,
	); err != nil {
		return nil, err
	}
	p.Status = model.PatientStatus(status)
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return &p, nil
}
