package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by the shared Postgres pool.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, phone, hospital_id, is_active, created_at
		FROM patient WHERE id = $1 AND is_active`, id).
		Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.HospitalID, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, specialty, hospital_id, is_active, created_at
		FROM doctor WHERE id = $1 AND is_active`, id).
		Scan(&d.ID, &d.FullName, &d.Email, &d.Specialty, &d.HospitalID, &d.IsActive, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
