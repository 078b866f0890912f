// Package directory exposes the patient and doctor registries consumed by the
// document lifecycle for existence and ownership checks. The registries are
// owned by other systems; this package only reads them.
package directory

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a row in the patient registry.
type Patient struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	FullName   string     `db:"full_name" json:"full_name"`
	Email      *string    `db:"email" json:"email,omitempty"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	HospitalID *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Doctor is a row in the doctor registry.
type Doctor struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	FullName   string     `db:"full_name" json:"full_name"`
	Email      *string    `db:"email" json:"email,omitempty"`
	Specialty  *string    `db:"specialty" json:"specialty,omitempty"`
	HospitalID *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
