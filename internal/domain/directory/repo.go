package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient or doctor does not exist or is inactive.
var ErrNotFound = errors.New("directory: not found")

// Repository reads the patient and doctor registries.
type Repository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
}
