package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows a doctor's document listing.
type ListFilter struct {
	Type      Type
	Status    Status
	PatientID uuid.UUID
}

// Stats aggregates a doctor's documents.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	ByType   map[Type]int   `json:"by_type"`
	Expired  int            `json:"expired"`
}

// Repository persists document records. Implementations map their "no rows"
// condition to ErrNotFound.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// AdvanceStatus atomically moves a document from any of the from states
	// to the to state, stamping the matching timestamp only if it is still
	// unset. It reports whether the transition applied; a false return with
	// nil error means another request already advanced the document.
	AdvanceStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time) (bool, error)

	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Record, int, error)
	// ListByPatient returns active, non-draft documents for a patient.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	StatsByDoctor(ctx context.Context, doctorID uuid.UUID, asOf time.Time) (*Stats, error)
}
