// Package documents implements the clinical document lifecycle: doctors issue
// typed documents to patients, content is encrypted at rest, each record
// carries a type-derived retention window, and patient reads advance a
// monotonic status.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the supported document types.
type Type string

const (
	TypePrescription         Type = "prescription"
	TypeMedicalReport        Type = "medical_report"
	TypeLabOrders            Type = "lab_orders"
	TypeTestResults          Type = "test_results"
	TypeFollowUpInstructions Type = "follow_up_instructions"
	TypeMedicationPlan       Type = "medication_plan"
	TypeSickNote             Type = "sick_note"
	TypeVisitSummary         Type = "visit_summary"
)

// Types lists every valid document type in display order.
var Types = []Type{
	TypePrescription,
	TypeMedicalReport,
	TypeLabOrders,
	TypeTestResults,
	TypeFollowUpInstructions,
	TypeMedicationPlan,
	TypeSickNote,
	TypeVisitSummary,
}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultRetentionDays applies to unrecognized types.
const DefaultRetentionDays = 365

var retentionDays = map[Type]int{
	TypePrescription:         30,
	TypeLabOrders:            7,
	TypeSickNote:             90,
	TypeTestResults:          365,
	TypeMedicalReport:        365,
	TypeFollowUpInstructions: 60,
	TypeMedicationPlan:       90,
	TypeVisitSummary:         365,
}

// RetentionDays returns the retention window for a document type. The table
// is consulted exactly once, at record creation; expiry is never recomputed.
func RetentionDays(t Type) int {
	if days, ok := retentionDays[t]; ok {
		return days
	}
	return DefaultRetentionDays
}

// Status is the lifecycle state of a document. Transitions are one-directional.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusSent       Status = "sent"
	StatusViewed     Status = "viewed"
	StatusDownloaded Status = "downloaded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusViewed, StatusDownloaded:
		return true
	}
	return false
}

// transitions is the allowed forward edges of the status machine:
// draft -(send)-> sent -(patient view)-> viewed -(patient download)-> downloaded.
// A download directly from sent is permitted; a view never follows a download.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusSent},
	StatusSent:       {StatusViewed, StatusDownloaded},
	StatusViewed:     {StatusDownloaded},
	StatusDownloaded: {},
}

// CanTransition reports whether moving from s to next is a legal advance.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FileRef points at the binary artifact stored in the file store.
type FileRef struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// Signature captures the doctor's sign-off on a document.
type Signature struct {
	DoctorSignature string     `json:"doctor_signature"`
	SignedAt        *time.Time `json:"signed_at,omitempty"`
	Method          string     `json:"method,omitempty"`
}

// Record is a persisted document. Content holds the sealed form whenever
// IsEncrypted is true; lifecycle reads replace it with the unsealed payload
// before returning the record to callers.
type Record struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Type        Type       `json:"type"`
	Content     string     `json:"content"`
	IsEncrypted bool       `json:"is_encrypted"`
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	HospitalID  *uuid.UUID `json:"hospital_id,omitempty"`
	File        *FileRef   `json:"file,omitempty"`
	Signature   *Signature `json:"signature,omitempty"`
	Status      Status     `json:"status"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the record's retention window has elapsed at the
// given instant. Expiry is informational; expired records are not purged.
func (r *Record) Expired(at time.Time) bool {
	return r.ExpiresAt != nil && at.After(*r.ExpiresAt)
}
