package documents

import "errors"

var (
	// ErrNotFound covers a missing/inactive document, a missing patient at
	// creation, and a missing artifact at download.
	ErrNotFound = errors.New("documents: not found")

	// ErrNotAuthorized is returned when the caller's role cannot perform the
	// operation at all (e.g. a patient calling create).
	ErrNotAuthorized = errors.New("documents: not authorized")

	// ErrForbidden is returned when the caller's role is acceptable but the
	// caller is neither the owning doctor, the owning patient, nor an admin.
	ErrForbidden = errors.New("documents: forbidden")

	// ErrInvalidState is returned when an operation is illegal for the
	// document's current status (e.g. editing a sent document).
	ErrInvalidState = errors.New("documents: invalid state")
)
