package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/directory"
	"github.com/medicore/medicore/internal/platform/filestore"
	"github.com/medicore/medicore/internal/platform/seal"
)

// Role identifies the kind of caller invoking a lifecycle operation.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

// Notifier is told when a document becomes available to a patient. The
// concrete implementation lives in the notification platform; delivery
// failures never fail the lifecycle operation.
type Notifier interface {
	DocumentSent(ctx context.Context, patient *directory.Patient, doc *Record) error
}

type Service struct {
	repo     Repository
	patients directory.Repository
	files    filestore.Store
	sealer   *seal.Sealer
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires the document lifecycle. notifier may be nil.
func NewService(repo Repository, patients directory.Repository, files filestore.Store, sealer *seal.Sealer, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		files:    files,
		sealer:   sealer,
		notifier: notifier,
		logger:   logger.With().Str("component", "documents").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries everything needed to issue a document.
type CreateInput struct {
	Title      string
	Type       Type
	Content    string // JSON-serialized payload
	PatientID  uuid.UUID
	HospitalID *uuid.UUID
	Signature  *Signature
	Draft      bool
	FileName   string
	File       io.Reader // optional binary artifact
}

// Create issues a new document. Only doctors may create; the patient must
// exist. Content is sealed, the artifact (if any) is written to the file
// store, and the retention window is stamped exactly once, here.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateInput) (*Record, error) {
	if caller.Role != RoleDoctor {
		return nil, fmt.Errorf("create requires a doctor: %w", ErrNotAuthorized)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("invalid document type: %s", in.Type)
	}

	patient, err := s.patients.GetPatient(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("patient %s: %w", in.PatientID, ErrNotFound)
		}
		return nil, fmt.Errorf("look up patient: %w", err)
	}

	now := s.now()

	var fileRef *FileRef
	if in.File != nil {
		name := filestore.ArtifactName(string(in.Type), in.PatientID.String(), now)
		art, err := s.files.Save(ctx, name, in.File)
		if err != nil {
			return nil, fmt.Errorf("store artifact: %w", err)
		}
		fileRef = &FileRef{URL: art.URL, Name: in.FileName, SizeBytes: art.Size}
		if fileRef.Name == "" {
			fileRef.Name = art.Name
		}
	}

	sealed, err := s.sealer.Seal(in.Content)
	if err != nil {
		return nil, fmt.Errorf("seal content: %w", err)
	}

	expires := now.AddDate(0, 0, RetentionDays(in.Type))
	rec := &Record{
		ID:          uuid.New(),
		Title:       in.Title,
		Type:        in.Type,
		Content:     sealed,
		IsEncrypted: true,
		PatientID:   in.PatientID,
		DoctorID:    caller.ID,
		HospitalID:  in.HospitalID,
		File:        fileRef,
		Signature:   in.Signature,
		Status:      StatusSent,
		SentAt:      &now,
		ExpiresAt:   &expires,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Draft {
		rec.Status = StatusDraft
		rec.SentAt = nil
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}

	if rec.Status == StatusSent {
		s.notifySent(ctx, patient, rec)
	}

	s.logger.Info().
		Str("document_id", rec.ID.String()).
		Str("type", string(rec.Type)).
		Str("status", string(rec.Status)).
		Msg("document created")

	return s.unsealForRead(rec), nil
}

// Get fetches a document, decrypting content for the response. When the
// owning patient reads a sent document it advances to viewed exactly once.
func (s *Service) Get(ctx context.Context, caller Caller, id uuid.UUID) (*Record, error) {
	rec, err := s.fetchActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, rec); err != nil {
		return nil, err
	}

	if caller.Role == RolePatient && caller.ID == rec.PatientID && rec.Status == StatusSent {
		now := s.now()
		applied, err := s.repo.AdvanceStatus(ctx, rec.ID, []Status{StatusSent}, StatusViewed, now)
		if err != nil {
			return nil, fmt.Errorf("mark viewed: %w", err)
		}
		if applied {
			rec.Status = StatusViewed
			rec.ViewedAt = &now
		}
	}

	return s.unsealForRead(rec), nil
}

// Download returns the document's binary artifact. The owning patient's
// download advances the status to downloaded.
func (s *Service) Download(ctx context.Context, caller Caller, id uuid.UUID) (io.ReadCloser, *Record, error) {
	rec, err := s.fetchActive(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := authorizeRead(caller, rec); err != nil {
		return nil, nil, err
	}
	if rec.File == nil {
		return nil, nil, fmt.Errorf("document has no artifact: %w", ErrNotFound)
	}

	rc, err := s.files.Open(ctx, rec.File.URL)
	if err != nil {
		if errors.Is(err, filestore.ErrArtifactNotFound) {
			return nil, nil, fmt.Errorf("artifact %s: %w", rec.File.URL, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}

	if caller.Role == RolePatient && caller.ID == rec.PatientID && rec.Status.CanTransition(StatusDownloaded) {
		now := s.now()
		applied, err := s.repo.AdvanceStatus(ctx, rec.ID, []Status{StatusSent, StatusViewed}, StatusDownloaded, now)
		if err != nil {
			rc.Close()
			return nil, nil, fmt.Errorf("mark downloaded: %w", err)
		}
		if applied {
			rec.Status = StatusDownloaded
			rec.DownloadedAt = &now
		}
	}

	return rc, rec, nil
}

// UpdateInput is a partial patch; nil fields are left unchanged.
type UpdateInput struct {
	Title     *string
	Content   *string
	Signature *Signature
	Status    *Status // only draft -> sent is legal
}

// Update edits a draft. Only the owning doctor may edit, and only while the
// document is still a draft; patched content is re-sealed. Setting Status to
// sent dispatches the draft.
func (s *Service) Update(ctx context.Context, caller Caller, id uuid.UUID, in UpdateInput) (*Record, error) {
	rec, err := s.fetchActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.ID != rec.DoctorID {
		return nil, fmt.Errorf("only the owning doctor may edit: %w", ErrForbidden)
	}
	if rec.Status != StatusDraft {
		return nil, fmt.Errorf("document is %s, only drafts are editable: %w", rec.Status, ErrInvalidState)
	}

	if in.Title != nil {
		rec.Title = *in.Title
	}
	if in.Content != nil {
		sealed, err := s.sealer.Seal(*in.Content)
		if err != nil {
			return nil, fmt.Errorf("seal content: %w", err)
		}
		rec.Content = sealed
		rec.IsEncrypted = true
	}
	if in.Signature != nil {
		rec.Signature = in.Signature
	}
	if in.Status != nil {
		if *in.Status != StatusSent || !rec.Status.CanTransition(StatusSent) {
			return nil, fmt.Errorf("cannot move %s to %s: %w", rec.Status, *in.Status, ErrInvalidState)
		}
		now := s.now()
		rec.Status = StatusSent
		rec.SentAt = &now
	}
	rec.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist update: %w", err)
	}

	if in.Status != nil && rec.Status == StatusSent {
		if patient, err := s.patients.GetPatient(ctx, rec.PatientID); err == nil {
			s.notifySent(ctx, patient, rec)
		}
	}

	return s.unsealForRead(rec), nil
}

// SoftDelete tombstones a document. Permitted for the owning doctor or an
// admin; the record itself is never removed.
func (s *Service) SoftDelete(ctx context.Context, caller Caller, id uuid.UUID) error {
	rec, err := s.fetchActive(ctx, id)
	if err != nil {
		return err
	}
	if caller.Role != RoleAdmin && caller.ID != rec.DoctorID {
		return fmt.Errorf("only the owning doctor or an admin may delete: %w", ErrForbidden)
	}
	return s.repo.SoftDelete(ctx, id)
}

// ListForDoctor pages through the caller's own documents.
func (s *Service) ListForDoctor(ctx context.Context, caller Caller, f ListFilter, limit, offset int) ([]*Record, int, error) {
	if caller.Role != RoleDoctor {
		return nil, 0, fmt.Errorf("listing requires a doctor: %w", ErrNotAuthorized)
	}
	return s.repo.ListByDoctor(ctx, caller.ID, f, limit, offset)
}

// ListForPatient pages through the caller's documents, drafts excluded.
// Content stays sealed in listings; it is only decrypted on single reads.
func (s *Service) ListForPatient(ctx context.Context, caller Caller, limit, offset int) ([]*Record, int, error) {
	if caller.Role != RolePatient {
		return nil, 0, fmt.Errorf("listing requires a patient: %w", ErrNotAuthorized)
	}
	return s.repo.ListByPatient(ctx, caller.ID, limit, offset)
}

// StatsForDoctor aggregates the caller's documents by status and type.
func (s *Service) StatsForDoctor(ctx context.Context, caller Caller) (*Stats, error) {
	if caller.Role != RoleDoctor {
		return nil, fmt.Errorf("stats require a doctor: %w", ErrNotAuthorized)
	}
	return s.repo.StatsByDoctor(ctx, caller.ID, s.now())
}

// GroupByType buckets records by document type, preserving order within each
// bucket. Used for the patient-facing listing.
func GroupByType(items []*Record) map[Type][]*Record {
	groups := make(map[Type][]*Record)
	for _, r := range items {
		groups[r.Type] = append(groups[r.Type], r)
	}
	return groups
}

func (s *Service) fetchActive(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, fmt.Errorf("document %s is deleted: %w", id, ErrNotFound)
	}
	return rec, nil
}

func authorizeRead(caller Caller, rec *Record) error {
	if caller.Role == RoleAdmin {
		return nil
	}
	if caller.ID == rec.DoctorID || caller.ID == rec.PatientID {
		return nil
	}
	return fmt.Errorf("caller %s may not read document %s: %w", caller.ID, rec.ID, ErrForbidden)
}

// unsealForRead replaces sealed content with the plaintext payload. A decrypt
// failure degrades to the sealed value rather than failing the read; the
// record itself is untouched in storage either way.
func (s *Service) unsealForRead(rec *Record) *Record {
	if !rec.IsEncrypted {
		return rec
	}
	out := *rec
	plain, err := s.sealer.Unseal(rec.Content)
	if err != nil {
		var ce *seal.CipherError
		if errors.As(err, &ce) {
			s.logger.Warn().
				Str("document_id", rec.ID.String()).
				Err(err).
				Msg("content could not be unsealed, returning sealed value")
			return &out
		}
		s.logger.Error().Str("document_id", rec.ID.String()).Err(err).Msg("unseal failed")
		return &out
	}
	out.Content = plain
	return &out
}

func (s *Service) notifySent(ctx context.Context, patient *directory.Patient, rec *Record) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.DocumentSent(ctx, patient, rec); err != nil {
		s.logger.Warn().
			Str("document_id", rec.ID.String()).
			Err(err).
			Msg("document notification failed")
	}
}
