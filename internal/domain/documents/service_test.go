package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/directory"
	"github.com/medicore/medicore/internal/platform/filestore"
	"github.com/medicore/medicore/internal/platform/seal"
)

// mockRepo is an in-memory Repository for service tests.
type mockRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*Record

	advanceCalls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{docs: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.docs[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.docs[r.ID] = &cp
	return nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.docs[id]
	if !ok || !r.IsActive {
		return ErrNotFound
	}
	r.IsActive = false
	return nil
}

func (m *mockRepo) AdvanceStatus(_ context.Context, id uuid.UUID, from []Status, to Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceCalls++

	r, ok := m.docs[id]
	if !ok || !r.IsActive {
		return false, nil
	}
	legal := false
	for _, f := range from {
		if r.Status == f {
			legal = true
			break
		}
	}
	if !legal {
		return false, nil
	}

	r.Status = to
	switch to {
	case StatusSent:
		if r.SentAt == nil {
			r.SentAt = &at
		}
	case StatusViewed:
		if r.ViewedAt == nil {
			r.ViewedAt = &at
		}
	case StatusDownloaded:
		if r.DownloadedAt == nil {
			r.DownloadedAt = &at
		}
	}
	return true, nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Record
	for _, r := range m.docs {
		if !r.IsActive || r.DoctorID != doctorID {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.PatientID != uuid.Nil && r.PatientID != f.PatientID {
			continue
		}
		cp := *r
		matched = append(matched, &cp)
	}
	return page(matched, limit, offset), len(matched), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Record
	for _, r := range m.docs {
		if !r.IsActive || r.PatientID != patientID || r.Status == StatusDraft {
			continue
		}
		cp := *r
		matched = append(matched, &cp)
	}
	return page(matched, limit, offset), len(matched), nil
}

func (m *mockRepo) StatsByDoctor(_ context.Context, doctorID uuid.UUID, asOf time.Time) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{
		ByStatus: make(map[Status]int),
		ByType:   make(map[Type]int),
	}
	for _, r := range m.docs {
		if !r.IsActive || r.DoctorID != doctorID {
			continue
		}
		stats.Total++
		stats.ByStatus[r.Status]++
		stats.ByType[r.Type]++
		if r.Expired(asOf) {
			stats.Expired++
		}
	}
	return stats, nil
}

func page(items []*Record, limit, offset int) []*Record {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// mockNotifier records dispatch notifications.
type mockNotifier struct {
	mu   sync.Mutex
	sent []uuid.UUID
	err  error
}

func (m *mockNotifier) DocumentSent(_ context.Context, _ *directory.Patient, doc *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, doc.ID)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	svc      *Service
	repo     *mockRepo
	files    *filestore.MemStore
	notifier *mockNotifier
	now      time.Time

	doctor  Caller
	patient Caller
	admin   Caller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sealer, err := seal.New(bytes.Repeat([]byte{0x42}, seal.KeySize))
	if err != nil {
		t.Fatalf("create sealer: %v", err)
	}

	dir := directory.NewMemRepo()
	doc := dir.AddDoctor(&directory.Doctor{FullName: "Dr. Vance"})
	pat := dir.AddPatient(&directory.Patient{FullName: "Ana Soto"})

	repo := newMockRepo()
	files := filestore.NewMemStore()
	notifier := &mockNotifier{}

	svc := NewService(repo, dir, files, sealer, notifier, zerolog.Nop())
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &testEnv{
		svc:      svc,
		repo:     repo,
		files:    files,
		notifier: notifier,
		now:      now,
		doctor:   Caller{ID: doc.ID, Role: RoleDoctor},
		patient:  Caller{ID: pat.ID, Role: RolePatient},
		admin:    Caller{ID: uuid.New(), Role: RoleAdmin},
	}
}

func (e *testEnv) create(t *testing.T, in CreateInput) *Record {
	t.Helper()
	if in.Title == "" {
		in.Title = "Prescription"
	}
	if in.Type == "" {
		in.Type = TypePrescription
	}
	if in.Content == "" {
		in.Content = `{"medication":"Amoxicillin"}`
	}
	if in.PatientID == uuid.Nil {
		in.PatientID = e.patient.ID
	}
	rec, err := e.svc.Create(context.Background(), e.doctor, in)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return rec
}

func TestCreateStampsRetentionAndStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.create(t, CreateInput{Type: TypePrescription, Content: `{"medication":"Amoxicillin"}`})

	if rec.Status != StatusSent {
		t.Errorf("status = %q, want %q", rec.Status, StatusSent)
	}
	if rec.SentAt == nil || !rec.SentAt.Equal(env.now) {
		t.Errorf("SentAt = %v, want %v", rec.SentAt, env.now)
	}
	wantExpiry := env.now.AddDate(0, 0, 30)
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, wantExpiry)
	}
	if !rec.IsEncrypted {
		t.Error("expected record to be marked encrypted")
	}
	if rec.Content != `{"medication":"Amoxicillin"}` {
		t.Errorf("response content = %q, want plaintext back", rec.Content)
	}

	// stored content must be sealed, not plaintext
	stored, err := env.repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("fetch stored record: %v", err)
	}
	if stored.Content == rec.Content {
		t.Error("stored content is plaintext, expected sealed value")
	}
	if !strings.Contains(stored.Content, ":") {
		t.Errorf("stored content %q is not in sealed form", stored.Content)
	}

	if env.notifier.count() != 1 {
		t.Errorf("notifications sent = %d, want 1", env.notifier.count())
	}
}

func TestCreateDraftSkipsDispatch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.create(t, CreateInput{Draft: true})

	if rec.Status != StatusDraft {
		t.Errorf("status = %q, want %q", rec.Status, StatusDraft)
	}
	if rec.SentAt != nil {
		t.Errorf("SentAt = %v, want nil for drafts", rec.SentAt)
	}
	if env.notifier.count() != 0 {
		t.Errorf("notifications sent = %d, want 0 for drafts", env.notifier.count())
	}
}

func TestCreateRejectsNonDoctors(t *testing.T) {
	env := newTestEnv(t)
	in := CreateInput{Title: "x", Type: TypePrescription, PatientID: env.patient.ID}

	for _, caller := range []Caller{env.patient, env.admin} {
		_, err := env.svc.Create(context.Background(), caller, in)
		if !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("create as %s: err = %v, want ErrNotAuthorized", caller.Role, err)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Create(ctx, env.doctor, CreateInput{Type: TypePrescription, PatientID: env.patient.ID}); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := env.svc.Create(ctx, env.doctor, CreateInput{Title: "x", Type: "invoice", PatientID: env.patient.ID}); err == nil {
		t.Error("expected error for invalid type")
	}
	_, err := env.svc.Create(ctx, env.doctor, CreateInput{Title: "x", Type: TypePrescription, PatientID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown patient: err = %v, want ErrNotFound", err)
	}
}

func TestCreateStoresArtifact(t *testing.T) {
	env := newTestEnv(t)

	rec := env.create(t, CreateInput{
		FileName: "rx.pdf",
		File:     strings.NewReader("%PDF-1.4 fake"),
	})

	if rec.File == nil {
		t.Fatal("expected file reference on record")
	}
	if rec.File.Name != "rx.pdf" {
		t.Errorf("file name = %q, want %q", rec.File.Name, "rx.pdf")
	}
	if rec.File.SizeBytes != int64(len("%PDF-1.4 fake")) {
		t.Errorf("file size = %d, want %d", rec.File.SizeBytes, len("%PDF-1.4 fake"))
	}

	rc, err := env.files.Open(context.Background(), rec.File.URL)
	if err != nil {
		t.Fatalf("open stored artifact: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "%PDF-1.4 fake" {
		t.Errorf("artifact body = %q", body)
	}
}

func TestGetPatientReadAdvancesToViewed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t, CreateInput{})

	got, err := env.svc.Get(context.Background(), env.patient, rec.ID)
	if err != nil {
		t.Fatalf("patient get: %v", err)
	}
	if got.Status != StatusViewed {
		t.Errorf("status = %q, want %q", got.Status, StatusViewed)
	}
	if got.ViewedAt == nil {
		t.Error("ViewedAt not stamped")
	}

	// a second read must not advance again
	calls := env.repo.advanceCalls
	got, err = env.svc.Get(context.Background(), env.patient, rec.ID)
	if err != nil {
		t.Fatalf("second patient get: %v", err)
	}
	if got.Status != StatusViewed {
		t.Errorf("status after second read = %q, want %q", got.Status, StatusViewed)
	}
	if env.repo.advanceCalls != calls {
		t.Error("second read attempted another status transition")
	}
}

func TestGetDoctorReadDoesNotAdvance(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t, CreateInput{})

	got, err := env.svc.Get(context.Background(), env.doctor, rec.ID)
	if err != nil {
		t.Fatalf("doctor get: %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("status = %q, want %q", got.Status, StatusSent)
	}
}

func TestGetAccessControl(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t, CreateInput{})
	ctx := context.Background()

	stranger := Caller{ID: uuid.New(), Role: RoleDoctor}
	if _, err := env.svc.Get(ctx, stranger, rec.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger get: err = %v, want ErrForbidden", err)
	}

	if _, err := env.svc.Get(ctx, env.admin, rec.ID); err != nil {
		t.Errorf("admin get: %v", err)
	}

	if _, err := env.svc.Get(ctx, env.doctor, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing document: err = %v, want ErrNotFound", err)
	}
}

func TestGetDegradesOnUndecryptableContent(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t, CreateInput{})

	// corrupt the sealed value in storage
	stored, _ := env.repo.GetByID(context.Background(), rec.ID)
	stored.Content = "deadbeef:deadbeef"
	if err := env.repo.Update(context.Background(), stored); err != nil {
		t.Fatalf("corrupt stored record: %v", err)
	}

	got, err := env.svc.Get(context.Background(), env.doctor, rec.ID)
	if err != nil {
		t.Fatalf("get with corrupt content: %v", err)
	}
	if got.Content != "deadbeef:deadbeef" {
		t.Errorf("content = %q, want the sealed value back", got.Content)
	}
}

func TestDownloadAdvancesToDownloaded(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t, CreateInput{FileName: "rx.pdf", File: strings.NewReader("pdf-bytes")})

	rc, got, err := env.svc.Download(context.Background(), env.patient, rec.ID)
	if err != nil {
		t.Fatalf("patient download: %v", err)
	}
	defer rc.Close()

	if got.Status != StatusDownloaded {
		t.Errorf("status = %q, want %q", got.Status, StatusDownloaded)
	}
	if got.DownloadedAt == nil {
		t.Error("DownloadedAt not stamped")
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "pdf-bytes" {
		t.Errorf("download body = %q", body)
	}
}

func TestDownloadViewedStillAdvances(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t, CreateInput{FileName: "rx.pdf", File: strings.NewReader("pdf-bytes")})

	if _, err := env.svc.Get(context.Background(), env.patient, rec.ID); err != nil {
		t.Fatalf("view first: %v", err)
	}

	rc, got, err := env.svc.Download(context.Background(), env.patient, rec.ID)
	if err != nil {
		t.Fatalf("download after view: %v", err)
	}
	defer rc.Close()
	if got.Status != StatusDownloaded {
		t.Errorf("status = %q, want %q", got.Status, StatusDownloaded)
	}
}

func TestDownloadWithoutArtifact(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t, CreateInput{})

	_, _, err := env.svc.Download(context.Background(), env.patient, rec.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateDraftOnly(t *testing.T) {
	env := newTestEnv(t)
	sent := env.create(t, CreateInput{})

	title := "Amended"
	_, err := env.svc.Update(context.Background(), env.doctor, sent.ID, UpdateInput{Title: &title})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("editing a sent document: err = %v, want ErrInvalidState", err)
	}
}

func TestUpdateOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	draft := env.create(t, CreateInput{Draft: true})

	other := Caller{ID: uuid.New(), Role: RoleDoctor}
	title := "Amended"
	_, err := env.svc.Update(context.Background(), other, draft.ID, UpdateInput{Title: &title})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestUpdatePatchesAndReseals(t *testing.T) {
	env := newTestEnv(t)
	draft := env.create(t, CreateInput{Draft: true})

	title := "Amended prescription"
	content := `{"medication":"Ibuprofen"}`
	got, err := env.svc.Update(context.Background(), env.doctor, draft.ID, UpdateInput{
		Title:   &title,
		Content: &content,
	})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if got.Title != title {
		t.Errorf("title = %q, want %q", got.Title, title)
	}
	if got.Content != content {
		t.Errorf("content = %q, want plaintext back", got.Content)
	}

	stored, _ := env.repo.GetByID(context.Background(), draft.ID)
	if stored.Content == content {
		t.Error("stored content is plaintext, expected re-sealed value")
	}
}

func TestUpdateDispatchesDraft(t *testing.T) {
	env := newTestEnv(t)
	draft := env.create(t, CreateInput{Draft: true})

	status := StatusSent
	got, err := env.svc.Update(context.Background(), env.doctor, draft.ID, UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("dispatch draft: %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("status = %q, want %q", got.Status, StatusSent)
	}
	if got.SentAt == nil || !got.SentAt.Equal(env.now) {
		t.Errorf("SentAt = %v, want %v", got.SentAt, env.now)
	}
	if env.notifier.count() != 1 {
		t.Errorf("notifications sent = %d, want 1", env.notifier.count())
	}

	// any target other than sent is rejected
	bad := StatusDownloaded
	draft2 := env.create(t, CreateInput{Draft: true})
	if _, err := env.svc.Update(context.Background(), env.doctor, draft2.ID, UpdateInput{Status: &bad}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("draft to downloaded: err = %v, want ErrInvalidState", err)
	}
}

func TestSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.create(t, CreateInput{})
	if err := env.svc.SoftDelete(ctx, env.patient, rec.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient delete: err = %v, want ErrForbidden", err)
	}
	other := Caller{ID: uuid.New(), Role: RoleDoctor}
	if err := env.svc.SoftDelete(ctx, other, rec.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other doctor delete: err = %v, want ErrForbidden", err)
	}

	if err := env.svc.SoftDelete(ctx, env.doctor, rec.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := env.svc.Get(ctx, env.doctor, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}

	rec2 := env.create(t, CreateInput{})
	if err := env.svc.SoftDelete(ctx, env.admin, rec2.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestListForDoctor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.create(t, CreateInput{Type: TypePrescription})
	env.create(t, CreateInput{Type: TypeSickNote, Title: "Sick note"})
	env.create(t, CreateInput{Type: TypeSickNote, Title: "Sick note 2", Draft: true})

	items, total, err := env.svc.ListForDoctor(ctx, env.doctor, ListFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Errorf("total = %d, len = %d, want 3 and 3", total, len(items))
	}

	_, total, err = env.svc.ListForDoctor(ctx, env.doctor, ListFilter{Type: TypeSickNote}, 10, 0)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if total != 2 {
		t.Errorf("sick notes = %d, want 2", total)
	}

	if _, _, err := env.svc.ListForDoctor(ctx, env.patient, ListFilter{}, 10, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("patient listing doctor view: err = %v, want ErrNotAuthorized", err)
	}
}

func TestListForPatientExcludesDrafts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.create(t, CreateInput{})
	env.create(t, CreateInput{Draft: true, Title: "Unsent"})

	items, total, err := env.svc.ListForPatient(ctx, env.patient, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("total = %d, len = %d, want 1 and 1", total, len(items))
	}

	if _, _, err := env.svc.ListForPatient(ctx, env.doctor, 10, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("doctor listing patient view: err = %v, want ErrNotAuthorized", err)
	}
}

func TestStatsForDoctor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.create(t, CreateInput{Type: TypePrescription})
	env.create(t, CreateInput{Type: TypePrescription, Draft: true})
	env.create(t, CreateInput{Type: TypeSickNote})

	stats, err := env.svc.StatsForDoctor(ctx, env.doctor)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[StatusSent] != 2 || stats.ByStatus[StatusDraft] != 1 {
		t.Errorf("by status = %v", stats.ByStatus)
	}
	if stats.ByType[TypePrescription] != 2 || stats.ByType[TypeSickNote] != 1 {
		t.Errorf("by type = %v", stats.ByType)
	}
	if stats.Expired != 0 {
		t.Errorf("expired = %d, want 0", stats.Expired)
	}

	if _, err := env.svc.StatsForDoctor(ctx, env.patient); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("patient stats: err = %v, want ErrNotAuthorized", err)
	}
}

func TestNotifierFailureDoesNotFailCreate(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("smtp down")

	rec := env.create(t, CreateInput{})
	if rec.Status != StatusSent {
		t.Errorf("status = %q, want %q", rec.Status, StatusSent)
	}
}

func TestGroupByType(t *testing.T) {
	a := &Record{Type: TypePrescription}
	b := &Record{Type: TypeSickNote}
	c := &Record{Type: TypePrescription}

	groups := GroupByType([]*Record{a, b, c})
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if len(groups[TypePrescription]) != 2 || len(groups[TypeSickNote]) != 1 {
		t.Errorf("bucket sizes wrong: %v", groups)
	}
	if groups[TypePrescription][0] != a || groups[TypePrescription][1] != c {
		t.Error("order within bucket not preserved")
	}
}
