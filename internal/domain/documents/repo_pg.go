package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by Postgres.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const documentCols = `id, title, doc_type, content, is_encrypted,
	patient_id, doctor_id, hospital_id,
	file_url, file_name, file_size,
	signature_data, signed_at, signature_method,
	status, sent_at, viewed_at, downloaded_at, expires_at,
	is_active, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r         Record
		fileURL   *string
		fileName  *string
		fileSize  *int64
		sigData   *string
		signedAt  *time.Time
		sigMethod *string
	)
	err := row.Scan(&r.ID, &r.Title, &r.Type, &r.Content, &r.IsEncrypted,
		&r.PatientID, &r.DoctorID, &r.HospitalID,
		&fileURL, &fileName, &fileSize,
		&sigData, &signedAt, &sigMethod,
		&r.Status, &r.SentAt, &r.ViewedAt, &r.DownloadedAt, &r.ExpiresAt,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if fileURL != nil {
		r.File = &FileRef{URL: *fileURL, Name: strOrEmpty(fileName)}
		if fileSize != nil {
			r.File.SizeBytes = *fileSize
		}
	}
	if sigData != nil {
		r.Signature = &Signature{DoctorSignature: *sigData, SignedAt: signedAt, Method: strOrEmpty(sigMethod)}
	}
	return &r, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fileCols(r *Record) (url, name *string, size *int64) {
	if r.File == nil {
		return nil, nil, nil
	}
	return &r.File.URL, &r.File.Name, &r.File.SizeBytes
}

func sigCols(r *Record) (data, method *string, at *time.Time) {
	if r.Signature == nil {
		return nil, nil, nil
	}
	return &r.Signature.DoctorSignature, &r.Signature.Method, r.Signature.SignedAt
}

func (p *repoPG) Create(ctx context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	fileURL, fileName, fileSize := fileCols(r)
	sigData, sigMethod, signedAt := sigCols(r)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO document (id, title, doc_type, content, is_encrypted,
			patient_id, doctor_id, hospital_id,
			file_url, file_name, file_size,
			signature_data, signed_at, signature_method,
			status, sent_at, viewed_at, downloaded_at, expires_at, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		r.ID, r.Title, r.Type, r.Content, r.IsEncrypted,
		r.PatientID, r.DoctorID, r.HospitalID,
		fileURL, fileName, fileSize,
		sigData, signedAt, sigMethod,
		r.Status, r.SentAt, r.ViewedAt, r.DownloadedAt, r.ExpiresAt, r.IsActive)
	return err
}

func (p *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(p.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM document WHERE id = $1`, id))
}

func (p *repoPG) Update(ctx context.Context, r *Record) error {
	fileURL, fileName, fileSize := fileCols(r)
	sigData, sigMethod, signedAt := sigCols(r)
	tag, err := p.pool.Exec(ctx, `
		UPDATE document SET title=$2, content=$3, is_encrypted=$4,
			file_url=$5, file_name=$6, file_size=$7,
			signature_data=$8, signed_at=$9, signature_method=$10,
			status=$11, sent_at=$12, viewed_at=$13, downloaded_at=$14, expires_at=$15,
			updated_at=NOW()
		WHERE id = $1 AND is_active`,
		r.ID, r.Title, r.Content, r.IsEncrypted,
		fileURL, fileName, fileSize,
		sigData, signedAt, sigMethod,
		r.Status, r.SentAt, r.ViewedAt, r.DownloadedAt, r.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE document SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *repoPG) AdvanceStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time) (bool, error) {
	var tsCol string
	switch to {
	case StatusSent:
		tsCol = "sent_at"
	case StatusViewed:
		tsCol = "viewed_at"
	case StatusDownloaded:
		tsCol = "downloaded_at"
	default:
		return false, fmt.Errorf("advance to %q: no timestamp column", to)
	}

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	// Single-statement conditional update: the WHERE clause guards the
	// transition and COALESCE keeps the timestamp write-once.
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE document SET status = $2, %s = COALESCE(%s, $3), updated_at = NOW()
		WHERE id = $1 AND is_active AND status = ANY($4)`, tsCol, tsCol),
		id, to, at, fromStrs)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Record, int, error) {
	where := `WHERE doctor_id = $1 AND is_active`
	args := []interface{}{doctorID}
	if f.Type != "" {
		args = append(args, f.Type)
		where += fmt.Sprintf(` AND doc_type = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM document `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := p.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM document %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		documentCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (p *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	const where = `WHERE patient_id = $1 AND is_active AND status <> 'draft'`

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM document `+where, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT `+documentCols+` FROM document `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (p *repoPG) StatsByDoctor(ctx context.Context, doctorID uuid.UUID, asOf time.Time) (*Stats, error) {
	stats := &Stats{
		ByStatus: make(map[Status]int),
		ByType:   make(map[Type]int),
	}

	rows, err := p.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM document WHERE doctor_id = $1 AND is_active GROUP BY status`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		stats.ByStatus[s] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := p.pool.Query(ctx,
		`SELECT doc_type, COUNT(*) FROM document WHERE doctor_id = $1 AND is_active GROUP BY doc_type`, doctorID)
	if err != nil {
		return nil, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var t Type
		var n int
		if err := typeRows.Scan(&t, &n); err != nil {
			return nil, err
		}
		stats.ByType[t] = n
	}
	if err := typeRows.Err(); err != nil {
		return nil, err
	}

	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document WHERE doctor_id = $1 AND is_active AND expires_at < $2`,
		doctorID, asOf).Scan(&stats.Expired); err != nil {
		return nil, err
	}

	return stats, nil
}

func collectRecords(rows pgx.Rows) ([]*Record, error) {
	var items []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
