package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RMahshie/sleepsense/internal/repository"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/google/uuid"
)

// PostgresStudyRepository implements repository.Repository for PostgreSQL
type PostgresStudyRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStudyRepository creates a new PostgreSQL study repository
func NewPostgresStudyRepository(db *sql.DB) repository.Repository {
	return &PostgresStudyRepository{db: db, now: time.Now}
}

// CreateStudy inserts a study session
func (r *PostgresStudyRepository) CreateStudy(ctx context.Context, study *models.StudySession) error {
	query := `
		INSERT INTO studies (id, source, synthetic, fallback_reason, duration_seconds, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		study.ID,
		study.Source,
		study.Synthetic,
		study.FallbackReason,
		study.DurationSeconds,
		study.Fingerprint,
		study.CreatedAt)

	return err
}

const studyColumns = `id, source, synthetic, fallback_reason, duration_seconds, fingerprint, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStudy(row scanner) (*models.StudySession, error) {
	var study models.StudySession
	var reason sql.NullString

	err := row.Scan(
		&study.ID,
		&study.Source,
		&study.Synthetic,
		&reason,
		&study.DurationSeconds,
		&study.Fingerprint,
		&study.CreatedAt)
	if err != nil {
		return nil, err
	}

	if reason.Valid {
		study.FallbackReason = &reason.String
	}
	return &study, nil
}

// GetStudy retrieves a study session by ID
func (r *PostgresStudyRepository) GetStudy(ctx context.Context, id string) (*models.StudySession, error) {
	query := `SELECT ` + studyColumns + ` FROM studies WHERE id = $1`

	study, err := scanStudy(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("study %s: %w", id, repository.ErrNotFound)
	}
	return study, err
}

// ListStudies returns the most recent study sessions first
func (r *PostgresStudyRepository) ListStudies(ctx context.Context, limit int) ([]*models.StudySession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + studyColumns + ` FROM studies ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var studies []*models.StudySession
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		studies = append(studies, study)
	}
	return studies, rows.Err()
}

// StoreSummary upserts the summary of a session's record
func (r *PostgresStudyRepository) StoreSummary(ctx context.Context, sessionID string, sum *models.AnalysisSummary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `
		INSERT INTO summaries (id, session_id, fingerprint, ahi, rdi, severity, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, fingerprint) DO UPDATE
		SET ahi = EXCLUDED.ahi, rdi = EXCLUDED.rdi, severity = EXCLUDED.severity,
		    payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`

	_, err = r.db.ExecContext(ctx, query,
		uuid.New().String(),
		sessionID,
		sum.RecordFingerprint,
		sum.AHI,
		sum.RDI,
		string(sum.Severity),
		string(payload),
		r.now().UTC())

	return err
}

// GetSummary returns the latest stored summary for a record fingerprint
func (r *PostgresStudyRepository) GetSummary(ctx context.Context, fingerprint string) (*models.AnalysisSummary, error) {
	query := `
		SELECT payload
		FROM summaries
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var payload string
	err := r.db.QueryRowContext(ctx, query, fingerprint).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary %s: %w", fingerprint, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var sum models.AnalysisSummary
	if err := json.Unmarshal([]byte(payload), &sum); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &sum, nil
}

// CreateReport inserts an exported report record
func (r *PostgresStudyRepository) CreateReport(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, session_id, format, path, archive_key, size_bytes, pages, ahi, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.SessionID,
		report.Format,
		report.Path,
		report.ArchiveKey,
		report.SizeBytes,
		report.Pages,
		report.AHI,
		report.CreatedAt)

	return err
}

// GetReportsBySession lists a session's reports, newest first
func (r *PostgresStudyRepository) GetReportsBySession(ctx context.Context, sessionID string) ([]*models.Report, error) {
	query := `
		SELECT id, session_id, format, path, archive_key, size_bytes, pages, ahi, created_at
		FROM reports
		WHERE session_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		var report models.Report
		var archiveKey sql.NullString

		err := rows.Scan(
			&report.ID,
			&report.SessionID,
			&report.Format,
			&report.Path,
			&archiveKey,
			&report.SizeBytes,
			&report.Pages,
			&report.AHI,
			&report.CreatedAt)
		if err != nil {
			return nil, err
		}

		if archiveKey.Valid {
			report.ArchiveKey = &archiveKey.String
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}
