package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/sleepsense/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// StudyRepository defines the interface for study session history
type StudyRepository interface {
	CreateStudy(ctx context.Context, study *models.StudySession) error
	GetStudy(ctx context.Context, id string) (*models.StudySession, error)
	ListStudies(ctx context.Context, limit int) ([]*models.StudySession, error)
}

// SummaryRepository defines the interface for persisted analysis summaries
type SummaryRepository interface {
	StoreSummary(ctx context.Context, sessionID string, sum *models.AnalysisSummary) error
	GetSummary(ctx context.Context, fingerprint string) (*models.AnalysisSummary, error)
}

// ReportRepository defines the interface for exported report history
type ReportRepository interface {
	CreateReport(ctx context.Context, report *models.Report) error
	GetReportsBySession(ctx context.Context, sessionID string) ([]*models.Report, error)
}

// Repository is the full persistence surface
type Repository interface {
	StudyRepository
	SummaryRepository
	ReportRepository
}
