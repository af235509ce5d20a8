package processing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RMahshie/sleepsense/internal/cache"
	"github.com/RMahshie/sleepsense/internal/metrics"
	"github.com/RMahshie/sleepsense/internal/report"
	"github.com/RMahshie/sleepsense/internal/repository"
	"github.com/RMahshie/sleepsense/internal/session"
	"github.com/RMahshie/sleepsense/internal/storage"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Report formats
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

type ReportService interface {
	// Summarize returns the session's summary, consulting the cache and then
	// the stored summaries before running the summarizer
	Summarize(ctx context.Context, sess *session.Session) (*models.AnalysisSummary, error)
	GenerateReport(ctx context.Context, sess *session.Session, path string) (*models.Report, error)
	ExportWorkbook(ctx context.Context, sess *session.Session, path string) (*models.Report, error)
	DownloadURL(ctx context.Context, rep *models.Report) (string, error)
}

// Dependencies of the report pipeline. Every collaborator except the
// exporters may be nil, which disables its step.
type Dependencies struct {
	PDF       report.Exporter
	Workbook  report.Exporter
	Cache     cache.SummaryCache
	Summaries repository.SummaryRepository
	Reports   repository.ReportRepository
	Archive   storage.S3Service
	Metrics   *metrics.Metrics
}

type reportService struct {
	deps Dependencies
	now  func() time.Time
}

func NewReportService(deps Dependencies) ReportService {
	if deps.PDF == nil {
		deps.PDF = report.NewPDFExporter()
	}
	if deps.Workbook == nil {
		deps.Workbook = report.NewWorkbookExporter()
	}
	return &reportService{deps: deps, now: time.Now}
}

func (s *reportService) Summarize(ctx context.Context, sess *session.Session) (*models.AnalysisSummary, error) {
	fingerprint := sess.Record().Fingerprint()

	if s.deps.Cache != nil {
		cached, err := s.deps.Cache.Get(ctx, fingerprint)
		switch {
		case err == nil:
			if sum := sess.UseSummary(cached); sum != nil {
				s.deps.Metrics.CacheLookup(true)
				return sum, nil
			}
		case !errors.Is(err, cache.ErrMiss):
			log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Summary cache read failed")
		}
		s.deps.Metrics.CacheLookup(false)
	}

	sum := s.storedSummary(ctx, sess)
	if sum == nil {
		var err error
		if sum, err = sess.Summary(ctx); err != nil {
			return nil, fmt.Errorf("failed to summarize record: %w", err)
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, sum); err != nil {
			log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Summary cache write failed")
		}
	}
	return sum, nil
}

// storedSummary adopts the summary persisted for the record, nil when there is none
func (s *reportService) storedSummary(ctx context.Context, sess *session.Session) *models.AnalysisSummary {
	if s.deps.Summaries == nil {
		return nil
	}
	if sum := sess.CurrentSummary(); sum != nil {
		return sum
	}
	fingerprint := sess.Record().Fingerprint()
	stored, err := s.deps.Summaries.GetSummary(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Stored summary lookup failed")
		}
		return nil
	}
	sum := sess.UseSummary(stored)
	if sum != nil {
		log.Debug().Str("session_id", sess.ID()).Str("fingerprint", fingerprint).Msg("Using stored summary")
	}
	return sum
}

func (s *reportService) GenerateReport(ctx context.Context, sess *session.Session, path string) (*models.Report, error) {
	return s.export(ctx, sess, path, FormatPDF, s.deps.PDF, report.PDFPages)
}

func (s *reportService) ExportWorkbook(ctx context.Context, sess *session.Session, path string) (*models.Report, error) {
	return s.export(ctx, sess, path, FormatXLSX, s.deps.Workbook, 0)
}

func (s *reportService) export(ctx context.Context, sess *session.Session, path, format string, exporter report.Exporter, pages int) (*models.Report, error) {
	started := s.now()
	elapsed := func() float64 { return s.now().Sub(started).Seconds() }

	// Step 1: Summary from cache or summarizer
	sum, err := s.Summarize(ctx, sess)
	if err != nil {
		s.deps.Metrics.ReportExported(format, elapsed(), err)
		return nil, err
	}

	// Step 2: Persist summary (non-fatal)
	if s.deps.Summaries != nil {
		if err := s.deps.Summaries.StoreSummary(ctx, sess.ID(), sum); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID()).Msg("Failed to persist summary")
		}
	}

	// Step 3: Write the file
	if err := exporter.Export(ctx, sum, sess.Record(), path); err != nil {
		s.deps.Metrics.ReportExported(format, elapsed(), err)
		log.Error().Err(err).Str("session_id", sess.ID()).Str("path", path).Msg("Report export failed")
		return nil, err
	}

	rep := &models.Report{
		ID:        uuid.New().String(),
		SessionID: sess.ID(),
		Format:    format,
		Path:      path,
		Pages:     pages,
		AHI:       sum.AHI,
		CreatedAt: s.now().UTC(),
	}
	if info, err := os.Stat(path); err == nil {
		rep.SizeBytes = info.Size()
	}

	// Step 4: Archive upload (non-fatal)
	if s.deps.Archive != nil {
		if key, err := s.archive(ctx, rep); err != nil {
			s.deps.Metrics.ArchiveFailed()
			log.Warn().Err(err).Str("report_id", rep.ID).Msg("Failed to archive report")
		} else {
			rep.ArchiveKey = &key
		}
	}

	// Step 5: Persist report row (non-fatal); an unrecorded archive copy is removed
	if s.deps.Reports != nil {
		if err := s.deps.Reports.CreateReport(ctx, rep); err != nil {
			log.Warn().Err(err).Str("report_id", rep.ID).Msg("Failed to persist report")
			s.discardArchive(ctx, rep)
		}
	}

	s.deps.Metrics.ReportExported(format, elapsed(), nil)
	s.deps.Metrics.ObserveAHI(sum.AHI)

	log.Info().
		Str("session_id", sess.ID()).
		Str("report_id", rep.ID).
		Str("format", format).
		Str("path", path).
		Int64("size_bytes", rep.SizeBytes).
		Msg("Report generated")
	return rep, nil
}

func (s *reportService) archive(ctx context.Context, rep *models.Report) (string, error) {
	contentType, err := storage.ContentTypeFor(rep.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(rep.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read report for upload: %w", err)
	}
	key := storage.ReportKey(rep.SessionID, rep.ID, rep.Path)
	if err := s.deps.Archive.UploadFile(ctx, key, contentType, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *reportService) discardArchive(ctx context.Context, rep *models.Report) {
	if s.deps.Archive == nil || rep.ArchiveKey == nil {
		return
	}
	if err := s.deps.Archive.DeleteFile(ctx, *rep.ArchiveKey); err != nil {
		log.Warn().Err(err).Str("report_id", rep.ID).Str("key", *rep.ArchiveKey).Msg("Failed to remove unrecorded archive copy")
		return
	}
	rep.ArchiveKey = nil
}

// DownloadURL presigns the archived copy of a report, empty when it was not archived
func (s *reportService) DownloadURL(ctx context.Context, rep *models.Report) (string, error) {
	if s.deps.Archive == nil || rep.ArchiveKey == nil {
		return "", nil
	}
	return s.deps.Archive.GenerateDownloadURL(ctx, *rep.ArchiveKey)
}
