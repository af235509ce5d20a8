package handlers

import (
	"context"
	"errors"

	"github.com/RMahshie/sleepsense/internal/repository"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
)

// StudyHandler serves the recorded history of viewing sessions
type StudyHandler struct {
	studies repository.StudyRepository
	reports repository.ReportRepository
}

// NewStudyHandler creates a study handler. Without a study repository every
// request answers 503; without a report repository studies list no reports.
func NewStudyHandler(studies repository.StudyRepository, reports repository.ReportRepository) *StudyHandler {
	return &StudyHandler{studies: studies, reports: reports}
}

func (h *StudyHandler) available() error {
	if h.studies == nil {
		return huma.Error503ServiceUnavailable("Study history requires a database")
	}
	return nil
}

func (h *StudyHandler) ListStudies(ctx context.Context, req *models.StudyListRequest) (*models.StudyListResponse, error) {
	if err := h.available(); err != nil {
		return nil, err
	}
	studies, err := h.studies.ListStudies(ctx, req.Limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list studies")
		return nil, huma.Error500InternalServerError("Failed to list studies", err)
	}

	resp := &models.StudyListResponse{}
	resp.Body.Studies = studies
	if resp.Body.Studies == nil {
		resp.Body.Studies = []*models.StudySession{}
	}
	return resp, nil
}

// GetStudy returns one study and the reports exported from it
func (h *StudyHandler) GetStudy(ctx context.Context, req *models.StudyPath) (*models.StudyResponse, error) {
	if err := h.available(); err != nil {
		return nil, err
	}
	study, err := h.studies.GetStudy(ctx, req.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, huma.Error404NotFound("Study not found", err)
	}
	if err != nil {
		log.Error().Err(err).Str("study_id", req.ID).Msg("Failed to get study")
		return nil, huma.Error500InternalServerError("Failed to get study", err)
	}

	resp := &models.StudyResponse{}
	resp.Body.Study = study
	resp.Body.Reports = []*models.Report{}
	if h.reports != nil {
		reports, err := h.reports.GetReportsBySession(ctx, req.ID)
		if err != nil {
			log.Warn().Err(err).Str("study_id", req.ID).Msg("Failed to list study reports")
		} else if reports != nil {
			resp.Body.Reports = reports
		}
	}
	return resp, nil
}
