package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RMahshie/sleepsense/internal/metrics"
	"github.com/RMahshie/sleepsense/internal/navigation"
	"github.com/RMahshie/sleepsense/internal/processing"
	"github.com/RMahshie/sleepsense/internal/render"
	"github.com/RMahshie/sleepsense/internal/report"
	"github.com/RMahshie/sleepsense/internal/session"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
)

// SessionHandler handles viewer session requests
type SessionHandler struct {
	manager       *session.Manager
	reports       processing.ReportService
	metrics       *metrics.Metrics
	defaultSource string
	reportDir     string
	now           func() time.Time
}

// SessionHandlerConfig holds the handler's collaborators. Metrics may be nil.
type SessionHandlerConfig struct {
	Manager       *session.Manager
	Reports       processing.ReportService
	Metrics       *metrics.Metrics
	DefaultSource string
	ReportDir     string
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(cfg SessionHandlerConfig) *SessionHandler {
	return &SessionHandler{
		manager:       cfg.Manager,
		reports:       cfg.Reports,
		metrics:       cfg.Metrics,
		defaultSource: cfg.DefaultSource,
		reportDir:     cfg.ReportDir,
		now:           time.Now,
	}
}

// toHTTPError maps domain errors onto status codes
func toHTTPError(msg string, err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return huma.Error404NotFound("Session not found", err)
	case errors.Is(err, navigation.ErrOutOfRange),
		errors.Is(err, navigation.ErrUnknownChannel),
		errors.Is(err, navigation.ErrUnknownViewMode):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, report.ErrIO):
		return huma.Error500InternalServerError("Failed to write report", err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func (h *SessionHandler) lookup(id string) (*session.Session, error) {
	sess, err := h.manager.Get(id)
	if err != nil {
		return nil, toHTTPError("Session lookup failed", err)
	}
	return sess, nil
}

func sessionInfo(sess *session.Session) models.SessionInfo {
	v := sess.View()
	return models.SessionInfo{
		ID:              sess.ID(),
		Source:          sess.Record().Source(),
		Synthetic:       sess.Synthetic(),
		Notice:          sess.Notice(),
		DurationSeconds: sess.Record().Duration(),
		Channels:        sess.Record().ChannelNames(),
		View:            v.State,
		ActiveChannels:  v.ActiveChannels,
		DetailLevel:     v.DetailLevel,
		Position:        v.Position,
		CreatedAt:       sess.CreatedAt(),
	}
}

func viewResponse(v session.ViewSnapshot) *models.ViewResponse {
	resp := &models.ViewResponse{}
	resp.Body.View = v.State
	resp.Body.ActiveChannels = v.ActiveChannels
	resp.Body.DetailLevel = v.DetailLevel
	resp.Body.Position = v.Position
	resp.Body.ComparisonStart = v.ComparisonStart
	return resp
}

// OpenSession loads a recording, or mock data when it cannot be read
func (h *SessionHandler) OpenSession(ctx context.Context, req *models.OpenSessionRequest) (*models.SessionResponse, error) {
	source := req.Body.Source
	if source == "" {
		source = h.defaultSource
	}
	log.Info().Str("source", source).Msg("Open session request received")

	sess, err := h.manager.Open(ctx, source)
	if err != nil {
		return nil, toHTTPError("Failed to open session", err)
	}
	h.metrics.SessionOpened(sess.Synthetic())

	return &models.SessionResponse{Body: sessionInfo(sess)}, nil
}

func (h *SessionHandler) ListSessions(ctx context.Context, _ *struct{}) (*models.SessionListResponse, error) {
	resp := &models.SessionListResponse{}
	resp.Body.Sessions = []models.SessionInfo{}
	for _, sess := range h.manager.List() {
		resp.Body.Sessions = append(resp.Body.Sessions, sessionInfo(sess))
	}
	return resp, nil
}

func (h *SessionHandler) GetSession(ctx context.Context, req *models.SessionPath) (*models.SessionResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	return &models.SessionResponse{Body: sessionInfo(sess)}, nil
}

func (h *SessionHandler) CloseSession(ctx context.Context, req *models.SessionPath) (*struct{}, error) {
	if err := h.manager.Close(req.ID); err != nil {
		return nil, toHTTPError("Failed to close session", err)
	}
	return nil, nil
}

// SetWindow moves and resizes the visible window in one step
func (h *SessionHandler) SetWindow(ctx context.Context, req *models.SetWindowRequest) (*models.ViewResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	v, err := sess.SetWindow(req.Body.Start, req.Body.FrameSize)
	if err != nil {
		return nil, toHTTPError("Invalid window", err)
	}
	return viewResponse(v), nil
}

func (h *SessionHandler) SetFrame(ctx context.Context, req *models.SetFrameRequest) (*models.ViewResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	v, err := sess.SetFrameSize(req.Body.FrameSize)
	if err != nil {
		return nil, toHTTPError("Invalid frame size", err)
	}
	return viewResponse(v), nil
}

// Navigate applies one relative or absolute move. Advance and retreat
// without a delta move by a whole frame.
func (h *SessionHandler) Navigate(ctx context.Context, req *models.NavigateRequest) (*models.ViewResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}

	delta := req.Body.Delta
	if delta == 0 {
		delta = sess.View().State.FrameSize
	}

	var v session.ViewSnapshot
	switch req.Body.Action {
	case "advance":
		v = sess.Advance(delta)
	case "retreat":
		v = sess.Retreat(delta)
	case "step_forward":
		v = sess.StepForward()
	case "step_back":
		v = sess.StepBack()
	case "home":
		v = sess.JumpToStart()
	case "end":
		v = sess.JumpToEnd()
	case "position":
		if v, err = sess.SetPosition(req.Body.Position); err != nil {
			return nil, toHTTPError("Invalid position", err)
		}
	default:
		return nil, huma.Error400BadRequest(fmt.Sprintf("Unknown action %q", req.Body.Action))
	}
	return viewResponse(v), nil
}

func (h *SessionHandler) SetMode(ctx context.Context, req *models.SetModeRequest) (*models.ViewResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	mode, err := models.ParseViewMode(req.Body.Mode)
	if err != nil {
		return nil, toHTTPError("Invalid view mode", fmt.Errorf("%w: %v", navigation.ErrUnknownViewMode, err))
	}
	v, err := sess.SetViewMode(mode)
	if err != nil {
		return nil, toHTTPError("Invalid view mode", err)
	}
	return viewResponse(v), nil
}

// SetComparison moves the comparison pane drawn in Comparison mode
func (h *SessionHandler) SetComparison(ctx context.Context, req *models.SetComparisonRequest) (*models.ViewResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	v, err := sess.SetComparisonOffset(req.Body.Offset)
	if err != nil {
		return nil, toHTTPError("Invalid comparison offset", err)
	}
	return viewResponse(v), nil
}

// SetZoom sets one channel's zoom, or toggles it when no factor is given
func (h *SessionHandler) SetZoom(ctx context.Context, req *models.SetZoomRequest) (*models.ViewResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	ch, err := models.ParseChannelName(req.Body.Channel)
	if err != nil {
		return nil, toHTTPError("Invalid channel", fmt.Errorf("%w: %v", navigation.ErrUnknownChannel, err))
	}

	var v session.ViewSnapshot
	if req.Body.Factor == nil {
		v, err = sess.ToggleZoom(ch)
	} else {
		v, err = sess.SetZoom(ch, *req.Body.Factor)
	}
	if err != nil {
		return nil, toHTTPError("Invalid zoom", err)
	}
	return viewResponse(v), nil
}

func (h *SessionHandler) GetSummary(ctx context.Context, req *models.SessionPath) (*models.SummaryResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	sum, err := h.reports.Summarize(ctx, sess)
	if err != nil {
		return nil, toHTTPError("Failed to summarize record", err)
	}
	return &models.SummaryResponse{Body: sum}, nil
}

// GetEvents lists events in a span, defaulting to the visible window
func (h *SessionHandler) GetEvents(ctx context.Context, req *models.EventsRequest) (*models.EventsResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}

	start, end := req.Start, req.End
	if start == 0 && end == 0 {
		state := sess.View().State
		start, end = state.Start, state.End()
	}
	if end <= start {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("End %g must be after start %g", end, start))
	}

	// warm the session from the cache before filtering
	if _, err := h.reports.Summarize(ctx, sess); err != nil {
		return nil, toHTTPError("Failed to summarize record", err)
	}
	events, err := sess.Events(ctx, start, end)
	if err != nil {
		return nil, toHTTPError("Failed to list events", err)
	}

	resp := &models.EventsResponse{}
	resp.Body.Start = start
	resp.Body.End = end
	resp.Body.Events = events
	if resp.Body.Events == nil {
		resp.Body.Events = []models.RespiratoryEvent{}
	}
	return resp, nil
}

// GetPlot renders the current window as a PNG
func (h *SessionHandler) GetPlot(ctx context.Context, req *models.PlotRequest) (*models.PlotResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	if sess.View().State.Mode == models.ViewOSAAnalysis {
		if _, err := h.reports.Summarize(ctx, sess); err != nil {
			return nil, toHTTPError("Failed to summarize record", err)
		}
	}
	frame, err := sess.Frame(ctx, render.DefaultMaxPoints)
	if err != nil {
		return nil, toHTTPError("Failed to build frame", err)
	}

	var buf bytes.Buffer
	if err := render.WritePNG(frame, &buf, req.Width, req.Height); err != nil {
		return nil, huma.Error500InternalServerError("Failed to render plot", err)
	}
	return &models.PlotResponse{ContentType: "image/png", Body: buf.Bytes()}, nil
}

// CreateReport exports a PDF report or an xlsx summary of the session into
// the report directory. A requested name must be a plain file name carrying
// the format's extension.
func (h *SessionHandler) CreateReport(ctx context.Context, req *models.CreateReportRequest) (*models.CreateReportResponse, error) {
	sess, err := h.lookup(req.ID)
	if err != nil {
		return nil, err
	}

	format := req.Body.Format
	if format == "" {
		format = processing.FormatPDF
	}
	if format != processing.FormatPDF && format != processing.FormatXLSX {
		return nil, huma.Error400BadRequest(fmt.Sprintf("Unsupported report format %q", format))
	}

	var path string
	switch {
	case req.Body.Path != "":
		if path, err = report.NamedPath(h.reportDir, req.Body.Path, "."+format); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID()).Msg("Rejected report name")
			return nil, huma.Error400BadRequest("Invalid report file name", err)
		}
	case format == processing.FormatXLSX:
		path = report.DefaultWorkbookPath(h.reportDir, h.now())
	default:
		path = report.DefaultReportPath(h.reportDir, h.now())
	}
	log.Info().Str("session_id", sess.ID()).Str("format", format).Str("path", path).Msg("Report request received")

	var rep *models.Report
	if format == processing.FormatXLSX {
		rep, err = h.reports.ExportWorkbook(ctx, sess, path)
	} else {
		rep, err = h.reports.GenerateReport(ctx, sess, path)
	}
	if err != nil {
		return nil, toHTTPError("Failed to generate report", err)
	}

	resp := &models.CreateReportResponse{}
	resp.Body.Report = *rep
	url, err := h.reports.DownloadURL(ctx, rep)
	if err != nil {
		log.Warn().Err(err).Str("report_id", rep.ID).Msg("Failed to presign report download")
	}
	resp.Body.DownloadURL = url
	return resp, nil
}
