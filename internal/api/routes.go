package api

import (
	"net/http"

	"github.com/RMahshie/sleepsense/internal/api/handlers"
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all API routes. gatherer serves /metrics when non-nil.
func RegisterRoutes(router chi.Router, api huma.API, sessionHandler *handlers.SessionHandler, studyHandler *handlers.StudyHandler, gatherer prometheus.Gatherer) {
	huma.Register(api, huma.Operation{
		OperationID: "openSession",
		Method:      http.MethodPost,
		Path:        "/api/sessions",
		Summary:     "Open a recording",
		Description: "Loads a CSV/TXT recording into a new viewer session, falling back to mock data when it cannot be read",
		Tags:        []string{"Sessions"},
	}, sessionHandler.OpenSession)

	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List sessions",
		Tags:        []string{"Sessions"},
	}, sessionHandler.ListSessions)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}",
		Summary:     "Get session",
		Description: "Returns the record metadata and current view state of a session",
		Tags:        []string{"Sessions"},
	}, sessionHandler.GetSession)

	huma.Register(api, huma.Operation{
		OperationID:   "closeSession",
		Method:        http.MethodDelete,
		Path:          "/api/sessions/{id}",
		Summary:       "Close session",
		DefaultStatus: http.StatusNoContent,
		Tags:          []string{"Sessions"},
	}, sessionHandler.CloseSession)

	huma.Register(api, huma.Operation{
		OperationID: "setWindow",
		Method:      http.MethodPut,
		Path:        "/api/sessions/{id}/window",
		Summary:     "Set window",
		Description: "Moves the visible window to a start offset and frame size",
		Tags:        []string{"Navigation"},
	}, sessionHandler.SetWindow)

	huma.Register(api, huma.Operation{
		OperationID: "setFrame",
		Method:      http.MethodPut,
		Path:        "/api/sessions/{id}/frame",
		Summary:     "Set frame size",
		Tags:        []string{"Navigation"},
	}, sessionHandler.SetFrame)

	huma.Register(api, huma.Operation{
		OperationID: "navigate",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/navigate",
		Summary:     "Navigate",
		Description: "Advances, retreats, steps or jumps the visible window",
		Tags:        []string{"Navigation"},
	}, sessionHandler.Navigate)

	huma.Register(api, huma.Operation{
		OperationID: "setViewMode",
		Method:      http.MethodPut,
		Path:        "/api/sessions/{id}/mode",
		Summary:     "Set view mode",
		Tags:        []string{"Navigation"},
	}, sessionHandler.SetMode)

	huma.Register(api, huma.Operation{
		OperationID: "setComparison",
		Method:      http.MethodPut,
		Path:        "/api/sessions/{id}/comparison",
		Summary:     "Set comparison offset",
		Description: "Moves the second pane drawn in Comparison mode relative to the visible window",
		Tags:        []string{"Navigation"},
	}, sessionHandler.SetComparison)

	huma.Register(api, huma.Operation{
		OperationID: "setZoom",
		Method:      http.MethodPut,
		Path:        "/api/sessions/{id}/zoom",
		Summary:     "Set channel zoom",
		Description: "Sets a channel's zoom factor, or toggles it between 1x and 2x when no factor is given",
		Tags:        []string{"Navigation"},
	}, sessionHandler.SetZoom)

	huma.Register(api, huma.Operation{
		OperationID: "getPlot",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/plot.png",
		Summary:     "Render window",
		Description: "Renders the active channels of the visible window as a PNG",
		Tags:        []string{"Navigation"},
	}, sessionHandler.GetPlot)

	huma.Register(api, huma.Operation{
		OperationID: "getSummary",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/summary",
		Summary:     "Get analysis summary",
		Description: "Returns the whole-record respiratory, oximetry, snore and position analysis",
		Tags:        []string{"Analysis"},
	}, sessionHandler.GetSummary)

	huma.Register(api, huma.Operation{
		OperationID: "getEvents",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/events",
		Summary:     "List respiratory events",
		Description: "Returns apneas and hypopneas overlapping a span, by default the visible window",
		Tags:        []string{"Analysis"},
	}, sessionHandler.GetEvents)

	huma.Register(api, huma.Operation{
		OperationID:   "createReport",
		Method:        http.MethodPost,
		Path:          "/api/sessions/{id}/reports",
		Summary:       "Export report",
		Description:   "Writes a PDF report or xlsx summary and archives it when storage is configured",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"Reports"},
	}, sessionHandler.CreateReport)

	huma.Register(api, huma.Operation{
		OperationID: "listStudies",
		Method:      http.MethodGet,
		Path:        "/api/studies",
		Summary:     "List study history",
		Description: "Returns recorded viewing sessions, newest first",
		Tags:        []string{"Studies"},
	}, studyHandler.ListStudies)

	huma.Register(api, huma.Operation{
		OperationID: "getStudy",
		Method:      http.MethodGet,
		Path:        "/api/studies/{id}",
		Summary:     "Get study",
		Description: "Returns a recorded study with the reports exported from it",
		Tags:        []string{"Studies"},
	}, studyHandler.GetStudy)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}
