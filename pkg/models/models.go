package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// SessionPath identifies a session in the URL
type SessionPath struct {
	ID string `path:"id" doc:"Session ID"`
}

// OpenSessionRequest represents a request to open a recording in a new session
type OpenSessionRequest struct {
	Body struct {
		Source string `json:"source,omitempty" maxLength:"1024" doc:"Local path or s3://key of a CSV/TXT export; empty uses the configured data file"`
	}
}

// SessionInfo is the externally visible state of a session
type SessionInfo struct {
	ID              string        `json:"id" doc:"Session ID"`
	Source          string        `json:"source" doc:"Where the record came from"`
	Synthetic       bool          `json:"synthetic" doc:"Whether the record is mock data"`
	Notice          string        `json:"notice,omitempty" doc:"User-visible fallback notice"`
	DurationSeconds float64       `json:"duration_seconds" doc:"Record duration in seconds"`
	Channels        []ChannelName `json:"channels" doc:"Channels present in the record"`
	View            ViewState     `json:"view" doc:"Current navigation state"`
	ActiveChannels  []ChannelName `json:"active_channels" doc:"Channels shown in the current view mode"`
	DetailLevel     string        `json:"detail_level" doc:"Display detail level for the frame size"`
	Position        float64       `json:"position" minimum:"0" maximum:"1" doc:"Slider position of the window"`
	CreatedAt       time.Time     `json:"created_at" doc:"Session creation time"`
}

// SessionResponse wraps a session for huma
type SessionResponse struct {
	Body SessionInfo
}

// ViewResponse returns the navigation state after a mutation
type ViewResponse struct {
	Body struct {
		View            ViewState     `json:"view" doc:"Current navigation state"`
		ActiveChannels  []ChannelName `json:"active_channels" doc:"Channels shown in the current view mode"`
		DetailLevel     string        `json:"detail_level" doc:"Display detail level for the frame size"`
		Position        float64       `json:"position" doc:"Slider position of the window"`
		ComparisonStart float64       `json:"comparison_start" doc:"Start of the comparison pane in seconds"`
	}
}

// SetWindowRequest represents a request to move the visible window
type SetWindowRequest struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Start     float64 `json:"start" doc:"Window start in seconds"`
		FrameSize float64 `json:"frame_size" doc:"Window width in seconds"`
	}
}

// SetFrameRequest represents a request to resize the visible window
type SetFrameRequest struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		FrameSize float64 `json:"frame_size" doc:"Window width in seconds"`
	}
}

// NavigateRequest represents a relative or absolute navigation step
type NavigateRequest struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Action   string  `json:"action" enum:"advance,retreat,home,end,position,step_forward,step_back" required:"true" doc:"Navigation action"`
		Delta    float64 `json:"delta,omitempty" doc:"Seconds to move for advance/retreat"`
		Position float64 `json:"position,omitempty" minimum:"0" maximum:"1" doc:"Slider fraction for position"`
	}
}

// SetModeRequest represents a request to change the view mode
type SetModeRequest struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Mode string `json:"mode" required:"true" doc:"View mode key or label"`
	}
}

// SetComparisonRequest represents a request to move the comparison pane
type SetComparisonRequest struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Offset float64 `json:"offset" doc:"Seconds the comparison pane leads (positive) or trails (negative) the main window"`
	}
}

// SetZoomRequest represents a request to zoom one channel
type SetZoomRequest struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Channel string   `json:"channel" required:"true" doc:"Channel name"`
		Factor  *float64 `json:"factor,omitempty" doc:"Zoom factor; omitted toggles between 1x and 2x"`
	}
}

// SummaryResponse returns the whole-record analysis
type SummaryResponse struct {
	Body *AnalysisSummary
}

// EventsRequest selects the events of a time span
type EventsRequest struct {
	ID    string  `path:"id" doc:"Session ID"`
	Start float64 `query:"start" doc:"Span start in seconds (default: window start)"`
	End   float64 `query:"end" doc:"Span end in seconds (default: window end)"`
}

// EventsResponse lists respiratory events
type EventsResponse struct {
	Body struct {
		Start  float64            `json:"start" doc:"Span start in seconds"`
		End    float64            `json:"end" doc:"Span end in seconds"`
		Events []RespiratoryEvent `json:"events" doc:"Events overlapping the span"`
	}
}

// CreateReportRequest represents a request to export a report
type CreateReportRequest struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Format string `json:"format,omitempty" enum:"pdf,xlsx" default:"pdf" doc:"Report format"`
		Path   string `json:"path,omitempty" maxLength:"255" doc:"File name inside the report directory, with the format's extension; empty uses a timestamped name"`
	}
}

// CreateReportResponse describes the exported report
type CreateReportResponse struct {
	Body struct {
		Report      Report `json:"report" doc:"Exported report"`
		DownloadURL string `json:"download_url,omitempty" doc:"Pre-signed URL when the report was archived"`
	}
}

// SessionListResponse lists the open sessions
type SessionListResponse struct {
	Body struct {
		Sessions []SessionInfo `json:"sessions" doc:"Open sessions, oldest first"`
	}
}

// PlotRequest selects the rendered size of the current window
type PlotRequest struct {
	ID     string `path:"id" doc:"Session ID"`
	Width  int    `query:"width" minimum:"200" maximum:"4000" default:"1400" doc:"Image width in pixels"`
	Height int    `query:"height" minimum:"150" maximum:"4000" default:"800" doc:"Image height in pixels"`
}

// PlotResponse is a PNG of the current window
type PlotResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// StudyListRequest selects how much study history to return
type StudyListRequest struct {
	Limit int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum number of studies"`
}

// StudyListResponse lists past viewing sessions
type StudyListResponse struct {
	Body struct {
		Studies []*StudySession `json:"studies" doc:"Studies, newest first"`
	}
}

// StudyPath identifies a recorded study in the URL
type StudyPath struct {
	ID string `path:"id" doc:"Study ID (the session ID it was recorded under)"`
}

// StudyResponse is one study with the reports exported from it
type StudyResponse struct {
	Body struct {
		Study   *StudySession `json:"study" doc:"Recorded study"`
		Reports []*Report     `json:"reports" doc:"Reports exported from the study, newest first"`
	}
}
