package models

import (
	"time"
)

// EventType classifies a respiratory event
type EventType string

const (
	EventApnea    EventType = "apnea"
	EventHypopnea EventType = "hypopnea"
)

// Severity is the AHI severity band
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// SeverityForAHI maps an apnea-hypopnea index to its band
func SeverityForAHI(ahi float64) Severity {
	switch {
	case ahi < 5:
		return SeverityNormal
	case ahi < 15:
		return SeverityMild
	case ahi < 30:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

// BodyPosition codes as written by the recording device
type BodyPosition int

const (
	PositionSupine BodyPosition = iota
	PositionLeft
	PositionRight
	PositionProne
	PositionUpright
)

func (p BodyPosition) String() string {
	switch p {
	case PositionSupine:
		return "supine"
	case PositionLeft:
		return "left"
	case PositionRight:
		return "right"
	case PositionProne:
		return "prone"
	case PositionUpright:
		return "upright"
	default:
		return "other"
	}
}

// RespiratoryEvent is one detected apnea or hypopnea
type RespiratoryEvent struct {
	Type     EventType    `json:"type" enum:"apnea,hypopnea" doc:"Event type"`
	Start    float64      `json:"start" doc:"Start offset in seconds"`
	End      float64      `json:"end" doc:"End offset in seconds"`
	Duration float64      `json:"duration" doc:"Duration in seconds"`
	Position BodyPosition `json:"position" doc:"Body position code at event end"`
	Effort   bool         `json:"effort" doc:"Whether thoracoabdominal effort was present (obstructive)"`
	REM      bool         `json:"rem" doc:"Whether the event fell in a REM-like period"`
}

// AnalysisSummary is a derived, read-only snapshot over a whole record
type AnalysisSummary struct {
	RecordFingerprint string    `json:"record_fingerprint"`
	Synthetic         bool      `json:"synthetic"`
	GeneratedAt       time.Time `json:"generated_at"`
	RecordingHours    float64   `json:"recording_hours"`

	AHI      float64  `json:"ahi"`
	RDI      float64  `json:"rdi"`
	Severity Severity `json:"severity"`

	TotalApneas         int     `json:"total_apneas"`
	ObstructiveApneas   int     `json:"obstructive_apneas"`
	CentralApneas       int     `json:"central_apneas"`
	Hypopneas           int     `json:"hypopneas"`
	FlowLimitations     int     `json:"flow_limitations"`
	MaxApneaDuration    float64 `json:"max_apnea_duration"`
	MaxHypopneaDuration float64 `json:"max_hypopnea_duration"`
	AvgApneaDuration    float64 `json:"avg_apnea_duration"`
	AvgHypopneaDuration float64 `json:"avg_hypopnea_duration"`

	PositionPercent    map[string]float64 `json:"position_percent"`
	SupineApneas       int                `json:"supine_apneas"`
	SupineHypopneas    int                `json:"supine_hypopneas"`
	NonSupineApneas    int                `json:"non_supine_apneas"`
	NonSupineHypopneas int                `json:"non_supine_hypopneas"`

	REMPercent      float64 `json:"rem_percent"`
	NREMPercent     float64 `json:"nrem_percent"`
	REMApneas       int     `json:"rem_apneas"`
	REMHypopneas    int     `json:"rem_hypopneas"`
	NREMApneas      int     `json:"nrem_apneas"`
	NREMHypopneas   int     `json:"nrem_hypopneas"`
	REMAHI          float64 `json:"rem_ahi"`
	NREMAHI         float64 `json:"nrem_ahi"`
	ArtifactPercent float64 `json:"artifact_percent"`

	MinSpO2       float64 `json:"min_spo2"`
	AvgSpO2       float64 `json:"avg_spo2"`
	BaselineSpO2  float64 `json:"baseline_spo2"`
	Desaturations int     `json:"desaturations"`
	DesatIndex    float64 `json:"desat_index"`
	TimeBelow90   float64 `json:"time_below_90_percent"`

	SnoreEpisodes int     `json:"snore_episodes"`
	SnoreIndex    float64 `json:"snore_index"`

	MinHeartRate float64 `json:"min_heart_rate"`
	MaxHeartRate float64 `json:"max_heart_rate"`
	AvgHeartRate float64 `json:"avg_heart_rate"`

	Events []RespiratoryEvent `json:"events"`
}

// StudySession is the persisted record of one viewing session
type StudySession struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Synthetic       bool      `json:"synthetic"`
	FallbackReason  *string   `json:"fallback_reason,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Fingerprint     string    `json:"fingerprint"`
	CreatedAt       time.Time `json:"created_at"`
}

// Report is the persisted record of an exported report
type Report struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Format     string    `json:"format" enum:"pdf,xlsx"`
	Path       string    `json:"path"`
	ArchiveKey *string   `json:"archive_key,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	Pages      int       `json:"pages"`
	AHI        float64   `json:"ahi"`
	CreatedAt  time.Time `json:"created_at"`
}
