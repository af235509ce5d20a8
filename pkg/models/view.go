package models

import (
	"fmt"
	"strings"
)

// ViewMode selects which channel subset is displayed
type ViewMode string

const (
	ViewAllSignals      ViewMode = "all"
	ViewEEGOnly         ViewMode = "eeg"
	ViewRespiratoryOnly ViewMode = "respiratory"
	ViewComparison      ViewMode = "comparison"
	ViewOSAAnalysis     ViewMode = "osa"
)

// ViewModes lists every mode in menu order
var ViewModes = []ViewMode{ViewAllSignals, ViewEEGOnly, ViewRespiratoryOnly, ViewComparison, ViewOSAAnalysis}

// Valid reports whether m is a known mode
func (m ViewMode) Valid() bool {
	for _, v := range ViewModes {
		if v == m {
			return true
		}
	}
	return false
}

// Label is the human readable mode name
func (m ViewMode) Label() string {
	switch m {
	case ViewAllSignals:
		return "All Signals"
	case ViewEEGOnly:
		return "EEG Only"
	case ViewRespiratoryOnly:
		return "Respiratory Only"
	case ViewComparison:
		return "Comparison"
	case ViewOSAAnalysis:
		return "OSA Analysis"
	default:
		return string(m)
	}
}

// Channels returns the channel subset implied by the mode
func (m ViewMode) Channels() []ChannelName {
	var src []ChannelName
	switch m {
	case ViewEEGOnly:
		src = EEGChannels
	case ViewRespiratoryOnly:
		src = RespiratoryChannels
	case ViewOSAAnalysis:
		src = OSAChannels
	default:
		src = AllChannels
	}
	out := make([]ChannelName, len(src))
	copy(out, src)
	return out
}

// ParseViewMode accepts either the mode key or its label
func ParseViewMode(s string) (ViewMode, error) {
	s = strings.TrimSpace(s)
	for _, m := range ViewModes {
		if strings.EqualFold(string(m), s) || strings.EqualFold(m.Label(), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// ViewState is a value snapshot of the navigation state
type ViewState struct {
	Start            float64                 `json:"start" doc:"Window start offset in seconds"`
	FrameSize        float64                 `json:"frame_size" doc:"Visible window width in seconds"`
	Mode             ViewMode                `json:"mode" doc:"Active view mode"`
	Zoom             map[ChannelName]float64 `json:"zoom" doc:"Per-channel zoom factor (missing means 1.0)"`
	ComparisonOffset float64                 `json:"comparison_offset" doc:"Offset of the comparison pane in seconds"`
}

// End is the exclusive end of the visible window
func (v ViewState) End() float64 {
	return v.Start + v.FrameSize
}

// ZoomFor returns the zoom of one channel, defaulting to 1
func (v ViewState) ZoomFor(name ChannelName) float64 {
	if z, ok := v.Zoom[name]; ok {
		return z
	}
	return 1.0
}

// Clone deep-copies the zoom map
func (v ViewState) Clone() ViewState {
	out := v
	out.Zoom = make(map[ChannelName]float64, len(v.Zoom))
	for k, z := range v.Zoom {
		out.Zoom[k] = z
	}
	return out
}
