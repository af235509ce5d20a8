package models

import (
	"fmt"
	"math"
	"strings"
)

// ChannelName identifies one signal of a polysomnography recording
type ChannelName string

const (
	ChannelAirflow      ChannelName = "Airflow"
	ChannelThorax       ChannelName = "Thorax"
	ChannelAbdomen      ChannelName = "Abdomen"
	ChannelSnore        ChannelName = "Snore"
	ChannelC3A2         ChannelName = "C3-A2"
	ChannelC4A1         ChannelName = "C4-A1"
	ChannelF3A2         ChannelName = "F3-A2"
	ChannelF4A1         ChannelName = "F4-A1"
	ChannelO1A2         ChannelName = "O1-A2"
	ChannelO2A1         ChannelName = "O2-A1"
	ChannelPulse        ChannelName = "Pulse"
	ChannelSpO2         ChannelName = "SpO2"
	ChannelPleth        ChannelName = "Plethysmography"
	ChannelBodyPosition ChannelName = "Body Position"
	ChannelActivity     ChannelName = "Activity"
)

// AllChannels is the documented signal set in display order (bottom to top)
var AllChannels = []ChannelName{
	ChannelBodyPosition,
	ChannelPulse,
	ChannelSpO2,
	ChannelAirflow,
	ChannelSnore,
	ChannelThorax,
	ChannelAbdomen,
	ChannelPleth,
	ChannelActivity,
	ChannelC3A2,
	ChannelC4A1,
	ChannelF3A2,
	ChannelF4A1,
	ChannelO1A2,
	ChannelO2A1,
}

// EEGChannels are the six EEG derivations
var EEGChannels = []ChannelName{
	ChannelC3A2, ChannelC4A1, ChannelF3A2, ChannelF4A1, ChannelO1A2, ChannelO2A1,
}

// RespiratoryChannels are the breathing and effort channels
var RespiratoryChannels = []ChannelName{
	ChannelAirflow, ChannelThorax, ChannelAbdomen, ChannelSnore,
}

// OSAChannels are the channels shown while reviewing apnea events
var OSAChannels = []ChannelName{
	ChannelAirflow, ChannelThorax, ChannelAbdomen, ChannelSnore, ChannelSpO2, ChannelBodyPosition,
}

type channelStyle struct {
	color  string
	offset float64
}

// Stacking offsets follow the original 1.2 spacing so neighbouring traces never overlap at zoom 1
var channelStyles = map[ChannelName]channelStyle{
	ChannelBodyPosition: {"9e9e9e", 0},
	ChannelPulse:        {"f44336", 1.2},
	ChannelSpO2:         {"2196f3", 2.4},
	ChannelAirflow:      {"ff9800", 3.6},
	ChannelSnore:        {"e91e63", 4.8},
	ChannelThorax:       {"4caf50", 6.0},
	ChannelAbdomen:      {"cddc39", 7.2},
	ChannelPleth:        {"9c27b0", 8.4},
	ChannelActivity:     {"ffeb3b", 9.6},
	ChannelC3A2:         {"00bcd4", 10.8},
	ChannelC4A1:         {"009688", 12.0},
	ChannelF3A2:         {"8bc34a", 13.2},
	ChannelF4A1:         {"ffc107", 14.4},
	ChannelO1A2:         {"795548", 15.6},
	ChannelO2A1:         {"607d8b", 16.8},
}

// Valid reports whether the name belongs to the documented signal set
func (c ChannelName) Valid() bool {
	_, ok := channelStyles[c]
	return ok
}

// Color returns the display colour as a hex string without '#'
func (c ChannelName) Color() string {
	if s, ok := channelStyles[c]; ok {
		return s.color
	}
	return "000000"
}

// Offset returns the vertical display offset of the channel
func (c ChannelName) Offset() float64 {
	return channelStyles[c].offset
}

// IsEEG reports whether the channel is an EEG derivation
func (c ChannelName) IsEEG() bool {
	for _, e := range EEGChannels {
		if e == c {
			return true
		}
	}
	return false
}

// ParseChannelName resolves a channel name case-insensitively
func ParseChannelName(s string) (ChannelName, error) {
	for _, c := range AllChannels {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Channel is one immutable sampled signal
type Channel struct {
	name       ChannelName
	sampleRate float64
	samples    []float64
}

// NewChannel copies samples into a new channel
func NewChannel(name ChannelName, sampleRate float64, samples []float64) (*Channel, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("unknown channel %q", name)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("channel %s: sample rate must be positive, got %v", name, sampleRate)
	}
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return &Channel{name: name, sampleRate: sampleRate, samples: cp}, nil
}

func (c *Channel) Name() ChannelName   { return c.name }
func (c *Channel) SampleRate() float64 { return c.sampleRate }
func (c *Channel) Len() int            { return len(c.samples) }

// At returns sample i; callers must stay within [0, Len())
func (c *Channel) At(i int) float64 { return c.samples[i] }

// Samples returns a copy of every sample
func (c *Channel) Samples() []float64 {
	cp := make([]float64, len(c.samples))
	copy(cp, c.samples)
	return cp
}

// IndexRange converts a time span in seconds to a clamped half-open sample range
func (c *Channel) IndexRange(start, end float64) (int, int) {
	lo := int(math.Ceil(start*c.sampleRate - 1e-9))
	hi := int(math.Ceil(end*c.sampleRate - 1e-9))
	if lo < 0 {
		lo = 0
	}
	if hi > len(c.samples) {
		hi = len(c.samples)
	}
	if hi < 0 {
		hi = 0
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
