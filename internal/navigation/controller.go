package navigation

import (
	"fmt"
	"math"

	"github.com/RMahshie/sleepsense/pkg/models"
)

// FrameSizes are the preset window widths offered to the user, in seconds
var FrameSizes = []float64{5, 10, 30, 60, 120, 300, 600, 1800}

const (
	DefaultFrame = 10.0
	MinFrame     = 5.0
	MaxFrame     = 1800.0

	MinZoom = 0.25
	MaxZoom = 8.0
)

// Detail levels reported for the current frame size
const (
	DetailHigh     = "High Detail"
	DetailBalanced = "Balanced"
	DetailCompact  = "Compact Overview"
)

// Config sets the record duration and frame bounds. Zero frame values use the defaults.
type Config struct {
	Duration     float64
	DefaultFrame float64
	MinFrame     float64
	MaxFrame     float64
}

// Controller owns the view state of one record. It is not safe for concurrent use.
type Controller struct {
	duration float64
	minFrame float64
	maxFrame float64
	state    models.ViewState
}

// NewController starts at offset 0 with the default frame in AllSignals mode
func NewController(cfg Config) (*Controller, error) {
	if cfg.Duration <= 0 || !finite(cfg.Duration) {
		return nil, fmt.Errorf("record duration must be positive, got %v", cfg.Duration)
	}
	if cfg.DefaultFrame <= 0 || !finite(cfg.DefaultFrame) {
		cfg.DefaultFrame = DefaultFrame
	}
	if cfg.MinFrame <= 0 {
		cfg.MinFrame = MinFrame
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = MaxFrame
	}
	if cfg.MinFrame > cfg.MaxFrame {
		return nil, fmt.Errorf("min frame %v exceeds max frame %v", cfg.MinFrame, cfg.MaxFrame)
	}

	c := &Controller{
		duration: cfg.Duration,
		maxFrame: math.Min(cfg.MaxFrame, cfg.Duration),
	}
	c.minFrame = math.Min(cfg.MinFrame, c.maxFrame)
	c.state = models.ViewState{
		Start:     0,
		FrameSize: c.clampFrame(cfg.DefaultFrame),
		Mode:      models.ViewAllSignals,
		Zoom:      map[models.ChannelName]float64{},
	}
	return c, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (c *Controller) clampFrame(frame float64) float64 {
	if math.IsNaN(frame) {
		return c.state.FrameSize
	}
	return clamp(frame, c.minFrame, c.maxFrame)
}

func (c *Controller) maxStart() float64 {
	return math.Max(0, c.duration-c.state.FrameSize)
}

// Duration of the underlying record
func (c *Controller) Duration() float64 { return c.duration }

// FrameBounds returns the effective frame limits after clamping to the record
func (c *Controller) FrameBounds() (float64, float64) { return c.minFrame, c.maxFrame }

// AvailableFrameSizes lists the presets that fit the record
func (c *Controller) AvailableFrameSizes() []float64 {
	var out []float64
	for _, f := range FrameSizes {
		if f >= c.minFrame && f <= c.maxFrame {
			out = append(out, f)
		}
	}
	return out
}

// SetWindow moves the window to exactly (start, frame). The frame is clamped
// into bounds first; a start that would put any part of the window outside
// the record is rejected and leaves the state unchanged.
func (c *Controller) SetWindow(start, frame float64) error {
	if math.IsNaN(frame) {
		return &OutOfRangeError{Field: "frame", Value: frame, Min: c.minFrame, Max: c.maxFrame}
	}
	frame = clamp(frame, c.minFrame, c.maxFrame)
	limit := math.Max(0, c.duration-frame)
	if !finite(start) || start < 0 || start+frame > c.duration {
		return &OutOfRangeError{Field: "start", Value: start, Min: 0, Max: limit}
	}
	c.state.Start = start
	c.state.FrameSize = frame
	return nil
}

// SetFrameSize resizes the window, pulling the start back if the new frame would overrun the record
func (c *Controller) SetFrameSize(frame float64) error {
	if math.IsNaN(frame) {
		return &OutOfRangeError{Field: "frame", Value: frame, Min: c.minFrame, Max: c.maxFrame}
	}
	c.state.FrameSize = c.clampFrame(frame)
	c.state.Start = clamp(c.state.Start, 0, c.maxStart())
	return nil
}

// SetViewMode changes only the mode
func (c *Controller) SetViewMode(mode models.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownViewMode, mode)
	}
	c.state.Mode = mode
	return nil
}

// SetZoom sets one channel's zoom, clamped into [MinZoom, MaxZoom]
func (c *Controller) SetZoom(channel models.ChannelName, factor float64) error {
	if !channel.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	if !finite(factor) || factor <= 0 {
		return &OutOfRangeError{Field: "zoom", Value: factor, Min: MinZoom, Max: MaxZoom}
	}
	c.state.Zoom[channel] = clamp(factor, MinZoom, MaxZoom)
	return nil
}

// ToggleZoom flips a channel between 1x and 2x and returns the new factor
func (c *Controller) ToggleZoom(channel models.ChannelName) (float64, error) {
	next := 2.0
	if c.state.ZoomFor(channel) != 1.0 {
		next = 1.0
	}
	if err := c.SetZoom(channel, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Advance shifts the window forward by delta seconds, clamped to the record
func (c *Controller) Advance(delta float64) {
	if !finite(delta) {
		return
	}
	c.state.Start = clamp(c.state.Start+delta, 0, c.maxStart())
}

// Retreat shifts the window back by delta seconds, clamped to the record
func (c *Controller) Retreat(delta float64) {
	if !finite(delta) {
		return
	}
	c.Advance(-delta)
}

// Step is the keyboard step: a tenth of the frame, at least half a second
func (c *Controller) Step() float64 {
	return math.Max(0.5, c.state.FrameSize/10)
}

func (c *Controller) JumpToStart() { c.state.Start = 0 }
func (c *Controller) JumpToEnd()   { c.state.Start = c.maxStart() }

// SetPosition maps a slider fraction in [0,1] onto the valid start range
func (c *Controller) SetPosition(fraction float64) error {
	if !finite(fraction) {
		return &OutOfRangeError{Field: "position", Value: fraction, Min: 0, Max: 1}
	}
	c.state.Start = clamp(fraction, 0, 1) * c.maxStart()
	return nil
}

// Position is the inverse of SetPosition
func (c *Controller) Position() float64 {
	m := c.maxStart()
	if m <= 0 {
		return 0
	}
	return c.state.Start / m
}

// SetComparisonOffset sets how far the comparison pane trails or leads the main window
func (c *Controller) SetComparisonOffset(offset float64) error {
	if !finite(offset) {
		return &OutOfRangeError{Field: "comparison offset", Value: offset, Min: -c.duration, Max: c.duration}
	}
	c.state.ComparisonOffset = clamp(offset, -c.duration, c.duration)
	return nil
}

// ComparisonWindow is the window of the comparison pane, clamped to the record
func (c *Controller) ComparisonWindow() (float64, float64) {
	return ComparisonStart(c.state, c.duration), c.state.FrameSize
}

// ComparisonStart is where the comparison pane of state begins in a record of
// duration seconds. The pane keeps the frame size and never leaves the record.
func ComparisonStart(state models.ViewState, duration float64) float64 {
	return clamp(state.Start+state.ComparisonOffset, 0, math.Max(0, duration-state.FrameSize))
}

// Window returns the current start offset and frame size
func (c *Controller) Window() (float64, float64) {
	return c.state.Start, c.state.FrameSize
}

// State returns a copy of the view state
func (c *Controller) State() models.ViewState {
	return c.state.Clone()
}

// ActiveChannels lists the channels of the current mode
func (c *Controller) ActiveChannels() []models.ChannelName {
	return c.state.Mode.Channels()
}

// DetailLevel names the rendering density for the current frame size
func (c *Controller) DetailLevel() string {
	return DetailLevelFor(c.state.FrameSize)
}

func DetailLevelFor(frame float64) string {
	switch {
	case frame <= 30:
		return DetailHigh
	case frame <= 300:
		return DetailBalanced
	default:
		return DetailCompact
	}
}
