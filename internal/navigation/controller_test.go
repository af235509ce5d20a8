package navigation

import (
	"errors"
	"math"
	"testing"

	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eightHours = 8 * 3600.0

func newEightHour(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(Config{Duration: eightHours})
	require.NoError(t, err)
	return c
}

func TestNewController_InitialState(t *testing.T) {
	c := newEightHour(t)

	start, frame := c.Window()
	assert.Equal(t, 0.0, start)
	assert.Equal(t, 10.0, frame)
	assert.Equal(t, models.ViewAllSignals, c.State().Mode)
	assert.Equal(t, DetailHigh, c.DetailLevel())
	assert.Equal(t, FrameSizes, c.AvailableFrameSizes())
}

func TestNewController_ShortRecordClampsFrameBounds(t *testing.T) {
	c, err := NewController(Config{Duration: 20, DefaultFrame: 30})
	require.NoError(t, err)

	lo, hi := c.FrameBounds()
	assert.Equal(t, 5.0, lo)
	assert.Equal(t, 20.0, hi)
	_, frame := c.Window()
	assert.Equal(t, 20.0, frame)
	assert.Equal(t, []float64{5, 10}, c.AvailableFrameSizes())
}

func TestNewController_InvalidConfig(t *testing.T) {
	_, err := NewController(Config{Duration: 0})
	assert.Error(t, err)
	_, err = NewController(Config{Duration: math.NaN()})
	assert.Error(t, err)
	_, err = NewController(Config{Duration: 100, MinFrame: 50, MaxFrame: 10})
	assert.Error(t, err)
}

func TestSetWindow(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		frame     float64
		wantErr   bool
		wantStart float64
		wantFrame float64
	}{
		{name: "valid window", start: 100, frame: 30, wantStart: 100, wantFrame: 30},
		{name: "window ending exactly at record end", start: eightHours - 30, frame: 30, wantStart: eightHours - 30, wantFrame: 30},
		{name: "frame clamped up", start: 50, frame: 1, wantStart: 50, wantFrame: 5},
		{name: "frame clamped down", start: 0, frame: 5000, wantStart: 0, wantFrame: 1800},
		{name: "start at record end", start: eightHours, frame: 30, wantErr: true},
		{name: "negative start", start: -1, frame: 30, wantErr: true},
		{name: "NaN start", start: math.NaN(), frame: 30, wantErr: true},
		{name: "infinite start", start: math.Inf(1), frame: 30, wantErr: true},
		{name: "window overruns end", start: eightHours - 10, frame: 30, wantErr: true},
		{name: "NaN frame", start: 0, frame: math.NaN(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newEightHour(t)
			require.NoError(t, c.SetWindow(60, 10))
			before := c.State()

			err := c.SetWindow(tt.start, tt.frame)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrOutOfRange)
				var oor *OutOfRangeError
				assert.True(t, errors.As(err, &oor))
				assert.Equal(t, before, c.State())
				return
			}
			require.NoError(t, err)
			start, frame := c.Window()
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantFrame, frame)
		})
	}
}

func TestSetWindow_RejectedAtEndOfEightHourRecord(t *testing.T) {
	c := newEightHour(t)
	require.NoError(t, c.SetWindow(0, 30))

	err := c.SetWindow(28800, 30)

	assert.ErrorIs(t, err, ErrOutOfRange)
	start, frame := c.Window()
	assert.Equal(t, 0.0, start)
	assert.Equal(t, 30.0, frame)
}

func TestSetFrameSize_PullsStartBack(t *testing.T) {
	c := newEightHour(t)
	c.JumpToEnd()

	require.NoError(t, c.SetFrameSize(600))

	start, frame := c.Window()
	assert.Equal(t, 600.0, frame)
	assert.Equal(t, eightHours-600, start)
	assert.Equal(t, DetailCompact, c.DetailLevel())

	assert.ErrorIs(t, c.SetFrameSize(math.NaN()), ErrOutOfRange)
}

func TestSetViewMode_NeverTouchesWindowOrZoom(t *testing.T) {
	c := newEightHour(t)
	require.NoError(t, c.SetWindow(1234, 60))
	require.NoError(t, c.SetZoom(models.ChannelSpO2, 3))

	for _, mode := range models.ViewModes {
		before := c.State()
		require.NoError(t, c.SetViewMode(mode))
		after := c.State()

		assert.Equal(t, mode, after.Mode)
		assert.Equal(t, before.Start, after.Start)
		assert.Equal(t, before.FrameSize, after.FrameSize)
		assert.Equal(t, before.Zoom, after.Zoom)
	}

	assert.ErrorIs(t, c.SetViewMode("hypnogram"), ErrUnknownViewMode)
	assert.Equal(t, models.ViewOSAAnalysis, c.State().Mode)
}

func TestActiveChannels(t *testing.T) {
	c := newEightHour(t)
	assert.Len(t, c.ActiveChannels(), 15)

	require.NoError(t, c.SetViewMode(models.ViewEEGOnly))
	assert.Equal(t, models.EEGChannels, c.ActiveChannels())

	require.NoError(t, c.SetViewMode(models.ViewRespiratoryOnly))
	assert.Equal(t, []models.ChannelName{models.ChannelAirflow, models.ChannelThorax, models.ChannelAbdomen, models.ChannelSnore}, c.ActiveChannels())

	require.NoError(t, c.SetViewMode(models.ViewComparison))
	assert.Len(t, c.ActiveChannels(), 15)
}

func TestSetZoom(t *testing.T) {
	c := newEightHour(t)

	require.NoError(t, c.SetZoom(models.ChannelAirflow, 2))
	assert.Equal(t, 2.0, c.State().ZoomFor(models.ChannelAirflow))
	assert.Equal(t, 1.0, c.State().ZoomFor(models.ChannelThorax))

	require.NoError(t, c.SetZoom(models.ChannelAirflow, 100))
	assert.Equal(t, MaxZoom, c.State().ZoomFor(models.ChannelAirflow))

	require.NoError(t, c.SetZoom(models.ChannelAirflow, 0.01))
	assert.Equal(t, MinZoom, c.State().ZoomFor(models.ChannelAirflow))

	assert.ErrorIs(t, c.SetZoom(models.ChannelAirflow, 0), ErrOutOfRange)
	assert.ErrorIs(t, c.SetZoom(models.ChannelAirflow, math.Inf(1)), ErrOutOfRange)
	assert.ErrorIs(t, c.SetZoom("EMG", 2), ErrUnknownChannel)
}

func TestToggleZoom(t *testing.T) {
	c := newEightHour(t)

	z, err := c.ToggleZoom(models.ChannelPulse)
	require.NoError(t, err)
	assert.Equal(t, 2.0, z)

	z, err = c.ToggleZoom(models.ChannelPulse)
	require.NoError(t, err)
	assert.Equal(t, 1.0, z)

	_, err = c.ToggleZoom("EMG")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestStateIsACopy(t *testing.T) {
	c := newEightHour(t)
	s := c.State()
	s.Zoom[models.ChannelSnore] = 4
	s.Start = 99

	assert.Equal(t, 1.0, c.State().ZoomFor(models.ChannelSnore))
	start, _ := c.Window()
	assert.Equal(t, 0.0, start)
}

func TestAdvanceRetreat(t *testing.T) {
	t.Run("round trip without clamping", func(t *testing.T) {
		c := newEightHour(t)
		require.NoError(t, c.SetWindow(1000, 30))

		c.Advance(45)
		start, _ := c.Window()
		assert.Equal(t, 1045.0, start)

		c.Retreat(45)
		start, _ = c.Window()
		assert.Equal(t, 1000.0, start)
	})

	t.Run("clamped at both ends", func(t *testing.T) {
		c := newEightHour(t)
		require.NoError(t, c.SetWindow(10, 30))

		c.Retreat(100)
		start, _ := c.Window()
		assert.Equal(t, 0.0, start)

		c.Advance(1e9)
		start, _ = c.Window()
		assert.Equal(t, eightHours-30, start)
	})

	t.Run("negative delta moves the other way", func(t *testing.T) {
		c := newEightHour(t)
		require.NoError(t, c.SetWindow(100, 30))
		c.Advance(-20)
		start, _ := c.Window()
		assert.Equal(t, 80.0, start)
	})

	t.Run("non-finite delta ignored", func(t *testing.T) {
		c := newEightHour(t)
		require.NoError(t, c.SetWindow(100, 30))
		c.Advance(math.NaN())
		c.Retreat(math.Inf(1))
		start, _ := c.Window()
		assert.Equal(t, 100.0, start)
	})
}

func TestStepAndJumps(t *testing.T) {
	c := newEightHour(t)
	require.NoError(t, c.SetFrameSize(5))
	assert.Equal(t, 0.5, c.Step())

	require.NoError(t, c.SetFrameSize(300))
	assert.Equal(t, 30.0, c.Step())
	assert.Equal(t, DetailBalanced, c.DetailLevel())

	c.JumpToEnd()
	start, _ := c.Window()
	assert.Equal(t, eightHours-300, start)
	assert.Equal(t, 1.0, c.Position())

	c.JumpToStart()
	start, _ = c.Window()
	assert.Equal(t, 0.0, start)
	assert.Equal(t, 0.0, c.Position())
}

func TestSetPosition(t *testing.T) {
	c, err := NewController(Config{Duration: 110})
	require.NoError(t, err)

	require.NoError(t, c.SetPosition(0.5))
	start, _ := c.Window()
	assert.Equal(t, 50.0, start)
	assert.Equal(t, 0.5, c.Position())

	require.NoError(t, c.SetPosition(2))
	start, _ = c.Window()
	assert.Equal(t, 100.0, start)

	assert.ErrorIs(t, c.SetPosition(math.NaN()), ErrOutOfRange)
}

func TestComparisonWindow(t *testing.T) {
	c := newEightHour(t)
	require.NoError(t, c.SetWindow(1000, 30))

	require.NoError(t, c.SetComparisonOffset(3600))
	start, frame := c.ComparisonWindow()
	assert.Equal(t, 4600.0, start)
	assert.Equal(t, 30.0, frame)

	require.NoError(t, c.SetComparisonOffset(-5000))
	start, _ = c.ComparisonWindow()
	assert.Equal(t, 0.0, start)

	assert.ErrorIs(t, c.SetComparisonOffset(math.NaN()), ErrOutOfRange)
}

func TestDetailLevelFor(t *testing.T) {
	assert.Equal(t, DetailHigh, DetailLevelFor(30))
	assert.Equal(t, DetailBalanced, DetailLevelFor(60))
	assert.Equal(t, DetailBalanced, DetailLevelFor(300))
	assert.Equal(t, DetailCompact, DetailLevelFor(600))
}
