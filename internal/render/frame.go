package render

import (
	"fmt"
	"math"

	"github.com/RMahshie/sleepsense/internal/navigation"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
)

// DefaultMaxPoints bounds the points drawn per trace
const DefaultMaxPoints = 2000

// Trace is one stacked channel ready to draw
type Trace struct {
	Channel models.ChannelName
	Color   string
	Offset  float64
	Zoom    float64
	Times   []float64
	Values  []float64
}

// Frame is everything needed to draw one window of a record. In Comparison
// mode it also carries a second pane of the same channels at the comparison offset.
type Frame struct {
	Start       float64
	End         float64
	Mode        models.ViewMode
	DetailLevel string
	Synthetic   bool
	Traces      []Trace
	Events      []models.RespiratoryEvent

	ComparisonStart float64
	ComparisonEnd   float64
	Comparison      []Trace
}

// Title is the chart heading for the frame
func (f *Frame) Title() string {
	title := fmt.Sprintf("%s  %s - %s  (%s)", f.Mode.Label(), FormatClock(f.Start), FormatClock(f.End), f.DetailLevel)
	if f.Synthetic {
		title += "  " + signal.MockBanner
	}
	return title
}

// ComparisonTitle is the heading of the comparison pane
func (f *Frame) ComparisonTitle() string {
	return fmt.Sprintf("Comparison  %s - %s  (%+.0f s)", FormatClock(f.ComparisonStart), FormatClock(f.ComparisonEnd), f.ComparisonStart-f.Start)
}

// FormatClock renders seconds as H:MM:SS
func FormatClock(seconds float64) string {
	s := int(math.Max(0, math.Floor(seconds)))
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// BuildFrame slices the active channels of the view state's mode for its window.
// Each sample is drawn at (v-0.5)*zoom + offset, where v is the normalised value.
// Comparison mode adds the same channels over the comparison window.
func BuildFrame(norm *signal.NormalizedSet, rec *models.Record, state models.ViewState, maxPoints int) (*Frame, error) {
	if norm == nil || rec == nil {
		return nil, fmt.Errorf("frame needs a record and its normalised signals")
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	f := &Frame{
		Start:       state.Start,
		End:         state.End(),
		Mode:        state.Mode,
		DetailLevel: navigation.DetailLevelFor(state.FrameSize),
		Synthetic:   rec.Synthetic(),
	}
	f.Traces = buildTraces(norm, rec, state, f.Start, f.End, maxPoints)

	if state.Mode == models.ViewComparison {
		f.ComparisonStart = navigation.ComparisonStart(state, rec.Duration())
		f.ComparisonEnd = f.ComparisonStart + state.FrameSize
		f.Comparison = buildTraces(norm, rec, state, f.ComparisonStart, f.ComparisonEnd, maxPoints)
	}
	return f, nil
}

func buildTraces(norm *signal.NormalizedSet, rec *models.Record, state models.ViewState, start, end float64, maxPoints int) []Trace {
	var traces []Trace
	for _, name := range state.Mode.Channels() {
		ch, ok := rec.Channel(name)
		if !ok {
			continue
		}
		series, ok := norm.DisplaySeries(name)
		if !ok {
			continue
		}
		lo, hi := ch.IndexRange(start, end)
		zoom := state.ZoomFor(name)
		offset := name.Offset()

		times := make([]float64, 0, hi-lo)
		values := make([]float64, 0, hi-lo)
		for i := lo; i < hi && i < len(series); i++ {
			times = append(times, float64(i)/ch.SampleRate())
			values = append(values, (series[i]-0.5)*zoom+offset)
		}
		times, values = Decimate(times, values, maxPoints)

		traces = append(traces, Trace{
			Channel: name,
			Color:   name.Color(),
			Offset:  offset,
			Zoom:    zoom,
			Times:   times,
			Values:  values,
		})
	}
	return traces
}

// Decimate keeps the min and max of each bucket so peaks survive downsampling
func Decimate(times, values []float64, maxPoints int) ([]float64, []float64) {
	n := len(values)
	if n <= maxPoints || maxPoints < 2 {
		return times, values
	}
	buckets := maxPoints / 2
	size := int(math.Ceil(float64(n) / float64(buckets)))

	outT := make([]float64, 0, maxPoints)
	outV := make([]float64, 0, maxPoints)
	for lo := 0; lo < n; lo += size {
		hi := min(n, lo+size)
		minI, maxI := lo, lo
		for i := lo + 1; i < hi; i++ {
			if values[i] < values[minI] {
				minI = i
			}
			if values[i] > values[maxI] {
				maxI = i
			}
		}
		first, second := minI, maxI
		if first > second {
			first, second = second, first
		}
		outT = append(outT, times[first])
		outV = append(outV, values[first])
		if second != first {
			outT = append(outT, times[second])
			outV = append(outV, values[second])
		}
	}
	return outT, outV
}
