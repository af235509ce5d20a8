package signal

import (
	"math"
	"sort"

	"github.com/RMahshie/sleepsense/pkg/models"
)

// Normalize min-max scales samples into [0,1]. Non-finite samples are replaced
// by the median of the finite ones; a constant signal maps to 0.5.
func Normalize(samples []float64) []float64 {
	out := make([]float64, len(samples))
	if len(samples) == 0 {
		return out
	}

	fill := Median(samples)
	if math.IsNaN(fill) {
		fill = 0
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range samples {
		if !isFinite(v) {
			v = fill
		}
		out[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	span := hi - lo
	for i, v := range out {
		out[i] = clamp01((v - lo) / span)
	}
	return out
}

// MovingAverage smooths with a centred box filter and rescales the result to [0,1].
// The window is forced odd and at least 3; edges average over the samples available.
func MovingAverage(samples []float64, window int) []float64 {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	n := len(samples)
	smoothed := make([]float64, n)
	if n == 0 {
		return smoothed
	}

	prefix := make([]float64, n+1)
	for i, v := range samples {
		prefix[i+1] = prefix[i] + v
	}
	half := window / 2
	for i := range samples {
		lo := max(0, i-half)
		hi := min(n, i+half+1)
		// zero padding, matching a "same"-mode convolution
		smoothed[i] = (prefix[hi] - prefix[lo]) / float64(window)
	}
	return Normalize(smoothed)
}

// Median of the finite values, NaN when there are none
func Median(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	mid := len(finite) / 2
	if len(finite)%2 == 1 {
		return finite[mid]
	}
	return (finite[mid-1] + finite[mid]) / 2
}

// NormalizedSet holds the normalised series of every channel of a record
type NormalizedSet struct {
	Channels map[models.ChannelName][]float64
	// AirflowPlot is the smoothed airflow trace used for display
	AirflowPlot []float64
}

// Series returns the normalised samples of a channel
func (n *NormalizedSet) Series(name models.ChannelName) ([]float64, bool) {
	s, ok := n.Channels[name]
	return s, ok
}

// DisplaySeries returns the trace to draw for a channel, preferring the smoothed airflow
func (n *NormalizedSet) DisplaySeries(name models.ChannelName) ([]float64, bool) {
	if name == models.ChannelAirflow && n.AirflowPlot != nil {
		return n.AirflowPlot, true
	}
	return n.Series(name)
}

// NormalizeRecord normalises every channel of rec
func NormalizeRecord(rec *models.Record) *NormalizedSet {
	set := &NormalizedSet{Channels: make(map[models.ChannelName][]float64)}
	for _, name := range rec.ChannelNames() {
		ch, _ := rec.Channel(name)
		set.Channels[name] = Normalize(ch.Samples())
		if name == models.ChannelAirflow {
			set.AirflowPlot = MovingAverage(set.Channels[name], int(ch.SampleRate()*0.5))
		}
	}
	return set
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
