package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
)

// Amplitude thresholds relative to the breathing baseline
const (
	ApneaThreshold          = 0.1
	HypopneaThreshold       = 0.3
	FlowLimitationThreshold = 0.5
	MinEventSeconds         = 10.0

	envelopeSeconds      = 5.0
	effortThreshold      = 0.5
	remActivityThreshold = 0.2
	artifactThreshold    = 3.0
)

// ErrMissingChannel is returned when a channel the analysis depends on is absent
var ErrMissingChannel = errors.New("missing channel")

// breathing holds the airflow amplitude of a record relative to its median
type breathing struct {
	rate  float64
	ratio []float64
}

func (b *breathing) seconds(i int) float64 { return float64(i) / b.rate }

// envelope is the peak-to-peak range over a centred window, computed with monotonic queues
func envelope(x []float64, window int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	half := max(1, window/2)
	var maxQ, minQ []int
	for r := 0; r < n+half; r++ {
		if r < n {
			for len(maxQ) > 0 && x[maxQ[len(maxQ)-1]] <= x[r] {
				maxQ = maxQ[:len(maxQ)-1]
			}
			maxQ = append(maxQ, r)
			for len(minQ) > 0 && x[minQ[len(minQ)-1]] >= x[r] {
				minQ = minQ[:len(minQ)-1]
			}
			minQ = append(minQ, r)
		}
		i := r - half
		if i < 0 {
			continue
		}
		for maxQ[0] < i-half {
			maxQ = maxQ[1:]
		}
		for minQ[0] < i-half {
			minQ = minQ[1:]
		}
		out[i] = x[maxQ[0]] - x[minQ[0]]
	}
	return out
}

// amplitudeRatio normalises a channel, takes its envelope and divides by the median envelope.
// A flat channel has no measurable breathing and reports ratio 1 throughout.
func amplitudeRatio(ch *models.Channel) []float64 {
	norm := signal.Normalize(ch.Samples())
	env := envelope(norm, int(math.Round(envelopeSeconds*ch.SampleRate())))
	base := signal.Median(env)
	ratio := make([]float64, len(env))
	for i, v := range env {
		if base > 0 {
			ratio[i] = v / base
		} else {
			ratio[i] = 1
		}
	}
	return ratio
}

func analyseBreathing(rec *models.Record) (*breathing, error) {
	flow, ok := rec.Channel(models.ChannelAirflow)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingChannel, models.ChannelAirflow)
	}
	return &breathing{rate: flow.SampleRate(), ratio: amplitudeRatio(flow)}, nil
}

// span is a half-open run of sample indices
type span struct{ lo, hi int }

// runs returns the maximal runs of indices where keep holds
func runs(n int, keep func(i int) bool) []span {
	var out []span
	start := -1
	for i := 0; i < n; i++ {
		if keep(i) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start, n})
	}
	return out
}

// valueAt samples a channel at time t, clamped to its ends
func valueAt(ch *models.Channel, t float64) float64 {
	i := int(t * ch.SampleRate())
	i = max(0, min(ch.Len()-1, i))
	return ch.At(i)
}

// meanOver averages a series sampled at rate over [start, end)
func meanOver(series []float64, rate, start, end float64) float64 {
	lo := max(0, int(math.Ceil(start*rate)))
	hi := min(len(series), int(math.Ceil(end*rate)))
	if hi <= lo {
		return 0
	}
	var sum float64
	for _, v := range series[lo:hi] {
		sum += v
	}
	return sum / float64(hi-lo)
}

// detect finds respiratory events and counts flow-limitation episodes
func detect(rec *models.Record) ([]models.RespiratoryEvent, int, *breathing, error) {
	b, err := analyseBreathing(rec)
	if err != nil {
		return nil, 0, nil, err
	}
	minSamples := int(math.Ceil(MinEventSeconds*b.rate - 1e-9))

	type effortTrace struct {
		rate  float64
		ratio []float64
	}
	var efforts []effortTrace
	for _, name := range []models.ChannelName{models.ChannelThorax, models.ChannelAbdomen} {
		if ch, ok := rec.Channel(name); ok {
			efforts = append(efforts, effortTrace{rate: ch.SampleRate(), ratio: amplitudeRatio(ch)})
		}
	}
	position, hasPosition := rec.Channel(models.ChannelBodyPosition)
	activity, hasActivity := rec.Channel(models.ChannelActivity)
	var activityNorm []float64
	if hasActivity {
		activityNorm = signal.Normalize(activity.Samples())
	}

	var events []models.RespiratoryEvent
	for _, s := range runs(len(b.ratio), func(i int) bool { return b.ratio[i] < HypopneaThreshold }) {
		if s.hi-s.lo < minSamples {
			continue
		}
		apneaSamples := 0
		for _, r := range b.ratio[s.lo:s.hi] {
			if r < ApneaThreshold {
				apneaSamples++
			}
		}
		ev := models.RespiratoryEvent{
			Type:     models.EventHypopnea,
			Start:    b.seconds(s.lo),
			End:      b.seconds(s.hi),
			Duration: b.seconds(s.hi - s.lo),
			Effort:   true,
		}
		if 2*apneaSamples >= s.hi-s.lo {
			ev.Type = models.EventApnea
		}
		if len(efforts) > 0 {
			ev.Effort = false
			for _, e := range efforts {
				if meanOver(e.ratio, e.rate, ev.Start, ev.End) >= effortThreshold {
					ev.Effort = true
				}
			}
		}
		if hasPosition {
			ev.Position = models.BodyPosition(math.Round(valueAt(position, ev.End)))
		}
		if hasActivity {
			i := max(0, min(len(activityNorm)-1, int(ev.End*activity.SampleRate())))
			ev.REM = activityNorm[i] < remActivityThreshold
		}
		events = append(events, ev)
	}

	limitations := 0
	for _, s := range runs(len(b.ratio), func(i int) bool {
		return b.ratio[i] >= HypopneaThreshold && b.ratio[i] < FlowLimitationThreshold
	}) {
		if s.hi-s.lo >= minSamples {
			limitations++
		}
	}
	return events, limitations, b, nil
}

// DetectEvents returns the apneas and hypopneas overlapping [start, end).
// Detection always runs over the whole record so the breathing baseline does not depend on the window.
func DetectEvents(rec *models.Record, start, end float64) ([]models.RespiratoryEvent, error) {
	events, _, _, err := detect(rec)
	if err != nil {
		return nil, err
	}
	return EventsInWindow(events, start, end), nil
}

// EventsInWindow filters events to those overlapping [start, end)
func EventsInWindow(events []models.RespiratoryEvent, start, end float64) []models.RespiratoryEvent {
	out := []models.RespiratoryEvent{}
	for _, ev := range events {
		if ev.End > start && ev.Start < end {
			out = append(out, ev)
		}
	}
	return out
}
