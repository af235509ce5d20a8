package signal

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/RMahshie/sleepsense/pkg/models"
)

const (
	// DefaultMockDuration is eight hours of synthetic sleep
	DefaultMockDuration = 8 * 3600.0
	// MockSampleRate is used for every non-EEG synthetic channel
	MockSampleRate = 10.0
	// MockEEGSampleRate is used for the synthetic EEG derivations
	MockEEGSampleRate = 32.0
)

// breathingEpisode is a scripted reduction of airflow inside the mock record
type breathingEpisode struct {
	start, end float64
	amplitude  float64 // residual airflow amplitude, 1 = normal breathing
	effort     bool    // thoracoabdominal effort continues (obstructive)
}

// generator builds synthetic waveforms. It is deterministic for a given seed.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func sampleCount(duration, rate float64) int {
	return int(math.Round(duration * rate))
}

// GenerateMock builds a synthetic record with all documented channels
func GenerateMock(durationSeconds float64, seed uint64) *models.Record {
	if durationSeconds <= 0 || !isFinite(durationSeconds) {
		durationSeconds = DefaultMockDuration
	}
	g := newGenerator(seed)

	n := sampleCount(durationSeconds, MockSampleRate)
	episodes := g.episodes(durationSeconds)

	series := map[models.ChannelName][]float64{
		models.ChannelAirflow:      g.airflow(n, MockSampleRate, episodes),
		models.ChannelThorax:       g.effort(n, MockSampleRate, episodes, 0, 0.3, 0.05, 0.1),
		models.ChannelAbdomen:      g.effort(n, MockSampleRate, episodes, g.uniform(0.1, 0.3), 0.25, 0.04, 0.08),
		models.ChannelSnore:        g.snore(n, MockSampleRate),
		models.ChannelSpO2:         g.spo2(n, MockSampleRate, episodes),
		models.ChannelPulse:        g.pulse(n, MockSampleRate),
		models.ChannelPleth:        g.pleth(n, MockSampleRate),
		models.ChannelBodyPosition: g.bodyPosition(n, MockSampleRate),
		models.ChannelActivity:     g.activity(n, MockSampleRate),
	}

	channels := make([]*models.Channel, 0, len(models.AllChannels))
	for _, name := range models.AllChannels {
		rate := MockSampleRate
		var samples []float64
		if name.IsEEG() {
			rate = MockEEGSampleRate
			samples = g.eeg(sampleCount(durationSeconds, rate), rate, name)
		} else {
			samples = series[name]
		}
		ch, err := models.NewChannel(name, rate, samples)
		if err != nil {
			panic(err) // names and rates are constants above
		}
		channels = append(channels, ch)
	}

	rec, err := models.NewRecord(models.RecordOptions{
		StartTime: time.Now().Truncate(time.Second),
		Source:    "synthetic",
		Synthetic: true,
	}, durationSeconds, channels...)
	if err != nil {
		panic(err)
	}
	return rec
}

// episodes scatters apneas and hypopneas through the night, one every few minutes
func (g *generator) episodes(duration float64) []breathingEpisode {
	var out []breathingEpisode
	t := g.uniform(120, 300)
	for t < duration-60 {
		length := g.uniform(20, 45)
		ep := breathingEpisode{start: t, end: t + length, effort: g.rng.Float64() < 0.75}
		if g.rng.Float64() < 0.45 {
			ep.amplitude = 0.03
		} else {
			ep.amplitude = 0.2
		}
		out = append(out, ep)
		t += length + g.uniform(180, 480)
	}
	return out
}

// episodeFactor returns the amplitude scale at t, ramping over two seconds at the edges
func episodeFactor(t float64, episodes []breathingEpisode, effortOnly bool) float64 {
	for _, ep := range episodes {
		if t < ep.start-2 || t > ep.end+2 {
			continue
		}
		target := ep.amplitude
		if effortOnly {
			if ep.effort {
				return 1
			}
			target = 0.05
		}
		switch {
		case t < ep.start:
			return 1 - (1-target)*(t-(ep.start-2))/2
		case t > ep.end:
			return target + (1-target)*(t-ep.end)/2
		default:
			return target
		}
	}
	return 1
}

func (g *generator) airflow(n int, rate float64, episodes []breathingEpisode) []float64 {
	freq := g.uniform(0.2, 0.33)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		depth := 1 + 0.1*math.Sin(2*math.Pi*0.05*t)
		out[i] = 0.8*depth*episodeFactor(t, episodes, false)*math.Sin(2*math.Pi*freq*t) + 0.01*g.rng.NormFloat64()
	}
	return out
}

func (g *generator) effort(n int, rate float64, episodes []breathingEpisode, phase, depthAmp, depthFreq, noise float64) []float64 {
	freq := g.uniform(0.2, 0.33)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		v := math.Sin(2*math.Pi*freq*t+phase) * (1 + depthAmp*math.Sin(2*math.Pi*depthFreq*t))
		out[i] = v*episodeFactor(t, episodes, true) + noise*g.rng.NormFloat64()
	}
	return out
}

func (g *generator) snore(n int, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.3 * math.Sin(2*math.Pi*0.5*float64(i)/rate)
	}
	interval := max(200, n/20)
	for i := 0; i < n; i += interval {
		if g.rng.Float64() <= 0.8 {
			continue
		}
		burstFreq := g.uniform(0.8, 1.5)
		burstAmp := g.uniform(0.5, 1.0)
		end := min(n, i+100)
		for j := i; j < end; j++ {
			out[j] += burstAmp * math.Sin(2*math.Pi*burstFreq*float64(j-i)/rate)
		}
	}
	return out
}

// spo2 sits near 97% and dips a few points shortly after each breathing episode
func (g *generator) spo2(n int, rate float64, episodes []breathingEpisode) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 97 + 0.3*g.rng.NormFloat64()
	}
	for _, ep := range episodes {
		var drop float64
		if ep.amplitude < 0.1 {
			drop = g.uniform(4, 8)
		} else {
			drop = g.uniform(3, 5)
		}
		lo := ep.start + 10
		hi := ep.end + 25
		for i := max(0, int(lo*rate)); i < min(n, int(hi*rate)); i++ {
			t := float64(i) / rate
			out[i] -= drop * math.Sin(math.Pi*(t-lo)/(hi-lo))
		}
	}
	for i, v := range out {
		out[i] = math.Min(100, math.Round(v*10)/10)
	}
	return out
}

func (g *generator) pulse(n int, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		out[i] = 65 - 8*math.Sin(2*math.Pi*0.0002*t) + g.rng.NormFloat64()
	}
	return out
}

func (g *generator) pleth(n int, rate float64) []float64 {
	heart := g.uniform(1.0, 1.67)
	resp := g.uniform(0.2, 0.33)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		v := math.Sin(2*math.Pi*heart*t) * (1 + 0.4*math.Sin(2*math.Pi*resp*t))
		v += 0.3 * math.Sin(2*math.Pi*2*heart*t)
		v += 0.1 * math.Sin(2*math.Pi*3*heart*t)
		out[i] = v + 0.05*g.rng.NormFloat64()
	}
	return out
}

// bodyPosition changes every hour, cycling supine, left, right, prone
func (g *generator) bodyPosition(n int, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Mod(math.Floor(float64(i)/rate/3600), 4)
	}
	return out
}

// activity is near zero with occasional wake bouts
func (g *generator) activity(n int, rate float64) []float64 {
	out := make([]float64, n)
	interval := max(300, n/15)
	for i := 0; i < n; i += interval {
		if g.rng.Float64() <= 0.9 {
			continue
		}
		end := min(n, i+200)
		length := end - i
		ramp := min(30, length/2)
		for j := i; j < end; j++ {
			switch {
			case ramp > 0 && j < i+ramp:
				out[j] = float64(j-i) / float64(ramp)
			case ramp > 0 && j >= end-ramp:
				out[j] = float64(end-1-j) / float64(ramp)
			default:
				out[j] = 1
			}
		}
	}
	for i := range out {
		out[i] = clamp01(out[i] + 0.05*g.rng.NormFloat64())
	}
	return out
}

// eeg mixes a dominant rhythm per scalp region with a delta component
func (g *generator) eeg(n int, rate float64, name models.ChannelName) []float64 {
	alpha := g.uniform(8, 13)
	delta := g.uniform(0.5, 2)
	var beta, theta float64
	switch name {
	case models.ChannelC3A2, models.ChannelC4A1:
		beta = g.uniform(15, 25)
	case models.ChannelF3A2, models.ChannelF4A1:
		theta = g.uniform(5, 7)
	}

	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		var v float64
		switch name {
		case models.ChannelC3A2, models.ChannelC4A1:
			v = 0.6*math.Sin(2*math.Pi*alpha*t) + 0.4*math.Sin(2*math.Pi*beta*t)
		case models.ChannelF3A2, models.ChannelF4A1:
			v = 0.5*math.Sin(2*math.Pi*alpha*t) + 0.5*math.Sin(2*math.Pi*theta*t)
		default:
			v = 0.8 * math.Sin(2*math.Pi*alpha*t)
		}
		v += 0.3 * math.Sin(2*math.Pi*delta*t)
		out[i] = v + 0.1*g.rng.NormFloat64()
	}
	return out
}
