package analysis

import (
	"context"
	"math"
	"time"

	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	desaturationDrop   = 3.0
	lowSpO2            = 90.0
	snoreThreshold     = 0.7
	snoreBridgeSeconds = 2.0
)

// Summarizer computes whole-record metrics
type Summarizer interface {
	Summarize(ctx context.Context, rec *models.Record) (*models.AnalysisSummary, error)
}

type thresholdSummarizer struct {
	now func() time.Time
}

// NewThresholdSummarizer returns the default amplitude-threshold summarizer
func NewThresholdSummarizer() Summarizer {
	return &thresholdSummarizer{now: time.Now}
}

func (s *thresholdSummarizer) Summarize(ctx context.Context, rec *models.Record) (*models.AnalysisSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events, limitations, b, err := detect(rec)
	if err != nil {
		return nil, err
	}

	hours := rec.Duration() / 3600
	sum := &models.AnalysisSummary{
		RecordFingerprint: rec.Fingerprint(),
		Synthetic:         rec.Synthetic(),
		GeneratedAt:       s.now().UTC(),
		RecordingHours:    hours,
		FlowLimitations:   limitations,
		PositionPercent:   map[string]float64{},
		Events:            events,
	}

	summarizeEvents(sum, events)
	sum.AHI = perHour(len(events), hours)
	sum.RDI = perHour(len(events)+limitations, hours)
	sum.Severity = models.SeverityForAHI(sum.AHI)

	if ch, ok := rec.Channel(models.ChannelBodyPosition); ok {
		summarizePosition(sum, ch)
	}
	summarizeSleepStage(sum, rec, hours)
	sum.ArtifactPercent = artifactPercent(b)

	if ch, ok := rec.Channel(models.ChannelSpO2); ok {
		summarizeOximetry(sum, ch, hours)
	}
	if ch, ok := rec.Channel(models.ChannelSnore); ok {
		summarizeSnore(sum, ch, hours)
	}
	if ch, ok := rec.Channel(models.ChannelPulse); ok {
		summarizeHeartRate(sum, ch)
	}

	log.Debug().
		Str("fingerprint", sum.RecordFingerprint).
		Int("events", len(events)).
		Float64("ahi", sum.AHI).
		Str("severity", string(sum.Severity)).
		Msg("Record summarized")

	return sum, nil
}

func perHour(count int, hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return float64(count) / hours
}

func summarizeEvents(sum *models.AnalysisSummary, events []models.RespiratoryEvent) {
	var apneaTotal, hypopneaTotal float64
	for _, ev := range events {
		supine := ev.Position == models.PositionSupine
		switch ev.Type {
		case models.EventApnea:
			sum.TotalApneas++
			apneaTotal += ev.Duration
			sum.MaxApneaDuration = math.Max(sum.MaxApneaDuration, ev.Duration)
			if ev.Effort {
				sum.ObstructiveApneas++
			} else {
				sum.CentralApneas++
			}
			if supine {
				sum.SupineApneas++
			} else {
				sum.NonSupineApneas++
			}
			if ev.REM {
				sum.REMApneas++
			} else {
				sum.NREMApneas++
			}
		case models.EventHypopnea:
			sum.Hypopneas++
			hypopneaTotal += ev.Duration
			sum.MaxHypopneaDuration = math.Max(sum.MaxHypopneaDuration, ev.Duration)
			if supine {
				sum.SupineHypopneas++
			} else {
				sum.NonSupineHypopneas++
			}
			if ev.REM {
				sum.REMHypopneas++
			} else {
				sum.NREMHypopneas++
			}
		}
	}
	if sum.TotalApneas > 0 {
		sum.AvgApneaDuration = apneaTotal / float64(sum.TotalApneas)
	}
	if sum.Hypopneas > 0 {
		sum.AvgHypopneaDuration = hypopneaTotal / float64(sum.Hypopneas)
	}
}

func summarizePosition(sum *models.AnalysisSummary, ch *models.Channel) {
	counts := map[string]int{}
	total := 0
	for _, v := range ch.Samples() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		counts[models.BodyPosition(math.Round(v)).String()]++
		total++
	}
	for name, n := range counts {
		sum.PositionPercent[name] = 100 * float64(n) / float64(total)
	}
}

// summarizeSleepStage uses low activity as a REM proxy
func summarizeSleepStage(sum *models.AnalysisSummary, rec *models.Record, hours float64) {
	sum.NREMPercent = 100
	if ch, ok := rec.Channel(models.ChannelActivity); ok && ch.Len() > 0 {
		rem := 0
		for _, v := range signal.Normalize(ch.Samples()) {
			if v < remActivityThreshold {
				rem++
			}
		}
		sum.REMPercent = 100 * float64(rem) / float64(ch.Len())
		sum.NREMPercent = 100 - sum.REMPercent
	}
	if sum.REMPercent > 0 {
		sum.REMAHI = perHour(sum.REMApneas+sum.REMHypopneas, hours*sum.REMPercent/100)
	}
	if sum.NREMPercent > 0 {
		sum.NREMAHI = perHour(sum.NREMApneas+sum.NREMHypopneas, hours*sum.NREMPercent/100)
	}
}

// artifactPercent counts samples whose breathing amplitude is implausibly large
func artifactPercent(b *breathing) float64 {
	if len(b.ratio) == 0 {
		return 0
	}
	n := 0
	for _, r := range b.ratio {
		if r > artifactThreshold {
			n++
		}
	}
	return 100 * float64(n) / float64(len(b.ratio))
}

func summarizeOximetry(sum *models.AnalysisSummary, ch *models.Channel, hours float64) {
	samples := ch.Samples()
	valid := make([]float64, 0, len(samples))
	for _, v := range samples {
		if v > 0 && v <= 100 {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return
	}

	sum.MinSpO2 = math.Inf(1)
	var total float64
	below := 0
	for _, v := range valid {
		sum.MinSpO2 = math.Min(sum.MinSpO2, v)
		total += v
		if v < lowSpO2 {
			below++
		}
	}
	sum.AvgSpO2 = total / float64(len(valid))
	sum.BaselineSpO2 = signal.Median(valid)
	sum.TimeBelow90 = 100 * float64(below) / float64(len(valid))

	limit := sum.BaselineSpO2 - desaturationDrop
	sum.Desaturations = len(runs(len(valid), func(i int) bool { return valid[i] <= limit }))
	sum.DesatIndex = perHour(sum.Desaturations, hours)
}

// summarizeSnore counts loud-snore episodes, bridging short gaps inside one burst
func summarizeSnore(sum *models.AnalysisSummary, ch *models.Channel, hours float64) {
	norm := signal.Normalize(ch.Samples())
	loud := runs(len(norm), func(i int) bool { return norm[i] > snoreThreshold })
	bridge := int(snoreBridgeSeconds * ch.SampleRate())
	episodes := 0
	lastEnd := math.MinInt
	for _, s := range loud {
		if lastEnd == math.MinInt || s.lo-lastEnd > bridge {
			episodes++
		}
		lastEnd = s.hi
	}
	sum.SnoreEpisodes = episodes
	sum.SnoreIndex = perHour(episodes, hours)
}

func summarizeHeartRate(sum *models.AnalysisSummary, ch *models.Channel) {
	var total float64
	n := 0
	sum.MinHeartRate = math.Inf(1)
	for _, v := range ch.Samples() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		sum.MinHeartRate = math.Min(sum.MinHeartRate, v)
		sum.MaxHeartRate = math.Max(sum.MaxHeartRate, v)
		total += v
		n++
	}
	if n == 0 {
		sum.MinHeartRate = 0
		return
	}
	sum.AvgHeartRate = total / float64(n)
}
