package signal

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/rs/zerolog/log"
)

const defaultSampleRate = 10.0

// table is the numeric content of a delimited export
type table struct {
	columns int
	rows    [][]float64
	skipped int
}

func splitFields(line string) []string {
	var fields []string
	switch {
	case strings.Contains(line, ","):
		fields = strings.Split(line, ",")
	case strings.Contains(line, "\t"):
		fields = strings.Split(line, "\t")
	default:
		fields = strings.Fields(line)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// parseTable reads comma, tab or whitespace separated rows. A single leading
// header line is skipped; rows whose width differs from the first data row
// or that hold any non-numeric or non-finite field are dropped and counted.
func parseTable(r io.Reader) (*table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	t := &table{}
	headerSeen := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := splitFields(line)

		row := make([]float64, len(fields))
		numeric := 0
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				row[i] = math.NaN()
				continue
			}
			row[i] = v
			numeric++
		}

		if numeric == 0 && len(t.rows) == 0 && !headerSeen {
			headerSeen = true
			continue
		}
		if t.columns == 0 {
			t.columns = len(row)
		}
		if len(row) != t.columns || numeric != len(row) {
			t.skipped++
			continue
		}
		t.rows = append(t.rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return t, nil
}

func (t *table) column(idx int) []float64 {
	out := make([]float64, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out
}

// sampleRateFromTimes estimates the rate as 1/median(dt), dt in seconds
func sampleRateFromTimes(times []float64) float64 {
	if len(times) < 3 {
		return defaultSampleRate
	}
	diffs := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		diffs[i-1] = times[i] - times[i-1]
	}
	dt := Median(diffs)
	if math.IsNaN(dt) || dt <= 0 {
		return defaultSampleRate
	}
	return 1 / dt
}

type columnMap map[models.ChannelName]int

var (
	deviceLayout = columnMap{
		models.ChannelBodyPosition: 1,
		models.ChannelPulse:        2,
		models.ChannelSpO2:         3,
		models.ChannelAirflow:      7,
	}
	fullLayout = columnMap{
		models.ChannelSnore:        1,
		models.ChannelAirflow:      2,
		models.ChannelThorax:       3,
		models.ChannelAbdomen:      4,
		models.ChannelSpO2:         5,
		models.ChannelPleth:        6,
		models.ChannelPulse:        7,
		models.ChannelBodyPosition: 8,
		models.ChannelActivity:     9,
	}
	eegLayout = columnMap{
		models.ChannelC3A2: 10,
		models.ChannelC4A1: 11,
		models.ChannelF3A2: 12,
		models.ChannelF4A1: 13,
		models.ChannelO1A2: 14,
		models.ChannelO2A1: 15,
	}
)

func layoutFor(columns int) (columnMap, error) {
	switch {
	case columns == 10:
		return deviceLayout, nil
	case columns >= 16:
		merged := columnMap{}
		for k, v := range fullLayout {
			merged[k] = v
		}
		for k, v := range eegLayout {
			merged[k] = v
		}
		return merged, nil
	case columns >= 12:
		return fullLayout, nil
	default:
		return nil, fmt.Errorf("%w: %d columns", ErrUnknownLayout, columns)
	}
}

// buildRecord maps table columns onto channels and synthesises the ones the layout lacks
func buildRecord(t *table, opts models.RecordOptions, minSeconds float64, seed uint64) (*models.Record, error) {
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrInsufficientData)
	}
	layout, err := layoutFor(t.columns)
	if err != nil {
		return nil, err
	}

	times := t.column(0)
	for i := range times {
		times[i] /= 1000
	}
	rate := sampleRateFromTimes(times)
	n := len(t.rows)
	duration := float64(n) / rate
	if duration < minSeconds {
		return nil, fmt.Errorf("%w: %.0fs recorded, at least %.0fs required", ErrInsufficientData, duration, minSeconds)
	}

	g := newGenerator(seed)
	channels := make([]*models.Channel, 0, len(models.AllChannels))
	for _, name := range models.AllChannels {
		chRate := rate
		var samples []float64
		if idx, ok := layout[name]; ok {
			samples = t.column(idx)
			if name == models.ChannelBodyPosition {
				for i, v := range samples {
					samples[i] = math.Round(v)
				}
			}
		} else {
			samples, chRate = g.synthesize(name, duration, rate)
		}
		ch, err := models.NewChannel(name, chRate, samples)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return models.NewRecord(opts, duration, channels...)
}

// synthesize fills in a channel the export does not carry
func (g *generator) synthesize(name models.ChannelName, duration, rate float64) ([]float64, float64) {
	if name.IsEEG() {
		return g.eeg(sampleCount(duration, MockEEGSampleRate), MockEEGSampleRate, name), MockEEGSampleRate
	}
	n := sampleCount(duration, rate)
	switch name {
	case models.ChannelSnore:
		return g.snore(n, rate), rate
	case models.ChannelThorax:
		return g.effort(n, rate, nil, 0, 0.3, 0.05, 0.1), rate
	case models.ChannelAbdomen:
		return g.effort(n, rate, nil, g.uniform(0.1, 0.3), 0.25, 0.04, 0.08), rate
	case models.ChannelPleth:
		return g.pleth(n, rate), rate
	case models.ChannelActivity:
		return g.activity(n, rate), rate
	case models.ChannelPulse:
		return g.pulse(n, rate), rate
	case models.ChannelSpO2:
		return g.spo2(n, rate, nil), rate
	case models.ChannelBodyPosition:
		return g.bodyPosition(n, rate), rate
	default:
		return g.airflow(n, rate, nil), rate
	}
}

func parseRecord(data []byte, opts models.RecordOptions, minSeconds float64, seed uint64) (*models.Record, error) {
	t, err := parseTable(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if t.skipped > 0 {
		log.Warn().
			Str("source", opts.Source).
			Int("skipped_rows", t.skipped).
			Int("rows", len(t.rows)).
			Msg("Dropped malformed rows")
	}
	return buildRecord(t, opts, minSeconds, seed)
}

func startTimeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().Truncate(time.Second)
	}
	return t
}
