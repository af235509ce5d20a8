package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/RMahshie/sleepsense/internal/analysis"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 800
)

func traceStyle(hex string, width float64) chart.Style {
	return chart.Style{
		StrokeColor: drawing.ColorFromHex(hex),
		StrokeWidth: width,
	}
}

func clockFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return FormatClock(f)
	}
	return ""
}

// WritePNG draws the frame as a stacked line chart, one trace per channel.
// A frame with a comparison pane is split into two charts, main window on top.
func WritePNG(f *Frame, w io.Writer, width, height int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	if len(f.Comparison) == 0 {
		ch := paneChart(f.Title(), f.Start, f.End, f.Traces, f.Events, width, height)
		if err := ch.Render(chart.PNG, w); err != nil {
			return fmt.Errorf("failed to render frame: %w", err)
		}
		return nil
	}

	top := height / 2
	panes := []chart.Chart{
		paneChart(f.Title(), f.Start, f.End, f.Traces, f.Events, width, top),
		paneChart(f.ComparisonTitle(), f.ComparisonStart, f.ComparisonEnd, f.Comparison, nil, width, height-top),
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for _, pane := range panes {
		var buf bytes.Buffer
		if err := pane.Render(chart.PNG, &buf); err != nil {
			return fmt.Errorf("failed to render frame: %w", err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			return fmt.Errorf("failed to decode frame pane: %w", err)
		}
		draw.Draw(canvas, image.Rect(0, y, width, y+pane.Height), img, img.Bounds().Min, draw.Src)
		y += pane.Height
	}
	if err := png.Encode(w, canvas); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// paneChart lays out one window of stacked traces with its event bars
func paneChart(title string, start, end float64, traces []Trace, events []models.RespiratoryEvent, width, height int) chart.Chart {
	series := []chart.Series{}
	ticks := []chart.Tick{}
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, tr := range traces {
		ticks = append(ticks, chart.Tick{Value: tr.Offset, Label: string(tr.Channel)})
		yMin = math.Min(yMin, tr.Offset-0.6)
		yMax = math.Max(yMax, tr.Offset+0.6)
		if len(tr.Times) < 2 {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    string(tr.Channel),
			XValues: tr.Times,
			YValues: tr.Values,
			Style:   traceStyle(tr.Color, 1),
		})
	}
	if math.IsInf(yMin, 1) {
		yMin, yMax = 0, 1
	}

	// event bars sit just above the top trace
	barY := yMax + 0.2
	for _, ev := range analysis.EventsInWindow(events, start, end) {
		color := "ff9800"
		if ev.Type == models.EventApnea {
			color = "f44336"
		}
		series = append(series, chart.ContinuousSeries{
			Name:    string(ev.Type),
			XValues: []float64{math.Max(ev.Start, start), math.Min(ev.End, end)},
			YValues: []float64{barY, barY},
			Style:   traceStyle(color, 6),
		})
	}
	if len(events) > 0 {
		yMax = barY + 0.2
	}

	if len(series) == 0 {
		series = append(series, chart.ContinuousSeries{
			XValues: []float64{start, end},
			YValues: []float64{yMin, yMin},
			Style:   chart.Style{Hidden: true},
		})
	}

	return chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 110, Right: 16, Bottom: 24}},
		XAxis: chart.XAxis{
			Name:           "Time",
			Range:          &chart.ContinuousRange{Min: start, Max: math.Max(end, start+1)},
			ValueFormatter: clockFormatter,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
			Ticks: ticks,
		},
		Series: series,
	}
}

// WriteStripPNG draws one channel over the whole record with its raw values
func WriteStripPNG(w io.Writer, ch *models.Channel, width, height int) error {
	samples := ch.Samples()
	times := make([]float64, len(samples))
	for i := range times {
		times[i] = float64(i) / ch.SampleRate()
	}
	times, samples = Decimate(times, samples, DefaultMaxPoints)
	if len(samples) < 2 {
		return fmt.Errorf("channel %s has too few samples to plot", ch.Name())
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			samples[i] = lo
		}
	}

	duration := float64(ch.Len()) / ch.SampleRate()
	c := chart.Chart{
		Title:      string(ch.Name()),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: 10}},
		XAxis: chart.XAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: duration},
			ValueFormatter: clockFormatter,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{chart.ContinuousSeries{
			Name:    string(ch.Name()),
			XValues: times,
			YValues: samples,
			Style:   traceStyle(ch.Name().Color(), 1),
		}},
	}
	if err := c.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render %s strip: %w", ch.Name(), err)
	}
	return nil
}

// Image renders the frame and decodes it for display surfaces that want an image.Image
func Image(f *Frame, width, height int) (image.Image, error) {
	var buf bytes.Buffer
	if err := WritePNG(f, &buf, width, height); err != nil {
		return nil, err
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}
