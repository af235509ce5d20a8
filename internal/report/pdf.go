package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RMahshie/sleepsense/internal/render"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
)

// PDFPages is the fixed length of the PDF report
const PDFPages = 4

const (
	margin      = 15.0
	pageWidth   = 210.0
	usableWidth = pageWidth - 2*margin
	rowHeight   = 4.8
	stripPixelW = 1400
	stripPixelH = 220
)

// overviewChannels are plotted on the last page in this order
var overviewChannels = []models.ChannelName{
	models.ChannelSnore,
	models.ChannelAirflow,
	models.ChannelSpO2,
	models.ChannelPulse,
	models.ChannelBodyPosition,
	models.ChannelActivity,
}

// PDFExporter writes the four page A4 sleep study report
type PDFExporter struct{}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) Export(ctx context.Context, sum *models.AnalysisSummary, rec *models.Record, path string) error {
	if err := prepare(ctx, sum, rec, path); err != nil {
		return err
	}

	pdf, err := e.build(sum, rec)
	if err != nil {
		return fmt.Errorf("failed to lay out report: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}

	log.Info().
		Str("path", path).
		Int("pages", PDFPages).
		Float64("ahi", sum.AHI).
		Msg("PDF report written")
	return nil
}

func (e *PDFExporter) build(sum *models.AnalysisSummary, rec *models.Record) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Sleep Study Report", false)
	pdf.SetCreator("SleepSense Pro", false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	studyPage(pdf, sum, rec)
	respiratoryPage(pdf, sum)
	additionalPage(pdf, sum, rec)
	overviewPage(pdf, rec)

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	return pdf, nil
}

func pageTitle(pdf *fpdf.Fpdf, title string, synthetic bool) {
	pdf.AddPage()
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(usableWidth*0.7, 9, title, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(usableWidth*0.3, 9, "SleepSense Pro", "", 1, "R", false, 0, "")
	if synthetic {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(204, 0, 0)
		pdf.CellFormat(0, 7, signal.MockBanner, "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(3)
}

func sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(44, 62, 80)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(0, 6.5, " "+title, "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(1.5)
}

func drawTable(pdf *fpdf.Fpdf, widths []float64, header []string, rows [][]string) {
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 243, 255)
	for i, h := range header {
		pdf.CellFormat(widths[i], rowHeight, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, row := range rows {
		for i, cell := range row {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], rowHeight, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// blankSection leaves a bordered box for handwritten clinical notes
func blankSection(pdf *fpdf.Fpdf, title string, height float64) {
	sectionHeader(pdf, title)
	y := pdf.GetY()
	pdf.SetDrawColor(160, 160, 160)
	pdf.Rect(margin, y, usableWidth, height, "D")
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetY(y + height)
}

func studyPage(pdf *fpdf.Fpdf, sum *models.AnalysisSummary, rec *models.Record) {
	pageTitle(pdf, "Sleep Study Report", sum.Synthetic)

	data := "Recorded"
	if sum.Synthetic {
		data = "Synthetic"
	}
	sectionHeader(pdf, "Study Data")
	drawTable(pdf, []float64{50, usableWidth - 50}, []string{"Field", "Value"}, [][]string{
		{"Source", rec.Source()},
		{"Data", data},
		{"Recording Start", rec.StartTime().Format("2006-01-02 15:04:05")},
		{"Recording Duration", fmt.Sprintf("%s (%.1f h)", render.FormatClock(rec.Duration()), sum.RecordingHours)},
		{"Record Fingerprint", sum.RecordFingerprint},
		{"Report Generated", sum.GeneratedAt.Format(time.RFC1123)},
	})

	sectionHeader(pdf, "Patient Information")
	w := usableWidth / 4
	drawTable(pdf, []float64{w, w, w, w}, []string{"Field", "", "Field", ""}, [][]string{
		{"Last Name:", "", "Height:", ""},
		{"First Name:", "", "Weight:", ""},
		{"Date of Birth:", "", "BMI:", ""},
		{"Patient ID:", "", "Referring Physician:", ""},
	})

	blankSection(pdf, "Clinical History", 30)
	blankSection(pdf, "Medications", 22)
	blankSection(pdf, "Physician Interpretation", 45)
	blankSection(pdf, "Signature / Date", 16)
}

func respiratoryPage(pdf *fpdf.Fpdf, sum *models.AnalysisSummary) {
	pageTitle(pdf, "Sleep Study Analysis Results", sum.Synthetic)

	sectionHeader(pdf, "Respiratory Events by Sleep Stage")
	remHours := sum.RecordingHours * sum.REMPercent / 100
	nremHours := sum.RecordingHours * sum.NREMPercent / 100
	drawTable(pdf, []float64{60, 40, 40, 40}, []string{"Number (Index)", "REM", "Non-REM", "Total"}, [][]string{
		{"Obstructive Apnea", "-", "-", countIndex(sum.ObstructiveApneas, sum.RecordingHours)},
		{"Central Apnea", "-", "-", countIndex(sum.CentralApneas, sum.RecordingHours)},
		{"Apnea", countIndex(sum.REMApneas, remHours), countIndex(sum.NREMApneas, nremHours), countIndex(sum.TotalApneas, sum.RecordingHours)},
		{"Hypopnea", countIndex(sum.REMHypopneas, remHours), countIndex(sum.NREMHypopneas, nremHours), countIndex(sum.Hypopneas, sum.RecordingHours)},
		{"A+H", fmt.Sprint(sum.REMApneas + sum.REMHypopneas), fmt.Sprint(sum.NREMApneas + sum.NREMHypopneas), fmt.Sprint(sum.TotalApneas + sum.Hypopneas)},
		{"AHI [/h]", f1(sum.REMAHI), f1(sum.NREMAHI), f1(sum.AHI)},
		{"RDI [/h]", "-", "-", f1(sum.RDI)},
		{"Flow Limitations (Index)", "-", "-", countIndex(sum.FlowLimitations, sum.RecordingHours)},
		{"Max. Apnea Duration (s)", "-", "-", f0(sum.MaxApneaDuration)},
		{"Avg. Apnea Duration (s)", "-", "-", f1(sum.AvgApneaDuration)},
		{"Max. Hypopnea Duration (s)", "-", "-", f0(sum.MaxHypopneaDuration)},
		{"Avg. Hypopnea Duration (s)", "-", "-", f1(sum.AvgHypopneaDuration)},
		{"Stage Fraction (%)", f1(sum.REMPercent), f1(sum.NREMPercent), "100.0"},
		{"Artefact (%)", "-", "-", f1(sum.ArtifactPercent)},
	})

	sectionHeader(pdf, "Respiratory Events by Body Position")
	byPos := eventsByPosition(sum.Events)
	positions := []models.BodyPosition{
		models.PositionSupine, models.PositionLeft, models.PositionRight, models.PositionProne, models.PositionUpright,
	}
	header := []string{"Position", "Supine", "not Supine"}
	fraction := []string{"Time Fraction (%)", f1(sum.PositionPercent["supine"]), f1(100 - sum.PositionPercent["supine"])}
	apneas := []string{"Apnea", fmt.Sprint(sum.SupineApneas), fmt.Sprint(sum.NonSupineApneas)}
	hypopneas := []string{"Hypopnea", fmt.Sprint(sum.SupineHypopneas), fmt.Sprint(sum.NonSupineHypopneas)}
	for _, p := range positions[1:] {
		header = append(header, titleCase(p.String()))
		fraction = append(fraction, f1(sum.PositionPercent[p.String()]))
		apneas = append(apneas, fmt.Sprint(byPos[p][0]))
		hypopneas = append(hypopneas, fmt.Sprint(byPos[p][1]))
	}
	drawTable(pdf, []float64{40, 20, 20, 25, 25, 25, 25}, header, [][]string{fraction, apneas, hypopneas})

	sectionHeader(pdf, "Snoring")
	drawTable(pdf, []float64{60, 40}, []string{"Parameter", "Value"}, [][]string{
		{"Snore Episodes (Index)", countIndex(sum.SnoreEpisodes, sum.RecordingHours)},
	})

	sectionHeader(pdf, "Oxygen Saturation")
	drawTable(pdf, []float64{60, 40}, []string{"Parameter", "Value"}, [][]string{
		{"Desaturations (Index)", countIndex(sum.Desaturations, sum.RecordingHours)},
		{"Minimum SpO2 (%)", f0(sum.MinSpO2)},
		{"Baseline SpO2 (%)", f0(sum.BaselineSpO2)},
		{"Average SpO2 (%)", f0(sum.AvgSpO2)},
	})
}

func additionalPage(pdf *fpdf.Fpdf, sum *models.AnalysisSummary, rec *models.Record) {
	pageTitle(pdf, "Additional Sleep Analysis", sum.Synthetic)

	sectionHeader(pdf, "Oxygen Saturation")
	drawTable(pdf, []float64{70, 40}, []string{"Parameter", "Value"}, [][]string{
		{"Desaturations (Index)", countIndex(sum.Desaturations, sum.RecordingHours)},
		{"Minimum SpO2 (%)", f0(sum.MinSpO2)},
		{"Baseline SpO2 (%)", f0(sum.BaselineSpO2)},
		{"Average SpO2 (%)", f1(sum.AvgSpO2)},
		{"Time < 90% (%)", f1(sum.TimeBelow90)},
	})

	sectionHeader(pdf, "Snoring")
	drawTable(pdf, []float64{70, 40}, []string{"Parameter", "Value"}, [][]string{
		{"Snore Episodes (Index)", countIndex(sum.SnoreEpisodes, sum.RecordingHours)},
	})

	sectionHeader(pdf, "Heart Rate")
	drawTable(pdf, []float64{70, 40}, []string{"Parameter", "Value"}, [][]string{
		{"Maximum HR (bpm)", f0(sum.MaxHeartRate)},
		{"Minimum HR (bpm)", f0(sum.MinHeartRate)},
		{"Average HR (bpm)", f0(sum.AvgHeartRate)},
	})

	sectionHeader(pdf, "Severity")
	severityGrid(pdf, sum)

	sectionHeader(pdf, "Study Summary")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf(
		"Total study duration %.1f hours from %s. AHI %.1f/h (%s), RDI %.1f/h, %d respiratory events, %d desaturations, minimum SpO2 %.0f%%.",
		sum.RecordingHours, rec.Source(), sum.AHI, sum.Severity, sum.RDI, len(sum.Events), sum.Desaturations, sum.MinSpO2,
	), "", "L", false)
}

// severityGrid marks the band of each headline metric
func severityGrid(pdf *fpdf.Fpdf, sum *models.AnalysisSummary) {
	bands := []models.Severity{models.SeverityNormal, models.SeverityMild, models.SeverityModerate, models.SeveritySevere}
	rows := []struct {
		label string
		band  models.Severity
	}{
		{"AHI", sum.Severity},
		{"SpO2", spo2Severity(sum.MinSpO2)},
		// snore index on the AHI bands
		{"Snore", models.SeverityForAHI(sum.SnoreIndex)},
	}

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 243, 255)
	pdf.CellFormat(30, rowHeight+1, "", "1", 0, "C", true, 0, "")
	for _, b := range bands {
		pdf.CellFormat(30, rowHeight+1, titleCase(string(b)), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(30, rowHeight+1, row.label, "1", 0, "L", false, 0, "")
		for _, b := range bands {
			mark, fill := "", false
			if b == row.band {
				mark, fill = "X", true
				pdf.SetFillColor(255, 205, 210)
			}
			pdf.CellFormat(30, rowHeight+1, mark, "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

func overviewPage(pdf *fpdf.Fpdf, rec *models.Record) {
	pageTitle(pdf, "Sleep Data Plots", rec.Synthetic())

	stripHeight := usableWidth * stripPixelH / stripPixelW
	for _, name := range overviewChannels {
		ch, ok := rec.Channel(name)
		if !ok {
			notPlotted(pdf, name, "not recorded")
			continue
		}
		var buf bytes.Buffer
		if err := render.WriteStripPNG(&buf, ch, stripPixelW, stripPixelH); err != nil {
			log.Warn().Err(err).Str("channel", string(name)).Msg("Overview strip skipped")
			notPlotted(pdf, name, "could not be plotted")
			continue
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		imageName := "strip-" + string(name)
		pdf.RegisterImageOptionsReader(imageName, opts, &buf)
		y := pdf.GetY()
		pdf.ImageOptions(imageName, margin, y, usableWidth, stripHeight, false, opts, 0, "")
		pdf.SetY(y + stripHeight + 2)
	}
}

func notPlotted(pdf *fpdf.Fpdf, name models.ChannelName, why string) {
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s: %s", name, why), "", 1, "L", false, 0, "")
}

// eventsByPosition counts [apneas, hypopneas] per body position
func eventsByPosition(events []models.RespiratoryEvent) map[models.BodyPosition][2]int {
	out := map[models.BodyPosition][2]int{}
	for _, ev := range events {
		c := out[ev.Position]
		if ev.Type == models.EventApnea {
			c[0]++
		} else {
			c[1]++
		}
		out[ev.Position] = c
	}
	return out
}

func spo2Severity(minSpO2 float64) models.Severity {
	switch {
	case minSpO2 <= 0:
		return ""
	case minSpO2 >= 90:
		return models.SeverityNormal
	case minSpO2 >= 85:
		return models.SeverityMild
	case minSpO2 >= 80:
		return models.SeverityModerate
	default:
		return models.SeveritySevere
	}
}

func countIndex(n int, hours float64) string {
	if hours <= 0 {
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("%d (%.1f)", n, float64(n)/hours)
}

func f0(v float64) string { return fmt.Sprintf("%.0f", v) }
func f1(v float64) string { return fmt.Sprintf("%.1f", v) }

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
