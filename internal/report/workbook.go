package report

import (
	"context"
	"fmt"

	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	EventsSheet  = "Events"
)

// WorkbookExporter writes the summary metrics and the event list as an .xlsx workbook
type WorkbookExporter struct{}

func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

func (e *WorkbookExporter) Export(ctx context.Context, sum *models.AnalysisSummary, rec *models.Record, path string) error {
	if err := prepare(ctx, sum, rec, path); err != nil {
		return err
	}

	f, err := buildWorkbook(sum, rec)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}

	log.Info().
		Str("path", path).
		Int("events", len(sum.Events)).
		Msg("Workbook written")
	return nil
}

type metricRow struct {
	name  string
	value interface{}
	unit  string
}

func summaryRows(sum *models.AnalysisSummary, rec *models.Record) []metricRow {
	rows := []metricRow{
		{"Source", rec.Source(), ""},
		{"Recording Start", rec.StartTime().Format("2006-01-02 15:04:05"), ""},
		{"Recording Duration", sum.RecordingHours, "h"},
		{"AHI", sum.AHI, "/h"},
		{"RDI", sum.RDI, "/h"},
		{"Severity", string(sum.Severity), ""},
		{"Total Apneas", sum.TotalApneas, ""},
		{"Obstructive Apneas", sum.ObstructiveApneas, ""},
		{"Central Apneas", sum.CentralApneas, ""},
		{"Hypopneas", sum.Hypopneas, ""},
		{"Flow Limitations", sum.FlowLimitations, ""},
		{"Max Apnea Duration", sum.MaxApneaDuration, "s"},
		{"Avg Apnea Duration", sum.AvgApneaDuration, "s"},
		{"Max Hypopnea Duration", sum.MaxHypopneaDuration, "s"},
		{"Avg Hypopnea Duration", sum.AvgHypopneaDuration, "s"},
		{"Supine Time", sum.PositionPercent["supine"], "%"},
		{"REM Time", sum.REMPercent, "%"},
		{"REM AHI", sum.REMAHI, "/h"},
		{"NREM AHI", sum.NREMAHI, "/h"},
		{"Artefact", sum.ArtifactPercent, "%"},
		{"Minimum SpO2", sum.MinSpO2, "%"},
		{"Average SpO2", sum.AvgSpO2, "%"},
		{"Baseline SpO2", sum.BaselineSpO2, "%"},
		{"Desaturations", sum.Desaturations, ""},
		{"Desaturation Index", sum.DesatIndex, "/h"},
		{"Time Below 90%", sum.TimeBelow90, "%"},
		{"Snore Episodes", sum.SnoreEpisodes, ""},
		{"Snore Index", sum.SnoreIndex, "/h"},
		{"Minimum Heart Rate", sum.MinHeartRate, "bpm"},
		{"Maximum Heart Rate", sum.MaxHeartRate, "bpm"},
		{"Average Heart Rate", sum.AvgHeartRate, "bpm"},
	}
	if sum.Synthetic {
		rows = append([]metricRow{{"Notice", signal.MockBanner, ""}}, rows...)
	}
	return rows
}

func buildWorkbook(sum *models.AnalysisSummary, rec *models.Record) (*excelize.File, error) {
	f := excelize.NewFile()

	summaryIndex, err := f.NewSheet(SummarySheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(EventsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(summaryIndex)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "#000000", Style: 1},
			{Type: "top", Color: "#000000", Style: 1},
			{Type: "bottom", Color: "#000000", Style: 1},
			{Type: "right", Color: "#000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeSheet(f, SummarySheet, headerStyle, []string{"Metric", "Value", "Unit"}, metricCells(summaryRows(sum, rec))); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, EventsSheet, headerStyle,
		[]string{"#", "Type", "Start (s)", "End (s)", "Duration (s)", "Position", "Effort", "Stage"},
		eventCells(sum.Events)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func metricCells(rows []metricRow) [][]interface{} {
	out := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, []interface{}{r.name, r.value, r.unit})
	}
	return out
}

func eventCells(events []models.RespiratoryEvent) [][]interface{} {
	out := make([][]interface{}, 0, len(events))
	for i, ev := range events {
		effort := "central"
		if ev.Effort {
			effort = "obstructive"
		}
		stage := "NREM"
		if ev.REM {
			stage = "REM"
		}
		out = append(out, []interface{}{i + 1, string(ev.Type), ev.Start, ev.End, ev.Duration, ev.Position.String(), effort, stage})
	}
	return out
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	for col := range headers {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		width := 14.0
		if col == 0 && sheet == SummarySheet {
			width = 26
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}
