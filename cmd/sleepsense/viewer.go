package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/RMahshie/sleepsense/internal/app"
	"github.com/RMahshie/sleepsense/internal/processing"
	"github.com/RMahshie/sleepsense/internal/render"
	"github.com/RMahshie/sleepsense/internal/report"
	"github.com/RMahshie/sleepsense/internal/session"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	plotWidth  = 1400
	plotHeight = 800
)

var noticeColor = color.NRGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}

// comparisonOffsets are the offsets offered for the comparison pane
var comparisonOffsets = []float64{-3600, -1800, -600, -60, 0, 60, 600, 1800, 3600}

// viewer binds one session to the window's widgets
type viewer struct {
	core   *app.App
	window fyne.Window
	sess   *session.Session

	plot       *canvas.Image
	notice     *canvas.Text
	status     *widget.Label
	frameSel   *widget.Select
	compareSel *widget.Select
	slider     *widget.Slider
	zoomChecks map[models.ChannelName]*widget.Check

	// syncing suppresses widget callbacks while the widgets mirror the session
	syncing bool
}

func frameLabel(seconds float64) string {
	if seconds >= 60 {
		return fmt.Sprintf("%g min", seconds/60)
	}
	return fmt.Sprintf("%g s", seconds)
}

func offsetLabel(offset float64) string {
	switch {
	case offset > 0:
		return "+" + frameLabel(offset)
	case offset < 0:
		return "-" + frameLabel(math.Abs(offset))
	default:
		return "same window"
	}
}

func newViewer(core *app.App, w fyne.Window, sess *session.Session) *viewer {
	v := &viewer{
		core:       core,
		window:     w,
		sess:       sess,
		zoomChecks: map[models.ChannelName]*widget.Check{},
	}

	v.plot = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 100, 60)))
	v.plot.FillMode = canvas.ImageFillContain
	v.plot.SetMinSize(fyne.NewSize(1000, 560))

	v.notice = canvas.NewText("", noticeColor)
	v.notice.TextStyle = fyne.TextStyle{Bold: true}
	v.status = widget.NewLabel("")

	v.frameSel = widget.NewSelect(nil, func(label string) {
		if v.syncing {
			return
		}
		for _, f := range v.sess.FrameSizes() {
			if frameLabel(f) == label {
				if _, err := v.sess.SetFrameSize(f); err != nil {
					dialog.ShowError(err, v.window)
				}
				v.refresh()
				return
			}
		}
	})

	offsets := make([]string, 0, len(comparisonOffsets))
	for _, off := range comparisonOffsets {
		offsets = append(offsets, offsetLabel(off))
	}
	v.compareSel = widget.NewSelect(offsets, func(label string) {
		if v.syncing {
			return
		}
		for _, off := range comparisonOffsets {
			if offsetLabel(off) == label {
				v.setComparison(off)
				return
			}
		}
	})

	v.slider = widget.NewSlider(0, 1)
	v.slider.Step = 0.001
	v.slider.OnChanged = func(pos float64) {
		if v.syncing {
			return
		}
		if _, err := v.sess.SetPosition(pos); err != nil {
			dialog.ShowError(err, v.window)
		}
		v.refresh()
	}

	return v
}

// content builds the window layout
func (v *viewer) content() fyne.CanvasObject {
	modes := container.NewHBox(widget.NewLabel("View:"))
	for _, m := range models.ViewModes {
		mode := m
		modes.Add(widget.NewButton(mode.Label(), func() { v.setMode(mode) }))
	}

	zooms := container.NewHBox(widget.NewLabel("2x:"))
	for _, ch := range models.AllChannels {
		name := ch
		check := widget.NewCheck(string(name), func(on bool) {
			if v.syncing {
				return
			}
			factor := 1.0
			if on {
				factor = 2.0
			}
			if _, err := v.sess.SetZoom(name, factor); err != nil {
				dialog.ShowError(err, v.window)
			}
			v.refresh()
		})
		v.zoomChecks[name] = check
		zooms.Add(check)
	}

	top := container.NewVBox(
		container.NewHBox(
			widget.NewButton("Open…", v.openDialog),
			widget.NewButton("Report (PDF)", func() { v.exportReport(processing.FormatPDF) }),
			widget.NewButton("Summary (XLSX)", func() { v.exportReport(processing.FormatXLSX) }),
			widget.NewLabel("Frame:"), v.frameSel,
			widget.NewLabel("Compare:"), v.compareSel,
			widget.NewButton("◀", func() { v.sess.StepBack(); v.refresh() }),
			widget.NewButton("▶", func() { v.sess.StepForward(); v.refresh() }),
			v.status,
		),
		modes,
		container.NewHScroll(zooms),
		v.notice,
	)
	return container.NewBorder(top, v.slider, nil, nil, v.plot)
}

// bindKeys installs the keyboard navigation
func (v *viewer) bindKeys() {
	c := v.window.Canvas()
	c.SetOnTypedKey(v.handleKey)

	for i, m := range models.ViewModes {
		mode := m
		key := fyne.KeyName(fmt.Sprint(i + 1))
		c.AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { v.setMode(mode) })
	}
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { v.exportReport(processing.FormatPDF) })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { v.openDialog() })
}

func (v *viewer) handleKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyRight:
		v.sess.StepForward()
	case fyne.KeyLeft:
		v.sess.StepBack()
	case fyne.KeyPageDown:
		v.sess.Advance(v.sess.View().State.FrameSize)
	case fyne.KeyPageUp:
		v.sess.Retreat(v.sess.View().State.FrameSize)
	case fyne.KeyHome:
		v.sess.JumpToStart()
	case fyne.KeyEnd:
		v.sess.JumpToEnd()
	default:
		return
	}
	v.refresh()
}

func (v *viewer) setMode(mode models.ViewMode) {
	if _, err := v.sess.SetViewMode(mode); err != nil {
		dialog.ShowError(err, v.window)
		return
	}
	if mode == models.ViewOSAAnalysis {
		// event overlays need the whole-record summary
		if _, err := v.core.Reports.Summarize(context.Background(), v.sess); err != nil {
			dialog.ShowError(err, v.window)
		}
	}
	v.refresh()
}

// setComparison moves the comparison pane and switches to Comparison mode
func (v *viewer) setComparison(offset float64) {
	if _, err := v.sess.SetComparisonOffset(offset); err != nil {
		dialog.ShowError(err, v.window)
		return
	}
	if v.sess.View().State.Mode != models.ViewComparison {
		v.setMode(models.ViewComparison)
		return
	}
	v.refresh()
}

// refresh mirrors the session into the widgets and redraws the plot
func (v *viewer) refresh() {
	snap := v.sess.View()

	v.syncing = true
	labels := make([]string, 0, len(v.sess.FrameSizes()))
	for _, f := range v.sess.FrameSizes() {
		labels = append(labels, frameLabel(f))
	}
	v.frameSel.Options = labels
	v.frameSel.SetSelected(frameLabel(snap.State.FrameSize))
	v.compareSel.SetSelected(offsetLabel(snap.State.ComparisonOffset))
	v.slider.SetValue(snap.Position)
	for name, check := range v.zoomChecks {
		check.SetChecked(snap.State.ZoomFor(name) > 1)
	}
	v.syncing = false

	v.status.SetText(fmt.Sprintf("%s - %s  %s",
		render.FormatClock(snap.State.Start), render.FormatClock(snap.State.End()), snap.DetailLevel))
	v.notice.Text = v.sess.Notice()
	v.notice.Refresh()
	v.window.SetTitle(fmt.Sprintf("SleepSense Pro - %s", snap.State.Mode.Label()))

	frame, err := v.sess.Frame(context.Background(), render.DefaultMaxPoints)
	if err != nil {
		log.Error().Err(err).Str("session_id", v.sess.ID()).Msg("Failed to build frame")
		return
	}
	img, err := render.Image(frame, plotWidth, plotHeight)
	if err != nil {
		log.Error().Err(err).Str("session_id", v.sess.ID()).Msg("Failed to render frame")
		return
	}
	v.plot.Image = img
	v.plot.Refresh()
}

// open replaces the current session with one for source
func (v *viewer) open(source string) {
	sess, err := v.core.Manager.Open(context.Background(), source)
	if err != nil {
		dialog.ShowError(err, v.window)
		return
	}
	v.core.Metrics.SessionOpened(sess.Synthetic())
	if old := v.sess; old != nil {
		_ = v.core.Manager.Close(old.ID())
	}
	v.sess = sess
	v.refresh()
	if notice := sess.Notice(); notice != "" {
		dialog.ShowInformation("Mock data", notice, v.window)
	}
}

func (v *viewer) openDialog() {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		rc.Close()
		v.open(path)
	}, v.window)
	d.Show()
}

// exportReport asks where to save, starting from the timestamped default name
func (v *viewer) exportReport(format string) {
	def := report.DefaultReportPath(v.core.Config.Report.Dir, time.Now())
	if format == processing.FormatXLSX {
		def = report.DefaultWorkbookPath(v.core.Config.Report.Dir, time.Now())
	}

	d := dialog.NewFileSave(v.onSaveChosen(format), v.window)
	d.SetFileName(filepath.Base(def))
	if dir, err := storage.ListerForURI(storage.NewFileURI(filepath.Dir(def))); err == nil {
		d.SetLocation(dir)
	}
	d.Show()
}

// onSaveChosen exports to the chosen file; a cancelled dialog writes nothing
func (v *viewer) onSaveChosen(format string) func(fyne.URIWriteCloser, error) {
	return func(wc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		if wc == nil {
			return
		}
		path := wc.URI().Path()
		if err := wc.Close(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to close save target")
		}
		if !strings.EqualFold(filepath.Ext(path), "."+format) {
			path += "." + format
		}
		v.exportTo(format, path)
	}
}

// exportTo writes the report off the UI goroutine and reports the outcome
func (v *viewer) exportTo(format, path string) {
	sess := v.sess
	go func() {
		var (
			rep *models.Report
			err error
		)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if format == processing.FormatXLSX {
			rep, err = v.core.Reports.ExportWorkbook(ctx, sess, path)
		} else {
			rep, err = v.core.Reports.GenerateReport(ctx, sess, path)
		}
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, v.window)
				return
			}
			msg := []string{fmt.Sprintf("Saved to %s", rep.Path), fmt.Sprintf("AHI %.1f", rep.AHI)}
			if rep.ArchiveKey != nil {
				msg = append(msg, "Archived as "+*rep.ArchiveKey)
			}
			dialog.ShowInformation("Report exported", strings.Join(msg, "\n"), v.window)
		})
	}()
}
