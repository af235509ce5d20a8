package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/test"
	"github.com/RMahshie/sleepsense/internal/app"
	"github.com/RMahshie/sleepsense/internal/config"
	"github.com/RMahshie/sleepsense/internal/processing"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViewer(t *testing.T) *viewer {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	cfg := &config.Config{}
	cfg.Data.MockDurationSeconds = 3600
	cfg.Data.MockSeed = 5
	cfg.Report.Dir = t.TempDir()
	core, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(core.Close)

	w := test.NewWindow(nil)
	t.Cleanup(w.Close)
	v := newViewer(core, w, nil)
	w.SetContent(v.content())
	v.bindKeys()
	v.open("missing.csv")
	require.NotNil(t, v.sess)
	return v
}

func TestFrameLabel(t *testing.T) {
	assert.Equal(t, "5 s", frameLabel(5))
	assert.Equal(t, "30 s", frameLabel(30))
	assert.Equal(t, "1 min", frameLabel(60))
	assert.Equal(t, "30 min", frameLabel(1800))
}

func TestViewer_OpenShowsNotice(t *testing.T) {
	v := newTestViewer(t)

	assert.True(t, v.sess.Synthetic())
	assert.Contains(t, v.notice.Text, signal.MockBanner)
	assert.Equal(t, "10 s", v.frameSel.Selected)
	assert.NotNil(t, v.plot.Image)
}

func TestViewer_Keys(t *testing.T) {
	v := newTestViewer(t)

	v.handleKey(&fyne.KeyEvent{Name: fyne.KeyRight})
	v.handleKey(&fyne.KeyEvent{Name: fyne.KeyRight})
	assert.Equal(t, 2.0, v.sess.View().State.Start)

	v.handleKey(&fyne.KeyEvent{Name: fyne.KeyLeft})
	assert.Equal(t, 1.0, v.sess.View().State.Start)

	v.handleKey(&fyne.KeyEvent{Name: fyne.KeyEnd})
	assert.Equal(t, 3590.0, v.sess.View().State.Start)
	assert.Equal(t, 1.0, v.slider.Value)

	v.handleKey(&fyne.KeyEvent{Name: fyne.KeyHome})
	assert.Equal(t, 0.0, v.sess.View().State.Start)

	v.handleKey(&fyne.KeyEvent{Name: fyne.KeyA})
	assert.Equal(t, 0.0, v.sess.View().State.Start)
}

func TestViewer_Widgets(t *testing.T) {
	v := newTestViewer(t)

	v.frameSel.SetSelected("1 min")
	assert.Equal(t, 60.0, v.sess.View().State.FrameSize)

	v.slider.SetValue(0.5)
	assert.InDelta(t, 1770.0, v.sess.View().State.Start, 1e-6)

	airflow := models.RespiratoryChannels[0]
	v.zoomChecks[airflow].SetChecked(true)
	assert.Equal(t, 2.0, v.sess.View().State.ZoomFor(airflow))

	v.setMode(models.ViewOSAAnalysis)
	assert.Equal(t, models.ViewOSAAnalysis, v.sess.View().State.Mode)
	assert.Contains(t, v.window.Title(), models.ViewOSAAnalysis.Label())
}

func TestViewer_OpenReplacesSession(t *testing.T) {
	v := newTestViewer(t)
	first := v.sess.ID()

	v.open("other.csv")
	assert.NotEqual(t, first, v.sess.ID())
	assert.Len(t, v.core.Manager.List(), 1)
}

// saveTarget stands in for the writer a save dialog hands back
type saveTarget struct {
	*os.File
	uri fyne.URI
}

func (s saveTarget) URI() fyne.URI { return s.uri }

func newSaveTarget(t *testing.T, path string) saveTarget {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	return saveTarget{File: f, uri: storage.NewFileURI(path)}
}

func TestViewer_ExportAsksForPath(t *testing.T) {
	v := newTestViewer(t)

	overlays := v.window.Canvas().Overlays()
	before := len(overlays.List())
	v.exportReport(processing.FormatPDF)
	assert.Len(t, overlays.List(), before+1)

	entries, err := os.ReadDir(v.core.Config.Report.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestViewer_SaveCancelledWritesNothing(t *testing.T) {
	v := newTestViewer(t)
	dir := v.core.Config.Report.Dir

	v.onSaveChosen(processing.FormatPDF)(nil, nil)
	v.onSaveChosen(processing.FormatXLSX)(nil, errors.New("permission denied"))

	assert.Never(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err != nil || len(entries) > 0
	}, 300*time.Millisecond, 20*time.Millisecond)
}

func TestViewer_SaveChosenExports(t *testing.T) {
	v := newTestViewer(t)
	dir := t.TempDir()

	pdf := filepath.Join(dir, "night.pdf")
	v.onSaveChosen(processing.FormatPDF)(newSaveTarget(t, pdf), nil)

	// a name typed without the extension gets one
	bare := filepath.Join(dir, "summary")
	v.onSaveChosen(processing.FormatXLSX)(newSaveTarget(t, bare), nil)

	nonEmpty := func(path string) func() bool {
		return func() bool {
			info, err := os.Stat(path)
			return err == nil && info.Size() > 0
		}
	}
	assert.Eventually(t, nonEmpty(pdf), 30*time.Second, 50*time.Millisecond)
	assert.Eventually(t, nonEmpty(bare+".xlsx"), 30*time.Second, 50*time.Millisecond)
}

func TestViewer_ComparisonOffset(t *testing.T) {
	v := newTestViewer(t)

	v.compareSel.SetSelected(offsetLabel(-600))
	state := v.sess.View().State
	assert.Equal(t, -600.0, state.ComparisonOffset)
	assert.Equal(t, models.ViewComparison, state.Mode)
	assert.Contains(t, v.window.Title(), models.ViewComparison.Label())

	v.handleKey(&fyne.KeyEvent{Name: fyne.KeyEnd})
	assert.Equal(t, 2990.0, v.sess.View().ComparisonStart)
	assert.Equal(t, offsetLabel(-600), v.compareSel.Selected)
}

func TestOffsetLabel(t *testing.T) {
	assert.Equal(t, "+10 min", offsetLabel(600))
	assert.Equal(t, "-1 min", offsetLabel(-60))
	assert.Equal(t, "same window", offsetLabel(0))
}
