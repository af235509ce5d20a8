package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/RMahshie/sleepsense/internal/analysis"
	"github.com/RMahshie/sleepsense/internal/navigation"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) CreateStudy(ctx context.Context, study *models.StudySession) error {
	args := m.Called(ctx, study)
	return args.Error(0)
}

type countingSummarizer struct {
	mu    sync.Mutex
	calls int
	inner analysis.Summarizer
}

func (c *countingSummarizer) Summarize(ctx context.Context, rec *models.Record) (*models.AnalysisSummary, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Summarize(ctx, rec)
}

func newTestManager(t *testing.T, recorder StudyRecorder) (*Manager, *countingSummarizer) {
	t.Helper()
	store := signal.NewStore(signal.Options{MockDurationSeconds: 3600, MockSeed: 9, MinRecordSeconds: 3600}, nil)
	summarizer := &countingSummarizer{inner: analysis.NewThresholdSummarizer()}
	return NewManager(store, summarizer, navigation.Config{}, recorder), summarizer
}

func TestManager_OpenFallsBackToMock(t *testing.T) {
	recorder := new(MockRecorder)
	recorder.On("CreateStudy", mock.Anything, mock.MatchedBy(func(st *models.StudySession) bool {
		return st.Synthetic && st.FallbackReason != nil && st.Source == "missing.csv"
	})).Return(nil)

	m, _ := newTestManager(t, recorder)
	s, err := m.Open(context.Background(), "missing.csv")
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID())
	assert.True(t, s.Synthetic())
	assert.Error(t, s.FallbackReason())
	assert.Contains(t, s.Notice(), signal.MockBanner)
	assert.InDelta(t, 3600.0, s.Record().Duration(), 1e-9)
	recorder.AssertExpectations(t)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestManager_RecorderFailureIsNotFatal(t *testing.T) {
	recorder := new(MockRecorder)
	recorder.On("CreateStudy", mock.Anything, mock.Anything).Return(errors.New("db down"))

	m, _ := newTestManager(t, recorder)
	_, err := m.Open(context.Background(), "missing.txt")
	assert.NoError(t, err)
}

func TestManager_GetAndClose(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := m.Open(context.Background(), "")
	require.NoError(t, err)
	b, err := m.Open(context.Background(), "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, m.List(), 2)

	require.NoError(t, m.Close(a.ID()))
	assert.ErrorIs(t, m.Close(a.ID()), ErrNotFound)
	_, err = m.Get(a.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, m.List(), 1)
}

func TestManager_OpenCancelled(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Open(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_Navigation(t *testing.T) {
	m, _ := newTestManager(t, nil)
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, 0.0, v.State.Start)
	assert.Equal(t, navigation.DefaultFrame, v.State.FrameSize)
	assert.Equal(t, models.ViewAllSignals, v.State.Mode)

	v = s.StepForward()
	assert.Equal(t, 1.0, v.State.Start)
	v = s.StepBack()
	assert.Equal(t, 0.0, v.State.Start)

	v, err = s.SetWindow(3600, 30)
	assert.ErrorIs(t, err, navigation.ErrOutOfRange)
	assert.Equal(t, 0.0, v.State.Start)

	v, err = s.SetWindow(100, 30)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v.State.Start)
	assert.Equal(t, navigation.DetailHigh, v.DetailLevel)

	v = s.JumpToEnd()
	assert.Equal(t, 3570.0, v.State.Start)
	assert.Equal(t, 1.0, v.Position)

	v, err = s.SetViewMode(models.ViewEEGOnly)
	require.NoError(t, err)
	assert.Len(t, v.ActiveChannels, 6)

	v, err = s.ToggleZoom(models.ChannelThorax)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.State.ZoomFor(models.ChannelThorax))

	_, err = s.SetZoom("Nope", 2)
	assert.ErrorIs(t, err, navigation.ErrUnknownChannel)
}

func TestSession_SummaryIsComputedOnce(t *testing.T) {
	m, counter := newTestManager(t, nil)
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)

	first, err := s.Summary(context.Background())
	require.NoError(t, err)
	second, err := s.Summary(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, s.Record().Fingerprint(), first.RecordFingerprint)
}

func TestSession_UseSummary(t *testing.T) {
	m, counter := newTestManager(t, nil)
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)

	assert.Nil(t, s.CurrentSummary())
	foreign := &models.AnalysisSummary{RecordFingerprint: "other"}
	assert.Nil(t, s.UseSummary(foreign))
	assert.Nil(t, s.CurrentSummary())

	cached := &models.AnalysisSummary{RecordFingerprint: s.Record().Fingerprint(), AHI: 7}
	assert.Same(t, cached, s.UseSummary(cached))
	assert.Same(t, cached, s.CurrentSummary())

	sum, err := s.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7.0, sum.AHI)
	assert.Equal(t, 0, counter.calls)
}

func TestSession_FrameCarriesEventsInOSAMode(t *testing.T) {
	m, _ := newTestManager(t, nil)
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)

	_, err = s.SetWindow(0, 1800)
	require.NoError(t, err)

	f, err := s.Frame(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, f.Events)
	assert.True(t, f.Synthetic)

	_, err = s.SetViewMode(models.ViewOSAAnalysis)
	require.NoError(t, err)
	f, err = s.Frame(context.Background(), 0)
	require.NoError(t, err)

	events, err := s.Events(context.Background(), 0, 1800)
	require.NoError(t, err)
	assert.Equal(t, events, f.Events)
	assert.Len(t, f.Traces, 6)
}

func TestSession_ComparisonPane(t *testing.T) {
	m, _ := newTestManager(t, nil)
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)

	_, err = s.SetWindow(1200, 60)
	require.NoError(t, err)
	v, err := s.SetComparisonOffset(-900)
	require.NoError(t, err)
	assert.Equal(t, -900.0, v.State.ComparisonOffset)
	assert.Equal(t, 300.0, v.ComparisonStart)

	f, err := s.Frame(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, f.Comparison)

	_, err = s.SetViewMode(models.ViewComparison)
	require.NoError(t, err)
	f, err = s.Frame(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 300.0, f.ComparisonStart)
	assert.Len(t, f.Comparison, len(f.Traces))

	// the pane follows the main window
	v = s.JumpToStart()
	assert.Equal(t, 0.0, v.ComparisonStart)

	_, err = s.SetComparisonOffset(math.Inf(1))
	assert.ErrorIs(t, err, navigation.ErrOutOfRange)
}

func TestSession_ConcurrentNavigation(t *testing.T) {
	m, _ := newTestManager(t, nil)
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Advance(5)
				s.View()
				s.Retreat(5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0.0, s.View().State.Start)
}
