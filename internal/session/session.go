package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RMahshie/sleepsense/internal/analysis"
	"github.com/RMahshie/sleepsense/internal/navigation"
	"github.com/RMahshie/sleepsense/internal/render"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
)

// Session is the state of one opened recording. The record and its normalised
// signals are fixed at open; view state and the cached summary sit behind mu.
type Session struct {
	id        string
	createdAt time.Time
	source    string
	record    *models.Record
	norm      *signal.NormalizedSet
	fallback  error

	summarizer analysis.Summarizer

	mu      sync.RWMutex
	nav     *navigation.Controller
	summary *models.AnalysisSummary
}

// ViewSnapshot is a consistent read of the view state and its derived values
type ViewSnapshot struct {
	State           models.ViewState
	ActiveChannels  []models.ChannelName
	DetailLevel     string
	Position        float64
	ComparisonStart float64
}

func newSession(id, source string, res signal.LoadResult, frames navigation.Config, summarizer analysis.Summarizer, now time.Time) (*Session, error) {
	frames.Duration = res.Record.Duration()
	nav, err := navigation.NewController(frames)
	if err != nil {
		return nil, fmt.Errorf("failed to create navigation for %s: %w", source, err)
	}
	return &Session{
		id:         id,
		createdAt:  now,
		source:     source,
		record:     res.Record,
		norm:       signal.NormalizeRecord(res.Record),
		fallback:   res.Reason,
		summarizer: summarizer,
		nav:        nav,
	}, nil
}

func (s *Session) ID() string                        { return s.id }
func (s *Session) CreatedAt() time.Time              { return s.createdAt }
func (s *Session) Record() *models.Record            { return s.record }
func (s *Session) Normalized() *signal.NormalizedSet { return s.norm }

// Synthetic reports whether the session shows generated data
func (s *Session) Synthetic() bool { return s.record.Synthetic() }

// FallbackReason is why the requested source was replaced by synthetic data, or nil
func (s *Session) FallbackReason() error { return s.fallback }

// Notice is the user-visible fallback message, empty for a loaded recording
func (s *Session) Notice() string {
	return signal.LoadResult{Record: s.record, Fallback: s.fallback != nil, Reason: s.fallback}.Notice()
}

// Study is the persistence record of the session
func (s *Session) Study() *models.StudySession {
	st := &models.StudySession{
		ID:              s.id,
		Source:          s.source,
		Synthetic:       s.record.Synthetic(),
		DurationSeconds: s.record.Duration(),
		Fingerprint:     s.record.Fingerprint(),
		CreatedAt:       s.createdAt,
	}
	if s.fallback != nil {
		reason := s.fallback.Error()
		st.FallbackReason = &reason
	}
	return st
}

func (s *Session) View() ViewSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Session) snapshot() ViewSnapshot {
	comparisonStart, _ := s.nav.ComparisonWindow()
	return ViewSnapshot{
		State:           s.nav.State(),
		ActiveChannels:  s.nav.ActiveChannels(),
		DetailLevel:     s.nav.DetailLevel(),
		Position:        s.nav.Position(),
		ComparisonStart: comparisonStart,
	}
}

// mutate runs fn on the controller and returns the resulting view
func (s *Session) mutate(fn func(c *navigation.Controller) error) (ViewSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.nav)
	return s.snapshot(), err
}

func (s *Session) SetWindow(start, frame float64) (ViewSnapshot, error) {
	return s.mutate(func(c *navigation.Controller) error { return c.SetWindow(start, frame) })
}

func (s *Session) SetFrameSize(frame float64) (ViewSnapshot, error) {
	return s.mutate(func(c *navigation.Controller) error { return c.SetFrameSize(frame) })
}

func (s *Session) SetViewMode(mode models.ViewMode) (ViewSnapshot, error) {
	return s.mutate(func(c *navigation.Controller) error { return c.SetViewMode(mode) })
}

func (s *Session) SetZoom(channel models.ChannelName, factor float64) (ViewSnapshot, error) {
	return s.mutate(func(c *navigation.Controller) error { return c.SetZoom(channel, factor) })
}

func (s *Session) ToggleZoom(channel models.ChannelName) (ViewSnapshot, error) {
	return s.mutate(func(c *navigation.Controller) error {
		_, err := c.ToggleZoom(channel)
		return err
	})
}

func (s *Session) Advance(delta float64) ViewSnapshot {
	v, _ := s.mutate(func(c *navigation.Controller) error { c.Advance(delta); return nil })
	return v
}

func (s *Session) Retreat(delta float64) ViewSnapshot {
	v, _ := s.mutate(func(c *navigation.Controller) error { c.Retreat(delta); return nil })
	return v
}

// StepForward moves by the keyboard step of the current frame
func (s *Session) StepForward() ViewSnapshot {
	v, _ := s.mutate(func(c *navigation.Controller) error { c.Advance(c.Step()); return nil })
	return v
}

func (s *Session) StepBack() ViewSnapshot {
	v, _ := s.mutate(func(c *navigation.Controller) error { c.Retreat(c.Step()); return nil })
	return v
}

func (s *Session) JumpToStart() ViewSnapshot {
	v, _ := s.mutate(func(c *navigation.Controller) error { c.JumpToStart(); return nil })
	return v
}

func (s *Session) JumpToEnd() ViewSnapshot {
	v, _ := s.mutate(func(c *navigation.Controller) error { c.JumpToEnd(); return nil })
	return v
}

func (s *Session) SetPosition(fraction float64) (ViewSnapshot, error) {
	return s.mutate(func(c *navigation.Controller) error { return c.SetPosition(fraction) })
}

// SetComparisonOffset moves the comparison pane relative to the main window
func (s *Session) SetComparisonOffset(offset float64) (ViewSnapshot, error) {
	return s.mutate(func(c *navigation.Controller) error { return c.SetComparisonOffset(offset) })
}

// FrameSizes are the presets that fit this record
func (s *Session) FrameSizes() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nav.AvailableFrameSizes()
}

// Summary returns the whole-record summary, computing it on first use
func (s *Session) Summary(ctx context.Context) (*models.AnalysisSummary, error) {
	s.mu.RLock()
	sum := s.summary
	s.mu.RUnlock()
	if sum != nil {
		return sum, nil
	}

	sum, err := s.summarizer.Summarize(ctx, s.record)
	if err != nil {
		return nil, err
	}
	return s.UseSummary(sum), nil
}

// CurrentSummary is the summary in effect, nil until one is computed or adopted
func (s *Session) CurrentSummary() *models.AnalysisSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// UseSummary adopts a summary computed elsewhere, e.g. from a cache. A summary
// for a different record is ignored. The summary in effect is returned.
func (s *Session) UseSummary(sum *models.AnalysisSummary) *models.AnalysisSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil && sum != nil && sum.RecordFingerprint == s.record.Fingerprint() {
		s.summary = sum
	}
	return s.summary
}

// Events lists the detected events overlapping [start, end)
func (s *Session) Events(ctx context.Context, start, end float64) ([]models.RespiratoryEvent, error) {
	sum, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.EventsInWindow(sum.Events, start, end), nil
}

// Frame builds the drawable frame for the current view. OSA mode carries the
// events in the window.
func (s *Session) Frame(ctx context.Context, maxPoints int) (*render.Frame, error) {
	state := s.View().State
	f, err := render.BuildFrame(s.norm, s.record, state, maxPoints)
	if err != nil {
		return nil, err
	}
	if state.Mode == models.ViewOSAAnalysis {
		events, err := s.Events(ctx, f.Start, f.End)
		if err != nil {
			return nil, err
		}
		f.Events = events
	}
	return f, nil
}
