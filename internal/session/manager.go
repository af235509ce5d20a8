package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/RMahshie/sleepsense/internal/analysis"
	"github.com/RMahshie/sleepsense/internal/navigation"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNotFound means no open session has the given ID
var ErrNotFound = errors.New("session not found")

// StudyRecorder persists opened sessions. Failures are logged, never returned.
type StudyRecorder interface {
	CreateStudy(ctx context.Context, study *models.StudySession) error
}

// Manager opens and tracks sessions
type Manager struct {
	store      signal.Store
	summarizer analysis.Summarizer
	frames     navigation.Config
	recorder   StudyRecorder
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. recorder may be nil.
func NewManager(store signal.Store, summarizer analysis.Summarizer, frames navigation.Config, recorder StudyRecorder) *Manager {
	return &Manager{
		store:      store,
		summarizer: summarizer,
		frames:     frames,
		recorder:   recorder,
		now:        time.Now,
		sessions:   map[string]*Session{},
	}
}

// Open loads source, falling back to synthetic data when it cannot be read
func (m *Manager) Open(ctx context.Context, source string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := m.store.LoadOrMock(ctx, source)

	s, err := newSession(uuid.New().String(), source, res, m.frames, m.summarizer, m.now().UTC())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.CreateStudy(ctx, s.Study()); err != nil {
			log.Warn().Err(err).Str("session_id", s.ID()).Msg("Failed to record study session")
		}
	}

	log.Info().
		Str("session_id", s.ID()).
		Str("source", source).
		Bool("synthetic", s.Synthetic()).
		Float64("duration", s.Record().Duration()).
		Msg("Session opened")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	log.Info().Str("session_id", id).Msg("Session closed")
	return nil
}

// List returns the open sessions, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out
}
