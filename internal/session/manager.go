package session

import (
	"log/slog"
	"sync"

	"github.com/scribe-notes/scribe/internal/capture"
	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/datastore"
)

// Manager hands out one reconciler per authenticated user, created lazily
// on first use. Each reconciler gets its own capture source so one user's
// capture session never feeds another's transcript.
type Manager struct {
	ds       datastore.Interface
	settings *conf.Settings
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Reconciler
}

// NewManager creates an empty session registry.
func NewManager(ds datastore.Interface, settings *conf.Settings, logger *slog.Logger) *Manager {
	return &Manager{
		ds:       ds,
		settings: settings,
		logger:   logger,
		sessions: make(map[string]*Reconciler),
	}
}

// Get returns the user's reconciler, creating it on first access.
func (m *Manager) Get(userID string) *Reconciler {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.sessions[userID]; ok {
		return r
	}

	source := capture.NewStreamSource(m.settings.Capture.MaxTranscriptBytes, m.logger)
	r := NewReconciler(userID, m.ds, source, m.logger.With("user_id", userID))
	m.sessions[userID] = r
	return r
}

// Source returns the stream source backing the user's reconciler, for
// the ingest endpoints that push recognition results into it.
func (m *Manager) Source(userID string) *capture.StreamSource {
	source, _ := m.Get(userID).source.(*capture.StreamSource)
	return source
}

// Drop removes a user's session, stopping any active capture first. Used
// on logout.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	r, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		if err := r.source.Stop(); err != nil {
			m.logger.Warn("capture source stop failed during session drop", "error", err)
		}
	}
}
