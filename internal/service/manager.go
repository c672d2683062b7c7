package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/pkg/logger"
	"github.com/capitalize-ai/mchat/pkg/metrics"
)

// IdentitySource supplies the signed-in identity, if any.
type IdentitySource interface {
	CurrentIdentity() *model.Identity
}

// IdentityFunc adapts a function to IdentitySource.
type IdentityFunc func() *model.Identity

// CurrentIdentity implements IdentitySource.
func (f IdentityFunc) CurrentIdentity() *model.Identity { return f() }

// Manager keeps one Session per signed-in identity for the life of the
// process.
type Manager struct {
	opts   Options
	logger *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	// draining tracks ended sessions until their in-flight replies land.
	draining sync.WaitGroup
}

// NewManager creates a manager whose sessions share opts.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
}

// Start returns the session of the identity supplied by src, creating it on
// first use. It fails with ErrUnauthenticated when nobody is signed in.
func (m *Manager) Start(src IdentitySource) (*Session, error) {
	identity := src.CurrentIdentity()
	if identity == nil || identity.ID == "" {
		return nil, ErrUnauthenticated
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[identity.ID]; ok {
		return s, nil
	}

	s := NewSession(*identity, m.opts)
	m.sessions[identity.ID] = s
	metrics.SessionsActive.Inc()
	m.logger.Info("session started", zap.String("user_id", identity.ID))

	return s, nil
}

// Lookup returns the live session of userID.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// End discards the session of userID, as on sign out. In-flight replies
// still complete against the discarded session.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	if ok {
		m.draining.Add(1)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	go func() {
		defer m.draining.Done()
		s.Wait()
	}()
	metrics.SessionsActive.Dec()
	m.logger.Info("session ended", zap.String("user_id", userID))
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until every live or ended session has finished its in-flight
// replies.
func (m *Manager) Wait() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Wait()
	}
	m.draining.Wait()
}
