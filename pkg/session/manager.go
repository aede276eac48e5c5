package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionLimit indicates the concurrent-session bound was reached and
// no idle session could be reclaimed to make room.
var ErrSessionLimit = errors.New("maximum concurrent sessions reached")

const (
	DefaultMaxSessions = 8
	DefaultIdleAfter   = 30 * time.Minute
)

// Manager owns one lazily-created live session per project, bounded by a
// maximum concurrent-session count. When the bound is hit, idle sessions
// are reclaimed before a new one is created. A session is never reclaimed
// while a request for its project is in flight.
type Manager struct {
	factory     Factory
	logger      *slog.Logger
	maxSessions int
	idleAfter   time.Duration

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session  Session
	inFlight int
	lastUsed time.Time
}

// NewManager creates a Manager. maxSessions and idleAfter fall back to
// defaults when non-positive.
func NewManager(factory Factory, logger *slog.Logger, maxSessions int, idleAfter time.Duration) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}

	return &Manager{
		factory:     factory,
		logger:      logger.With("module", "session_manager"),
		maxSessions: maxSessions,
		idleAfter:   idleAfter,
		sessions:    make(map[string]*managedSession),
	}
}

// Acquire returns the project's live session, creating it lazily, and
// marks the project in flight until the returned release func is called.
func (m *Manager) Acquire(ctx context.Context, projectID string) (Session, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	managed, ok := m.sessions[projectID]
	if !ok {
		if len(m.sessions) >= m.maxSessions && !m.reclaimOneLocked(ctx) {
			return nil, nil, ErrSessionLimit
		}

		sess, err := m.factory(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}

		managed = &managedSession{session: sess}
		m.sessions[projectID] = managed

		m.logger.InfoContext(ctx, "Created live session", "project_id", projectID, "active", len(m.sessions))
	}

	managed.inFlight++

	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		managed.inFlight--
		managed.lastUsed = time.Now()
	}

	return managed.session, release, nil
}

// ReapIdle closes sessions idle longer than the threshold. Projects with
// requests in flight are skipped. Returns the reclaimed project ids.
func (m *Manager) ReapIdle(ctx context.Context) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.idleAfter)
	reaped := make([]string, 0)

	for projectID, managed := range m.sessions {
		if managed.inFlight > 0 || managed.lastUsed.After(cutoff) {
			continue
		}

		m.closeLocked(ctx, projectID, managed)
		reaped = append(reaped, projectID)
	}

	return reaped
}

// StartReaper runs ReapIdle on the given interval until ctx is done.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ReapIdle(ctx)
			}
		}
	}()
}

// Close shuts down every session regardless of idleness. Intended for
// process shutdown only.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for projectID, managed := range m.sessions {
		m.closeLocked(ctx, projectID, managed)
	}

	return nil
}

// reclaimOneLocked evicts the least recently used idle session to make
// room. Returns false when every session has a request in flight.
func (m *Manager) reclaimOneLocked(ctx context.Context) bool {
	var (
		victimID string
		victim   *managedSession
	)

	for projectID, managed := range m.sessions {
		if managed.inFlight > 0 {
			continue
		}

		if victim == nil || managed.lastUsed.Before(victim.lastUsed) {
			victimID = projectID
			victim = managed
		}
	}

	if victim == nil {
		return false
	}

	m.closeLocked(ctx, victimID, victim)

	return true
}

func (m *Manager) closeLocked(ctx context.Context, projectID string, managed *managedSession) {
	if err := managed.session.Close(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to close session", "project_id", projectID, "error", err)
	}

	delete(m.sessions, projectID)

	m.logger.InfoContext(ctx, "Reclaimed live session", "project_id", projectID)
}
