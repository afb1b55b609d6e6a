package service

import (
	"context"
	"sync"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/session"

	"github.com/google/uuid"
)

// SourceResolver turns a stored file id into something the renderer can open.
type SourceResolver interface {
	SourceRef(ctx context.Context, id string) (domain.SourceRef, error)
}

type sessionEntry struct {
	mu      sync.Mutex
	session *session.Session
}

// SessionService keeps the open editing sessions.
type SessionService struct {
	files    SourceResolver
	renderer domain.DocumentRenderer
	opts     session.Options
	logger   domain.Logger
	newID    func() string

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewSessionService creates a new session service
func NewSessionService(
	files SourceResolver,
	renderer domain.DocumentRenderer,
	opts session.Options,
	logger domain.Logger,
) *SessionService {
	return &SessionService{
		files:    files,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*sessionEntry),
	}
}

// Create opens the stored file in a new session.
func (s *SessionService) Create(ctx context.Context, fileID string) (session.Snapshot, error) {
	src, err := s.files.SourceRef(ctx, fileID)
	if err != nil {
		return session.Snapshot{}, err
	}

	sess := session.New(s.newID(), s.renderer, s.opts, s.logger)
	if err := sess.Open(ctx, src); err != nil {
		sess.Close()
		return session.Snapshot{}, err
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = &sessionEntry{session: sess}
	s.mu.Unlock()

	s.logger.Info("Session created", "session_id", sess.ID(), "file_id", fileID)
	return sess.Snapshot(), nil
}

// Do runs fn with exclusive access to the session.
func (s *SessionService) Do(id string, fn func(*session.Session) error) error {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

// Snapshot returns the state of a session.
func (s *SessionService) Snapshot(id string) (session.Snapshot, error) {
	var snap session.Snapshot
	err := s.Do(id, func(sess *session.Session) error {
		snap = sess.Snapshot()
		return nil
	})
	return snap, err
}

// Close releases a session and its document.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.logger.Info("Session closed", "session_id", id)
	return entry.session.Close()
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for id, entry := range entries {
		entry.mu.Lock()
		if err := entry.session.Close(); err != nil {
			s.logger.Warn("Failed to close session", "session_id", id, "error", err.Error())
		}
		entry.mu.Unlock()
	}
}
