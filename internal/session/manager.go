package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/persona"
)

// ErrSessionNotFound is returned for operations on unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// ReplyGenerator produces a persona reply for a finalized user turn.
// Implemented by the response engine.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, sess *Session, profile *persona.Profile, utterance string) (*Response, error)
}

// ProfileSource loads persona profiles at session start. Implemented by
// the Postgres store.
type ProfileSource interface {
	GetProfile(ctx context.Context, personaID string) (*persona.Profile, error)
}

// History is the external message-history collaborator. Nil-safe:
// sessions work without durable history. StartSession must be called
// before turns can be appended.
type History interface {
	StartSession(ctx context.Context, sessionID, personaID string) error
	EndSession(ctx context.Context, sessionID string) error
	AppendTurn(ctx context.Context, sessionID, personaID string, speaker Speaker, text string) error
}

// Publisher emits session events for the UI layer. Nil-safe.
type Publisher interface {
	PublishTurn(ctx context.Context, sessionID string, ev TurnEvent) error
	PublishReply(ctx context.Context, sessionID string, resp *Response) error
}

// Config tunes per-session behavior.
type Config struct {
	MaxRecentTurns int     `json:"max_recent_turns"`
	MinConfidence  float64 `json:"min_confidence"`
}

// Manager owns all live sessions. It is an explicit dependency-injected
// service with a clear lifecycle, constructed once per process.
type Manager struct {
	generator ReplyGenerator
	profiles  ProfileSource
	history   History
	publisher Publisher
	cfg       Config
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session *Session
	profile *persona.Profile
}

// NewManager creates a session manager. history and publisher may be nil.
func NewManager(generator ReplyGenerator, profiles ProfileSource, history History, publisher Publisher, cfg Config, logger *zap.Logger) *Manager {
	if cfg.MaxRecentTurns <= 0 {
		cfg.MaxRecentTurns = 10
	}
	return &Manager{
		generator: generator,
		profiles:  profiles,
		history:   history,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*managedSession),
	}
}

// Start creates a live session for the persona, loading its profile.
func (m *Manager) Start(ctx context.Context, personaID string) (*Session, error) {
	profile, err := m.profiles.GetProfile(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", personaID, err)
	}

	tracker := NewTracker(NewContext(m.cfg.MaxRecentTurns), m.cfg.MinConfidence, m.logger)
	sess := NewSession(personaID, tracker)

	if m.history != nil {
		if err := m.history.StartSession(ctx, sess.ID, personaID); err != nil {
			return nil, fmt.Errorf("start session history: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[sess.ID] = &managedSession{session: sess, profile: profile}
	m.mu.Unlock()

	m.logger.Info("session started",
		zap.String("session", sess.ID),
		zap.String("persona", personaID))
	return sess, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ms.session, nil
}

// End cancels any pending generation and discards the session.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	ms, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	ms.session.CancelPending()
	if m.history != nil {
		if err := m.history.EndSession(ctx, sessionID); err != nil {
			m.logger.Warn("end session history failed",
				zap.String("session", sessionID), zap.Error(err))
		}
	}
	m.logger.Info("session ended", zap.String("session", sessionID))
	return nil
}

// SubmitUserTurn finalizes a user utterance and produces a reply. When a
// newer turn supersedes the generation, it returns ErrSuperseded and the
// stale result is discarded without touching the turn window.
func (m *Manager) SubmitUserTurn(ctx context.Context, sessionID, text string, confidence float64) (*Response, error) {
	m.mu.RLock()
	ms, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess, profile := ms.session, ms.profile

	ev := sess.Tracker.OnFinal(text, confidence)
	m.recordTurn(ctx, sess, SpeakerUser, text)
	if m.publisher != nil {
		if err := m.publisher.PublishTurn(ctx, sess.ID, ev); err != nil {
			m.logger.Warn("publish turn event failed", zap.Error(err))
		}
	}

	resp, err := m.generator.GenerateReply(ctx, sess, profile, text)
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			return nil, ErrSuperseded
		}
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	m.recordTurn(ctx, sess, SpeakerPersona, resp.Text)
	if m.publisher != nil {
		if err := m.publisher.PublishReply(ctx, sess.ID, resp); err != nil {
			m.logger.Warn("publish reply event failed", zap.Error(err))
		}
	}
	return resp, nil
}

func (m *Manager) recordTurn(ctx context.Context, sess *Session, speaker Speaker, text string) {
	if m.history == nil {
		return
	}
	if err := m.history.AppendTurn(ctx, sess.ID, sess.PersonaID, speaker, text); err != nil {
		m.logger.Warn("append history failed",
			zap.String("session", sess.ID), zap.Error(err))
	}
}
