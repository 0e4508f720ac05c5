package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSuperseded marks a generation whose result arrived after a newer
// user turn cancelled it. It is an expected barge-in outcome, not a
// failure; callers discard the result silently.
var ErrSuperseded = errors.New("generation superseded by newer turn")

// Response is the typed reply delivered for a finalized user turn.
// Callers always receive one for current generations; provider failures
// surface only as Degraded=true.
type Response struct {
	Text       string    `json:"text"`
	Emotion    Tone      `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded,omitempty"`
	AudioRef   string    `json:"audio_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// GenerationHandle identifies one in-flight reply generation. Cancelling
// it aborts the provider call and marks any late result as stale.
type GenerationHandle struct {
	ID     string
	Ctx    context.Context
	cancel context.CancelFunc
}

// Cancel aborts the generation's provider call.
func (h *GenerationHandle) Cancel() { h.cancel() }

// Session is the runtime state of one live conversation. At most one
// generation is pending at a time; beginning a new one cancels the prior
// one first (barge-in).
type Session struct {
	ID        string
	PersonaID string
	Tracker   *Tracker
	CreatedAt time.Time

	mu      sync.Mutex
	pending *GenerationHandle
}

// NewSession creates a session with a fresh conversation context.
func NewSession(personaID string, tracker *Tracker) *Session {
	return &Session{
		ID:        uuid.New().String(),
		PersonaID: personaID,
		Tracker:   tracker,
		CreatedAt: time.Now(),
	}
}

// Context returns the session's conversation context.
func (s *Session) Context() *Context { return s.Tracker.Context() }

// BeginGeneration cancels any pending generation and installs a new
// handle derived from parent. The returned handle is the session's
// current generation until superseded.
func (s *Session) BeginGeneration(parent context.Context) *GenerationHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &GenerationHandle{ID: uuid.New().String(), Ctx: ctx, cancel: cancel}
	s.pending = h
	return h
}

// FinishGeneration clears the pending slot if h is still current and
// reports whether it was. A false return means the generation was
// superseded and its output must be discarded.
func (s *Session) FinishGeneration(h *GenerationHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.ID != h.ID {
		return false
	}
	s.pending = nil
	return true
}

// StillCurrent reports whether h is the session's pending generation.
func (s *Session) StillCurrent(h *GenerationHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil && s.pending.ID == h.ID
}

// CancelPending aborts any in-flight generation, e.g. on session end.
func (s *Session) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.cancel()
		s.pending = nil
	}
}
