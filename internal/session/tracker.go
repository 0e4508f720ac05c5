package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/transcript"
)

// State is the tracker's position in the listen/finalize loop.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateFinalizing State = "finalizing"
)

// TurnEvent signals that a user turn was finalized and a reply may be
// generated.
type TurnEvent struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Topic      string    `json:"topic"`
	Tone       Tone      `json:"tone"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker consumes the incremental transcription stream for one session
// and maintains its Context. Partial results only touch a transient
// buffer; finalized results mutate the turn window, in arrival order.
type Tracker struct {
	mu         sync.Mutex
	state      State
	responding bool
	partial    string

	convCtx       *Context
	minConfidence float64
	turns         chan TurnEvent
	logger        *zap.Logger
}

// NewTracker creates a tracker over the given conversation context.
// Finalized utterances below minConfidence keep the tone neutral.
func NewTracker(convCtx *Context, minConfidence float64, logger *zap.Logger) *Tracker {
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	return &Tracker{
		state:         StateIdle,
		convCtx:       convCtx,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Context returns the conversation context the tracker mutates.
func (t *Tracker) Context() *Context { return t.convCtx }

// State returns the tracker's current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Turns exposes finalized-turn events. The channel is created on first
// call; until then OnFinal buffers nothing, so a tracker without a
// subscriber never fills up.
func (t *Tracker) Turns() <-chan TurnEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.turns == nil {
		t.turns = make(chan TurnEvent, 16)
	}
	return t.turns
}

// SetResponding flips the orthogonal responding flag.
func (t *Tracker) SetResponding(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responding = v
}

// Responding reports whether a reply is currently being generated.
func (t *Tracker) Responding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.responding
}

// Run consumes a transcription event stream until the context is
// cancelled or the stream closes.
func (t *Tracker) Run(ctx context.Context, events <-chan transcript.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Handle(ev)
		}
	}
}

// Handle dispatches a single transcription event.
func (t *Tracker) Handle(ev transcript.Event) {
	switch ev.Kind {
	case transcript.KindPartial:
		t.OnPartial(ev.Text)
	case transcript.KindFinal:
		t.OnFinal(ev.Text, ev.Confidence)
	case transcript.KindSilence:
		t.OnSilence()
	case transcript.KindError:
		t.logger.Warn("transcription error", zap.String("reason", ev.Reason))
	}
}

// OnPartial updates the transient current-utterance buffer. It never
// mutates the turn window.
func (t *Tracker) OnPartial(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateListening
	t.partial = text
}

// Partial returns the current transient utterance buffer.
func (t *Tracker) Partial() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partial
}

// OnFinal appends the finalized user turn, re-derives topic and tone,
// and emits a turn-complete event. Returns the emitted event.
func (t *Tracker) OnFinal(text string, confidence float64) TurnEvent {
	t.mu.Lock()
	t.state = StateFinalizing
	t.partial = ""
	t.mu.Unlock()

	now := time.Now()
	t.convCtx.append(Turn{Speaker: SpeakerUser, Text: text, Timestamp: now})
	t.convCtx.setTopic(inferTopic(t.convCtx.RecentTurns()))

	if confidence >= t.minConfidence {
		if tone, ok := ClassifyTone(text); ok {
			t.convCtx.setTone(tone)
		}
	} else {
		t.convCtx.setTone(ToneNeutral)
	}

	ev := TurnEvent{
		Text:       text,
		Confidence: confidence,
		Topic:      t.convCtx.Topic(),
		Tone:       t.convCtx.Tone(),
		Timestamp:  now,
	}

	t.mu.Lock()
	ch := t.turns
	t.mu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			t.logger.Warn("turn event channel full, subscriber lagging",
				zap.String("text", text))
		}
	}

	t.mu.Lock()
	t.state = StateIdle
	t.mu.Unlock()

	t.logger.Debug("turn finalized",
		zap.String("topic", ev.Topic),
		zap.String("tone", string(ev.Tone)),
		zap.Float64("confidence", confidence))
	return ev
}

// OnSilence is informational only: the user stopped speaking long enough
// that a reply may begin. Finalization always comes from the
// transcription source, never from silence.
func (t *Tracker) OnSilence() {
	t.logger.Debug("silence detected")
}

// AppendPersonaTurn records a produced reply and adopts its emotion so
// the next turn's context reflects the persona's own affect.
func (t *Tracker) AppendPersonaTurn(text string, emotion Tone) {
	t.convCtx.append(Turn{Speaker: SpeakerPersona, Text: text, Timestamp: time.Now()})
	if emotion != "" {
		t.convCtx.setTone(emotion)
	}
	t.SetResponding(false)
}
