// Package session holds the live conversation state: the rolling context
// a tracker maintains from transcription events, the session object that
// owns at most one in-flight generation, and the manager that routes
// finalized turns into the response engine.
package session

import (
	"sync"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser    Speaker = "user"
	SpeakerPersona Speaker = "persona"
)

// Tone is the inferred emotional tone of the conversation.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneHappy   Tone = "happy"
	ToneSad     Tone = "sad"
	ToneExcited Tone = "excited"
	ToneAngry   Tone = "angry"
	ToneCalm    Tone = "calm"
)

// DefaultTopic is the topic before any signal has been observed.
const DefaultTopic = "general"

// Turn is one utterance in the conversation.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the rolling conversation state for one session. It is
// created at session start, mutated by the Tracker on every finalized
// utterance, and discarded when the session ends.
type Context struct {
	mu           sync.RWMutex
	turns        []Turn
	maxTurns     int
	topic        string
	tone         Tone
	speakingPace float64
}

// NewContext creates a conversation context bounded to maxTurns entries.
func NewContext(maxTurns int) *Context {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Context{
		maxTurns:     maxTurns,
		topic:        DefaultTopic,
		tone:         ToneNeutral,
		speakingPace: 1.0,
	}
}

// append adds a turn, trimming the window to the bound. Turns are kept
// most-recent-last and never reordered.
func (c *Context) append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	if len(c.turns) > c.maxTurns {
		c.turns = c.turns[len(c.turns)-c.maxTurns:]
	}
}

// RecentTurns returns a copy of the rolling turn window, most-recent-last.
func (c *Context) RecentTurns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Topic returns the current inferred topic.
func (c *Context) Topic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topic
}

// Tone returns the current inferred emotional tone.
func (c *Context) Tone() Tone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tone
}

// SpeakingPace returns the pace multiplier for speech synthesis.
func (c *Context) SpeakingPace() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speakingPace
}

// SetSpeakingPace updates the pace multiplier; non-positive values are ignored.
func (c *Context) SetSpeakingPace(pace float64) {
	if pace <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speakingPace = pace
}

func (c *Context) setTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
}

func (c *Context) setTone(tone Tone) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tone = tone
}
