// Package transcript defines the typed event stream emitted by a speech
// transcription source. It decouples transcription transport from the
// conversation tracker: any source (websocket bridge, vendor SDK, test
// fixture) produces Events on a channel and the tracker consumes them.
package transcript

import "time"

// Kind discriminates transcription events.
type Kind string

const (
	KindPartial Kind = "partial"
	KindFinal   Kind = "final"
	KindSilence Kind = "silence"
	KindError   Kind = "error"
)

// Event is a single transcription signal.
type Event struct {
	Kind       Kind      `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Reason     string    `json:"reason,omitempty"` // error detail for KindError
	Timestamp  time.Time `json:"timestamp"`
}

// Partial builds a partial-result event.
func Partial(text string) Event {
	return Event{Kind: KindPartial, Text: text, Timestamp: time.Now()}
}

// Final builds a finalized-utterance event.
func Final(text string, confidence float64) Event {
	return Event{Kind: KindFinal, Text: text, Confidence: confidence, Timestamp: time.Now()}
}

// Silence builds a silence-detected event.
func Silence() Event {
	return Event{Kind: KindSilence, Timestamp: time.Now()}
}

// Error builds a transcription-error event.
func Error(reason string) Event {
	return Event{Kind: KindError, Reason: reason, Timestamp: time.Now()}
}
