// Package persona defines the reconstructed persona profile that shapes
// how replies are generated.
package persona

import "time"

// Profile describes a reconstructed persona: identity, relationship to
// the user, personality traits and speaking style. Profiles are persisted
// in Postgres and loaded when a session starts.
type Profile struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Relationship  string             `json:"relationship"` // e.g. "mother", "friend", "partner"
	Traits        map[string]float64 `json:"traits,omitempty"`
	SpeakingStyle string             `json:"speaking_style,omitempty"`
	Backstory     string             `json:"backstory,omitempty"`
	VoiceID       string             `json:"voice_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
