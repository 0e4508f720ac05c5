package memory

import (
	"fmt"
	"time"
)

// Type classifies what kind of information a memory holds.
type Type string

const (
	TypeFact         Type = "fact"
	TypeExperience   Type = "experience"
	TypePreference   Type = "preference"
	TypeRelationship Type = "relationship"
	TypeSkill        Type = "skill"
	TypeEmotion      Type = "emotion"
)

// Source identifies the kind of media a memory was extracted from.
type Source string

const (
	SourceVideo       Source = "video"
	SourceImage       Source = "image"
	SourceAudio       Source = "audio"
	SourceText        Source = "text"
	SourceSocialMedia Source = "social_media"
)

// Memory is a discrete, typed, importance-scored record extracted from
// persona training content, stored with a vector embedding for retrieval.
type Memory struct {
	ID         string            `json:"id"`
	PersonaID  string            `json:"persona_id"`
	Content    string            `json:"content"`
	Type       Type              `json:"type"`
	Source     Source            `json:"source"`
	SourceRef  string            `json:"source_ref,omitempty"`
	Importance float64           `json:"importance"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Input holds the caller-supplied fields for creating a memory.
// Embedding is optional; the store computes one when it is empty.
type Input struct {
	PersonaID  string            `json:"persona_id"`
	Content    string            `json:"content"`
	Type       Type              `json:"type"`
	Source     Source            `json:"source"`
	SourceRef  string            `json:"source_ref,omitempty"`
	Importance float64           `json:"importance"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ValidationError reports a rejected memory input. Nothing is written
// when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid memory %s: %s", e.Field, e.Reason)
}

func (in *Input) validate() error {
	if in.PersonaID == "" {
		return &ValidationError{Field: "persona_id", Reason: "must not be empty"}
	}
	if in.Content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if in.Importance < 0 || in.Importance > 1 {
		return &ValidationError{Field: "importance", Reason: fmt.Sprintf("%.3f outside [0,1]", in.Importance)}
	}
	if in.Type == "" {
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	}
	return nil
}

// Summary is the aggregate view over a persona's memories.
type Summary struct {
	TotalMemories  int            `json:"total_memories"`
	CountsByType   map[Type]int   `json:"counts_by_type"`
	CountsBySource map[Source]int `json:"counts_by_source"`
}
