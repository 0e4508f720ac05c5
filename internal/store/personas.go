package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reverie-ai/reverie/internal/persona"
)

// SavePersona upserts a persona profile.
func (s *Store) SavePersona(ctx context.Context, p *persona.Profile) error {
	traits, err := json.Marshal(p.Traits)
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(ctx, `
		INSERT INTO personas (id, name, relationship, traits, speaking_style, backstory, voice_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			relationship = EXCLUDED.relationship,
			traits = EXCLUDED.traits,
			speaking_style = EXCLUDED.speaking_style,
			backstory = EXCLUDED.backstory,
			voice_id = EXCLUDED.voice_id,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, p.Relationship, traits,
		p.SpeakingStyle, p.Backstory, p.VoiceID, now,
	)
	if err != nil {
		return fmt.Errorf("save persona %s: %w", p.ID, err)
	}
	return nil
}

// GetProfile retrieves a single persona profile by ID.
func (s *Store) GetProfile(ctx context.Context, id string) (*persona.Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, relationship, traits,
		       COALESCE(speaking_style,''), COALESCE(backstory,''), COALESCE(voice_id,''),
		       created_at, updated_at
		FROM personas WHERE id = $1`, id)

	var p persona.Profile
	var traits []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.Relationship, &traits,
		&p.SpeakingStyle, &p.Backstory, &p.VoiceID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get persona %s: %w", id, err)
	}
	if len(traits) > 0 {
		if err := json.Unmarshal(traits, &p.Traits); err != nil {
			return nil, fmt.Errorf("unmarshal traits for %s: %w", id, err)
		}
	}
	return &p, nil
}

// ListPersonas returns all persona profiles, oldest first.
func (s *Store) ListPersonas(ctx context.Context) ([]*persona.Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, relationship, traits,
		       COALESCE(speaking_style,''), COALESCE(backstory,''), COALESCE(voice_id,''),
		       created_at, updated_at
		FROM personas ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	var out []*persona.Profile
	for rows.Next() {
		var p persona.Profile
		var traits []byte
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Relationship, &traits,
			&p.SpeakingStyle, &p.Backstory, &p.VoiceID,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		if len(traits) > 0 {
			if err := json.Unmarshal(traits, &p.Traits); err != nil {
				return nil, fmt.Errorf("unmarshal traits for %s: %w", p.ID, err)
			}
		}
		out = append(out, &p)
	}
	return out, nil
}

// DeletePersona removes a persona and, via cascade, its memories and
// session transcripts.
func (s *Store) DeletePersona(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete persona %s: %w", id, err)
	}
	return nil
}
