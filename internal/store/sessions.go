package store

import (
	"context"
	"fmt"
	"time"

	"github.com/reverie-ai/reverie/internal/session"
)

// StartSession persists the start of a live session. Turns reference the
// session row, so this must precede AppendTurn.
func (s *Store) StartSession(ctx context.Context, sessionID, personaID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, persona_id, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (id) DO UPDATE SET status = 'active'`,
		sessionID, personaID,
	)
	if err != nil {
		return fmt.Errorf("start session %s: %w", sessionID, err)
	}
	return nil
}

// EndSession marks a session as ended.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET status = 'ended', ended_at = NOW() WHERE id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", sessionID, err)
	}
	return nil
}

// AppendTurn stores one utterance of a session transcript.
func (s *Store) AppendTurn(ctx context.Context, sessionID, personaID string, speaker session.Speaker, text string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO turns (id, session_id, persona_id, speaker, text)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`,
		sessionID, personaID, string(speaker), text,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// GetTurns retrieves a session's transcript in order, up to limit entries.
func (s *Store) GetTurns(ctx context.Context, sessionID string, limit int) ([]session.Turn, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
		SELECT speaker, text, created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY created_at ASC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	defer rows.Close()

	var turns []session.Turn
	for rows.Next() {
		var speaker string
		var text string
		var at time.Time
		if err := rows.Scan(&speaker, &text, &at); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, session.Turn{
			Speaker:   session.Speaker(speaker),
			Text:      text,
			Timestamp: at,
		})
	}
	return turns, nil
}
