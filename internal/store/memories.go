package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reverie-ai/reverie/internal/memory"
)

// InsertMemory persists a memory record. The embedding itself lives in
// the vector index, not here.
func (s *Store) InsertMemory(ctx context.Context, m *memory.Memory) error {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO memories (id, persona_id, content, type, source, source_ref, importance, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.PersonaID, m.Content, string(m.Type), string(m.Source),
		m.SourceRef, m.Importance, meta, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert memory %s: %w", m.ID, err)
	}
	return nil
}

// GetMemory retrieves one memory, scoped to the persona.
func (s *Store) GetMemory(ctx context.Context, personaID, id string) (*memory.Memory, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, persona_id, content, type, source, COALESCE(source_ref,''),
		       importance, metadata, created_at, updated_at
		FROM memories WHERE persona_id = $1 AND id = $2`, personaID, id)

	return scanMemory(row)
}

// ListMemories returns all of a persona's memories, newest first.
func (s *Store) ListMemories(ctx context.Context, personaID string) ([]*memory.Memory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, persona_id, content, type, source, COALESCE(source_ref,''),
		       importance, metadata, created_at, updated_at
		FROM memories WHERE persona_id = $1
		ORDER BY created_at DESC`, personaID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []*memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// SetImportance updates a memory's importance score, scoped to the persona.
func (s *Store) SetImportance(ctx context.Context, personaID, id string, importance float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE memories SET importance = $3, updated_at = NOW()
		WHERE persona_id = $1 AND id = $2`, personaID, id, importance)
	if err != nil {
		return fmt.Errorf("set importance %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("memory %s not found for persona %s", id, personaID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*memory.Memory, error) {
	var m memory.Memory
	var memType, source string
	var meta []byte
	err := row.Scan(
		&m.ID, &m.PersonaID, &m.Content, &memType, &source, &m.SourceRef,
		&m.Importance, &meta, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan memory: %w", err)
	}
	m.Type = memory.Type(memType)
	m.Source = memory.Source(source)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", m.ID, err)
		}
	}
	return &m, nil
}
