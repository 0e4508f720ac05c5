// Package memorytest provides in-memory memory.Catalog, memory.Index and
// memory.Embedder implementations for tests that should not depend on
// Postgres, Qdrant or a live embedding service.
package memorytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/reverie-ai/reverie/internal/memory"
)

// Catalog is a map-backed memory.Catalog.
type Catalog struct {
	mu   sync.RWMutex
	rows map[string]map[string]*memory.Memory // personaID -> id -> memory

	// InsertErr, when set, is returned by InsertMemory to simulate
	// a store failure.
	InsertErr error
}

// NewCatalog returns an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{rows: make(map[string]map[string]*memory.Memory)}
}

func (c *Catalog) InsertMemory(_ context.Context, m *memory.Memory) error {
	if c.InsertErr != nil {
		return c.InsertErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows[m.PersonaID] == nil {
		c.rows[m.PersonaID] = make(map[string]*memory.Memory)
	}
	cp := *m
	c.rows[m.PersonaID][m.ID] = &cp
	return nil
}

func (c *Catalog) GetMemory(_ context.Context, personaID, id string) (*memory.Memory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.rows[personaID][id]
	if !ok {
		return nil, fmt.Errorf("memory %s not found for persona %s", id, personaID)
	}
	cp := *m
	return &cp, nil
}

func (c *Catalog) ListMemories(_ context.Context, personaID string) ([]*memory.Memory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*memory.Memory
	for _, m := range c.rows[personaID] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (c *Catalog) SetImportance(_ context.Context, personaID, id string, importance float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.rows[personaID][id]
	if !ok {
		return fmt.Errorf("memory %s not found for persona %s", id, personaID)
	}
	m.Importance = importance
	return nil
}

// Index is a brute-force cosine memory.Index.
type Index struct {
	mu      sync.RWMutex
	vectors map[string]map[string][]float32 // personaID -> id -> vector

	// SearchErr, when set, is returned by Search to simulate an
	// unavailable index.
	SearchErr error
}

// NewIndex returns an empty in-memory index.
func NewIndex() *Index {
	return &Index{vectors: make(map[string]map[string][]float32)}
}

func (i *Index) Upsert(_ context.Context, personaID, id string, vector []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.vectors[personaID] == nil {
		i.vectors[personaID] = make(map[string][]float32)
	}
	i.vectors[personaID][id] = append([]float32(nil), vector...)
	return nil
}

func (i *Index) Search(_ context.Context, personaID string, vector []float32, limit uint64) ([]memory.Hit, error) {
	if i.SearchErr != nil {
		return nil, i.SearchErr
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	var hits []memory.Hit
	for id, vec := range i.vectors[personaID] {
		hits = append(hits, memory.Hit{ID: id, Score: float32(memory.Cosine(vector, vec))})
	}
	// Insertion sort by score descending; sizes here are tiny.
	for a := 1; a < len(hits); a++ {
		for b := a; b > 0 && hits[b].Score > hits[b-1].Score; b-- {
			hits[b], hits[b-1] = hits[b-1], hits[b]
		}
	}
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Embedder maps known texts to fixed vectors and everything else to a
// deterministic character-frequency vector, so tests control similarity.
type Embedder struct {
	mu      sync.RWMutex
	Vectors map[string][]float32
	Dim     int

	// Err, when set, is returned by Embed.
	Err error
	// FailOn makes Embed fail only for one specific text.
	FailOn string
}

// NewEmbedder returns an Embedder producing dim-length vectors.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{Vectors: make(map[string][]float32), Dim: dim}
}

// Set pins the vector returned for a given text.
func (e *Embedder) Set(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Vectors[text] = vec
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.FailOn != "" && t == e.FailOn {
			return nil, fmt.Errorf("embedding failed for %q", t)
		}
		if v, ok := e.Vectors[t]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		v := make([]float32, e.Dim)
		for _, r := range t {
			v[int(r)%e.Dim]++
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) Dimension() int { return e.Dim }
