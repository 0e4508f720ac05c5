package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Catalog is the durable record store for memories. The Postgres
// implementation lives in internal/store; tests use in-memory fakes.
type Catalog interface {
	InsertMemory(ctx context.Context, m *Memory) error
	GetMemory(ctx context.Context, personaID, id string) (*Memory, error)
	ListMemories(ctx context.Context, personaID string) ([]*Memory, error)
	SetImportance(ctx context.Context, personaID, id string, importance float64) error
}

// Index is the vector similarity index over memory embeddings. The Qdrant
// implementation lives in internal/vectorstore.
type Index interface {
	Upsert(ctx context.Context, personaID, id string, vector []float32) error
	Search(ctx context.Context, personaID string, vector []float32, limit uint64) ([]Hit, error)
}

// Hit is a single similarity search result from the index.
type Hit struct {
	ID    string
	Score float32
}

// Embedder produces fixed-length embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// QueryOptions tunes similarity retrieval.
type QueryOptions struct {
	Threshold float64 // minimum cosine similarity, default 0.7
	Limit     int     // maximum results, default 10
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.Threshold == 0 {
		o.Threshold = 0.7
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}
	return o
}

// Store is the durable, queryable collection of memories for all personas.
// Reads are side-effect-free and safe to call concurrently from multiple
// sessions; writes are append/upsert-only.
type Store struct {
	catalog  Catalog
	index    Index
	embedder Embedder
	logger   *zap.Logger
}

// NewStore creates a memory store over a record catalog, a vector index
// and an embedding provider.
func NewStore(catalog Catalog, index Index, embedder Embedder, logger *zap.Logger) *Store {
	return &Store{catalog: catalog, index: index, embedder: embedder, logger: logger}
}

// Embed returns the embedding vector for a single text.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embed text: empty result")
	}
	return vectors[0], nil
}

// Insert validates the input, computes an embedding when none is supplied,
// and persists the record to both the catalog and the index.
func (s *Store) Insert(ctx context.Context, in Input) (*Memory, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	vec := in.Embedding
	if len(vec) == 0 {
		var err error
		vec, err = s.Embed(ctx, in.Content)
		if err != nil {
			return nil, err
		}
	}
	if dim := s.embedder.Dimension(); len(vec) != dim {
		return nil, &ValidationError{
			Field:  "embedding",
			Reason: fmt.Sprintf("length %d, want %d", len(vec), dim),
		}
	}

	now := time.Now().UTC()
	m := &Memory{
		ID:         uuid.New().String(),
		PersonaID:  in.PersonaID,
		Content:    in.Content,
		Type:       in.Type,
		Source:     in.Source,
		SourceRef:  in.SourceRef,
		Importance: in.Importance,
		Embedding:  vec,
		Metadata:   in.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Index first: an orphaned vector is skipped on read, while a catalog
	// row absent from the index would never surface in Query.
	if err := s.index.Upsert(ctx, m.PersonaID, m.ID, vec); err != nil {
		return nil, fmt.Errorf("index memory: %w", err)
	}
	if err := s.catalog.InsertMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	s.logger.Debug("memory inserted",
		zap.String("persona", m.PersonaID),
		zap.String("id", m.ID),
		zap.String("type", string(m.Type)),
		zap.Float64("importance", m.Importance))
	return m, nil
}

// Query returns the persona's memories with cosine similarity above the
// threshold, ordered descending by similarity; ties broken by importance
// then recency. Memories of other personas are never returned.
func (s *Store) Query(ctx context.Context, personaID string, queryVec []float32, opts QueryOptions) ([]Scored, error) {
	opts = opts.withDefaults()

	// Oversample so that threshold filtering still fills the limit.
	hits, err := s.index.Search(ctx, personaID, queryVec, uint64(opts.Limit*4))
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	var results []Scored
	for _, h := range hits {
		sim := float64(h.Score)
		if sim < opts.Threshold {
			continue
		}
		m, err := s.catalog.GetMemory(ctx, personaID, h.ID)
		if err != nil {
			s.logger.Warn("indexed memory missing from catalog",
				zap.String("persona", personaID), zap.String("id", h.ID), zap.Error(err))
			continue
		}
		results = append(results, Scored{Memory: m, Similarity: sim})
	}

	rankScored(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// TopImportant returns memories ordered by importance desc, createdAt desc,
// ignoring similarity. Used when no query embedding is available.
func (s *Store) TopImportant(ctx context.Context, personaID string, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	mems, err := s.catalog.ListMemories(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	rankByImportance(mems)
	if len(mems) > limit {
		mems = mems[:limit]
	}
	return mems, nil
}

// SetImportance raises or refines a memory's importance score.
func (s *Store) SetImportance(ctx context.Context, personaID, id string, importance float64) error {
	if importance < 0 || importance > 1 {
		return &ValidationError{Field: "importance", Reason: fmt.Sprintf("%.3f outside [0,1]", importance)}
	}
	if err := s.catalog.SetImportance(ctx, personaID, id, importance); err != nil {
		return fmt.Errorf("set importance: %w", err)
	}
	return nil
}

// Summarize computes the aggregate view over a persona's memories on read.
func (s *Store) Summarize(ctx context.Context, personaID string) (*Summary, error) {
	mems, err := s.catalog.ListMemories(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	sum := &Summary{
		TotalMemories:  len(mems),
		CountsByType:   make(map[Type]int),
		CountsBySource: make(map[Source]int),
	}
	for _, m := range mems {
		sum.CountsByType[m.Type]++
		sum.CountsBySource[m.Source]++
	}
	return sum, nil
}
