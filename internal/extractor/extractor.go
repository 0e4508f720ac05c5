package extractor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/memory"
)

// DefaultDedupThreshold is the cosine similarity above which a new segment
// is treated as a duplicate of an existing memory.
const DefaultDedupThreshold = 0.95

// ContentItem is one piece of raw source material queued for extraction.
type ContentItem struct {
	Content   string        `json:"content"`
	Source    memory.Source `json:"source"`
	SourceRef string        `json:"source_ref,omitempty"`
}

// BatchResult summarizes a ProcessBatch run.
type BatchResult struct {
	Processed         int `json:"processed"`
	MemoriesExtracted int `json:"memories_extracted"`
	Failed            int `json:"failed"`
}

// Extractor turns raw ingested content into typed, scored memories,
// deduplicating against what the store already holds.
type Extractor struct {
	store          *memory.Store
	dedupThreshold float64
	logger         *zap.Logger
}

// New creates an extractor over a memory store. A non-positive threshold
// falls back to DefaultDedupThreshold.
func New(store *memory.Store, dedupThreshold float64, logger *zap.Logger) *Extractor {
	if dedupThreshold <= 0 {
		dedupThreshold = DefaultDedupThreshold
	}
	return &Extractor{store: store, dedupThreshold: dedupThreshold, logger: logger}
}

// Extract segments raw content, classifies and scores each segment, and
// inserts the resulting memories for the persona. Segments whose embedding
// is near-identical to an existing memory are not inserted; instead the
// existing memory keeps the higher of the two importance scores.
func (e *Extractor) Extract(ctx context.Context, personaID, raw string, source memory.Source, sourceRef string) ([]*memory.Memory, error) {
	segments := segment(raw)
	if len(segments) == 0 {
		return nil, nil
	}

	var out []*memory.Memory
	for _, seg := range segments {
		memType := classify(seg)
		importance := scoreImportance(memType, seg, source)

		vec, err := e.store.Embed(ctx, seg)
		if err != nil {
			return out, fmt.Errorf("embed segment: %w", err)
		}

		existing, err := e.store.Query(ctx, personaID, vec, memory.QueryOptions{
			Threshold: e.dedupThreshold,
			Limit:     1,
		})
		if err != nil {
			return out, fmt.Errorf("dedup query: %w", err)
		}
		if len(existing) > 0 {
			dup := existing[0]
			if importance > dup.Importance {
				if err := e.store.SetImportance(ctx, personaID, dup.ID, importance); err != nil {
					return out, fmt.Errorf("raise duplicate importance: %w", err)
				}
			}
			e.logger.Debug("duplicate segment skipped",
				zap.String("persona", personaID),
				zap.String("existing", dup.ID),
				zap.Float64("similarity", dup.Similarity))
			continue
		}

		m, err := e.store.Insert(ctx, memory.Input{
			PersonaID:  personaID,
			Content:    seg,
			Type:       memType,
			Source:     source,
			SourceRef:  sourceRef,
			Importance: importance,
			Embedding:  vec,
		})
		if err != nil {
			return out, fmt.Errorf("insert extracted memory: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ProcessBatch runs Extract over a set of content items. A failing item is
// logged and counted; it never aborts the rest of the batch.
func (e *Extractor) ProcessBatch(ctx context.Context, personaID string, items []ContentItem) (BatchResult, error) {
	var res BatchResult
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		mems, err := e.Extract(ctx, personaID, item.Content, item.Source, item.SourceRef)
		res.MemoriesExtracted += len(mems)
		if err != nil {
			res.Failed++
			e.logger.Warn("batch item failed",
				zap.String("persona", personaID),
				zap.Int("item", i),
				zap.String("source", string(item.Source)),
				zap.Error(err))
			continue
		}
		res.Processed++
	}
	e.logger.Info("batch processed",
		zap.String("persona", personaID),
		zap.Int("processed", res.Processed),
		zap.Int("extracted", res.MemoriesExtracted),
		zap.Int("failed", res.Failed))
	return res, nil
}
