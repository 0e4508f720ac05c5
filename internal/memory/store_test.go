package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reverie-ai/reverie/internal/memory"
	"github.com/reverie-ai/reverie/internal/memory/memorytest"
	"go.uber.org/zap"
)

func newTestStore() (*memory.Store, *memorytest.Catalog, *memorytest.Index, *memorytest.Embedder) {
	catalog := memorytest.NewCatalog()
	index := memorytest.NewIndex()
	embedder := memorytest.NewEmbedder(4)
	return memory.NewStore(catalog, index, embedder, zap.NewNop()), catalog, index, embedder
}

func mustInsert(t *testing.T, s *memory.Store, in memory.Input) *memory.Memory {
	t.Helper()
	m, err := s.Insert(context.Background(), in)
	if err != nil {
		t.Fatalf("insert %q: %v", in.Content, err)
	}
	return m
}

func TestInsertValidation(t *testing.T) {
	s, _, _, _ := newTestStore()
	ctx := context.Background()

	cases := []struct {
		name string
		in   memory.Input
	}{
		{"missing persona", memory.Input{Content: "x", Type: memory.TypeFact, Importance: 0.5}},
		{"empty content", memory.Input{PersonaID: "p1", Type: memory.TypeFact, Importance: 0.5}},
		{"importance too high", memory.Input{PersonaID: "p1", Content: "x", Type: memory.TypeFact, Importance: 1.2}},
		{"importance negative", memory.Input{PersonaID: "p1", Content: "x", Type: memory.TypeFact, Importance: -0.1}},
	}
	for _, tc := range cases {
		_, err := s.Insert(ctx, tc.in)
		var verr *memory.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: got %v, want ValidationError", tc.name, err)
		}
	}
}

func TestInsertRejectsMismatchedEmbedding(t *testing.T) {
	s, _, _, _ := newTestStore()
	ctx := context.Background()

	// The embedder is 4-dimensional; a caller-supplied vector of another
	// length would be stored yet never match any similarity query.
	_, err := s.Insert(ctx, memory.Input{
		PersonaID:  "p1",
		Content:    "short vector",
		Type:       memory.TypeFact,
		Importance: 0.5,
		Embedding:  []float32{1, 0},
	})
	var verr *memory.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}

	sum, err := s.Summarize(ctx, "p1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.TotalMemories != 0 {
		t.Errorf("rejected insert persisted %d memories", sum.TotalMemories)
	}

	// Matching length is accepted.
	mustInsert(t, s, memory.Input{
		PersonaID:  "p1",
		Content:    "full vector",
		Type:       memory.TypeFact,
		Importance: 0.5,
		Embedding:  []float32{1, 0, 0, 0},
	})
}

func TestInsertCatalogFailureLeavesNoQueryableRow(t *testing.T) {
	s, catalog, _, embedder := newTestStore()
	ctx := context.Background()

	embedder.Set("doomed", []float32{0, 1, 0, 0})
	catalog.InsertErr = errors.New("catalog down")
	if _, err := s.Insert(ctx, memory.Input{PersonaID: "p1", Content: "doomed", Type: memory.TypeFact, Importance: 0.5}); err == nil {
		t.Fatal("expected insert error")
	}
	catalog.InsertErr = nil

	// The orphaned index point must not surface as a result.
	results, err := s.Query(ctx, "p1", []float32{0, 1, 0, 0}, memory.QueryOptions{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("orphaned index entry surfaced: %+v", results)
	}
}

func TestQueryPersonaIsolation(t *testing.T) {
	s, _, _, embedder := newTestStore()
	ctx := context.Background()

	embedder.Set("alice fact", []float32{1, 0, 0, 0})
	embedder.Set("bob fact", []float32{1, 0, 0, 0})
	mustInsert(t, s, memory.Input{PersonaID: "alice", Content: "alice fact", Type: memory.TypeFact, Importance: 0.5})
	mustInsert(t, s, memory.Input{PersonaID: "bob", Content: "bob fact", Type: memory.TypeFact, Importance: 0.9})

	results, err := s.Query(ctx, "alice", []float32{1, 0, 0, 0}, memory.QueryOptions{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, r := range results {
		if r.PersonaID != "alice" {
			t.Errorf("query leaked memory of persona %s", r.PersonaID)
		}
	}

	top, err := s.TopImportant(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("topImportant: %v", err)
	}
	for _, m := range top {
		if m.PersonaID != "alice" {
			t.Errorf("topImportant leaked memory of persona %s", m.PersonaID)
		}
	}
}

func TestQueryThresholdAndOrdering(t *testing.T) {
	s, _, _, embedder := newTestStore()
	ctx := context.Background()

	// Cosine against query [1,0,0,0]: exact=1.0, close≈0.707, far≈0.447.
	embedder.Set("exact", []float32{1, 0, 0, 0})
	embedder.Set("close", []float32{1, 1, 0, 0})
	embedder.Set("far", []float32{1, 2, 0, 0})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "far", Type: memory.TypeFact, Importance: 0.9})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "close", Type: memory.TypeFact, Importance: 0.1})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "exact", Type: memory.TypeFact, Importance: 0.1})

	results, err := s.Query(ctx, "p1", []float32{1, 0, 0, 0}, memory.QueryOptions{Threshold: 0.7, Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (threshold should drop 'far')", len(results))
	}
	if results[0].Content != "exact" || results[1].Content != "close" {
		t.Errorf("wrong order: %q, %q", results[0].Content, results[1].Content)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("similarity not non-increasing at %d", i)
		}
	}
	for _, r := range results {
		if r.Similarity < 0.7 {
			t.Errorf("result %q below threshold: %.3f", r.Content, r.Similarity)
		}
	}
}

func TestQueryTieBreaks(t *testing.T) {
	s, _, _, embedder := newTestStore()
	ctx := context.Background()

	// Identical vectors: similarity ties, importance must decide.
	embedder.Set("low", []float32{0, 1, 0, 0})
	embedder.Set("high", []float32{0, 1, 0, 0})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "low", Type: memory.TypeFact, Importance: 0.2})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "high", Type: memory.TypeFact, Importance: 0.8})

	results, err := s.Query(ctx, "p1", []float32{0, 1, 0, 0}, memory.QueryOptions{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 || results[0].Content != "high" {
		t.Fatalf("importance tie-break failed: %+v", results)
	}
}

func TestTopImportantOrdering(t *testing.T) {
	s, _, _, _ := newTestStore()
	ctx := context.Background()

	for _, tc := range []struct {
		content    string
		importance float64
	}{
		{"weak", 0.2},
		{"strong", 0.9},
		{"middle", 0.5},
	} {
		mustInsert(t, s, memory.Input{PersonaID: "p1", Content: tc.content, Type: memory.TypeFact, Source: memory.SourceText, Importance: tc.importance})
	}

	top, err := s.TopImportant(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("topImportant: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d memories, want 2", len(top))
	}
	if top[0].Content != "strong" || top[1].Content != "middle" {
		t.Errorf("got [%s %s], want [strong middle]", top[0].Content, top[1].Content)
	}
}

func TestSummarize(t *testing.T) {
	s, _, _, _ := newTestStore()
	ctx := context.Background()

	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "a", Type: memory.TypeFact, Source: memory.SourceText, Importance: 0.5})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "b", Type: memory.TypeFact, Source: memory.SourceVideo, Importance: 0.5})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "c", Type: memory.TypeExperience, Source: memory.SourceVideo, Importance: 0.5})

	sum, err := s.Summarize(ctx, "p1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.TotalMemories != 3 {
		t.Errorf("total = %d, want 3", sum.TotalMemories)
	}
	if sum.CountsByType[memory.TypeFact] != 2 || sum.CountsByType[memory.TypeExperience] != 1 {
		t.Errorf("counts by type wrong: %v", sum.CountsByType)
	}
	if sum.CountsBySource[memory.SourceVideo] != 2 || sum.CountsBySource[memory.SourceText] != 1 {
		t.Errorf("counts by source wrong: %v", sum.CountsBySource)
	}
}

func TestSetImportanceBounds(t *testing.T) {
	s, _, _, _ := newTestStore()
	ctx := context.Background()

	m := mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "a", Type: memory.TypeFact, Importance: 0.3})
	if err := s.SetImportance(ctx, "p1", m.ID, 1.5); err == nil {
		t.Error("expected validation error for importance 1.5")
	}
	if err := s.SetImportance(ctx, "p1", m.ID, 0.9); err != nil {
		t.Fatalf("set importance: %v", err)
	}
	top, _ := s.TopImportant(ctx, "p1", 1)
	if len(top) != 1 || top[0].Importance != 0.9 {
		t.Errorf("importance not updated: %+v", top)
	}
}

func TestCreatedAtTieBreak(t *testing.T) {
	// Equal similarity and equal importance: newer record wins.
	s, _, _, embedder := newTestStore()
	ctx := context.Background()
	embedder.Set("older", []float32{0, 0, 1, 0})
	embedder.Set("newer", []float32{0, 0, 1, 0})
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "older", Type: memory.TypeFact, Importance: 0.5})
	time.Sleep(5 * time.Millisecond)
	mustInsert(t, s, memory.Input{PersonaID: "p1", Content: "newer", Type: memory.TypeFact, Importance: 0.5})

	results, err := s.Query(ctx, "p1", []float32{0, 0, 1, 0}, memory.QueryOptions{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 || results[0].Content != "newer" {
		t.Fatalf("createdAt tie-break failed: %+v", results)
	}
}
