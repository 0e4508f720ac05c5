package memory

import (
	"math"
	"sort"
)

// Scored pairs a memory with its similarity to a query vector.
type Scored struct {
	*Memory
	Similarity float64 `json:"similarity"`
}

// Cosine computes cosine similarity between two vectors.
// Returns 0 for mismatched dimensions or zero-norm vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankScored orders by similarity descending; ties broken by higher
// importance, then more recent creation.
func rankScored(results []Scored) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Importance != results[j].Importance {
			return results[i].Importance > results[j].Importance
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}

// rankByImportance orders by importance descending, then more recent creation.
func rankByImportance(mems []*Memory) {
	sort.SliceStable(mems, func(i, j int) bool {
		if mems[i].Importance != mems[j].Importance {
			return mems[i].Importance > mems[j].Importance
		}
		return mems[i].CreatedAt.After(mems[j].CreatedAt)
	})
}
