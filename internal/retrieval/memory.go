package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore implements Store as an ordered in-memory sequence, with
// upsert-by-id and cosine top-k exactly per spec.md §4.9: replace in place
// if the id is present, else append; similarity ties break by insertion
// order.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Item
	index map[string]int
}

// NewMemoryStore returns an empty in-memory retrieval store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: map[string]int{}}
}

// Upsert replaces the item with item.ID if one already exists, else
// appends it, preserving insertion order for the tie-break rule.
func (s *MemoryStore) Upsert(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[item.ID]; ok {
		s.items[i] = item
		return nil
	}
	s.index[item.ID] = len(s.items)
	s.items = append(s.items, item)
	return nil
}

// TopK returns the k items with highest cosine similarity to query,
// descending, ties broken by insertion order.
func (s *MemoryStore) TopK(ctx context.Context, query []float32, k int) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qn := l2Normalize(query)
	type scored struct {
		item Item
		pos  int
		sim  float32
	}
	scoredItems := make([]scored, len(s.items))
	for i, it := range s.items {
		in := l2Normalize(it.Embedding)
		scoredItems[i] = scored{item: it, pos: i, sim: dot(qn, in)}
	}
	sort.SliceStable(scoredItems, func(i, j int) bool {
		if scoredItems[i].sim != scoredItems[j].sim {
			return scoredItems[i].sim > scoredItems[j].sim
		}
		return scoredItems[i].pos < scoredItems[j].pos
	})
	if k > len(scoredItems) {
		k = len(scoredItems)
	}
	out := make([]Item, k)
	for i := 0; i < k; i++ {
		out[i] = scoredItems[i].item
	}
	return out, nil
}

// l2Normalize scales v to unit length using the 1e-9 epsilon spec.md §4.9
// specifies to guard against division by zero.
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := float32(1.0 / math.Sqrt(sumSq+1e-9))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * norm
	}
	return out
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
