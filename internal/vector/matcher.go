// Package vector provides similarity search over catalog embeddings.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
)

// ErrDimensionMismatch is returned when a query vector does not match the index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Match is a catalog book scored against a query embedding.
type Match struct {
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Similarity float64 `json:"similarity"`
}

// Matcher finds catalog books similar to an embedding. Results are ordered by
// descending similarity, hold at most limit entries and never fall below threshold.
type Matcher interface {
	Match(ctx context.Context, embedding []float32, limit int, threshold float64) ([]Match, error)
}

type indexEntry struct {
	title  string
	author string
	vec    []float32
}

// MemoryIndex is an in-memory cosine similarity index.
type MemoryIndex struct {
	mu        sync.RWMutex
	entries   []indexEntry
	dimension int
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
// A dimension of 0 is fixed by the first vector added.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{dimension: dimension}
}

// NewMemoryIndexFromBooks indexes every book that carries an embedding.
func NewMemoryIndexFromBooks(books []catalog.Book) (*MemoryIndex, error) {
	idx := NewMemoryIndex(0)
	for _, b := range books {
		if len(b.Embedding) == 0 {
			continue
		}
		if err := idx.Add(b.Title, b.Author, b.Embedding); err != nil {
			return nil, fmt.Errorf("index %q: %w", b.Title, err)
		}
	}
	return idx, nil
}

// Add inserts a vector. The stored copy is normalized.
func (m *MemoryIndex) Add(title, author string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		m.dimension = len(vec)
	}
	if len(vec) != m.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), m.dimension)
	}

	m.entries = append(m.entries, indexEntry{
		title:  title,
		author: author,
		vec:    normalized(vec),
	})
	return nil
}

// Len returns the number of indexed vectors.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Match performs a brute-force cosine search.
func (m *MemoryIndex) Match(ctx context.Context, embedding []float32, limit int, threshold float64) ([]Match, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	if len(embedding) != m.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), m.dimension)
	}

	query := normalized(embedding)

	var matches []Match
	for i, e := range m.entries {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sim := dot(query, e.vec)
		if sim < threshold {
			continue
		}
		matches = append(matches, Match{Title: e.title, Author: e.author, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	norm := 1.0 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * norm)
	}
	return out
}

var _ Matcher = (*MemoryIndex)(nil)
