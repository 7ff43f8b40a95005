// Package index implements an exact inner-product nearest-neighbor index
// over unit-normalized vectors. Because every stored row and every query is
// rescaled to unit L2 norm, the inner product equals cosine similarity.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/tradekit/hscodex/internal/domain"
)

// Hit is one scored corpus row, identified by its original row position.
type Hit struct {
	Row   int
	Score float64
}

// Index answers top-k nearest-neighbor queries. Immutable after Build;
// concurrent Query calls need no locking.
type Index struct {
	vectors [][]float32
	dim     int
}

// Build normalizes every row to unit L2 norm in place and takes ownership of
// the matrix. A zero-norm row cannot contribute a defined cosine similarity
// and is rejected with a corpus error; this is the single policy applied to
// degenerate rows, there is no silent passthrough.
func Build(vectors [][]float32) (*Index, error) {
	idx := &Index{vectors: vectors}
	if len(vectors) == 0 {
		return idx, nil
	}
	idx.dim = len(vectors[0])
	for i, v := range vectors {
		if len(v) != idx.dim {
			return nil, fmt.Errorf("%w: row %d has dimension %d, expected %d",
				domain.ErrCorpus, i, len(v), idx.dim)
		}
		if err := normalize(v); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrCorpus, i, err)
		}
	}
	return idx, nil
}

// Len returns the number of indexed rows.
func (idx *Index) Len() int { return len(idx.vectors) }

// Dim returns the vector dimension, 0 for an empty index.
func (idx *Index) Dim() int { return idx.dim }

// Query returns the k most similar rows, ordered by similarity descending
// with ties broken by ascending row index. The query vector is normalized on
// a copy by the same rule as Build (a zero query vector is a corpus error).
// k is clamped to [0, Len()]; an empty index yields an empty result.
func (idx *Index) Query(vec []float32, k int) ([]Hit, error) {
	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != idx.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			domain.ErrCorpus, len(vec), idx.dim)
	}

	q := make([]float32, len(vec))
	copy(q, vec)
	if err := normalize(q); err != nil {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrCorpus, err)
	}

	hits := make([]Hit, len(idx.vectors))
	for i, row := range idx.vectors {
		hits[i] = Hit{Row: i, Score: dot(q, row)}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Row < hits[b].Row
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// normalize rescales v to unit L2 norm in place.
func normalize(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return fmt.Errorf("zero-norm vector")
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
