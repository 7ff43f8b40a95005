package domain

// Record is one classification-code corpus row. Records are position-indexed:
// the row's position pairs it with the matching row of the vector matrix.
type Record struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// SearchResult is one ranked match returned by a search.
type SearchResult struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
}

// Query is the tagged search input: either raw text to be vectorized by the
// embedding provider, or a precomputed vector that bypasses it.
type Query interface {
	isQuery()
}

// TextQuery is a natural-language query string.
type TextQuery string

func (TextQuery) isQuery() {}

// VectorQuery is a precomputed embedding vector.
type VectorQuery []float32

func (VectorQuery) isQuery() {}
