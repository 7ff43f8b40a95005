// Package engine orchestrates query embedding, index lookup and result
// materialization. An Engine is built exactly once at startup and is
// immutable afterwards; Search takes no locks and may be called from any
// number of goroutines.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradekit/hscodex/internal/domain"
	"github.com/tradekit/hscodex/internal/index"
	"github.com/tradekit/hscodex/internal/metrics"
	"github.com/tradekit/hscodex/internal/snapshot"
)

// Engine answers ranked similarity searches over the loaded corpus.
type Engine struct {
	records      []domain.Record
	idx          *index.Index
	embedder     domain.Embedder
	sink         snapshot.Sink
	logger       *zap.Logger
	defaultK     int
	embedTimeout time.Duration
}

// Params holds the engine dependencies, wired by the composition root.
type Params struct {
	Records      []domain.Record
	Index        *index.Index
	Embedder     domain.Embedder
	Sink         snapshot.Sink
	Logger       *zap.Logger
	DefaultK     int
	EmbedTimeout time.Duration
	// ExpectedDim, when non-zero, is the configured provider output
	// dimension. A mismatch with the index dimension is a configuration
	// fault and fails construction.
	ExpectedDim int
}

// New constructs an engine. The record table and index must be
// position-paired; both are owned by the engine from here on.
func New(p Params) (*Engine, error) {
	if p.Index == nil {
		return nil, fmt.Errorf("%w: index is required", domain.ErrConfig)
	}
	if len(p.Records) != p.Index.Len() {
		return nil, fmt.Errorf("%w: %d records but %d vectors",
			domain.ErrCorpus, len(p.Records), p.Index.Len())
	}
	if p.ExpectedDim > 0 && p.Index.Len() > 0 && p.ExpectedDim != p.Index.Dim() {
		return nil, fmt.Errorf("%w: provider dimension %d does not match corpus dimension %d",
			domain.ErrConfig, p.ExpectedDim, p.Index.Dim())
	}
	if p.Sink == nil {
		p.Sink = snapshot.Nop{}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.DefaultK <= 0 {
		p.DefaultK = 10
	}
	if p.EmbedTimeout <= 0 {
		p.EmbedTimeout = 10 * time.Second
	}
	return &Engine{
		records:      p.Records,
		idx:          p.Index,
		embedder:     p.Embedder,
		sink:         p.Sink,
		logger:       p.Logger,
		defaultK:     p.DefaultK,
		embedTimeout: p.EmbedTimeout,
	}, nil
}

// Ready reports whether the engine completed initialization.
func (e *Engine) Ready() bool { return e != nil && e.idx != nil }

// Size returns the number of corpus records.
func (e *Engine) Size() int { return len(e.records) }

// DefaultK returns the configured default result count.
func (e *Engine) DefaultK() int { return e.defaultK }

// ProviderHealth probes the embedding provider when it supports health checks.
func (e *Engine) ProviderHealth(ctx context.Context) error {
	if hc, ok := e.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// Search returns the k closest corpus records for the query, ranked by
// similarity descending with ties broken by original row order.
//
// A text query is vectorized by the embedding provider under the configured
// timeout; provider failure degrades to an empty result with a nil error,
// detail going to the log and snapshot side channels only. A vector query
// bypasses the provider. A degenerate query vector (zero norm, wrong
// dimension) is a caller fault and is returned as an error.
//
// Every call, empty results included, emits exactly one snapshot entry.
func (e *Engine) Search(ctx context.Context, q domain.Query, k int) ([]domain.SearchResult, error) {
	start := time.Now()

	var (
		vec       []float32
		queryRepr string
		input     string
	)
	switch q := q.(type) {
	case domain.TextQuery:
		input = "text"
		queryRepr = string(q)

		ectx, cancel := context.WithTimeout(ctx, e.embedTimeout)
		res, err := e.embedder.Embed(ectx, string(q))
		cancel()
		if err != nil {
			// Fail-soft: the caller sees no matches, the side channels see why.
			e.logger.Error("embedding failed, returning empty result",
				zap.String("query", queryRepr),
				zap.Error(err),
			)
			e.persist(queryRepr, nil)
			metrics.SearchesTotal.WithLabelValues(input, "provider_error").Inc()
			return []domain.SearchResult{}, nil
		}
		vec = res.Embedding
	case domain.VectorQuery:
		input = "vector"
		queryRepr = "vector_query"
		vec = q
	default:
		return nil, fmt.Errorf("unsupported query type %T", q)
	}

	hits, err := e.idx.Query(vec, k)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(input, "error").Inc()
		return nil, err
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		rec := e.records[h.Row]
		results[i] = domain.SearchResult{
			ID:          rec.ID,
			Code:        rec.Code,
			Description: rec.Description,
			Similarity:  h.Score,
		}
	}

	e.persist(queryRepr, results)

	e.logger.Info("search performed",
		zap.String("query", queryRepr),
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Duration("latency", time.Since(start)),
	)
	metrics.SearchesTotal.WithLabelValues(input, "ok").Inc()
	metrics.SearchDuration.WithLabelValues(input).Observe(time.Since(start).Seconds())
	metrics.SearchResults.Observe(float64(len(results)))

	return results, nil
}

// persist writes the snapshot entry. Best-effort: sink failures are logged
// and never alter the caller-visible result.
func (e *Engine) persist(query string, results []domain.SearchResult) {
	entry := snapshot.NewEntry(query, results)
	// Detached context: an expired request deadline must not lose the snapshot.
	if err := e.sink.Write(context.Background(), entry); err != nil {
		e.logger.Error("snapshot write failed", zap.Error(err))
	}
}
