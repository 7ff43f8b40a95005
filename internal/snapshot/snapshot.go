// Package snapshot persists the "last search" record. The externally
// observed state is one snapshot per search call; sinks are best-effort and
// their failures must never reach the search caller.
package snapshot

import (
	"context"
	"time"

	"github.com/tradekit/hscodex/internal/domain"
)

// Entry is one persisted search snapshot.
type Entry struct {
	Timestamp   time.Time             `json:"timestamp"`
	Query       string                `json:"query"`
	Results     []domain.SearchResult `json:"results"`
	ResultCount int                   `json:"result_count"`
}

// NewEntry builds a snapshot entry for a completed search.
func NewEntry(query string, results []domain.SearchResult) Entry {
	if results == nil {
		results = []domain.SearchResult{}
	}
	return Entry{
		Timestamp:   time.Now().UTC(),
		Query:       query,
		Results:     results,
		ResultCount: len(results),
	}
}

// Sink persists search snapshots. Implementations serialize concurrent
// writes internally; no write may interleave with another.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// Nop is a sink that discards every snapshot.
type Nop struct{}

// Write implements Sink.
func (Nop) Write(context.Context, Entry) error { return nil }

// Close implements Sink.
func (Nop) Close() error { return nil }
