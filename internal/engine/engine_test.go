package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tradekit/hscodex/internal/domain"
	"github.com/tradekit/hscodex/internal/index"
	"github.com/tradekit/hscodex/internal/snapshot"
)

// --- Mocks ---

type mockEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

func (m *mockEmbedder) set(vec []float32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vec, m.err = vec, err
}

type captureSink struct {
	mu      sync.Mutex
	entries []snapshot.Entry
	err     error
}

func (s *captureSink) Write(_ context.Context, e snapshot.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *captureSink) last() snapshot.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[len(s.entries)-1]
}

// --- Fixtures ---

// testRecords pairs ids A, B, C with the orthogonal unit basis e1, e2, e3.
func testRecords() ([]domain.Record, [][]float32) {
	records := []domain.Record{
		{ID: "A", Code: "0101", Description: "Live horses"},
		{ID: "B", Code: "0102", Description: "Live bovine animals"},
		{ID: "C", Code: "0103", Description: "Live swine"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	return records, vectors
}

func newTestEngine(t *testing.T, emb domain.Embedder, sink snapshot.Sink) *Engine {
	t.Helper()
	records, vectors := testRecords()
	idx, err := index.Build(vectors)
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	eng, err := New(Params{
		Records:  records,
		Index:    idx,
		Embedder: emb,
		Sink:     sink,
		DefaultK: 10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

// --- Tests ---

func TestSearch_TextQueryRanksByCosine(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{0, 1, 0}}
	sink := &captureSink{}
	eng := newTestEngine(t, emb, sink)

	results, err := eng.Search(context.Background(), domain.TextQuery("bovine"), 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].ID != "B" || math.Abs(results[0].Similarity-1) > 1e-6 {
		t.Errorf("result 0 = %+v, want id B similarity 1", results[0])
	}
	// A and C tie at 0; original row order breaks the tie.
	if results[1].ID != "A" || results[2].ID != "C" {
		t.Errorf("tie order = %s, %s, want A, C", results[1].ID, results[2].ID)
	}
	if results[0].Code != "0102" || results[0].Description != "Live bovine animals" {
		t.Errorf("result 0 record fields = %+v", results[0])
	}
	if emb.calls != 1 {
		t.Errorf("expected 1 embed call, got %d", emb.calls)
	}
}

func TestSearch_VectorQueryBypassesProvider(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("must not be called")}
	eng := newTestEngine(t, emb, &captureSink{})

	results, err := eng.Search(context.Background(), domain.VectorQuery{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "A" {
		t.Fatalf("results = %+v, want single A", results)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times on vector path", emb.calls)
	}
}

func TestSearch_ProviderFailureDegradesToEmpty(t *testing.T) {
	emb := &mockEmbedder{err: fmt.Errorf("boom: %w", domain.ErrEmbeddingProviderError)}
	sink := &captureSink{}
	eng := newTestEngine(t, emb, sink)

	results, err := eng.Search(context.Background(), domain.TextQuery("anything"), 3)
	if err != nil {
		t.Fatalf("Search must not fail on provider error, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
	// The failure is still a search event: one snapshot, zero results.
	if sink.count() != 1 {
		t.Fatalf("expected 1 snapshot entry, got %d", sink.count())
	}
	if sink.last().ResultCount != 0 {
		t.Errorf("snapshot result count = %d, want 0", sink.last().ResultCount)
	}

	// Engine is not corrupted: a subsequent successful call ranks normally.
	emb.set([]float32{0, 0, 1}, nil)
	results, err = eng.Search(context.Background(), domain.TextQuery("swine"), 1)
	if err != nil {
		t.Fatalf("Search after recovery failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "C" {
		t.Fatalf("post-recovery results = %+v, want single C", results)
	}
}

func TestSearch_DegenerateK(t *testing.T) {
	eng := newTestEngine(t, &mockEmbedder{vec: []float32{1, 0, 0}}, &captureSink{})

	for _, k := range []int{0, -1} {
		results, err := eng.Search(context.Background(), domain.TextQuery("q"), k)
		if err != nil {
			t.Fatalf("Search(k=%d) failed: %v", k, err)
		}
		if len(results) != 0 {
			t.Errorf("Search(k=%d): expected empty, got %d", k, len(results))
		}
	}

	results, err := eng.Search(context.Background(), domain.TextQuery("q"), 50)
	if err != nil {
		t.Fatalf("Search(k=50) failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Search(k=50): expected all 3 records, got %d", len(results))
	}
}

func TestSearch_ZeroVectorQueryIsError(t *testing.T) {
	eng := newTestEngine(t, &mockEmbedder{}, &captureSink{})

	_, err := eng.Search(context.Background(), domain.VectorQuery{0, 0, 0}, 1)
	if !errors.Is(err, domain.ErrCorpus) {
		t.Fatalf("expected corpus error for zero query vector, got %v", err)
	}
}

func TestSearch_SnapshotPerCall(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(t, &mockEmbedder{vec: []float32{1, 0, 0}}, sink)

	for i := 0; i < 3; i++ {
		if _, err := eng.Search(context.Background(), domain.TextQuery("q"), 2); err != nil {
			t.Fatalf("Search failed: %v", err)
		}
	}
	if sink.count() != 3 {
		t.Errorf("expected 3 snapshot entries, got %d", sink.count())
	}
	last := sink.last()
	if last.Query != "q" || last.ResultCount != 2 {
		t.Errorf("last snapshot = %+v", last)
	}
}

func TestSearch_SinkFailureInvisibleToCaller(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	eng := newTestEngine(t, &mockEmbedder{vec: []float32{0, 1, 0}}, sink)

	results, err := eng.Search(context.Background(), domain.TextQuery("q"), 3)
	if err != nil {
		t.Fatalf("sink failure leaked into Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results despite sink failure, got %d", len(results))
	}
}

func TestSearch_Concurrent(t *testing.T) {
	eng := newTestEngine(t, &mockEmbedder{vec: []float32{0, 1, 0}}, &captureSink{})

	want, err := eng.Search(context.Background(), domain.TextQuery("q"), 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := eng.Search(context.Background(), domain.TextQuery("q"), 3)
			if err != nil {
				errs <- err
				return
			}
			for j := range want {
				if got[j] != want[j] {
					errs <- fmt.Errorf("result %d = %+v, want %+v", j, got[j], want[j])
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNew_RecordVectorCountMismatch(t *testing.T) {
	idx, err := index.Build([][]float32{{1, 0}})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	_, err = New(Params{
		Records: []domain.Record{{ID: "a"}, {ID: "b"}},
		Index:   idx,
	})
	if !errors.Is(err, domain.ErrCorpus) {
		t.Fatalf("expected corpus error, got %v", err)
	}
}

func TestNew_ProviderDimensionMismatch(t *testing.T) {
	idx, err := index.Build([][]float32{{1, 0, 0}})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	_, err = New(Params{
		Records:     []domain.Record{{ID: "a"}},
		Index:       idx,
		ExpectedDim: 1024,
	})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGuard_BuildsExactlyOnce(t *testing.T) {
	var g Guard
	var builds int32
	var mu sync.Mutex

	build := func() (*Engine, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		// Slow build widens the race window for contending callers.
		time.Sleep(10 * time.Millisecond)
		records, vectors := testRecords()
		idx, err := index.Build(vectors)
		if err != nil {
			return nil, err
		}
		return New(Params{Records: records, Index: idx, Embedder: &mockEmbedder{}})
	}

	const workers = 16
	engines := make([]*Engine, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng, err := g.Get(build)
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			engines[i] = eng
		}(i)
	}
	wg.Wait()

	if builds != 1 {
		t.Fatalf("build executed %d times, want exactly 1", builds)
	}
	for i := 1; i < workers; i++ {
		if engines[i] != engines[0] {
			t.Fatalf("caller %d observed a different instance", i)
		}
	}
	if !g.Ready() {
		t.Error("guard not ready after successful build")
	}
}

func TestGuard_FailedBuildSticks(t *testing.T) {
	var g Guard
	buildErr := errors.New("corpus missing")

	_, err := g.Get(func() (*Engine, error) { return nil, buildErr })
	if !errors.Is(err, buildErr) {
		t.Fatalf("expected build error, got %v", err)
	}
	if g.Ready() {
		t.Error("guard ready after failed build")
	}

	// A later call, even with a working build, observes the first outcome.
	_, err = g.Get(func() (*Engine, error) {
		t.Error("second build executed")
		return nil, nil
	})
	if !errors.Is(err, buildErr) {
		t.Fatalf("expected sticky build error, got %v", err)
	}
}
