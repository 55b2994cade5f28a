package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/raggydev/raggy/internal/log"
	"github.com/raggydev/raggy/internal/store"
)

// fakeSearcher implements Searcher for testing.
type fakeSearcher struct {
	rows []store.Row
	err  error

	gotPartition string
	gotQuery     string
	gotVector    []float32
	gotK         int
}

func (f *fakeSearcher) Search(_ context.Context, partitionKey, query string, vector []float32, k int) ([]store.Row, error) {
	f.gotPartition = partitionKey
	f.gotQuery = query
	f.gotVector = vector
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) > k {
		return f.rows[:k], nil
	}
	return f.rows, nil
}

// fakeEmbedder implements embed.Embedder.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vector
	}
	return out, f.err
}

func TestRetrieve_HybridEmbedsQuery(t *testing.T) {
	searcher := &fakeSearcher{rows: []store.Row{{Title: "Doc", Content: "text"}}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	r := NewRetriever(searcher, embedder, "docs", true, log.NewNop())

	passages, err := r.Retrieve(context.Background(), "what is raggy", 5)
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}
	if embedder.calls != 1 {
		t.Errorf("embedder calls = %d, want 1", embedder.calls)
	}
	if searcher.gotVector == nil {
		t.Error("hybrid search must pass the query vector to the store")
	}
	if searcher.gotPartition != "docs" || searcher.gotK != 5 {
		t.Errorf("search args = (%q, %d)", searcher.gotPartition, searcher.gotK)
	}
	if len(passages) != 1 || passages[0].Title != "Doc" {
		t.Errorf("passages = %v", passages)
	}
}

func TestRetrieve_LexicalSkipsEmbedder(t *testing.T) {
	searcher := &fakeSearcher{rows: []store.Row{{Title: "Doc", Content: "text"}}}
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	r := NewRetriever(searcher, embedder, "docs", false, log.NewNop())

	if _, err := r.Retrieve(context.Background(), "query", 3); err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("lexical retrieval must not touch the embedder, got %d calls", embedder.calls)
	}
	if searcher.gotVector != nil {
		t.Error("lexical search must pass a nil vector")
	}
}

func TestRetrieve_EmptyResultIsNotError(t *testing.T) {
	r := NewRetriever(&fakeSearcher{}, &fakeEmbedder{vector: []float32{1}}, "docs", true, log.NewNop())

	passages, err := r.Retrieve(context.Background(), "nothing matches", 5)
	if err != nil {
		t.Fatalf("Retrieve() = %v, want nil error on empty result", err)
	}
	if len(passages) != 0 {
		t.Errorf("passages = %v, want empty", passages)
	}
}

func TestRetrieve_AtMostK(t *testing.T) {
	searcher := &fakeSearcher{rows: []store.Row{
		{Title: "1"}, {Title: "2"}, {Title: "3"}, {Title: "4"},
	}}
	r := NewRetriever(searcher, nil, "docs", false, log.NewNop())

	passages, err := r.Retrieve(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}
	if len(passages) > 2 {
		t.Errorf("got %d passages, want at most 2", len(passages))
	}
}

func TestRetrieve_InvalidK(t *testing.T) {
	r := NewRetriever(&fakeSearcher{}, nil, "docs", false, log.NewNop())

	if _, err := r.Retrieve(context.Background(), "q", 0); err == nil {
		t.Error("Retrieve(k=0) must fail")
	}
}

func TestRetrieve_EmbedError(t *testing.T) {
	boom := errors.New("backend down")
	r := NewRetriever(&fakeSearcher{}, &fakeEmbedder{err: boom}, "docs", true, log.NewNop())

	_, err := r.Retrieve(context.Background(), "q", 5)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped embed error", err)
	}
}

func TestBackendTag(t *testing.T) {
	hybrid := NewRetriever(&fakeSearcher{}, &fakeEmbedder{}, "docs", true, log.NewNop())
	if hybrid.Backend() != BackendHybrid {
		t.Errorf("Backend() = %q, want %q", hybrid.Backend(), BackendHybrid)
	}
	lexical := NewRetriever(&fakeSearcher{}, nil, "docs", false, log.NewNop())
	if lexical.Backend() != BackendLexical {
		t.Errorf("Backend() = %q, want %q", lexical.Backend(), BackendLexical)
	}
}
