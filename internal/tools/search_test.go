package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/raggydev/raggy/internal/log"
	"github.com/raggydev/raggy/internal/rag"
)

type fakeSearcher struct {
	passages []rag.Passage
	err      error
	gotQuery string
	gotK     int
}

func (f *fakeSearcher) Retrieve(_ context.Context, query string, k int) ([]rag.Passage, error) {
	f.gotQuery = query
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func runSearch(t *testing.T, f *fakeSearcher, input searchInput) (string, error) {
	t.Helper()
	handler := searchHandler(f, log.NewNop())
	return handler(&ai.ToolContext{Context: context.Background()}, input)
}

func TestSearchToolReturnsAssembledBlock(t *testing.T) {
	f := &fakeSearcher{passages: []rag.Passage{
		{Title: "T1", Content: "C1"},
		{Title: "T2", Content: "C2"},
	}}
	out, err := runSearch(t, f, searchInput{Query: "anything", TopK: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := "[1] T1\nC1\n\n[2] T2\nC2"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if f.gotQuery != "anything" || f.gotK != 2 {
		t.Errorf("searcher got query=%q k=%d", f.gotQuery, f.gotK)
	}
}

func TestSearchToolNoResults(t *testing.T) {
	out, err := runSearch(t, &fakeSearcher{}, searchInput{Query: "q"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out != NoResultsMessage {
		t.Errorf("output = %q, want %q", out, NoResultsMessage)
	}
}

func TestSearchToolDefaultsAndCapsTopK(t *testing.T) {
	f := &fakeSearcher{}
	if _, err := runSearch(t, f, searchInput{Query: "q"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.gotK != rag.DefaultTopK {
		t.Errorf("default k = %d, want %d", f.gotK, rag.DefaultTopK)
	}

	if _, err := runSearch(t, f, searchInput{Query: "q", TopK: 100}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.gotK != maxToolTopK {
		t.Errorf("capped k = %d, want %d", f.gotK, maxToolTopK)
	}
}

func TestSearchToolPropagatesError(t *testing.T) {
	f := &fakeSearcher{err: errors.New("backend down")}
	if _, err := runSearch(t, f, searchInput{Query: "q"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRegisterSearchRegistersTool(t *testing.T) {
	g := genkit.Init(context.Background())
	ref := RegisterSearch(g, &fakeSearcher{}, log.NewNop())
	if ref == nil {
		t.Fatal("RegisterSearch returned nil")
	}
	if tool := genkit.LookupTool(g, "search_docs"); tool == nil {
		t.Error("search_docs not found in registry")
	}
}
