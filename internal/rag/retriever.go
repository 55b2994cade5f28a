// Package rag implements the retrieval half of the question answering loop:
// finding relevant passages for a query and assembling them into a bounded,
// citation-numbered SOURCES block for prompt injection.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raggydev/raggy/internal/embed"
	"github.com/raggydev/raggy/internal/store"
)

// DefaultTopK is the number of passages retrieved per query.
const DefaultTopK = 5

// Backend tags emitted as the retriever.backend telemetry attribute.
const (
	BackendHybrid  = "pgvector_hybrid"
	BackendLexical = "pg_lexical"
)

// Passage is a retrieved document projection, ranked by relevance.
// Ephemeral: constructed per query, never stored.
type Passage struct {
	Title   string
	Content string
}

// Searcher is the slice of the document store the retriever needs.
type Searcher interface {
	Search(ctx context.Context, partitionKey, query string, vector []float32, k int) ([]store.Row, error)
}

// Retriever returns the top-k most relevant passages for a query.
//
// When vector search is enabled the query is embedded and the store performs
// hybrid (lexical + vector) ranking, which improves recall over either mode
// alone. With vectors disabled the store falls back to lexical ranking, which
// keeps retrieval usable against a partially ingested corpus.
type Retriever struct {
	searcher     Searcher
	embedder     embed.Embedder
	partitionKey string
	vectors      bool
	logger       *slog.Logger
}

// NewRetriever creates a Retriever. embedder may be nil only when vectors is
// false.
func NewRetriever(searcher Searcher, embedder embed.Embedder, partitionKey string, vectors bool, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		searcher:     searcher,
		embedder:     embedder,
		partitionKey: partitionKey,
		vectors:      vectors,
		logger:       logger,
	}
}

// Backend returns the telemetry tag for the active search mode.
func (r *Retriever) Backend() string {
	if r.vectors {
		return BackendHybrid
	}
	return BackendLexical
}

// Retrieve returns up to k passages ordered by decreasing relevance.
// An empty result is a valid outcome, not an error: it signals that the
// corpus has nothing relevant and the caller should not generate an answer.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	var vector []float32
	if r.vectors {
		var err error
		vector, err = r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
	}

	rows, err := r.searcher.Search(ctx, r.partitionKey, query, vector, k)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	passages := make([]Passage, 0, len(rows))
	for _, row := range rows {
		passages = append(passages, Passage{Title: row.Title, Content: row.Content})
	}

	r.logger.Debug("retrieved passages",
		"backend", r.Backend(),
		"query_length", len(query),
		"count", len(passages))
	return passages, nil
}
