// Package tools registers Genkit tools the model can call during a turn.
//
// Tools are optional: the standard turn pipeline injects sources directly
// into the prompt, but when tool calling is enabled the model can also pull
// additional passages mid-generation via search_docs.
package tools

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/raggydev/raggy/internal/log"
	"github.com/raggydev/raggy/internal/rag"
)

// maxToolTopK caps how many passages a single tool call may request.
const maxToolTopK = 20

// NoResultsMessage is returned to the model when a search finds nothing.
const NoResultsMessage = "No results."

// searcher is the slice of the retriever the search tool needs.
type searcher interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Passage, error)
}

// searchInput is the model-facing schema for search_docs.
type searchInput struct {
	Query string `json:"query" jsonschema_description:"Search query describing the information needed."`
	TopK  int    `json:"top_k,omitempty" jsonschema_description:"Maximum number of passages to return. Defaults to 5."`
}

// RegisterSearch defines the search_docs tool and returns its reference for
// use with ai.WithTools.
func RegisterSearch(g *genkit.Genkit, r searcher, logger log.Logger) ai.ToolRef {
	return genkit.DefineTool(
		g,
		"search_docs",
		"Search the document corpus for passages relevant to a query. "+
			"Returns numbered passages with titles, or 'No results.' when nothing matches. "+
			"Use this when the provided sources do not cover the question.",
		searchHandler(r, logger),
	)
}

// searchHandler builds the tool function. Split out so tests can invoke it
// without going through the registry.
func searchHandler(r searcher, logger log.Logger) func(*ai.ToolContext, searchInput) (string, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	return func(ctx *ai.ToolContext, input searchInput) (string, error) {
		k := input.TopK
		if k <= 0 {
			k = rag.DefaultTopK
		}
		if k > maxToolTopK {
			k = maxToolTopK
		}

		passages, err := r.Retrieve(ctx.Context, input.Query, k)
		if err != nil {
			return "", fmt.Errorf("search_docs: %w", err)
		}

		logger.Debug("search_docs tool invoked",
			"query_len", len(input.Query),
			"top_k", k,
			"results", len(passages))

		if len(passages) == 0 {
			return NoResultsMessage, nil
		}
		return rag.Assemble(passages), nil
	}
}
