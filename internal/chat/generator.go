// Package chat implements the conversational question-answering loop:
// retrieval, context assembly, answer generation, and history updates.
//
// The package is split into two layers. Generator is a thin wrapper around
// the Genkit generation API that turns a conversation snapshot plus an
// augmented user message into an answer with token accounting. Orchestrator
// drives a full turn end to end and owns the conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/raggydev/raggy/internal/log"
)

// ErrGeneration indicates the model backend failed to produce an answer.
// Callers can match it with errors.Is to distinguish generation failures
// from retrieval failures.
var ErrGeneration = errors.New("answer generation failed")

// DefaultTemperature keeps answers grounded in the provided sources rather
// than creative.
const DefaultTemperature = 0.2

// Usage reports token accounting for a single generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateResult is the outcome of one generation call.
type GenerateResult struct {
	Answer string
	Usage  *Usage // nil when the backend reports no usage
}

// Generator produces answers from conversation history using a Genkit model.
type Generator struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
	toolRefs    []ai.ToolRef
	maxTurns    int
	logger      log.Logger
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Genkit      *genkit.Genkit
	ModelName   string
	Temperature float64      // zero means DefaultTemperature
	Tools       []ai.ToolRef // optional; enables tool-calling turns
	MaxTurns    int          // tool-call rounds, only used when Tools is set
	Logger      log.Logger
}

// NewGenerator creates a Generator from cfg.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 2
	}
	return &Generator{
		g:           cfg.Genkit,
		modelName:   cfg.ModelName,
		temperature: temp,
		toolRefs:    cfg.Tools,
		maxTurns:    maxTurns,
		logger:      cfg.Logger,
	}, nil
}

// Generate produces an answer for the augmented user message given the
// conversation so far. The history slice is not modified; the augmented
// message is appended to a copy and never persisted by this layer.
func (g *Generator) Generate(ctx context.Context, history []*ai.Message, augmented string) (*GenerateResult, error) {
	messages := make([]*ai.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(augmented)))

	opts := []ai.GenerateOption{
		ai.WithModelName(g.modelName),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature: g.temperature,
		}),
	}
	if len(g.toolRefs) > 0 {
		opts = append(opts,
			ai.WithTools(g.toolRefs...),
			ai.WithMaxTurns(g.maxTurns),
		)
	}

	resp, err := genkit.Generate(ctx, g.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return nil, fmt.Errorf("%w: model returned empty response", ErrGeneration)
	}

	result := &GenerateResult{Answer: answer}
	if resp.Usage != nil {
		result.Usage = &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}
