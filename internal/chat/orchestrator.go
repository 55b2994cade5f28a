package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/raggydev/raggy/internal/log"
	"github.com/raggydev/raggy/internal/rag"
	"github.com/raggydev/raggy/internal/session"
)

// FallbackAnswer is returned verbatim when retrieval produces no passages.
// The model is never consulted for such turns.
const FallbackAnswer = "I don't know — no relevant content was retrieved."

// DefaultSystemPrompt anchors every conversation. Set once per session.
const DefaultSystemPrompt = "You are a helpful assistant. Answer the user's question using only the " +
	"numbered SOURCES provided with it. Cite sources by number where relevant. " +
	"If the sources do not contain the answer, say you don't know."

// ErrEmptyInput indicates the user submitted a blank message.
var ErrEmptyInput = errors.New("empty user input")

// retriever finds passages relevant to a query.
type retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Passage, error)
	Backend() string
}

// generator turns a conversation snapshot plus an augmented message into
// an answer. Satisfied by *Generator.
type generator interface {
	Generate(ctx context.Context, history []*ai.Message, augmented string) (*GenerateResult, error)
}

// TurnResult summarizes a completed conversation turn.
type TurnResult struct {
	Answer            string
	Usage             *Usage // nil on the fallback path or when unreported
	PassageCount      int
	RetrievalLatency  time.Duration
	GenerationLatency time.Duration
}

// Orchestrator runs conversation turns: retrieve, assemble, generate, and
// record the exchange in the session history. A failed turn leaves the
// history untouched so the user can retry the same question.
type Orchestrator struct {
	retriever retriever
	generator generator
	history   *session.History
	topK      int
	tracer    trace.Tracer
	logger    log.Logger
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	Retriever retriever
	Generator generator
	History   *session.History
	TopK      int // zero means rag.DefaultTopK
	Logger    log.Logger
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.History == nil {
		return nil, errors.New("history is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	return &Orchestrator{
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		history:   cfg.History,
		topK:      topK,
		tracer:    otel.Tracer("raggy/chat"),
		logger:    cfg.Logger,
	}, nil
}

// Turn runs one full conversation turn for userText.
//
// When retrieval finds nothing, the turn short-circuits to FallbackAnswer
// without calling the model. On success the user's raw text and the answer
// are appended to the history; the augmented message with its SOURCES block
// stays ephemeral and never enters the history.
func (o *Orchestrator) Turn(ctx context.Context, userText string) (*TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, ErrEmptyInput
	}

	ctx, span := o.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("turn.id", uuid.NewString()),
		attribute.Int("user.input_len", len(userText)),
		attribute.String("retriever.backend", o.retriever.Backend()),
	))
	defer span.End()

	retrievalStart := time.Now()
	passages, err := o.retriever.Retrieve(ctx, userText, o.topK)
	retrievalLatency := time.Since(retrievalStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}
	span.SetAttributes(
		attribute.Int("docs.count", len(passages)),
		attribute.Float64("perf.retrieval_sec", retrievalLatency.Seconds()),
	)

	if len(passages) == 0 {
		o.logger.Info("no passages retrieved, returning fallback",
			"backend", o.retriever.Backend(),
			"retrieval_ms", retrievalLatency.Milliseconds())
		if err := o.recordExchange(userText, FallbackAnswer); err != nil {
			span.RecordError(err)
			return nil, err
		}
		return &TurnResult{
			Answer:           FallbackAnswer,
			RetrievalLatency: retrievalLatency,
		}, nil
	}

	augmented := buildAugmentedMessage(userText, passages)

	generationStart := time.Now()
	genResult, err := o.generator.Generate(ctx, o.history.Snapshot(), augmented)
	generationLatency := time.Since(generationStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}
	span.SetAttributes(attribute.Float64("perf.llm_sec", generationLatency.Seconds()))
	if genResult.Usage != nil {
		span.SetAttributes(
			attribute.Int("tokens.prompt", genResult.Usage.PromptTokens),
			attribute.Int("tokens.completion", genResult.Usage.CompletionTokens),
			attribute.Int("tokens.total", genResult.Usage.TotalTokens),
		)
	}

	if err := o.recordExchange(userText, genResult.Answer); err != nil {
		span.RecordError(err)
		return nil, err
	}

	o.logger.Debug("turn completed",
		"passages", len(passages),
		"retrieval_ms", retrievalLatency.Milliseconds(),
		"generation_ms", generationLatency.Milliseconds())

	return &TurnResult{
		Answer:            genResult.Answer,
		Usage:             genResult.Usage,
		PassageCount:      len(passages),
		RetrievalLatency:  retrievalLatency,
		GenerationLatency: generationLatency,
	}, nil
}

// recordExchange appends the user's raw text and the answer to the history.
func (o *Orchestrator) recordExchange(userText, answer string) error {
	if err := o.history.AddUser(userText); err != nil {
		return fmt.Errorf("record user turn: %w", err)
	}
	if err := o.history.AddAssistant(answer); err != nil {
		return fmt.Errorf("record assistant turn: %w", err)
	}
	return nil
}

// buildAugmentedMessage combines the assembled sources with the raw
// question. Only the raw question is ever persisted to the history.
func buildAugmentedMessage(userText string, passages []rag.Passage) string {
	return fmt.Sprintf("SOURCES:\n%s\n\nQuestion: %s", rag.Assemble(passages), userText)
}
