package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/raggydev/raggy/internal/embed"
	"github.com/raggydev/raggy/internal/log"
	"github.com/raggydev/raggy/internal/store"
)

const (
	// DefaultBatchSize is how many documents are embedded per backend call.
	DefaultBatchSize = 8

	// DefaultMaxRetries is how many attempts a failing operation gets
	// before the pipeline gives up.
	DefaultMaxRetries = 5

	// DefaultBatchInterval paces embedding calls to stay under backend
	// rate limits.
	DefaultBatchInterval = 200 * time.Millisecond

	// defaultBackoffBase is the unit for exponential backoff delays.
	defaultBackoffBase = time.Second

	// backoffFactor grows the delay between attempts.
	backoffFactor = 1.5
)

// RetryExhaustedError reports that an operation kept failing after all
// retry attempts. The last error is available via Unwrap.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// Upserter persists documents. Satisfied by *store.Store.
type Upserter interface {
	Upsert(ctx context.Context, doc store.Document) error
}

// Result summarizes a completed ingestion run.
type Result struct {
	Ingested int
	Batches  int
	Duration time.Duration
}

// Pipeline embeds a corpus in batches and upserts the documents.
type Pipeline struct {
	embedder     embed.Embedder
	upserter     Upserter
	partitionKey string
	batchSize    int
	maxRetries   int
	limiter      *rate.Limiter
	backoffBase  time.Duration
	logger       log.Logger
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Embedder     embed.Embedder
	Upserter     Upserter
	PartitionKey string
	BatchSize    int           // zero means DefaultBatchSize
	MaxRetries   int           // zero means DefaultMaxRetries
	Interval     time.Duration // zero means DefaultBatchInterval
	Logger       log.Logger
}

// NewPipeline creates a Pipeline from cfg.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Upserter == nil {
		return nil, errors.New("upserter is required")
	}
	if cfg.PartitionKey == "" {
		return nil, errors.New("partition key is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultBatchInterval
	}
	return &Pipeline{
		embedder:     cfg.Embedder,
		upserter:     cfg.Upserter,
		partitionKey: cfg.PartitionKey,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		backoffBase:  defaultBackoffBase,
		logger:       cfg.Logger,
	}, nil
}

// Run ingests docs in input order. Each batch is embedded in a single
// backend call, then every document is upserted individually so one bad
// row cannot sink its batch-mates. Both the embedding call and each
// upsert is retried independently.
func (p *Pipeline) Run(ctx context.Context, docs []RawDoc) (*Result, error) {
	start := time.Now()
	result := &Result{}
	total := len(docs)

	for offset := 0; offset < total; offset += p.batchSize {
		end := min(offset+p.batchSize, total)
		batch := docs[offset:end]
		result.Batches++

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("batch pacing: %w", err)
		}

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Title + "\n\n" + doc.Content
		}

		var vectors [][]float32
		err := p.withRetry(ctx, "embed batch", func() error {
			var embedErr error
			vectors, embedErr = p.embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", result.Batches, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("batch %d: got %d vectors for %d documents",
				result.Batches, len(vectors), len(batch))
		}

		for i, doc := range batch {
			document := store.Document{
				ID:           docID(p.partitionKey, doc.Title, doc.Content),
				PartitionKey: p.partitionKey,
				Title:        doc.Title,
				Content:      doc.Content,
				Embedding:    vectors[i],
			}
			err := p.withRetry(ctx, "upsert document", func() error {
				return p.upserter.Upsert(ctx, document)
			})
			if err != nil {
				return nil, fmt.Errorf("document %q: %w", doc.Title, err)
			}
			result.Ingested++
		}

		p.logger.Info("ingestion progress",
			"inserted", result.Ingested,
			"total", total,
			"batch", result.Batches)
	}

	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"inserted", result.Ingested,
		"batches", result.Batches,
		"duration", result.Duration)
	return result, nil
}

// withRetry runs op up to maxRetries times with exponential backoff.
// Delays grow by backoffFactor per attempt; context cancellation aborts
// the wait. All attempts failing yields a RetryExhaustedError.
func (p *Pipeline) withRetry(ctx context.Context, what string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.maxRetries-1 {
			break
		}

		delay := p.backoffDelay(attempt)
		p.logger.Warn("operation failed, retrying",
			"op", what,
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return &RetryExhaustedError{Attempts: p.maxRetries, Err: lastErr}
}

// backoffDelay returns the wait before the retry following a failed attempt
// (zero-based): backoffBase * backoffFactor^attempt.
func (p *Pipeline) backoffDelay(attempt int) time.Duration {
	return time.Duration(float64(p.backoffBase) * math.Pow(backoffFactor, float64(attempt)))
}

// docID derives a stable document id from the partition key and content,
// so re-ingesting the same corpus updates rows instead of duplicating them.
func docID(partitionKey, title, content string) string {
	hash := sha256.Sum256([]byte(partitionKey + "\x00" + title + "\x00" + content))
	return "doc_" + hex.EncodeToString(hash[:16])
}
