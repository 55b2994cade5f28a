// Package store persists documents and serves ranked relevance queries over
// PostgreSQL with pgvector.
//
// Two search modes are supported:
//   - hybrid: lexical ts_rank blended with pgvector cosine similarity, used
//     whenever the caller supplies a query vector
//   - lexical: ts_rank over the generated tsvector column only, used when no
//     vector is available (for example a partially ingested corpus)
//
// An empty result set is a valid outcome, never an error.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// searchTimeout bounds a single relevance query so a slow vector scan cannot
// block the interactive loop indefinitely.
const searchTimeout = 10 * time.Second

// Document is a stored corpus entry. Identity is (PartitionKey, ID); the
// embedding may be nil when a document was ingested without vectors.
type Document struct {
	ID           string
	PartitionKey string
	Title        string
	Content      string
	Embedding    []float32
}

// Row is the projection of a document returned by Search, ranked by
// decreasing relevance.
type Row struct {
	Title   string
	Content string
}

// Store manages documents in PostgreSQL. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store over the given pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// NewPool creates a pgx connection pool with pgvector types registered and
// connectivity verified.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

const upsertSQL = `
INSERT INTO documents (id, partition_key, title, content, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (partition_key, id) DO UPDATE SET
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	embedding = EXCLUDED.embedding`

// Upsert inserts or replaces a document keyed on (partition_key, id).
func (s *Store) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("document id must not be empty")
	}
	if doc.PartitionKey == "" {
		return errors.New("partition key must not be empty")
	}

	var embedding *pgvector.Vector
	if doc.Embedding != nil {
		v := pgvector.NewVector(doc.Embedding)
		embedding = &v
	}

	_, err := s.pool.Exec(ctx, upsertSQL,
		doc.ID, doc.PartitionKey, doc.Title, doc.Content, embedding)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("upserted document",
		"id", doc.ID,
		"partition_key", doc.PartitionKey,
		"content_length", len(doc.Content))
	return nil
}

// Hybrid ranking: cosine similarity and lexical rank each contribute half of
// the blended score. Documents without an embedding still participate through
// their lexical rank.
const hybridSearchSQL = `
SELECT title, content
FROM documents
WHERE partition_key = $1
ORDER BY COALESCE(1 - (embedding <=> $2), 0) * 0.5 +
	ts_rank(search_tsv, websearch_to_tsquery('english', $3)) * 0.5 DESC
LIMIT $4`

const lexicalSearchSQL = `
SELECT title, content
FROM documents
WHERE partition_key = $1
  AND search_tsv @@ websearch_to_tsquery('english', $2)
ORDER BY ts_rank(search_tsv, websearch_to_tsquery('english', $2)) DESC
LIMIT $3`

// Search returns up to k rows ranked by relevance to query within the given
// partition. When vector is non-nil the ranking blends lexical and vector
// similarity; otherwise it is lexical only. No matching rows yields an empty
// result, not an error.
func (s *Store) Search(ctx context.Context, partitionKey, query string, vector []float32, k int) ([]Row, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if vector != nil {
		qvec := pgvector.NewVector(vector)
		rows, err = s.pool.Query(queryCtx, hybridSearchSQL, partitionKey, qvec, query, k)
	} else {
		rows, err = s.pool.Query(queryCtx, lexicalSearchSQL, partitionKey, query, k)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Title, &r.Content); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	return results, nil
}

// Count returns the number of documents in a partition.
func (s *Store) Count(ctx context.Context, partitionKey string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE partition_key = $1`, partitionKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}
