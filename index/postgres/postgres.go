// Package postgres implements docsift.Index using PostgreSQL with pgvector
// for native cosine similarity search.
//
// The Index accepts an externally-owned *pgxpool.Pool via constructor
// injection; the caller creates and closes the pool. Vector search uses an
// HNSW index with the cosine distance operator. HNSW is approximate: recall
// is bounded by ef_search (tunable via WithEFSearch) and the ranking is
// stable for an unchanged index, which satisfies repeated-query stability;
// use the memory or sqlite backend when exact search is required.
//
// The backend is durable on its own, so it does not implement
// docsift.Snapshotter.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docsift/docsift"
)

// Index implements docsift.Index backed by PostgreSQL with pgvector.
type Index struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

// pgConfig holds index configuration set via Option functions.
type pgConfig struct {
	dimension          int // 0 = untyped vector column
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Index.
type Option func(*pgConfig)

// WithDimension sets the vector column dimension (e.g. 768). When set,
// CREATE TABLE uses vector(N) instead of untyped vector, catching dimension
// mismatches at insert time. Only affects new table creation.
func WithDimension(dim int) Option {
	return func(c *pgConfig) { c.dimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Default: pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate list
// size). Higher values improve recall at the cost of latency. Default:
// pgvector's 40. Applied via SET during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ docsift.Index = (*Index)(nil)

// New creates an Index using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Index {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Index{pool: pool, cfg: cfg}
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (ix *Index) vectorType() string {
	if ix.cfg.dimension > 0 {
		return fmt.Sprintf("vector(%d)", ix.cfg.dimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (ix *Index) hnswWithClause() string {
	var parts []string
	if ix.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", ix.cfg.hnswM))
	}
	if ix.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", ix.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, the entries table, and its indexes.
// Safe to call multiple times (all statements are idempotent).
func (ix *Index) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entries (
			pos BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			start_token INTEGER NOT NULL,
			end_token INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding %s,
			UNIQUE (document_id, seq)
		)`, ix.vectorType()),
		`CREATE INDEX IF NOT EXISTS entries_document_idx ON entries(document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS entries_embedding_idx ON entries USING hnsw (embedding vector_cosine_ops)%s`, ix.hnswWithClause()),
	}

	for _, stmt := range stmts {
		if _, err := ix.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if ix.cfg.hnswEFSearch > 0 {
		if _, err := ix.pool.Exec(ctx,
			fmt.Sprintf(`ALTER DATABASE %s SET hnsw.ef_search = %d`,
				currentDatabase(ctx, ix.pool), ix.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}
	return nil
}

func currentDatabase(ctx context.Context, pool *pgxpool.Pool) string {
	var name string
	if err := pool.QueryRow(ctx, `SELECT current_database()`).Scan(&name); err != nil {
		return "postgres"
	}
	return name
}

// Add inserts entries in a single transaction, first deleting all prior rows
// for every document id present in the batch (replace semantics).
func (ix *Index) Add(ctx context.Context, entries []docsift.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	seen := make(map[string]struct{})
	for _, e := range entries {
		if _, ok := seen[e.Chunk.DocumentID]; ok {
			continue
		}
		seen[e.Chunk.DocumentID] = struct{}{}
		if _, err := tx.Exec(ctx,
			`DELETE FROM entries WHERE document_id = $1`, e.Chunk.DocumentID); err != nil {
			return fmt.Errorf("postgres: evict document %s: %w", e.Chunk.DocumentID, err)
		}
	}

	for _, e := range entries {
		var emb *string
		if len(e.Vector) > 0 {
			v := serializeEmbedding(e.Vector)
			emb = &v
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO entries (document_id, seq, start_token, end_token, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			e.Chunk.DocumentID, e.Chunk.Seq, e.Chunk.Start, e.Chunk.End, e.Chunk.Text, emb)
		if err != nil {
			return fmt.Errorf("postgres: insert entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Remove deletes all entries for the document id; no-op if absent.
func (ix *Index) Remove(ctx context.Context, documentID string) error {
	if _, err := ix.pool.Exec(ctx,
		`DELETE FROM entries WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("postgres: remove document %s: %w", documentID, err)
	}
	return nil
}

// Search performs vector similarity search using pgvector's cosine distance
// operator; score = 1 - distance. Ties keep insertion order via the pos
// column as a secondary sort key.
func (ix *Index) Search(ctx context.Context, vector []float32, k int, scope []string) ([]docsift.ScoredChunk, error) {
	if k <= 0 {
		return nil, &docsift.ErrConfig{Param: "k", Reason: fmt.Sprintf("must be positive, got %d", k)}
	}
	embStr := serializeEmbedding(vector)

	q := `SELECT document_id, seq, start_token, end_token, content,
	        1 - (embedding <=> $1::vector) AS score
	 FROM entries
	 WHERE embedding IS NOT NULL`
	args := []any{embStr, k}
	if len(scope) > 0 {
		q += ` AND document_id = ANY($3)`
		args = append(args, scope)
	}
	q += `
	 ORDER BY embedding <=> $1::vector, pos
	 LIMIT $2`

	rows, err := ix.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search entries: %w", err)
	}
	defer rows.Close()

	var results []docsift.ScoredChunk
	for rows.Next() {
		var c docsift.Chunk
		var score float32
		if err := rows.Scan(&c.DocumentID, &c.Seq, &c.Start, &c.End, &c.Text, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		results = append(results, docsift.ScoredChunk{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

// Chunks returns all entries in insertion order, optionally scoped.
func (ix *Index) Chunks(ctx context.Context, scope []string) ([]docsift.Entry, error) {
	q := `SELECT document_id, seq, start_token, end_token, content, embedding::text
	 FROM entries`
	var args []any
	if len(scope) > 0 {
		q += ` WHERE document_id = ANY($1)`
		args = append(args, scope)
	}
	q += ` ORDER BY pos`

	rows, err := ix.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: load entries: %w", err)
	}
	defer rows.Close()

	var entries []docsift.Entry
	for rows.Next() {
		var e docsift.Entry
		var emb *string
		if err := rows.Scan(&e.Chunk.DocumentID, &e.Chunk.Seq, &e.Chunk.Start, &e.Chunk.End, &e.Chunk.Text, &emb); err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		if emb != nil {
			if v, err := deserializeEmbedding(*emb); err == nil {
				e.Vector = v
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len reports the number of entries currently indexed.
func (ix *Index) Len(ctx context.Context) (int, error) {
	var n int
	if err := ix.pool.QueryRow(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count entries: %w", err)
	}
	return n, nil
}

// serializeEmbedding converts []float32 to pgvector's text format "[1,2,3]".
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses pgvector's text format back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
