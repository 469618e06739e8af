// Package sqlite implements docsift.Index on pure-Go SQLite with in-process
// brute-force vector search. Zero CGO required.
//
// Embeddings are stored as JSON text next to the chunk, cosine similarity is
// computed in-process over every candidate row, and ranking ties keep
// insertion order. The backend is durable on its own, so it does not
// implement docsift.Snapshotter.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/docsift/docsift"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Option configures a SQLite Index.
type Option func(*Index)

// WithLogger sets a structured logger for the index. When set, the index
// emits debug logs for every operation including timing and row counts.
// If not set, no logs are emitted.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// Index implements docsift.Index backed by a local SQLite file.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ docsift.Index = (*Index)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates an Index using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...Option) *Index {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	ix := &Index{db: db, logger: nopLogger}
	for _, o := range opts {
		o(ix)
	}
	ix.logger.Debug("sqlite: index opened", "path", dbPath)
	return ix
}

// Init creates the entries table. Safe to call multiple times.
func (ix *Index) Init(ctx context.Context) error {
	_, err := ix.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS entries (
		pos INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		start_token INTEGER NOT NULL,
		end_token INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding TEXT,
		UNIQUE (document_id, seq)
	)`)
	if err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}
	_, err = ix.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS entries_document_idx ON entries(document_id)`)
	if err != nil {
		return fmt.Errorf("create document index: %w", err)
	}
	return nil
}

// Add inserts entries inside one transaction, first deleting all prior rows
// for every document id present in the batch (replace semantics).
func (ix *Index) Add(ctx context.Context, entries []docsift.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()
	ix.logger.Debug("sqlite: add entries", "count", len(entries))

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seen := make(map[string]struct{})
	for _, e := range entries {
		if _, ok := seen[e.Chunk.DocumentID]; ok {
			continue
		}
		seen[e.Chunk.DocumentID] = struct{}{}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE document_id = ?`, e.Chunk.DocumentID); err != nil {
			return fmt.Errorf("evict document %s: %w", e.Chunk.DocumentID, err)
		}
	}

	for _, e := range entries {
		var embJSON *string
		if len(e.Vector) > 0 {
			v := serializeEmbedding(e.Vector)
			embJSON = &v
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entries (document_id, seq, start_token, end_token, content, embedding)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.Chunk.DocumentID, e.Chunk.Seq, e.Chunk.Start, e.Chunk.End, e.Chunk.Text, embJSON,
		)
		if err != nil {
			ix.logger.Error("sqlite: insert entry failed",
				"document_id", e.Chunk.DocumentID, "seq", e.Chunk.Seq, "error", err)
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	ix.logger.Debug("sqlite: add entries ok", "count", len(entries), "duration", time.Since(start))
	return nil
}

// Remove deletes all entries for the document id; no-op if absent.
func (ix *Index) Remove(ctx context.Context, documentID string) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM entries WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("remove document %s: %w", documentID, err)
	}
	return nil
}

// Search scans all embedded rows, computes cosine similarity in-process, and
// returns the topK. Ties keep insertion order (rows are scanned by position
// and sorted stably).
func (ix *Index) Search(ctx context.Context, vector []float32, k int, scope []string) ([]docsift.ScoredChunk, error) {
	if k <= 0 {
		return nil, &docsift.ErrConfig{Param: "k", Reason: fmt.Sprintf("must be positive, got %d", k)}
	}
	start := time.Now()

	query := `SELECT document_id, seq, start_token, end_token, content, embedding
		FROM entries WHERE embedding IS NOT NULL`
	where, args := scopeClause(scope)
	query += where + ` ORDER BY pos`

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()

	var results []docsift.ScoredChunk
	scanned := 0
	for rows.Next() {
		var c docsift.Chunk
		var embJSON string
		if err := rows.Scan(&c.DocumentID, &c.Seq, &c.Start, &c.End, &c.Text, &embJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		scanned++
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		results = append(results, docsift.ScoredChunk{Chunk: c, Score: cosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	ix.logger.Debug("sqlite: search ok",
		"scanned", scanned, "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// Chunks returns all entries in insertion order, optionally scoped.
func (ix *Index) Chunks(ctx context.Context, scope []string) ([]docsift.Entry, error) {
	query := `SELECT document_id, seq, start_token, end_token, content, embedding FROM entries`
	where, args := scopeClause(scope)
	if where != "" {
		query += " WHERE" + strings.TrimPrefix(where, " AND")
	}
	query += ` ORDER BY pos`

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var entries []docsift.Entry
	for rows.Next() {
		var e docsift.Entry
		var embJSON sql.NullString
		if err := rows.Scan(&e.Chunk.DocumentID, &e.Chunk.Seq, &e.Chunk.Start, &e.Chunk.End, &e.Chunk.Text, &embJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if embJSON.Valid {
			if v, err := deserializeEmbedding(embJSON.String); err == nil {
				e.Vector = v
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Len reports the number of entries currently indexed.
func (ix *Index) Len(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// scopeClause builds an " AND document_id IN (...)" clause, or "" when the
// scope is empty.
func scopeClause(scope []string) (string, []any) {
	if len(scope) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(scope))
	args := make([]any, len(scope))
	for i, id := range scope {
		placeholders[i] = "?"
		args[i] = id
	}
	return " AND document_id IN (" + strings.Join(placeholders, ", ") + ")", args
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
