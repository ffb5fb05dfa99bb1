// Package vecstore persists documents with embeddings in PostgreSQL and
// answers nearest-neighbor queries by cosine similarity via pgvector.
//
// The ivfflat index trades recall for latency, so exactness of ranking
// beyond the returned top-k is not guaranteed, but the returned order is
// always similarity-descending with ties broken by ascending document id.
package vecstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// documentCols is the standard SELECT column list for scanning documents.
const documentCols = `id, content, embedding, metadata, created_at`

// Store is the vector index over the documents table.
//
// Store is safe for concurrent use: reads and writes each acquire their own
// connection from the pool, and id assignment relies on the table's primary
// key constraint rather than any in-process state.
type Store struct {
	db        querier
	dimension int
	logger    log.Logger
}

// New creates a Store. dimension is the index-wide embedding dimension and
// must match the documents table schema.
func New(db querier, dimension int, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, dimension: dimension, logger: logger}, nil
}

// Upsert inserts or updates a document and returns its id, assigning a new
// one when the document has none. The document's text must be non-empty and
// its embedding must match the configured dimension; violations fail with
// fault.ErrValidation before anything is written.
func (s *Store) Upsert(ctx context.Context, doc Document) (string, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return "", fmt.Errorf("%w: document text must not be empty", fault.ErrValidation)
	}
	if len(doc.Embedding) != s.dimension {
		return "", fmt.Errorf("%w: embedding has %d dimensions, index configured for %d",
			fault.ErrValidation, len(doc.Embedding), s.dimension)
	}

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling metadata: %v", fault.ErrValidation, err)
	}

	var createdAt *time.Time
	if !doc.CreatedAt.IsZero() {
		createdAt = &doc.CreatedAt
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO documents (id, content, embedding, metadata, created_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content,
		     embedding = EXCLUDED.embedding,
		     metadata = EXCLUDED.metadata`,
		id, doc.Text, pgvector.NewVector(doc.Embedding), metadataJSON, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("%w: upserting document %q: %v", fault.ErrStorage, id, err)
	}

	s.logger.Debug("upserted document", "id", id, "content_length", len(doc.Text))
	return id, nil
}

// Search returns at most k results ordered by descending cosine similarity,
// ties broken by ascending id. filter restricts results to documents whose
// metadata contains every given key/value pair exactly; an unsupported
// filter key fails with fault.ErrValidation.
func (s *Store) Search(ctx context.Context, queryVec []float32, k int, filter map[string]any) ([]Result, error) {
	if len(queryVec) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index configured for %d",
			fault.ErrValidation, len(queryVec), s.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", fault.ErrValidation, k)
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	vec := pgvector.NewVector(queryVec)

	var (
		rows pgx.Rows
		err  error
	)
	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("%w: marshaling filter: %v", fault.ErrValidation, marshalErr)
		}
		rows, err = s.db.Query(ctx,
			`SELECT `+documentCols+`, 1 - (embedding <=> $1) AS similarity
			 FROM documents
			 WHERE metadata @> $2
			 ORDER BY embedding <=> $1, id
			 LIMIT $3`,
			vec, filterJSON, k,
		)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+documentCols+`, 1 - (embedding <=> $1) AS similarity
			 FROM documents
			 ORDER BY embedding <=> $1, id
			 LIMIT $2`,
			vec, k,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: searching documents: %v", fault.ErrStorage, err)
	}
	defer rows.Close()

	return s.scanResults(rows)
}

// Get retrieves a document by id. Returns fault.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id must not be empty", fault.ErrValidation)
	}

	row := s.db.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("%w: document %q", fault.ErrNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("%w: getting document %q: %v", fault.ErrStorage, id, err)
	}
	return doc, nil
}

// Delete removes a document by id. Returns false when no such document
// existed. Deletion does not touch the ingestion log; its records are a
// historical audit trail.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: id must not be empty", fault.ErrValidation)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("%w: deleting document %q: %v", fault.ErrStorage, id, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	s.logger.Debug("deleted document", "id", id)
	return true, nil
}

// scanResults drains rows into Results.
func (s *Store) scanResults(rows pgx.Rows) ([]Result, error) {
	results := make([]Result, 0)
	for rows.Next() {
		var (
			doc          Document
			embedding    pgvector.Vector
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &embedding, &metadataJSON, &doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning result row: %v", fault.ErrStorage, err)
		}
		doc.Embedding = embedding.Slice()
		doc.Metadata = unmarshalMetadata(metadataJSON, doc.ID, s.logger)
		results = append(results, Result{Document: doc, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading result rows: %v", fault.ErrStorage, err)
	}
	return results, nil
}

// scanDocument scans a single document row.
func scanDocument(row pgx.Row) (*Document, error) {
	var (
		doc          Document
		embedding    pgvector.Vector
		metadataJSON []byte
	)
	if err := row.Scan(&doc.ID, &doc.Text, &embedding, &metadataJSON, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.Embedding = embedding.Slice()
	doc.Metadata = unmarshalMetadata(metadataJSON, doc.ID, nil)
	return &doc, nil
}

// unmarshalMetadata parses JSONB metadata, logging and substituting an empty
// map on parse failure so one bad row cannot fail a whole result set.
func unmarshalMetadata(data []byte, docID string, logger log.Logger) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		if logger != nil {
			logger.Warn("failed to parse metadata", "document_id", docID, "error", err)
		}
		return map[string]any{}
	}
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}
