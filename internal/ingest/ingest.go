// Package ingest adds documents to the knowledge base: embed the text,
// upsert it into the vector index and record the event in the ingestion
// log.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"strings"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/ingestlog"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/vecstore"
)

// Index is the vector index writes go to.
type Index interface {
	Upsert(ctx context.Context, doc vecstore.Document) (string, error)
}

// Embedder produces document embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Recorder appends to the ingestion audit log.
type Recorder interface {
	Append(ctx context.Context, rec ingestlog.Record) error
}

// Request describes one document to ingest. Filename is the display name
// recorded in the audit log; ID is optional and assigned when empty.
type Request struct {
	ID       string
	Filename string
	Text     string
	Metadata map[string]any
}

// Result reports a completed ingestion.
type Result struct {
	DocID    string
	FileHash string
}

// Service runs the ingestion pipeline.
type Service struct {
	index    Index
	embedder Embedder
	recorder Recorder
	logger   log.Logger
}

// New creates a Service.
func New(index Index, embedder Embedder, recorder Recorder, logger log.Logger) (*Service, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("recorder is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{index: index, embedder: embedder, recorder: recorder, logger: logger}, nil
}

// Ingest embeds and stores one document, then records it in the audit log.
// The document is already in the index by the time the log is written; a
// log failure is reported but does not roll the document back.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, fmt.Errorf("%w: document text must not be empty", fault.ErrValidation)
	}
	if strings.TrimSpace(req.Filename) == "" {
		return Result{}, fmt.Errorf("%w: filename must not be empty", fault.ErrValidation)
	}

	vec, err := s.embedder.Embed(ctx, req.Text)
	if err != nil {
		return Result{}, fmt.Errorf("embedding document: %w", err)
	}

	// Copied so the filename injection never touches the caller's map.
	metadata := make(map[string]any, len(req.Metadata)+1)
	maps.Copy(metadata, req.Metadata)
	if _, ok := metadata["filename"]; !ok {
		metadata["filename"] = req.Filename
	}

	docID, err := s.index.Upsert(ctx, vecstore.Document{
		ID:        req.ID,
		Text:      req.Text,
		Metadata:  metadata,
		Embedding: vec,
	})
	if err != nil {
		return Result{}, fmt.Errorf("storing document: %w", err)
	}

	hash := sha256.Sum256([]byte(req.Text))
	result := Result{DocID: docID, FileHash: hex.EncodeToString(hash[:])}

	err = s.recorder.Append(ctx, ingestlog.Record{
		Filename: req.Filename,
		DocID:    docID,
		Metadata: metadata,
		FileHash: result.FileHash,
	})
	if err != nil {
		return Result{}, fmt.Errorf("recording ingestion of %q: %w", docID, err)
	}

	s.logger.Info("ingested document",
		"doc_id", docID, "filename", req.Filename, "content_length", len(req.Text))
	return result, nil
}
