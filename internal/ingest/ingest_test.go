package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/ingestlog"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/vecstore"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeIndex struct {
	id     string
	err    error
	gotDoc vecstore.Document
	calls  int
}

func (f *fakeIndex) Upsert(ctx context.Context, doc vecstore.Document) (string, error) {
	f.calls++
	f.gotDoc = doc
	if f.err != nil {
		return "", f.err
	}
	if f.id != "" {
		return f.id, nil
	}
	return doc.ID, nil
}

type fakeRecorder struct {
	err    error
	gotRec ingestlog.Record
	calls  int
}

func (f *fakeRecorder) Append(ctx context.Context, rec ingestlog.Record) error {
	f.calls++
	f.gotRec = rec
	return f.err
}

func newTestService(t *testing.T, index *fakeIndex, embedder *fakeEmbedder, recorder *fakeRecorder) *Service {
	t.Helper()
	s, err := New(index, embedder, recorder, log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestIngestPipeline(t *testing.T) {
	index := &fakeIndex{id: "doc-42"}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	recorder := &fakeRecorder{}
	s := newTestService(t, index, embedder, recorder)

	result, err := s.Ingest(context.Background(), Request{
		Filename: "aion.pdf",
		Text:     "The shadow is a moral problem.",
		Metadata: map[string]any{"title": "Aion", "type": "book"},
	})
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	if result.DocID != "doc-42" {
		t.Errorf("DocID = %q, want doc-42", result.DocID)
	}

	wantHash := sha256.Sum256([]byte("The shadow is a moral problem."))
	if result.FileHash != hex.EncodeToString(wantHash[:]) {
		t.Errorf("FileHash = %q, want sha256 of the document text", result.FileHash)
	}

	if len(index.gotDoc.Embedding) != 2 {
		t.Errorf("index received embedding %v, want the embedder's output", index.gotDoc.Embedding)
	}
	if index.gotDoc.Metadata["filename"] != "aion.pdf" {
		t.Errorf("metadata filename = %v, want aion.pdf", index.gotDoc.Metadata["filename"])
	}

	if recorder.gotRec.DocID != "doc-42" || recorder.gotRec.Filename != "aion.pdf" {
		t.Errorf("recorded %+v, want the stored document", recorder.gotRec)
	}
	if recorder.gotRec.FileHash != result.FileHash {
		t.Errorf("recorded hash %q, want %q", recorder.gotRec.FileHash, result.FileHash)
	}
}

func TestIngestValidation(t *testing.T) {
	index := &fakeIndex{}
	embedder := &fakeEmbedder{vec: []float32{1}}
	recorder := &fakeRecorder{}
	s := newTestService(t, index, embedder, recorder)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty text", Request{Filename: "a.pdf"}},
		{"whitespace text", Request{Filename: "a.pdf", Text: "  \n "}},
		{"empty filename", Request{Text: "content"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Ingest(context.Background(), tt.req); !errors.Is(err, fault.ErrValidation) {
				t.Errorf("Ingest() error = %v, want ErrValidation", err)
			}
		})
	}
	if embedder.calls != 0 || index.calls != 0 || recorder.calls != 0 {
		t.Error("invalid requests must not reach the embedder, index or recorder")
	}
}

func TestIngestEmbedderFailureStopsPipeline(t *testing.T) {
	wantErr := errors.New("embedding down")
	index := &fakeIndex{}
	recorder := &fakeRecorder{}
	s := newTestService(t, index, &fakeEmbedder{err: wantErr}, recorder)

	_, err := s.Ingest(context.Background(), Request{Filename: "a.pdf", Text: "content"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Ingest() error = %v, want wrapped %v", err, wantErr)
	}
	if index.calls != 0 || recorder.calls != 0 {
		t.Error("nothing may be stored or recorded after an embedding failure")
	}
}

func TestIngestStoreFailureNotRecorded(t *testing.T) {
	index := &fakeIndex{err: fault.ErrStorage}
	recorder := &fakeRecorder{}
	s := newTestService(t, index, &fakeEmbedder{vec: []float32{1}}, recorder)

	_, err := s.Ingest(context.Background(), Request{Filename: "a.pdf", Text: "content"})
	if !errors.Is(err, fault.ErrStorage) {
		t.Errorf("Ingest() error = %v, want ErrStorage", err)
	}
	if recorder.calls != 0 {
		t.Error("a failed store must not produce an audit record")
	}
}

func TestIngestRecorderFailureSurfaces(t *testing.T) {
	index := &fakeIndex{id: "doc-1"}
	recorder := &fakeRecorder{err: fault.ErrStorage}
	s := newTestService(t, index, &fakeEmbedder{vec: []float32{1}}, recorder)

	_, err := s.Ingest(context.Background(), Request{Filename: "a.pdf", Text: "content"})
	if !errors.Is(err, fault.ErrStorage) {
		t.Errorf("Ingest() error = %v, want ErrStorage", err)
	}
	if index.calls != 1 {
		t.Errorf("index called %d times, want 1 (document stored before the log failed)", index.calls)
	}
}

func TestIngestLeavesCallerMetadataUntouched(t *testing.T) {
	index := &fakeIndex{id: "doc-1"}
	s := newTestService(t, index, &fakeEmbedder{vec: []float32{1}}, &fakeRecorder{})

	given := map[string]any{"title": "Aion"}
	_, err := s.Ingest(context.Background(), Request{
		Filename: "aion.pdf",
		Text:     "content",
		Metadata: given,
	})
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	if len(given) != 1 {
		t.Errorf("caller metadata grew to %v, want only the original key", given)
	}
	if _, ok := given["filename"]; ok {
		t.Error("filename must be injected into a copy, not the caller's map")
	}
	if index.gotDoc.Metadata["filename"] != "aion.pdf" {
		t.Errorf("stored metadata = %v, want injected filename", index.gotDoc.Metadata)
	}
}

func TestIngestKeepsExplicitID(t *testing.T) {
	index := &fakeIndex{}
	s := newTestService(t, index, &fakeEmbedder{vec: []float32{1}}, &fakeRecorder{})

	result, err := s.Ingest(context.Background(), Request{
		ID:       "my-id",
		Filename: "a.pdf",
		Text:     "content",
	})
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if result.DocID != "my-id" {
		t.Errorf("DocID = %q, want the explicit id", result.DocID)
	}
	if index.gotDoc.ID != "my-id" {
		t.Errorf("index received id %q, want my-id", index.gotDoc.ID)
	}
}
