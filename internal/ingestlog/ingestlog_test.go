package ingestlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/log"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := New(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return tracker
}

func TestAppendAndRecords(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	rec := Record{
		Filename: "aion.pdf",
		DocID:    "doc-1",
		Metadata: map[string]any{"title": "Aion", "type": "book"},
		FileHash: "abc123",
	}
	if err := tracker.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	records, err := tracker.Records(ctx)
	if err != nil {
		t.Fatalf("Records() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Records() returned %d records, want 1", len(records))
	}
	got := records[0]
	if got.Filename != "aion.pdf" || got.DocID != "doc-1" || got.FileHash != "abc123" {
		t.Errorf("Records()[0] = %+v, want the appended record", got)
	}
	if got.IngestionDate.IsZero() {
		t.Error("Append() must default a zero ingestion date to now")
	}
}

func TestAppendValidation(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  Record
	}{
		{"missing filename", Record{DocID: "doc-1"}},
		{"missing doc id", Record{Filename: "a.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tracker.Append(ctx, tt.rec); !errors.Is(err, fault.ErrValidation) {
				t.Errorf("Append() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := Record{Filename: fmt.Sprintf("file-%d.pdf", i), DocID: fmt.Sprintf("doc-%d", i)}
		if err := tracker.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	records, err := tracker.Records(ctx)
	if err != nil {
		t.Fatalf("Records() error: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("Records() returned %d records, want 5", len(records))
	}
	for i, rec := range records {
		if want := fmt.Sprintf("doc-%d", i); rec.DocID != want {
			t.Errorf("Records()[%d].DocID = %q, want %q", i, rec.DocID, want)
		}
	}
}

func TestFindByIDAndFilename(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	for _, rec := range []Record{
		{Filename: "first.pdf", DocID: "doc-1"},
		{Filename: "second.pdf", DocID: "doc-2"},
		{Filename: "second.pdf", DocID: "doc-3"}, // re-ingested file
	} {
		if err := tracker.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	byID, err := tracker.FindByID(ctx, "doc-2")
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if byID.Filename != "second.pdf" {
		t.Errorf("FindByID(doc-2).Filename = %q, want second.pdf", byID.Filename)
	}

	byName, err := tracker.FindByFilename(ctx, "second.pdf")
	if err != nil {
		t.Fatalf("FindByFilename() error: %v", err)
	}
	if byName.DocID != "doc-2" {
		t.Errorf("FindByFilename(second.pdf).DocID = %q, want the first match doc-2", byName.DocID)
	}

	if _, err := tracker.FindByID(ctx, "missing"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("FindByID(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := tracker.FindByFilename(ctx, "missing.pdf"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("FindByFilename(missing.pdf) error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentAppends(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := Record{Filename: fmt.Sprintf("f-%d.pdf", i), DocID: fmt.Sprintf("d-%d", i)}
			if err := tracker.Append(ctx, rec); err != nil {
				t.Errorf("Append() error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	records, err := tracker.Records(ctx)
	if err != nil {
		t.Fatalf("Records() error: %v", err)
	}
	if len(records) != writers {
		t.Fatalf("Records() returned %d records after %d concurrent appends", len(records), writers)
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		seen[rec.DocID] = true
	}
	for i := 0; i < writers; i++ {
		if !seen[fmt.Sprintf("d-%d", i)] {
			t.Errorf("record d-%d lost in concurrent append", i)
		}
	}

	// The log on disk must still be valid JSON.
	data, err := os.ReadFile(filepath.Join(filepath.Dir(tracker.path), logFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	var lf logFile
	if err := json.Unmarshal(data, &lf); err != nil {
		t.Fatalf("log file is not valid JSON: %v", err)
	}
}

func TestReportGroupsAndSorts(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	for _, rec := range []Record{
		{Filename: "z.pdf", DocID: "d1", Metadata: map[string]any{"type": "book", "title": "Zarathustra", "author": "Nietzsche"}},
		{Filename: "a.pdf", DocID: "d2", Metadata: map[string]any{"type": "book", "title": "Aion", "author": "Jung"}},
		{Filename: "notes.md", DocID: "d3", Metadata: map[string]any{"type": "article"}},
		{Filename: "mystery.txt", DocID: "d4"},
	} {
		if err := tracker.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	report, err := tracker.Report(ctx)
	if err != nil {
		t.Fatalf("Report() error: %v", err)
	}

	for _, want := range []string{
		"# Ingested Documents Report",
		"Total documents: 4",
		"## Type: article",
		"## Type: book",
		"## Type: unknown",
		"**Aion** by Jung",
		"**Zarathustra** by Nietzsche",
		"**mystery.txt**", // title falls back to filename
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	// Types sorted alphabetically, titles sorted within the book group.
	if strings.Index(report, "## Type: article") > strings.Index(report, "## Type: book") {
		t.Error("report groups not sorted by type")
	}
	if strings.Index(report, "Aion") > strings.Index(report, "Zarathustra") {
		t.Error("book entries not sorted by title")
	}
}

func TestSaveReport(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	if err := tracker.Append(ctx, Record{Filename: "a.pdf", DocID: "d1"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	path, err := tracker.SaveReport(ctx)
	if err != nil {
		t.Fatalf("SaveReport() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.Contains(string(data), "# Ingested Documents Report") {
		t.Errorf("report file missing header:\n%s", data)
	}
}

func TestLoadCorruptLog(t *testing.T) {
	dir := t.TempDir()
	tracker, err := New(dir, log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, logFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seeding corrupt log: %v", err)
	}

	if _, err := tracker.Records(context.Background()); !errors.Is(err, fault.ErrStorage) {
		t.Errorf("Records() on corrupt log error = %v, want ErrStorage", err)
	}
}
