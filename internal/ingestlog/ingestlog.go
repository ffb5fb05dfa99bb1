// Package ingestlog keeps an append-only audit trail of every document
// ingestion in a JSON file, plus a human-readable markdown report derived
// from it.
//
// The log file is rewritten atomically (temp file + fsync + rename) under
// both an in-process mutex and a cross-process file lock, so concurrent
// appends from multiple goroutines or processes never lose records.
package ingestlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/log"
)

const (
	logFileName    = "ingestion_log.json"
	reportFileName = "ingestion_report.md"
	lockFileName   = "ingestion_log.lock"
)

// Record is one ingestion event. Records are never updated or removed; the
// log is a historical audit trail, so deleting a document from the index
// leaves its record in place.
type Record struct {
	Filename      string         `json:"filename"`
	DocID         string         `json:"doc_id"`
	IngestionDate time.Time      `json:"ingestion_date"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	FileHash      string         `json:"file_hash,omitempty"`
	ProcessedPath string         `json:"processed_path,omitempty"`
}

// logFile is the on-disk shape of the log.
type logFile struct {
	LastUpdated time.Time `json:"last_updated"`
	Documents   []Record  `json:"documents"`
}

// Tracker reads and appends ingestion records.
type Tracker struct {
	mu       sync.Mutex
	lock     *flock.Flock
	path     string
	repoPath string
	logger   log.Logger
	now      func() time.Time
}

// New creates a Tracker storing its files under dir, creating dir when
// absent.
func New(dir string, logger log.Logger) (*Tracker, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ingestion log directory: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Tracker{
		lock:     flock.New(filepath.Join(dir, lockFileName)),
		path:     filepath.Join(dir, logFileName),
		repoPath: filepath.Join(dir, reportFileName),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Append adds rec to the log. The record must carry a filename and a
// document id; the ingestion date defaults to now when zero.
func (t *Tracker) Append(ctx context.Context, rec Record) error {
	if rec.Filename == "" {
		return fmt.Errorf("%w: record filename must not be empty", fault.ErrValidation)
	}
	if rec.DocID == "" {
		return fmt.Errorf("%w: record doc id must not be empty", fault.ErrValidation)
	}
	if rec.IngestionDate.IsZero() {
		rec.IngestionDate = t.now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lockFile(ctx); err != nil {
		return err
	}
	defer t.unlockFile()

	lf, err := t.load()
	if err != nil {
		return err
	}
	lf.Documents = append(lf.Documents, rec)
	lf.LastUpdated = t.now().UTC()

	if err := t.save(lf); err != nil {
		return err
	}
	t.logger.Debug("appended ingestion record", "filename", rec.Filename, "doc_id", rec.DocID)
	return nil
}

// Records returns every record in the log in append order.
func (t *Tracker) Records(ctx context.Context) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lockFile(ctx); err != nil {
		return nil, err
	}
	defer t.unlockFile()

	lf, err := t.load()
	if err != nil {
		return nil, err
	}
	return lf.Documents, nil
}

// FindByID returns the first record for the given document id.
// Returns fault.ErrNotFound when absent.
func (t *Tracker) FindByID(ctx context.Context, docID string) (*Record, error) {
	return t.find(ctx, func(r Record) bool { return r.DocID == docID },
		fmt.Sprintf("document %q", docID))
}

// FindByFilename returns the first record for the given filename.
// Returns fault.ErrNotFound when absent.
func (t *Tracker) FindByFilename(ctx context.Context, filename string) (*Record, error) {
	return t.find(ctx, func(r Record) bool { return r.Filename == filename },
		fmt.Sprintf("filename %q", filename))
}

func (t *Tracker) find(ctx context.Context, match func(Record) bool, what string) (*Record, error) {
	records, err := t.Records(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if match(records[i]) {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no ingestion record for %s", fault.ErrNotFound, what)
}

// Report renders the log as a markdown document grouped by the "type"
// metadata value, "unknown" when absent. Groups and their entries are
// sorted, so the report is deterministic for a given log.
func (t *Tracker) Report(ctx context.Context) (string, error) {
	records, err := t.Records(ctx)
	if err != nil {
		return "", err
	}

	groups := make(map[string][]Record)
	for _, rec := range records {
		docType := metadataValue(rec.Metadata, "type", "unknown")
		groups[docType] = append(groups[docType], rec)
	}

	types := make([]string, 0, len(groups))
	for docType := range groups {
		types = append(types, docType)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("# Ingested Documents Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", t.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total documents: %d\n", len(records))

	for _, docType := range types {
		fmt.Fprintf(&b, "\n## Type: %s\n\n", docType)

		entries := groups[docType]
		sort.SliceStable(entries, func(i, j int) bool {
			return reportTitle(entries[i]) < reportTitle(entries[j])
		})
		for _, rec := range entries {
			fmt.Fprintf(&b, "- **%s**", reportTitle(rec))
			if author := metadataValue(rec.Metadata, "author", ""); author != "" {
				fmt.Fprintf(&b, " by %s", author)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "  - File: %s\n", rec.Filename)
			fmt.Fprintf(&b, "  - Document ID: %s\n", rec.DocID)
			fmt.Fprintf(&b, "  - Ingested: %s\n", rec.IngestionDate.UTC().Format(time.RFC3339))
		}
	}
	return b.String(), nil
}

// SaveReport writes the markdown report next to the log file and returns
// its path.
func (t *Tracker) SaveReport(ctx context.Context) (string, error) {
	report, err := t.Report(ctx)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(t.repoPath, []byte(report)); err != nil {
		return "", fmt.Errorf("writing ingestion report: %w", err)
	}
	t.logger.Info("wrote ingestion report", "path", t.repoPath)
	return t.repoPath, nil
}

// lockFile takes the cross-process lock, polling until ctx is done.
func (t *Tracker) lockFile(ctx context.Context) error {
	locked, err := t.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("%w: acquiring ingestion log lock: %v", fault.ErrStorage, err)
	}
	if !locked {
		return fmt.Errorf("%w: ingestion log is locked by another process", fault.ErrStorage)
	}
	return nil
}

func (t *Tracker) unlockFile() {
	if err := t.lock.Unlock(); err != nil {
		t.logger.Warn("failed to release ingestion log lock", "error", err)
	}
}

// load reads the log file. A missing file is an empty log.
func (t *Tracker) load() (*logFile, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &logFile{Documents: []Record{}}, nil
		}
		return nil, fmt.Errorf("%w: reading ingestion log: %v", fault.ErrStorage, err)
	}

	var lf logFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("%w: parsing ingestion log: %v", fault.ErrStorage, err)
	}
	if lf.Documents == nil {
		lf.Documents = []Record{}
	}
	return &lf, nil
}

// save writes the log file atomically.
func (t *Tracker) save(lf *logFile) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding ingestion log: %v", fault.ErrStorage, err)
	}
	if err := writeAtomic(t.path, data); err != nil {
		return fmt.Errorf("%w: writing ingestion log: %v", fault.ErrStorage, err)
	}
	return nil
}

// writeAtomic writes data via a temp file in the same directory, fsyncs it
// and renames it over path. Readers never observe a partially written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// metadataValue reads a metadata value as a string with a fallback.
func metadataValue(metadata map[string]any, key, fallback string) string {
	value, ok := metadata[key]
	if !ok || value == nil {
		return fallback
	}
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// reportTitle is the display name of a record: its title metadata when
// present, its filename otherwise.
func reportTitle(rec Record) string {
	return metadataValue(rec.Metadata, "title", rec.Filename)
}
