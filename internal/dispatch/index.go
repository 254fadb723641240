package dispatch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// IndexWriter maintains the tab-separated document index written alongside
// every export: one row per dispatched document with its identity, output
// filename, token count, and the grouping attribute values it was built
// from.
type IndexWriter struct {
	f     *os.File
	w     *csv.Writer
	attrs []string
}

// NewIndexWriter creates documents.tsv in dir and writes the header row.
// The attrs are the grouping attribute names, in slug order, appended as
// extra columns.
func NewIndexWriter(dir string, attrs []string) (*IndexWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "documents.tsv"))
	if err != nil {
		return nil, fmt.Errorf("create document index: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	header := append([]string{"document_id", "document_name", "filename", "n_tokens"}, attrs...)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write index header: %w", err)
	}

	return &IndexWriter{f: f, w: w, attrs: attrs}, nil
}

// Append records one dispatched document.
func (iw *IndexWriter) Append(bucket *domain.DispatchBucket, filename string) error {
	name := bucket.GroupName
	if name == "" {
		name = bucket.GroupHash
	}
	row := []string{bucket.GroupHash, name, filename, strconv.Itoa(bucket.TokenCount)}
	for _, attr := range iw.attrs {
		row = append(row, bucket.GroupValues[attr])
	}
	if err := iw.w.Write(row); err != nil {
		return fmt.Errorf("write index row: %w", err)
	}
	return nil
}

// Close flushes and closes the index file.
func (iw *IndexWriter) Close() error {
	iw.w.Flush()
	if err := iw.w.Error(); err != nil {
		iw.f.Close()
		return fmt.Errorf("flush document index: %w", err)
	}
	return iw.f.Close()
}
