package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// TextDispatcher writes each bucket as a plain-text file under a folder per
// temporal bucket, and keeps the document index next to the folders.
type TextDispatcher struct {
	dir   string
	index *IndexWriter
}

func NewTextDispatcher(dir string, attrs []string) (*TextDispatcher, error) {
	index, err := NewIndexWriter(dir, attrs)
	if err != nil {
		return nil, err
	}
	return &TextDispatcher{dir: dir, index: index}, nil
}

func (d *TextDispatcher) Dispatch(ctx context.Context, temporal string, buckets []*domain.DispatchBucket) error {
	folder := sanitizeFilenameComponent(temporal)
	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			return err
		}

		filename := filepath.Join(folder, documentName(temporal, b)+".txt")
		data := bucketText(b)
		if err := writeFileAtomic(filepath.Join(d.dir, filename), []byte(data), 0o644); err != nil {
			return fmt.Errorf("write text document %s: %w", filename, err)
		}
		if err := d.index.Append(b, filename); err != nil {
			return err
		}
	}
	return nil
}

func (d *TextDispatcher) Close() error {
	return d.index.Close()
}

// bucketText joins segment payloads into one document body. Segments keep
// their accumulation order; a trailing newline terminates the document.
func bucketText(b *domain.DispatchBucket) string {
	var sb strings.Builder
	for _, seg := range b.Segments {
		text := strings.TrimRight(seg.Data, "\n")
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
