package dispatch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// FrameDispatcher writes each bucket as a tab-separated frame built from
// the segments' tagged payloads. The header row of the first segment names
// the columns; later segments contribute data rows only.
type FrameDispatcher struct {
	dir   string
	index *IndexWriter
}

func NewFrameDispatcher(dir string, attrs []string) (*FrameDispatcher, error) {
	index, err := NewIndexWriter(dir, attrs)
	if err != nil {
		return nil, err
	}
	return &FrameDispatcher{dir: dir, index: index}, nil
}

func (d *FrameDispatcher) Dispatch(ctx context.Context, temporal string, buckets []*domain.DispatchBucket) error {
	folder := sanitizeFilenameComponent(temporal)
	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := bucketFrame(b)
		if err != nil {
			return fmt.Errorf("build frame for %s: %w", b.GroupHash, err)
		}

		filename := filepath.Join(folder, documentName(temporal, b)+".csv")
		if err := writeFileAtomic(filepath.Join(d.dir, filename), data, 0o644); err != nil {
			return fmt.Errorf("write frame %s: %w", filename, err)
		}
		if err := d.index.Append(b, filename); err != nil {
			return err
		}
	}
	return nil
}

func (d *FrameDispatcher) Close() error {
	return d.index.Close()
}

// bucketFrame merges tagged payloads into one tab-separated frame, keeping
// a single header row. Payloads with no data rows contribute nothing.
func bucketFrame(b *domain.DispatchBucket) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'

	wroteHeader := false
	for _, seg := range b.Segments {
		for i, line := range strings.Split(seg.Data, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if i == 0 {
				if wroteHeader {
					continue
				}
				wroteHeader = true
			}
			if err := w.Write(strings.Split(line, "\t")); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
