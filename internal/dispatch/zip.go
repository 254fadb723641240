package dispatch

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// ZipDispatcher bundles the whole export into a single zip checkpoint with
// one `temporal/name.txt` entry per bucket. The archive is written to a
// temp file and renamed into place on Close, so an aborted run never leaves
// a truncated checkpoint behind.
type ZipDispatcher struct {
	path    string
	tmpPath string
	f       *os.File
	zw      *zip.Writer
	index   *IndexWriter
}

func NewZipDispatcher(path string, attrs []string) (*ZipDispatcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp_checkpoint_*")
	if err != nil {
		return nil, fmt.Errorf("create checkpoint temp file: %w", err)
	}

	index, err := NewIndexWriter(dir, attrs)
	if err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}

	return &ZipDispatcher{
		path:    path,
		tmpPath: f.Name(),
		f:       f,
		zw:      zip.NewWriter(f),
		index:   index,
	}, nil
}

func (d *ZipDispatcher) Dispatch(ctx context.Context, temporal string, buckets []*domain.DispatchBucket) error {
	folder := sanitizeFilenameComponent(temporal)
	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := folder + "/" + documentName(temporal, b) + ".txt"
		w, err := d.zw.Create(entry)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", entry, err)
		}
		if _, err := w.Write([]byte(bucketText(b))); err != nil {
			return fmt.Errorf("write zip entry %s: %w", entry, err)
		}
		if err := d.index.Append(b, entry); err != nil {
			return err
		}
	}
	return nil
}

// Close finalizes the archive, syncs it to disk, and moves it to its final
// path. The temp file is removed on any failure.
func (d *ZipDispatcher) Close() error {
	defer os.Remove(d.tmpPath)

	indexErr := d.index.Close()

	if err := d.zw.Close(); err != nil {
		d.f.Close()
		return fmt.Errorf("finalize checkpoint archive: %w", err)
	}
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return fmt.Errorf("sync checkpoint archive: %w", err)
	}
	if err := d.f.Close(); err != nil {
		return fmt.Errorf("close checkpoint archive: %w", err)
	}
	if err := os.Rename(d.tmpPath, d.path); err != nil {
		return fmt.Errorf("publish checkpoint archive: %w", err)
	}
	return indexErr
}
