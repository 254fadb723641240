// Package dispatch persists flushed bucket sets into downstream export
// formats: plain-text folders, zip checkpoints, tagged CSV frames, and VRT.
// Every dispatcher also maintains a tab-separated document index alongside
// its payload.
package dispatch

import (
	"context"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// Dispatcher consumes the bucket sets flushed by the merger. Dispatch may
// be called many times; Close must flush and release file handles on both
// normal completion and error exit.
type Dispatcher interface {
	Dispatch(ctx context.Context, temporal string, buckets []*domain.DispatchBucket) error
	Close() error
}

// Nop discards every bucket without touching the filesystem, for dry runs.
type Nop struct{}

func (Nop) Dispatch(context.Context, string, []*domain.DispatchBucket) error { return nil }
func (Nop) Close() error                                                     { return nil }

// documentName returns the export name of one bucket: the group slug where
// grouping attributes are in play, the segment-derived group name otherwise,
// prefixed with the temporal bucket to stay unique across the run.
func documentName(temporal string, b *domain.DispatchBucket) string {
	name := b.GroupName
	if name == "" {
		name = b.GroupHash
	}
	return sanitizeFilenameComponent(temporal + "_" + name)
}
