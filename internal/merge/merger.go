package merge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// SourceIndex resolves a protocol name to its corpus catalogue record.
type SourceIndex interface {
	Lookup(protocolName string) (*domain.SourceIndexRecord, bool)
}

// SourceIndexMap is an in-memory SourceIndex.
type SourceIndexMap map[string]domain.SourceIndexRecord

func (m SourceIndexMap) Lookup(protocolName string) (*domain.SourceIndexRecord, bool) {
	rec, ok := m[protocolName]
	if !ok {
		return nil, false
	}
	return &rec, true
}

// FlushFunc receives the full bucket set of one finished temporal bucket.
// Buckets arrive in creation order. An error aborts the merge.
type FlushFunc func(ctx context.Context, temporal string, buckets []*domain.DispatchBucket) error

// Merger is the streaming reducer at the end of the pipeline. It consumes a
// segment stream sorted by temporal bucket, keeps one open bucket per group
// key, and hands the whole bucket set to the sink whenever the temporal
// bucket advances, plus once at stream end.
//
// The merger never sorts. Sortedness is the caller's precondition, and it is
// machine-checked: a stream that revisits a closed temporal bucket fails
// with ErrUnsortedStream instead of silently misgrouping.
type Merger struct {
	log         *slog.Logger
	categorizer *TemporalCategorizer
	hasher      *GroupingHasher
	index       SourceIndex

	current string
	started bool
	buckets map[string]*domain.DispatchBucket
	order   []string
	closed  map[string]bool
}

// NewMerger wires a merger. Grouping on attributes at protocol granularity
// is rejected here: a whole-protocol segment is alone in its temporal
// bucket, so splitting it by attributes is a configuration mistake.
func NewMerger(
	log *slog.Logger,
	categorizer *TemporalCategorizer,
	hasher *GroupingHasher,
	index SourceIndex,
	granularity domain.Granularity,
) (*Merger, error) {
	if !granularity.IsValid() {
		return nil, fmt.Errorf("granularity %q: %w", granularity, domain.ErrValidation)
	}
	if granularity == domain.GranularityProtocol && !hasher.Empty() {
		return nil, fmt.Errorf("grouping attributes %v at protocol granularity: %w",
			hasher.Attrs(), domain.ErrValidation)
	}
	return &Merger{
		log:         log,
		categorizer: categorizer,
		hasher:      hasher,
		index:       index,
		buckets:     make(map[string]*domain.DispatchBucket),
		closed:      make(map[string]bool),
	}, nil
}

// Run consumes the stream until it closes or ctx is cancelled, calling sink
// once per finished temporal bucket. Segments missing from the source index
// are logged and skipped; every other failure is logged with its segment
// context and returned.
func (m *Merger) Run(ctx context.Context, segments <-chan domain.Segment, sink FlushFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seg, ok := <-segments:
			if !ok {
				return m.finish(ctx, sink)
			}
			if err := m.consume(ctx, seg, sink); err != nil {
				m.log.Error("merge failed",
					slog.String("segment", seg.ID),
					slog.String("protocol", seg.ProtocolName),
					slog.Any("error", err),
				)
				return err
			}
		}
	}
}

// Merge is Run over an in-memory slice.
func (m *Merger) Merge(ctx context.Context, segments []domain.Segment, sink FlushFunc) error {
	ch := make(chan domain.Segment)
	go func() {
		defer close(ch)
		for _, seg := range segments {
			select {
			case ch <- seg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return m.Run(ctx, ch, sink)
}

func (m *Merger) consume(ctx context.Context, seg domain.Segment, sink FlushFunc) error {
	rec, ok := m.index.Lookup(seg.ProtocolName)
	if !ok {
		// One missing catalogue entry must not abort a multi-hour batch.
		m.log.Warn("protocol missing from source index, skipping segment",
			slog.String("segment", seg.ID),
			slog.String("protocol", seg.ProtocolName),
		)
		return nil
	}

	// The driver pre-sorts the stream on the catalogue year, so bucketing
	// must key on the same year. A document date that disagrees with the
	// catalogue would otherwise revisit a closed bucket and abort the run.
	year := seg.Year
	if rec.Year != 0 {
		year = rec.Year
	}
	label, err := m.categorizer.Categorize(seg.ProtocolName, year)
	if err != nil {
		return err
	}

	if !m.started || label != m.current {
		if m.closed[label] {
			return fmt.Errorf("temporal bucket %q reopened after %q: %w",
				label, m.current, domain.ErrUnsortedStream)
		}
		if err := m.flush(ctx, sink); err != nil {
			return err
		}
		if m.started {
			m.closed[m.current] = true
		}
		m.current = label
		m.started = true
	}

	key := m.hasher.Key(&seg, rec)
	bucket, ok := m.buckets[key.Digest]
	if !ok {
		bucket = &domain.DispatchBucket{
			TemporalValue: label,
			GroupValues:   key.Values,
			GroupName:     key.Slug,
			GroupHash:     key.Digest,
		}
		m.buckets[key.Digest] = bucket
		m.order = append(m.order, key.Digest)
	}
	bucket.Append(seg)
	return nil
}

// flush hands the open bucket set to the sink and resets it. Empty state is
// a no-op, so back-to-back temporal advances never emit empty flushes.
func (m *Merger) flush(ctx context.Context, sink FlushFunc) error {
	if len(m.order) == 0 {
		return nil
	}
	out := make([]*domain.DispatchBucket, 0, len(m.order))
	for _, hash := range m.order {
		out = append(out, m.buckets[hash])
	}
	m.buckets = make(map[string]*domain.DispatchBucket)
	m.order = m.order[:0]
	return sink(ctx, m.current, out)
}

func (m *Merger) finish(ctx context.Context, sink FlushFunc) error {
	if err := m.flush(ctx, sink); err != nil {
		m.log.Error("final flush failed", slog.Any("error", err))
		return err
	}
	return nil
}
