package domain

// DispatchBucket accumulates segments sharing one temporal bucket and one
// grouping key. Created lazily the first time a (temporal, hash) pair is
// seen, appended to while the temporal bucket is open, and dropped after
// being yielded to the dispatcher.
type DispatchBucket struct {
	TemporalValue string
	GroupValues   map[string]string
	GroupName     string
	GroupHash     string
	Segments      []Segment
	TokenCount    int
}

// Append adds a segment to the bucket and advances the running token count.
func (b *DispatchBucket) Append(seg Segment) {
	b.Segments = append(b.Segments, seg)
	b.TokenCount += seg.TokenCount
}
