// Package merge regroups a temporally ordered segment stream into
// dispatch-ready buckets keyed by a temporal bucket crossed with a
// categorical grouping key.
package merge

import (
	"fmt"
	"strconv"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// Temporal key names accepted by NewTemporalCategorizer.
const (
	TemporalProtocol = "protocol"
	TemporalYear     = "year"
	TemporalLustrum  = "lustrum"
	TemporalDecade   = "decade"
)

// YearRange is one labeled custom temporal bucket with inclusive bounds.
type YearRange struct {
	Label string
	From  int
	To    int
}

// TemporalCategorizer maps a segment's (protocol, year) to a bucket label.
// Categorization is a pure function of its inputs; it either succeeds or
// fails loudly, never falling back silently.
type TemporalCategorizer struct {
	key    string
	ranges []YearRange
}

// NewTemporalCategorizer builds a categorizer for one of the named schemes.
// An empty key or "document" is an alias for the per-protocol scheme.
func NewTemporalCategorizer(key string) (*TemporalCategorizer, error) {
	switch key {
	case "", "document", TemporalProtocol:
		return &TemporalCategorizer{key: TemporalProtocol}, nil
	case TemporalYear, TemporalLustrum, TemporalDecade:
		return &TemporalCategorizer{key: key}, nil
	}
	return nil, fmt.Errorf("temporal key %q: %w", key, domain.ErrBadTemporalKey)
}

// NewCustomCategorizer builds a categorizer over caller-supplied labeled
// year ranges. When ranges overlap, the earliest declared range wins.
func NewCustomCategorizer(ranges []YearRange) (*TemporalCategorizer, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("custom temporal ranges empty: %w", domain.ErrBadTemporalKey)
	}
	for _, r := range ranges {
		if r.Label == "" || r.From > r.To {
			return nil, fmt.Errorf("custom temporal range %+v: %w", r, domain.ErrBadTemporalKey)
		}
	}
	return &TemporalCategorizer{key: "custom", ranges: ranges}, nil
}

// PerProtocol reports whether every protocol forms its own bucket.
func (c *TemporalCategorizer) PerProtocol() bool { return c.key == TemporalProtocol }

// Categorize returns the bucket label for a segment of the given protocol
// and year. A year no custom range covers is a hard error.
func (c *TemporalCategorizer) Categorize(protocolName string, year int) (string, error) {
	switch c.key {
	case TemporalProtocol:
		return protocolName, nil
	case TemporalYear:
		return strconv.Itoa(year), nil
	case TemporalLustrum:
		low := year - year%5
		return fmt.Sprintf("%d-%d", low, low+4), nil
	case TemporalDecade:
		low := year - year%10
		return fmt.Sprintf("%d-%d", low, low+9), nil
	case "custom":
		for _, r := range c.ranges {
			if year >= r.From && year <= r.To {
				return r.Label, nil
			}
		}
		return "", fmt.Errorf("year %d matches no custom range: %w", year, domain.ErrBadTemporalKey)
	}
	return "", fmt.Errorf("temporal key %q: %w", c.key, domain.ErrBadTemporalKey)
}
