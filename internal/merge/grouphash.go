package merge

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// attributeSource names the entity a grouping attribute is read from.
type attributeSource int

const (
	fromSpeaker attributeSource = iota
	fromIndex
	fromSegment
)

// attributeSources is the closed vocabulary of grouping attribute names.
var attributeSources = map[string]attributeSource{
	"person_id":          fromSpeaker,
	"gender_id":          fromSpeaker,
	"party_id":           fromSpeaker,
	"office_type_id":     fromSpeaker,
	"sub_office_type_id": fromSpeaker,

	"chamber_id": fromIndex,
	"filename":   fromIndex,

	"who":             fromSegment,
	"year":            fromSegment,
	"protocol_name":   fromSegment,
	"name":            fromSegment,
	"id":              fromSegment,
	"speaker_note_id": fromSegment,
	"page_number":     fromSegment,
}

// GroupKey is the categorical grouping identity of one bucket: the attribute
// values it was built from, a human-readable slug, and a stable digest.
type GroupKey struct {
	Values map[string]string
	Slug   string
	Digest string
}

// GroupingHasher computes stable group keys from a fixed attribute set.
// Attribute names are resolved against the vocabulary at construction time;
// an unrecognized name fails before any data is processed.
type GroupingHasher struct {
	// attrs is kept sorted so slugs and digests are independent of the
	// order the caller listed the attributes in.
	attrs       []string
	placeholder string
}

// NewGroupingHasher builds a hasher over the given attribute names.
// Attributes no known entity defines are rejected. The placeholder is
// substituted for attributes whose owning entity is absent or empty, so
// every requested key always appears in the output values.
func NewGroupingHasher(attrs []string, placeholder string) (*GroupingHasher, error) {
	if placeholder == "" {
		placeholder = domain.UnknownSpeaker
	}
	sorted := make([]string, 0, len(attrs))
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if _, ok := attributeSources[a]; !ok {
			return nil, fmt.Errorf("grouping attribute %q: %w", a, domain.ErrUnknownAttribute)
		}
		if !seen[a] {
			seen[a] = true
			sorted = append(sorted, a)
		}
	}
	sort.Strings(sorted)
	return &GroupingHasher{attrs: sorted, placeholder: placeholder}, nil
}

// Attrs returns the attribute names in slug order.
func (h *GroupingHasher) Attrs() []string { return h.attrs }

// Empty reports whether the hasher groups on no attributes at all. In that
// mode keys are derived from segment identity, one bucket per segment.
func (h *GroupingHasher) Empty() bool { return len(h.attrs) == 0 }

// Key computes the group key of one segment. The speaker info and index
// record may be nil; their attributes then resolve to the placeholder.
func (h *GroupingHasher) Key(seg *domain.Segment, rec *domain.SourceIndexRecord) GroupKey {
	if h.Empty() {
		// Identity grouping: every segment is its own bucket.
		return GroupKey{
			Values: map[string]string{},
			Slug:   seg.Name,
			Digest: digest(seg.Name),
		}
	}

	values := make(map[string]string, len(h.attrs))
	parts := make([]string, 0, len(h.attrs))
	for _, attr := range h.attrs {
		v := h.resolve(attr, seg, rec)
		values[attr] = v
		parts = append(parts, slugify(v))
	}
	slug := strings.Join(parts, "_")
	return GroupKey{Values: values, Slug: slug, Digest: digest(slug)}
}

func (h *GroupingHasher) resolve(attr string, seg *domain.Segment, rec *domain.SourceIndexRecord) string {
	var v string
	switch attributeSources[attr] {
	case fromSpeaker:
		if seg.Speaker != nil {
			switch attr {
			case "person_id":
				v = seg.Speaker.PersonID
			case "gender_id":
				v = seg.Speaker.GenderID
			case "party_id":
				v = seg.Speaker.PartyID
			case "office_type_id":
				v = seg.Speaker.OfficeTypeID
			case "sub_office_type_id":
				v = seg.Speaker.SubOfficeTypeID
			}
		}
	case fromIndex:
		if rec != nil {
			switch attr {
			case "chamber_id":
				v = rec.ChamberID
			case "filename":
				v = rec.Filename
			}
		}
	case fromSegment:
		switch attr {
		case "who":
			v = seg.SpeakerID
		case "year":
			v = strconv.Itoa(seg.Year)
		case "protocol_name":
			v = seg.ProtocolName
		case "name":
			v = seg.Name
		case "id":
			v = seg.ID
		case "speaker_note_id":
			v = seg.SpeakerNoteID
		case "page_number":
			v = strconv.Itoa(seg.PageNumber)
		}
	}
	if v == "" {
		return h.placeholder
	}
	return v
}

func slugify(v string) string {
	return strings.ReplaceAll(strings.ToLower(v), " ", "_")
}

func digest(slug string) string {
	sum := md5.Sum([]byte(slug))
	return hex.EncodeToString(sum[:])
}
