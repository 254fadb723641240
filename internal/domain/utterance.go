package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownSpeaker is the sentinel speaker id for unattributed utterances.
// Parsers normalize empty speaker attributes to this value, so segmentation
// never sees an empty speaker id.
const UnknownSpeaker = "unknown"

// MissingSpeakerNote is the sentinel id for utterances with no preceding
// speaker-introduction note.
const MissingSpeakerNote = "missing"

// Utterance is one recorded turn of speech, the atomic unit below which no
// further splitting occurs. Created once during parsing and immutable
// thereafter, except that TaggedText and SpeakerNoteID may be back-filled by
// the external tagger / metadata-linking step before segmentation runs.
type Utterance struct {
	ID            string
	SpeakerID     string
	PrevID        *string
	NextID        *string
	PageNumber    int
	Paragraphs    []string
	TaggedText    string
	SpeakerNoteID string
}

// Text returns the utterance paragraphs joined with newlines, trimmed.
func (u *Utterance) Text() string {
	return strings.TrimSpace(strings.Join(u.Paragraphs, "\n"))
}

// HasPrev reports whether the utterance continues a backward chain.
func (u *Utterance) HasPrev() bool { return u.PrevID != nil && *u.PrevID != "" }

// HasNext reports whether the utterance opens a forward chain.
func (u *Utterance) HasNext() bool { return u.NextID != nil && *u.NextID != "" }

// IsUnknown reports whether the utterance is unattributed.
func (u *Utterance) IsUnknown() bool {
	return u.SpeakerID == "" || u.SpeakerID == UnknownSpeaker
}

// Validate checks the linkage invariant: prev and next are never both set.
func (u *Utterance) Validate() error {
	if u.HasPrev() && u.HasNext() {
		return fmt.Errorf("utterance %s: %w", u.ID, ErrCorruptLinkage)
	}
	return nil
}

// Protocol is one parsed source document (one parliamentary sitting record).
type Protocol struct {
	Name         string
	Date         time.Time
	Utterances   []Utterance
	SpeakerNotes map[string]string
}

// Year returns the sitting year of the protocol.
func (p *Protocol) Year() int { return p.Date.Year() }

// Text returns every utterance text joined with newlines, trimmed.
func (p *Protocol) Text() string {
	parts := make([]string, 0, len(p.Utterances))
	for i := range p.Utterances {
		if t := p.Utterances[i].Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
