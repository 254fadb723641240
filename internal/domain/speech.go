package domain

import (
	"fmt"
	"strings"
)

// Speech is a maximal run of utterances attributed to one speaker, produced
// by segmentation. It owns its utterances exclusively: after segmentation an
// utterance belongs to exactly one speech.
type Speech struct {
	// SpeechIndex is the 1-based position of the speech within its protocol.
	SpeechIndex      int
	SpeakerID        string
	FirstUtteranceID string
	Utterances       []Utterance
}

// NewSpeech creates a speech from a non-empty utterance run. The speaker id
// and first utterance id are taken from the first utterance.
func NewSpeech(index int, utterances []Utterance) Speech {
	s := Speech{SpeechIndex: index, Utterances: utterances}
	if len(utterances) > 0 {
		s.SpeakerID = utterances[0].SpeakerID
		s.FirstUtteranceID = utterances[0].ID
	}
	if s.SpeakerID == "" {
		s.SpeakerID = UnknownSpeaker
	}
	return s
}

// Text returns all utterance texts joined with newlines, trimmed.
func (s *Speech) Text() string {
	parts := make([]string, 0, len(s.Utterances))
	for i := range s.Utterances {
		if t := s.Utterances[i].Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// TaggedText returns the tagged payload of the whole speech: the first
// utterance's payload in full, followed by the payloads of subsequent
// utterances with their shared header line stripped.
func (s *Speech) TaggedText() string {
	parts := make([]string, 0, len(s.Utterances))
	for i := range s.Utterances {
		payload := s.Utterances[i].TaggedText
		if payload == "" {
			continue
		}
		if len(parts) > 0 {
			payload = stripHeaderLine(payload)
		}
		if payload != "" {
			parts = append(parts, payload)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// PageNumber returns the page the speech starts on, or 0 for an empty speech.
func (s *Speech) PageNumber() int {
	if len(s.Utterances) == 0 {
		return 0
	}
	return s.Utterances[0].PageNumber
}

// SpeakerNoteID returns the speaker note attached to the first utterance.
func (s *Speech) SpeakerNoteID() string {
	if len(s.Utterances) == 0 {
		return MissingSpeakerNote
	}
	return s.Utterances[0].SpeakerNoteID
}

// Validate enforces speaker homogeneity: every owned utterance carries the
// speech's speaker id.
func (s *Speech) Validate() error {
	for i := range s.Utterances {
		who := s.Utterances[i].SpeakerID
		if who == "" {
			who = UnknownSpeaker
		}
		if who != s.SpeakerID {
			return fmt.Errorf("speech %d (utterance %s has speaker %q, speech has %q): %w",
				s.SpeechIndex, s.Utterances[i].ID, who, s.SpeakerID, ErrMixedSpeakers)
		}
	}
	return nil
}

// stripHeaderLine removes everything up to and including the first newline.
// Tagged payloads repeat one shared header line; only the first utterance of
// a speech keeps it.
func stripHeaderLine(payload string) string {
	if i := strings.IndexByte(payload, '\n'); i >= 0 {
		return payload[i+1:]
	}
	return ""
}
