package segment

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// Preprocessor transforms segment text before the length filter runs
// (e.g. de-indent, dehyphenate). A failure aborts the explosion.
type Preprocessor func(string) (string, error)

// Config selects what an exploder produces.
type Config struct {
	Granularity domain.Granularity
	// Strategy selects speech clustering for GranularitySpeech. Speaker-turn
	// explosion ignores it and always merges by raw speaker id.
	Strategy domain.MergeStrategy
	// MinChars drops segments whose content is not longer than this many
	// characters. 0 drops only empty segments; negative disables the filter.
	MinChars int
	// Tagged emits tagged payloads instead of plain text.
	Tagged     bool
	Preprocess Preprocessor
}

// Exploder converts parsed protocols into flat segment lists at a fixed
// granularity.
type Exploder struct {
	log *slog.Logger
	cfg Config
}

// NewExploder creates an exploder, validating granularity and strategy
// before any data is processed.
func NewExploder(log *slog.Logger, cfg Config) (*Exploder, error) {
	if !cfg.Granularity.IsValid() {
		return nil, fmt.Errorf("granularity %q: %w", cfg.Granularity, domain.ErrValidation)
	}
	if cfg.Granularity == domain.GranularitySpeech && !cfg.Strategy.IsValid() {
		return nil, fmt.Errorf("merge strategy %q: %w", cfg.Strategy, domain.ErrValidation)
	}
	return &Exploder{log: log, cfg: cfg}, nil
}

// Explode produces the segments of one protocol in document order.
func (e *Exploder) Explode(protocol *domain.Protocol) ([]domain.Segment, error) {
	var segments []domain.Segment
	var err error

	switch e.cfg.Granularity {
	case domain.GranularityProtocol:
		segments = e.protocolSegment(protocol)
	case domain.GranularitySpeech:
		segments, err = e.speechSegments(protocol, e.cfg.Strategy)
	case domain.GranularitySpeakerTurn:
		segments, err = e.speechSegments(protocol, domain.MergeBySpeaker)
	case domain.GranularityUtterance:
		segments = e.utteranceSegments(protocol)
	case domain.GranularityParagraph:
		segments = e.paragraphSegments(protocol)
	default:
		return nil, fmt.Errorf("granularity %q: %w", e.cfg.Granularity, domain.ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	return e.finish(segments)
}

// finish applies preprocessing and the uniform length filter.
func (e *Exploder) finish(segments []domain.Segment) ([]domain.Segment, error) {
	out := segments[:0]
	for _, seg := range segments {
		if e.cfg.Preprocess != nil {
			data, err := e.cfg.Preprocess(seg.Data)
			if err != nil {
				return nil, fmt.Errorf("preprocess segment %s: %w", seg.ID, err)
			}
			seg.Data = data
		}
		if e.cfg.MinChars >= 0 && len(seg.Data) <= e.cfg.MinChars {
			continue
		}
		seg.TokenCount = tokenCount(seg.Data, e.cfg.Tagged)
		out = append(out, seg)
	}
	return out, nil
}

func (e *Exploder) protocolSegment(p *domain.Protocol) []domain.Segment {
	data := p.Text()
	if e.cfg.Tagged {
		all := domain.Speech{Utterances: p.Utterances}
		data = all.TaggedText()
	}
	return []domain.Segment{{
		ProtocolName:  p.Name,
		Granularity:   domain.GranularityProtocol,
		Name:          p.Name,
		ID:            p.Name,
		Data:          data,
		Year:          p.Year(),
		SpeakerNoteID: domain.MissingSpeakerNote,
	}}
}

func (e *Exploder) speechSegments(p *domain.Protocol, strategy domain.MergeStrategy) ([]domain.Segment, error) {
	// The segmenter's own filter stays off; finish applies the uniform one.
	segmenter, err := NewSegmenter(e.log, strategy, 0)
	if err != nil {
		return nil, err
	}
	speeches, err := segmenter.Segment(p.Utterances)
	if err != nil {
		return nil, fmt.Errorf("segment protocol %s: %w", p.Name, err)
	}

	granularity := e.cfg.Granularity
	segments := make([]domain.Segment, 0, len(speeches))
	for i := range speeches {
		speech := &speeches[i]
		data := speech.Text()
		if e.cfg.Tagged {
			data = speech.TaggedText()
		}
		name := fmt.Sprintf("%s_%03d", p.Name, speech.SpeechIndex)
		segments = append(segments, domain.Segment{
			ProtocolName:  p.Name,
			Granularity:   granularity,
			Name:          name,
			SpeakerID:     speech.SpeakerID,
			ID:            name,
			Data:          data,
			PageNumber:    speech.PageNumber(),
			Year:          p.Year(),
			SpeakerNoteID: speech.SpeakerNoteID(),
		})
	}
	return segments, nil
}

func (e *Exploder) utteranceSegments(p *domain.Protocol) []domain.Segment {
	segments := make([]domain.Segment, 0, len(p.Utterances))
	for i := range p.Utterances {
		u := &p.Utterances[i]
		data := u.Text()
		if e.cfg.Tagged {
			data = u.TaggedText
		}
		segments = append(segments, domain.Segment{
			ProtocolName:  p.Name,
			Granularity:   domain.GranularityUtterance,
			Name:          u.ID,
			SpeakerID:     u.SpeakerID,
			ID:            u.ID,
			Data:          data,
			PageNumber:    u.PageNumber,
			Year:          p.Year(),
			SpeakerNoteID: u.SpeakerNoteID,
		})
	}
	return segments
}

func (e *Exploder) paragraphSegments(p *domain.Protocol) []domain.Segment {
	var segments []domain.Segment
	for i := range p.Utterances {
		u := &p.Utterances[i]
		for j, paragraph := range u.Paragraphs {
			id := fmt.Sprintf("%s@%d", u.ID, j)
			segments = append(segments, domain.Segment{
				ProtocolName:  p.Name,
				Granularity:   domain.GranularityParagraph,
				Name:          id,
				SpeakerID:     u.SpeakerID,
				ID:            id,
				Data:          strings.TrimSpace(paragraph),
				PageNumber:    u.PageNumber,
				Year:          p.Year(),
				SpeakerNoteID: u.SpeakerNoteID,
			})
		}
	}
	return segments
}

// tokenCount counts content tokens: whitespace-separated words for plain
// text, non-header data rows for tagged payloads.
func tokenCount(data string, tagged bool) int {
	if data == "" {
		return 0
	}
	if !tagged {
		return len(strings.Fields(data))
	}
	n := 0
	for i, line := range strings.Split(data, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		n++
	}
	return n
}
