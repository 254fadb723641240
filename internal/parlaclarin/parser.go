// Package parlaclarin reads parliamentary records encoded in the
// ParlaClarin TEI dialect into protocol entities.
package parlaclarin

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// Parser turns ParlaClarin documents into protocols. It is a streaming
// token reader; memory use is bounded by one utterance, not the document.
type Parser struct {
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

// ParseFile parses one source file. The protocol name defaults to the file
// name without its extension when the document itself does not carry one.
func (p *Parser) ParseFile(ctx context.Context, path string) (*domain.Protocol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	protocol, err := p.Parse(ctx, f, name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return protocol, nil
}

// Parse reads one document. Malformed XML is a hard error. A document with
// no speech body yields a protocol with zero utterances, which is logged
// and returned, not raised.
func (p *Parser) Parse(ctx context.Context, r io.Reader, fallbackName string) (*domain.Protocol, error) {
	dec := xml.NewDecoder(r)
	protocol := &domain.Protocol{
		Name:         fallbackName,
		SpeakerNotes: make(map[string]string),
	}

	page := 0
	note := domain.MissingSpeakerNote

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "TEI":
			if id := attr(start, "id"); id != "" {
				protocol.Name = id
			}
		case "docDate":
			if when := attr(start, "when"); when != "" {
				date, err := parseDate(when)
				if err != nil {
					return nil, err
				}
				protocol.Date = date
			}
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("skip docDate: %w", err)
			}
		case "pb":
			if n := attr(start, "n"); n != "" {
				v, err := strconv.Atoi(n)
				if err != nil {
					return nil, fmt.Errorf("page break %q: %w", n, err)
				}
				page = v
			}
		case "note":
			id, text, err := p.readNote(dec, start)
			if err != nil {
				return nil, err
			}
			if id != "" {
				protocol.SpeakerNotes[id] = text
				note = id
			}
		case "u":
			u, err := p.readUtterance(dec, start, page, note)
			if err != nil {
				return nil, err
			}
			protocol.Utterances = append(protocol.Utterances, u)
		}
	}

	if len(protocol.Utterances) == 0 {
		p.log.Info("protocol has no speech body", slog.String("protocol", protocol.Name))
	}
	return protocol, nil
}

// readNote consumes a note element. Only speaker-introduction notes are
// kept; everything else is skipped.
func (p *Parser) readNote(dec *xml.Decoder, start xml.StartElement) (id, text string, err error) {
	if attr(start, "type") != "speaker" {
		return "", "", dec.Skip()
	}
	id = attr(start, "id")

	var note struct {
		Text string `xml:",chardata"`
	}
	if err := dec.DecodeElement(&note, &start); err != nil {
		return "", "", fmt.Errorf("read speaker note %s: %w", id, err)
	}
	return id, strings.TrimSpace(note.Text), nil
}

func (p *Parser) readUtterance(dec *xml.Decoder, start xml.StartElement, page int, noteID string) (domain.Utterance, error) {
	var body struct {
		Segments []string `xml:"seg"`
	}
	if err := dec.DecodeElement(&body, &start); err != nil {
		return domain.Utterance{}, fmt.Errorf("read utterance %s: %w", attr(start, "id"), err)
	}

	u := domain.Utterance{
		ID:            attr(start, "id"),
		SpeakerID:     ref(attr(start, "who")),
		PageNumber:    page,
		SpeakerNoteID: noteID,
	}
	if u.SpeakerID == "" {
		u.SpeakerID = domain.UnknownSpeaker
	}
	if prev := ref(attr(start, "prev")); prev != "" {
		u.PrevID = &prev
	}
	if next := ref(attr(start, "next")); next != "" {
		u.NextID = &next
	}
	for _, seg := range body.Segments {
		if t := collapseSpace(seg); t != "" {
			u.Paragraphs = append(u.Paragraphs, t)
		}
	}
	if err := u.Validate(); err != nil {
		return domain.Utterance{}, err
	}
	return u, nil
}

// attr returns a start element's attribute by local name, so both plain
// and xml:-prefixed attributes resolve.
func attr(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// ref strips the leading # of a same-document reference.
func ref(v string) string {
	return strings.TrimPrefix(v, "#")
}

// collapseSpace trims a text node and folds internal runs of whitespace,
// which source documents use freely for indentation.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseDate(when string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if d, err := time.Parse(layout, when); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("document date %q: %w", when, domain.ErrValidation)
}
