package dispatch

import (
	"context"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// VRTDispatcher writes one `.vrt` file per temporal bucket. Each bucket
// becomes a `<text>` block whose attributes carry the document identity and
// the grouping values, followed by one token row per line.
type VRTDispatcher struct {
	dir    string
	tagged bool
	index  *IndexWriter
}

// NewVRTDispatcher creates the dispatcher. With tagged set, token rows are
// taken from the tagged payload with header lines stripped; otherwise each
// whitespace-separated word becomes a row.
func NewVRTDispatcher(dir string, attrs []string, tagged bool) (*VRTDispatcher, error) {
	index, err := NewIndexWriter(dir, attrs)
	if err != nil {
		return nil, err
	}
	return &VRTDispatcher{dir: dir, tagged: tagged, index: index}, nil
}

func (d *VRTDispatcher) Dispatch(ctx context.Context, temporal string, buckets []*domain.DispatchBucket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filename := sanitizeFilenameComponent(temporal) + ".vrt"

	var sb strings.Builder
	for _, b := range buckets {
		d.writeTextBlock(&sb, temporal, b)
		if err := d.index.Append(b, filename); err != nil {
			return err
		}
	}

	if err := writeFileAtomic(filepath.Join(d.dir, filename), []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write vrt %s: %w", filename, err)
	}
	return nil
}

func (d *VRTDispatcher) Close() error {
	return d.index.Close()
}

func (d *VRTDispatcher) writeTextBlock(sb *strings.Builder, temporal string, b *domain.DispatchBucket) {
	sb.WriteString(`<text id="`)
	xmlEscape(sb, b.GroupHash)
	sb.WriteString(`" name="`)
	xmlEscape(sb, documentName(temporal, b))
	sb.WriteString(`" n_tokens="`)
	sb.WriteString(strconv.Itoa(b.TokenCount))
	sb.WriteString(`"`)

	attrs := make([]string, 0, len(b.GroupValues))
	for attr := range b.GroupValues {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		sb.WriteString(" ")
		sb.WriteString(attr)
		sb.WriteString(`="`)
		xmlEscape(sb, b.GroupValues[attr])
		sb.WriteString(`"`)
	}
	sb.WriteString(">\n")

	for _, seg := range b.Segments {
		d.writeTokenRows(sb, seg.Data)
	}
	sb.WriteString("</text>\n")
}

func (d *VRTDispatcher) writeTokenRows(sb *strings.Builder, data string) {
	if !d.tagged {
		for _, word := range strings.Fields(data) {
			sb.WriteString(word)
			sb.WriteByte('\n')
		}
		return
	}
	for i, line := range strings.Split(data, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

func xmlEscape(sb *strings.Builder, s string) {
	_ = xml.EscapeText(sb, []byte(s))
}
