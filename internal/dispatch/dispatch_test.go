package dispatch

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlaclarin/pipeline/internal/domain"
)

func bucket(name, hash string, values map[string]string, texts ...string) *domain.DispatchBucket {
	b := &domain.DispatchBucket{
		GroupName:   name,
		GroupHash:   hash,
		GroupValues: values,
	}
	for i, text := range texts {
		b.Append(domain.Segment{
			ID:         name + "-" + strings.Repeat("i", i+1),
			Data:       text,
			TokenCount: len(strings.Fields(text)),
		})
	}
	return b
}

func taggedBucket(name, hash string, payloads ...string) *domain.DispatchBucket {
	b := &domain.DispatchBucket{GroupName: name, GroupHash: hash}
	for _, payload := range payloads {
		n := strings.Count(payload, "\n")
		b.Append(domain.Segment{Data: payload, TokenCount: n})
	}
	return b
}

func readIndex(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "documents.tsv"))
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestDocumentName(t *testing.T) {
	b := &domain.DispatchBucket{GroupName: "ek centre", GroupHash: "abc123"}
	assert.Equal(t, "1974_ek_centre", documentName("1974", b))

	b.GroupName = ""
	assert.Equal(t, "1974_abc123", documentName("1974", b))
}

func TestTextDispatcherWritesFoldersAndIndex(t *testing.T) {
	dir := t.TempDir()
	d, err := NewTextDispatcher(dir, []string{"party_id", "who"})
	require.NoError(t, err)

	buckets := []*domain.DispatchBucket{
		bucket("centre", "h1", map[string]string{"party_id": "c", "who": "p-1"}, "anförande ett", "anförande två"),
		bucket("left", "h2", map[string]string{"party_id": "v", "who": "p-2"}, "ett till"),
	}
	require.NoError(t, d.Dispatch(context.Background(), "1974", buckets))
	require.NoError(t, d.Close())

	got, err := os.ReadFile(filepath.Join(dir, "1974", "1974_centre.txt"))
	require.NoError(t, err)
	assert.Equal(t, "anförande ett\nanförande två\n", string(got))

	lines := readIndex(t, dir)
	require.Len(t, lines, 3)
	assert.Equal(t, "document_id\tdocument_name\tfilename\tn_tokens\tparty_id\twho", lines[0])
	assert.Equal(t, "h1\tcentre\t1974/1974_centre.txt\t4\tc\tp-1", lines[1])
	assert.Equal(t, "h2\tleft\t1974/1974_left.txt\t2\tv\tp-2", lines[2])
}

func TestTextDispatcherHonorsCancellation(t *testing.T) {
	d, err := NewTextDispatcher(t.TempDir(), nil)
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = d.Dispatch(ctx, "1974", []*domain.DispatchBucket{bucket("a", "h", nil, "x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestZipDispatcherBundlesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.zip")

	d, err := NewZipDispatcher(path, nil)
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), "1970-1974",
		[]*domain.DispatchBucket{bucket("centre", "h1", nil, "text ett")}))
	require.NoError(t, d.Dispatch(context.Background(), "1975-1979",
		[]*domain.DispatchBucket{bucket("centre", "h1", nil, "text två")}))

	// The archive is not visible until Close renames it into place.
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, d.Close())

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"1970-1974/1970-1974_centre.txt",
		"1975-1979/1975-1979_centre.txt",
	}, names)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "text ett\n", string(body))

	// No temp archive lingers next to the published one.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp_"), e.Name())
	}
}

func TestFrameDispatcherMergesHeaders(t *testing.T) {
	dir := t.TempDir()
	d, err := NewFrameDispatcher(dir, nil)
	require.NoError(t, err)

	b := taggedBucket("centre", "h1",
		"token\tpos\nherr\tNN\ntalman\tNN",
		"token\tpos\njag\tPN\nyrkar\tVB",
	)
	require.NoError(t, d.Dispatch(context.Background(), "1974", []*domain.DispatchBucket{b}))
	require.NoError(t, d.Close())

	got, err := os.ReadFile(filepath.Join(dir, "1974", "1974_centre.csv"))
	require.NoError(t, err)

	want := "token\tpos\nherr\tNN\ntalman\tNN\njag\tPN\nyrkar\tVB\n"
	assert.Equal(t, want, string(got))
}

func TestVRTDispatcherTagged(t *testing.T) {
	dir := t.TempDir()
	d, err := NewVRTDispatcher(dir, []string{"party_id"}, true)
	require.NoError(t, err)

	b := taggedBucket("centre", "h1", "token\tpos\nherr\tNN\ntalman\tNN")
	b.GroupValues = map[string]string{"party_id": "c"}
	require.NoError(t, d.Dispatch(context.Background(), "1974", []*domain.DispatchBucket{b}))
	require.NoError(t, d.Close())

	got, err := os.ReadFile(filepath.Join(dir, "1974.vrt"))
	require.NoError(t, err)

	want := `<text id="h1" name="1974_centre" n_tokens="2" party_id="c">` + "\n" +
		"herr\tNN\ntalman\tNN\n</text>\n"
	assert.Equal(t, want, string(got))

	lines := readIndex(t, dir)
	require.Len(t, lines, 2)
	assert.Equal(t, "h1\tcentre\t1974.vrt\t2\tc", lines[1])
}

func TestVRTDispatcherPlainTextTokenRows(t *testing.T) {
	dir := t.TempDir()
	d, err := NewVRTDispatcher(dir, nil, false)
	require.NoError(t, err)

	b := bucket("centre", "h1", nil, "herr talman")
	require.NoError(t, d.Dispatch(context.Background(), "1974", []*domain.DispatchBucket{b}))
	require.NoError(t, d.Close())

	got, err := os.ReadFile(filepath.Join(dir, "1974.vrt"))
	require.NoError(t, err)
	assert.Contains(t, string(got), ">\nherr\ntalman\n</text>\n")
}

func TestIndexWriterFallsBackToHashName(t *testing.T) {
	dir := t.TempDir()
	iw, err := NewIndexWriter(dir, nil)
	require.NoError(t, err)

	require.NoError(t, iw.Append(&domain.DispatchBucket{GroupHash: "deadbeef", TokenCount: 7}, "x.txt"))
	require.NoError(t, iw.Close())

	lines := readIndex(t, dir)
	require.Len(t, lines, 2)
	assert.Equal(t, "deadbeef\tdeadbeef\tx.txt\t7", lines[1])
}
