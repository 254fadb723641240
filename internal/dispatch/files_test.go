package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilenameComponent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "1974_ek_centre", "1974_ek_centre"},
		{"slash becomes underscore", "prot/1974--21", "prot_1974--21"},
		{"spaces collapse to underscores", "a b c", "a_b_c"},
		{"keeps dash dot underscore", "a-b.c_d", "a-b.c_d"},
		{"trims separator noise", "__a__", "a"},
		{"unicode letters survive", "mötet", "mötet"},
		{"empty", "", ""},
		{"only noise", "._-", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilenameComponent(tt.in))
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "doc.txt")

	require.NoError(t, writeFileAtomic(path, []byte("first"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	// Overwrite replaces the previous content in one step.
	require.NoError(t, writeFileAtomic(path, []byte("second"), 0o644))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.txt", entries[0].Name())
}
