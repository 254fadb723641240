package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlaclarin/pipeline/internal/domain"
)

func TestNewTemporalCategorizer(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "document", "protocol", "year", "lustrum", "decade"} {
		_, err := NewTemporalCategorizer(key)
		assert.NoError(t, err, key)
	}

	_, err := NewTemporalCategorizer("fortnight")
	assert.ErrorIs(t, err, domain.ErrBadTemporalKey)
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		year int
		want string
	}{
		{key: "year", year: 1974, want: "1974"},
		{key: "lustrum", year: 2021, want: "2020-2024"},
		{key: "lustrum", year: 2020, want: "2020-2024"},
		{key: "lustrum", year: 2024, want: "2020-2024"},
		{key: "decade", year: 1987, want: "1980-1989"},
		{key: "decade", year: 1980, want: "1980-1989"},
		{key: "protocol", year: 1974, want: "prot-1974--21"},
		{key: "", year: 1974, want: "prot-1974--21"},
	}
	for _, tt := range tests {
		c, err := NewTemporalCategorizer(tt.key)
		require.NoError(t, err)
		got, err := c.Categorize("prot-1974--21", tt.year)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s(%d)", tt.key, tt.year)

		// Pure function: a second call agrees with the first.
		again, err := c.Categorize("prot-1974--21", tt.year)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestCustomRanges(t *testing.T) {
	t.Parallel()

	c, err := NewCustomCategorizer([]YearRange{
		{Label: "interwar", From: 1919, To: 1939},
		{Label: "prewar", From: 1930, To: 1945}, // overlaps, declared later
	})
	require.NoError(t, err)

	got, err := c.Categorize("p", 1935)
	require.NoError(t, err)
	assert.Equal(t, "interwar", got, "earliest declared range wins on overlap")

	got, err = c.Categorize("p", 1942)
	require.NoError(t, err)
	assert.Equal(t, "prewar", got)

	_, err = c.Categorize("p", 1980)
	assert.ErrorIs(t, err, domain.ErrBadTemporalKey)
}

func TestCustomRangesValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCustomCategorizer(nil)
	assert.ErrorIs(t, err, domain.ErrBadTemporalKey)

	_, err = NewCustomCategorizer([]YearRange{{Label: "", From: 1, To: 2}})
	assert.ErrorIs(t, err, domain.ErrBadTemporalKey)

	_, err = NewCustomCategorizer([]YearRange{{Label: "x", From: 2, To: 1}})
	assert.ErrorIs(t, err, domain.ErrBadTemporalKey)
}

func TestPerProtocol(t *testing.T) {
	t.Parallel()

	c, err := NewTemporalCategorizer("")
	require.NoError(t, err)
	assert.True(t, c.PerProtocol())

	c, err = NewTemporalCategorizer("year")
	require.NoError(t, err)
	assert.False(t, c.PerProtocol())
}
