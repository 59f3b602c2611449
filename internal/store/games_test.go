package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGameCodec_RoundTrip(t *testing.T) {
	codec := newGameCodec("test-salt")

	seen := map[string]bool{}
	for _, id := range []int64{1, 2, 42, 99999} {
		code, err := codec.EncodeInt64([]int64{id})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(code), 6)
		require.False(t, seen[code], "codes must be unique per id")
		seen[code] = true

		decoded, err := codec.DecodeInt64WithError(code)
		require.NoError(t, err)
		require.Equal(t, []int64{id}, decoded)
	}
}

func TestGameCodec_SaltChangesCodes(t *testing.T) {
	a := newGameCodec("salt-a")
	b := newGameCodec("salt-b")

	codeA, err := a.EncodeInt64([]int64{7})
	require.NoError(t, err)
	codeB, err := b.EncodeInt64([]int64{7})
	require.NoError(t, err)
	require.NotEqual(t, codeA, codeB)
}

func TestTaxonomyTable(t *testing.T) {
	tests := []struct {
		kind   string
		table  string
		column string
		ok     bool
	}{
		{TaxonomyTags, "game_tags", "tag", true},
		{TaxonomyCategories, "game_categories", "category", true},
		{TaxonomyPlatforms, "game_platforms", "platform", true},
		{"genres", "", "", false},
	}

	for _, tt := range tests {
		table, column, err := taxonomyTable(tt.kind)
		if !tt.ok {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.table, table)
		require.Equal(t, tt.column, column)
	}
}
