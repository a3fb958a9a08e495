package match

import (
	"testing"

	"github.com/stretchr/testify/require"

	"facturo/internal/catalog"
)

func TestRatio(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "steel pipe 10mm", "steel pipe 10mm", 1.0},
		{"disjoint character sets", "abc", "xyz", 0.0},
		{"both empty", "", "", 1.0},
		{"one empty", "abc", "", 0.0},
		{"classic overlap", "abcd", "bcde", 0.75},
		{"prefix match", "hello world", "hello", 0.625},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.InDelta(t, tc.want, Ratio(tc.a, tc.b), 1e-9)
		})
	}
}

func TestRatioUnicode(t *testing.T) {
	t.Parallel()

	// rune-based lengths: "țeavă" has 5 runes
	require.InDelta(t, 1.0, Ratio("țeavă oțel", "țeavă oțel"), 1e-9)
}

func testCatalog() []catalog.Entry {
	return []catalog.Entry{
		{Code: "C100", Description: "Steel Pipe 10mm"},
		{Code: "C200", Description: "Copper Wire 2mm"},
		{Code: "C300", Description: "Brass Fitting 5mm"},
	}
}

func TestRankExactMatch(t *testing.T) {
	t.Parallel()

	cands := Rank("Steel Pipe 10mm", testCatalog(), 0.18)
	require.NotEmpty(t, cands)
	require.Equal(t, "C100", cands[0].Code)
	require.Equal(t, "Steel Pipe 10mm", cands[0].Description)
	require.InDelta(t, 1.0, cands[0].Score, 1e-9)
}

func TestRankOrderingNonIncreasing(t *testing.T) {
	t.Parallel()

	cands := Rank("copper pipe 10mm", testCatalog(), 0.0)
	require.Len(t, cands, 3)
	for i := 1; i < len(cands); i++ {
		require.GreaterOrEqual(t, cands[i-1].Score, cands[i].Score)
	}
}

func TestRankStableTieBreak(t *testing.T) {
	t.Parallel()

	entries := []catalog.Entry{
		{Code: "A1", Description: "Widget"},
		{Code: "A2", Description: "Widget"},
	}
	cands := Rank("widget", entries, 0.18)
	require.Len(t, cands, 2)
	require.Equal(t, cands[0].Score, cands[1].Score)
	// equal scores keep catalog order
	require.Equal(t, "A1", cands[0].Code)
	require.Equal(t, "A2", cands[1].Code)
}

func TestRankMinScoreFilter(t *testing.T) {
	t.Parallel()

	entries := []catalog.Entry{{Code: "Z1", Description: "xyzq"}}
	require.Empty(t, Rank("abc", entries, 0.18))
}

func TestRankCaseInsensitive(t *testing.T) {
	t.Parallel()

	cands := Rank("STEEL PIPE 10MM", testCatalog(), 0.18)
	require.NotEmpty(t, cands)
	require.InDelta(t, 1.0, cands[0].Score, 1e-9)
}
