package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatchmark/hatchmark/pkg/phash"
)

var (
	zeroHash = phash.Fingerprint("0000000000000000")
	// 6 bits from zeroHash: similarity 91, inside the register threshold.
	sixBitHash = phash.Fingerprint("3f00000000000000")
	// 7 bits from zeroHash: similarity 89, outside the register threshold.
	sevenBitHash = phash.Fingerprint("7f00000000000000")
	farHash      = phash.Fingerprint("ffffffffffffffff")
)

func TestRank_ThresholdEdge(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	corpus := []Entry{
		{ID: "in", Hash: sixBitHash, CreatedAt: base},
		{ID: "out", Hash: sevenBitHash, CreatedAt: base},
	}

	res := Rank(zeroHash, corpus, RegisterThreshold)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "in", res.Matches[0].ID)
	assert.Equal(t, 91, res.Matches[0].Similarity)
	assert.Equal(t, 6, res.Matches[0].Distance)
	assert.Nil(t, res.ExactMatch)
}

func TestRank_SortsBySimilarityThenAge(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	corpus := []Entry{
		{ID: "weaker", Hash: sevenBitHash, CreatedAt: base},
		{ID: "younger-tie", Hash: sixBitHash, CreatedAt: base.Add(time.Hour)},
		{ID: "older-tie", Hash: sixBitHash, CreatedAt: base},
	}

	res := Rank(zeroHash, corpus, VerifyThreshold)

	require.Len(t, res.Matches, 3)
	assert.Equal(t, "older-tie", res.Matches[0].ID)
	assert.Equal(t, "younger-tie", res.Matches[1].ID)
	assert.Equal(t, "weaker", res.Matches[2].ID)
}

func TestRank_ExactMatch(t *testing.T) {
	corpus := []Entry{
		{ID: "near", Hash: sixBitHash},
		{ID: "exact", Hash: zeroHash},
	}

	res := Rank(zeroHash, corpus, VerifyThreshold)

	require.NotNil(t, res.ExactMatch)
	assert.Equal(t, "exact", res.ExactMatch.ID)
	assert.Equal(t, 0, res.ExactMatch.Distance)
	assert.Equal(t, 100, res.ExactMatch.Similarity)
	// The exact match also ranks first.
	assert.Equal(t, "exact", res.Matches[0].ID)
}

func TestRank_IncomparableLengthsNeverMatch(t *testing.T) {
	corpus := []Entry{
		{ID: "other-scheme", Hash: phash.Fingerprint("abcd1234")},
	}

	res := Rank(zeroHash, corpus, 1)

	assert.Empty(t, res.Matches)
	assert.Nil(t, res.ExactMatch)
}

func TestRank_EmptyCorpus(t *testing.T) {
	res := Rank(zeroHash, nil, VerifyThreshold)

	assert.Empty(t, res.Matches)
	assert.Nil(t, res.ExactMatch)
}

func TestRank_FarHashExcluded(t *testing.T) {
	corpus := []Entry{{ID: "far", Hash: farHash}}

	res := Rank(zeroHash, corpus, VerifyThreshold)

	assert.Empty(t, res.Matches)
}
