package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/store"
)

func TestMemStoreExample(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddText(7, "abc")
	s.AddTokens(7, "a", "a", "b")

	freqs, err := s.TokenFrequencies(ctx, 7, 15)
	require.NoError(t, err)
	assert.Equal(t, []store.TokenCount{{Token: "a", Count: 2}, {Token: "b", Count: 1}}, freqs)

	hist, err := s.TokenLengthHistogram(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []store.LengthBucket{{Length: 1, Count: 3}}, hist)

	ok, err := s.TextExists(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TextExists(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemStoreTieBreakIsFirstSeen(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddText(1, "z y x y z")
	s.AddTokens(1, "z", "y", "x", "y", "z", "w")

	freqs, err := s.TokenFrequencies(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []store.TokenCount{
		{Token: "z", Count: 2},
		{Token: "y", Count: 2},
		{Token: "x", Count: 1},
	}, freqs)
}

func TestMemStoreInsertAnalysisContinuesIDs(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddText(10, "seed")

	id, err := s.InsertAnalysis(ctx, "héllo wörld", []string{"héllo", "wörld"}, store.TextStats{TokenCount: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	latest, err := s.LatestTexts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, store.TextSummary{ID: 11, ContentLength: 11}, latest[0])

	st, ok, err := s.TextStats(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, st.TextID)

	ids, err := s.RecentIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, ids)
}

func TestMemStoreDangling(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddTokens(5, "ghost")

	ids, err := s.DanglingTextIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)

	_, err = s.AllTokenFrequencies(ctx, 5)
	assert.ErrorIs(t, err, internalerr.ErrDataInconsistency)

	// no rows at all is "no data", not an inconsistency
	freqs, err := s.TokenFrequencies(ctx, 6, 15)
	require.NoError(t, err)
	assert.Empty(t, freqs)
}
