package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(SourceStatusPending, SourceStatusProcessing))
	require.True(t, CanTransition(SourceStatusProcessing, SourceStatusCompleted))
	require.True(t, CanTransition(SourceStatusProcessing, SourceStatusFailed))
	require.False(t, CanTransition(SourceStatusCompleted, SourceStatusProcessing))
	require.False(t, CanTransition(SourceStatusFailed, SourceStatusCompleted))
	require.False(t, CanTransition(SourceStatusPending, SourceStatusCompleted))
}

func TestParseAccessTier(t *testing.T) {
	tier, err := ParseAccessTier(" Premium ")
	require.NoError(t, err)
	require.Equal(t, AccessTierPremium, tier)

	_, err = ParseAccessTier("gold")
	require.Error(t, err)
}

func TestTiersUpTo(t *testing.T) {
	require.Equal(t, []AccessTier{AccessTierFree}, TiersUpTo(AccessTierFree))
	require.Equal(t, []AccessTier{AccessTierFree, AccessTierPremium, AccessTierPro}, TiersUpTo(AccessTierPro))
	require.Nil(t, TiersUpTo("gold"))
}

func TestChunkValidate(t *testing.T) {
	chunk := &DocumentChunk{ChunkIndex: 2, TotalChunks: 3, Embedding: make([]float32, 4)}
	require.NoError(t, chunk.Validate(4))
	require.Error(t, chunk.Validate(768))

	chunk.ChunkIndex = 3
	require.Error(t, chunk.Validate(4))
}

func TestChunkTitle(t *testing.T) {
	require.Equal(t, "Keto Basics - Part 1/10", ChunkTitle("Keto Basics", 0, 10))
}
