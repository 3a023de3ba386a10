package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowRespectsBurstThenBlocks(t *testing.T) {
	l := New(1, 2)

	require.True(t, l.Allow("conv-1"))
	require.True(t, l.Allow("conv-1"))
	require.False(t, l.Allow("conv-1"))
}

func TestAllowTracksBucketsIndependentlyPerConversation(t *testing.T) {
	l := New(1, 1)

	require.True(t, l.Allow("conv-a"))
	require.False(t, l.Allow("conv-a"))
	require.True(t, l.Allow("conv-b"))
}

func TestRemainingReflectsConsumedTokens(t *testing.T) {
	l := New(1, 3)

	before := l.Remaining("conv-1")
	l.Allow("conv-1")
	after := l.Remaining("conv-1")
	require.Less(t, after, before)
}
