package graphdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryClientSearchTruncatesToMaxResults(t *testing.T) {
	c := NewMemoryClient()
	c.Seed("local", SearchResult{
		Nodes: []NodeRecord{{ID: "n1"}, {ID: "n2"}, {ID: "n3"}},
	})

	result, err := c.Search(context.Background(), SearchRequest{Strategy: "local", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 2)
}

func TestMemoryClientSearchUnknownStrategyReturnsEmpty(t *testing.T) {
	c := NewMemoryClient()
	result, err := c.Search(context.Background(), SearchRequest{Strategy: "global", MaxResults: 5})
	require.NoError(t, err)
	require.Empty(t, result.Nodes)
}

func TestMemoryClientContradictionsFiltersByNodePresence(t *testing.T) {
	c := NewMemoryClient()
	c.SeedContradictions([]ContradictionEdge{
		{Source: "b", Target: "a", Severity: "high"},
		{Source: "a", Target: "b", Severity: "high"},
		{Source: "a", Target: "z", Severity: "low"},
	})

	edges, err := c.Contradictions(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	// deterministic ordering: sorted by source then target
	require.Equal(t, "a", edges[0].Source)
	require.Equal(t, "b", edges[1].Source)
}

func TestMemoryClientCloseIsNoop(t *testing.T) {
	c := NewMemoryClient()
	require.NoError(t, c.Close())
}
