package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uaelegal/agent-coordinator/internal/retrieval"
)

func TestMergeEmptyYieldsZero(t *testing.T) {
	out := Merge(nil)
	require.Zero(t, out.Coverage)
	require.Zero(t, out.Confidence)
	require.Empty(t, out.Nodes)
	require.Empty(t, out.AgentsUsed)
}

// S2: hybrid happy path with three agents, no id collisions.
func TestMergeUnionNoCollisions(t *testing.T) {
	local := retrieval.Record{
		AgentID: "local_agent", Coverage: 0.4, Confidence: 0.5,
		Nodes: []retrieval.Node{{ID: "n1"}, {ID: "n2"}},
	}
	global := retrieval.Record{
		AgentID: "global_agent", Coverage: 0.6, Confidence: 0.7,
		Nodes: []retrieval.Node{{ID: "n3"}, {ID: "n4"}, {ID: "n5"}},
	}
	drift := retrieval.Record{
		AgentID: "drift_agent", Coverage: 0.8, Confidence: 0.9,
		Nodes: []retrieval.Node{{ID: "n6"}, {ID: "n7"}, {ID: "n8"}, {ID: "n9"}},
	}

	out := Merge([]retrieval.Record{local, global, drift})
	require.Len(t, out.Nodes, 9)
	require.InDelta(t, (0.4+0.6+0.8)/3, out.Coverage, 1e-9)
	require.Equal(t, []string{"local_agent", "global_agent", "drift_agent"}, out.AgentsUsed)
}

// S3: node id collision resolves to the higher score.
func TestMergeCollisionKeepsHigherScore(t *testing.T) {
	a := retrieval.Record{AgentID: "a", Nodes: []retrieval.Node{{ID: "N1", Score: 0.6}}}
	b := retrieval.Record{AgentID: "b", Nodes: []retrieval.Node{{ID: "N1", Score: 0.9}}}

	out := Merge([]retrieval.Record{a, b})
	require.Len(t, out.Nodes, 1)
	require.Equal(t, 0.9, out.Nodes[0].Score)
}

func TestMergeEdgeAndCitationCollisionsKeepFirstSeen(t *testing.T) {
	a := retrieval.Record{
		Edges:     []retrieval.Edge{{Source: "A", Target: "B", Type: "RELATES_TO", Weight: 1}},
		Citations: []retrieval.Citation{{NodeID: "C1", Content: "first"}},
	}
	b := retrieval.Record{
		Edges:     []retrieval.Edge{{Source: "A", Target: "B", Type: "RELATES_TO", Weight: 99}},
		Citations: []retrieval.Citation{{NodeID: "C1", Content: "second"}},
	}

	out := Merge([]retrieval.Record{a, b})
	require.Len(t, out.Edges, 1)
	require.Equal(t, float64(1), out.Edges[0].Weight)
	require.Len(t, out.Citations, 1)
	require.Equal(t, "first", out.Citations[0].Content)
}

func TestMergeDeterministicForFixedOrdering(t *testing.T) {
	records := []retrieval.Record{
		{AgentID: "local_agent", Coverage: 0.3, Nodes: []retrieval.Node{{ID: "n1", Score: 0.2}}},
		{AgentID: "global_agent", Coverage: 0.9, Nodes: []retrieval.Node{{ID: "n1", Score: 0.8}}},
	}
	first := Merge(records)
	second := Merge(records)
	require.Equal(t, first, second)
}

func TestMergeCommutativeOverIdentitySet(t *testing.T) {
	a := retrieval.Record{Nodes: []retrieval.Node{{ID: "n1"}, {ID: "n2"}}}
	b := retrieval.Record{Nodes: []retrieval.Node{{ID: "n3"}}}

	idSet := func(r Result) map[string]bool {
		ids := make(map[string]bool)
		for _, n := range r.Nodes {
			ids[n.ID] = true
		}
		return ids
	}

	forward := Merge([]retrieval.Record{a, b})
	backward := Merge([]retrieval.Record{b, a})
	require.Equal(t, idSet(forward), idSet(backward))
}
