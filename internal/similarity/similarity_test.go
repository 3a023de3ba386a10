package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uaelegal/agent-coordinator/internal/retrieval"
)

func TestKeyIsStableForSameInputs(t *testing.T) {
	require.Equal(t, Key("local_agent", "force majeure", 5), Key("local_agent", "force majeure", 5))
	require.NotEqual(t, Key("local_agent", "force majeure", 5), Key("global_agent", "force majeure", 5))
}

func TestCacheSetGetRoundTrip(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	key := Key("local_agent", "force majeure", 5)
	rec := retrieval.Record{AgentID: "local_agent", Coverage: 0.8}

	_, ok := c.Get(key)
	require.False(t, ok)

	c.Set(key, rec)
	got, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, rec, got)
}
