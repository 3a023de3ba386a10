package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uaelegal/agent-coordinator/internal/envelope"
)

type stubStrategy struct {
	record Record
	err    error
}

func (s stubStrategy) Query(ctx context.Context, query string, maxResults int) (Record, error) {
	return s.record, s.err
}

func TestAgentHandleSuccess(t *testing.T) {
	agent := NewAgent("local_agent", stubStrategy{record: Record{Coverage: 0.5, Confidence: 0.6}})
	task := envelope.New(envelope.Task, "orchestrator", "local_agent", "conv-1", 30, map[string]any{
		"task_type":   "retrieve",
		"query":       "x",
		"max_results": 5,
	}).Build()

	reply, err := agent.Handle(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var payload ResultPayload
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.True(t, payload.Success)
	require.Equal(t, "local_agent", payload.AgentID)
}

// StrategyFailure is a modelled failure (success=false), never a thrown error.
func TestAgentHandleStrategyFailure(t *testing.T) {
	agent := NewAgent("global_agent", stubStrategy{err: errors.New("graph unavailable")})
	task := envelope.New(envelope.Task, "orchestrator", "global_agent", "conv-1", 30, map[string]any{
		"task_type":   "retrieve",
		"query":       "x",
		"max_results": 5,
	}).Build()

	reply, err := agent.Handle(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var payload ResultPayload
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.False(t, payload.Success)
	require.Contains(t, payload.Error, "graph unavailable")
}

func TestAgentHandleUnsupportedTaskType(t *testing.T) {
	agent := NewAgent("local_agent", stubStrategy{})
	task := envelope.New(envelope.Task, "orchestrator", "local_agent", "conv-1", 30, map[string]any{
		"task_type": "assistant_workflow",
	}).Build()

	reply, err := agent.Handle(context.Background(), task)
	require.NoError(t, err)

	var payload ResultPayload
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.False(t, payload.Success)
}
