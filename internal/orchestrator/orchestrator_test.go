package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uaelegal/agent-coordinator/internal/conversation"
	"github.com/uaelegal/agent-coordinator/internal/envelope"
	"github.com/uaelegal/agent-coordinator/internal/graphdb"
	"github.com/uaelegal/agent-coordinator/internal/retrieval"
	"github.com/uaelegal/agent-coordinator/internal/router"
	"github.com/uaelegal/agent-coordinator/internal/synthesis"
	"github.com/uaelegal/agent-coordinator/internal/telemetry"
	"github.com/uaelegal/agent-coordinator/internal/trace"
)

type stubStrategy struct {
	record retrieval.Record
	err    error
}

func (s stubStrategy) Query(ctx context.Context, query string, maxResults int) (retrieval.Record, error) {
	return s.record, s.err
}

type stubSynth struct {
	text string
	err  error
}

func (s stubSynth) Complete(ctx context.Context, req synthesis.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func newTestOrchestrator(t *testing.T, graph graphdb.Client, agents map[string]retrieval.Strategy) *Orchestrator {
	t.Helper()
	return newTestOrchestratorWithSynth(t, graph, agents, stubSynth{text: "synthesized answer"})
}

func newTestOrchestratorWithSynth(t *testing.T, graph graphdb.Client, agents map[string]retrieval.Strategy, synth synthesis.Provider) *Orchestrator {
	t.Helper()
	store, err := trace.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := router.New(store, telemetry.Discard())
	for id, strategy := range agents {
		agent := retrieval.NewAgent(id, strategy)
		r.Register(id, agent.Handle)
	}

	convo := conversation.New()
	return New(r, convo, graph, synth, telemetry.Discard(), "orchestrator")
}

func taskEnv(taskType string, payload map[string]any, ttl int) envelope.Envelope {
	payload["task_type"] = taskType
	return envelope.New(envelope.Task, "api", "orchestrator", "conv-1", ttl, payload).Build()
}

// S4: one of three agents errors, the others succeed.
func TestAssistantWorkflowPartialFailure(t *testing.T) {
	agents := map[string]retrieval.Strategy{
		"local_agent":  stubStrategy{record: retrieval.Record{Nodes: []retrieval.Node{{ID: "n1"}}}},
		"global_agent": stubStrategy{err: errors.New("graph timeout")},
		"drift_agent":  stubStrategy{record: retrieval.Record{Nodes: []retrieval.Node{{ID: "n2"}}}},
	}
	o := newTestOrchestrator(t, nil, agents)

	e := taskEnv("assistant_workflow", map[string]any{"query": "force majeure", "strategy": "hybrid", "max_results": 12}, 30)
	reply, err := o.Handle(context.Background(), e)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var payload struct {
		Success bool            `json:"success"`
		Result  AssistantResult `json:"result"`
	}
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.True(t, payload.Success)
	require.ElementsMatch(t, []string{"local_agent", "drift_agent"}, payload.Result.Metadata.AgentsUsed)
	require.Equal(t, "hybrid", payload.Result.Metadata.Strategy)
}

// S5: all agents fail.
func TestAssistantWorkflowAllAgentsFail(t *testing.T) {
	agents := map[string]retrieval.Strategy{
		"local_agent":  stubStrategy{err: errors.New("down")},
		"global_agent": stubStrategy{err: errors.New("down")},
		"drift_agent":  stubStrategy{err: errors.New("down")},
	}
	o := newTestOrchestrator(t, nil, agents)

	e := taskEnv("assistant_workflow", map[string]any{"query": "x", "strategy": "hybrid", "max_results": 12}, 30)
	reply, err := o.Handle(context.Background(), e)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var payload struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.False(t, payload.Success)
	require.Equal(t, "all agents failed", payload.Error)
}

func TestUnknownTaskType(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil)
	e := taskEnv("brew_coffee", map[string]any{}, 30)
	reply, err := o.Handle(context.Background(), e)
	require.NoError(t, err)

	var payload struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.False(t, payload.Success)
	require.Contains(t, payload.Error, "Unknown task type")
}

// S6: one contradiction edge produces exactly one contradiction,
// harmonization and recommendation with the expected severity table row.
func TestAnalysisWorkflowContradictions(t *testing.T) {
	agents := map[string]retrieval.Strategy{
		"local_agent":  stubStrategy{record: retrieval.Record{Nodes: []retrieval.Node{{ID: "A"}, {ID: "B"}}}},
		"global_agent": stubStrategy{record: retrieval.Record{}},
		"drift_agent":  stubStrategy{record: retrieval.Record{}},
	}
	graph := graphdb.NewMemoryClient()
	graph.SeedContradictions([]graphdb.ContradictionEdge{
		{Source: "A", Target: "B", Severity: "high", Category: "x", Description: "conflicting deadlines"},
	})

	o := newTestOrchestrator(t, graph, agents)
	e := taskEnv("analysis_workflow", map[string]any{"query": "termination clauses", "analysis_type": "contradiction", "max_depth": 3}, 30)
	reply, err := o.Handle(context.Background(), e)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var payload struct {
		Success bool           `json:"success"`
		Result  AnalysisResult `json:"result"`
	}
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.True(t, payload.Success)
	require.Len(t, payload.Result.Contradictions, 1)
	require.Len(t, payload.Result.Harmonizations, 1)
	require.Len(t, payload.Result.Recommendations, 1)
	require.Equal(t, "high", payload.Result.Recommendations[0].Priority)
	require.Equal(t, "Short-term (30 days)", payload.Result.Recommendations[0].Timeline)
	require.Equal(t, 1, payload.Result.Stats.HighCount)
}

// S7: synthesis errors fall back to the apologetic text, mark
// metadata.synthesis as "fallback", and still succeed with citations intact.
func TestAssistantWorkflowSynthesisFailureFallsBack(t *testing.T) {
	agents := map[string]retrieval.Strategy{
		"local_agent": stubStrategy{record: retrieval.Record{
			Nodes:     []retrieval.Node{{ID: "n1"}},
			Citations: []retrieval.Citation{{NodeID: "n1", Content: "clause 4.2 excerpt"}},
		}},
	}
	o := newTestOrchestratorWithSynth(t, nil, agents, stubSynth{err: errors.New("model unavailable")})

	e := taskEnv("assistant_workflow", map[string]any{"query": "force majeure", "strategy": "local", "max_results": 5}, 30)
	reply, err := o.Handle(context.Background(), e)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var payload struct {
		Success bool            `json:"success"`
		Result  AssistantResult `json:"result"`
	}
	require.NoError(t, reply.UnmarshalPayload(&payload))
	require.True(t, payload.Success)
	require.Equal(t, "fallback", payload.Result.Metadata.Synthesis)
	require.NotEmpty(t, payload.Result.Citations)
}

func TestPerAgentBudgetUnderfillFloorsAtOne(t *testing.T) {
	require.Equal(t, 1, perAgentBudget(2, 3))
	require.Equal(t, 4, perAgentBudget(12, 3))
	require.Equal(t, 10, perAgentBudget(10, 1))
}

func TestOrchestratorRespectsTTLDeadline(t *testing.T) {
	agents := map[string]retrieval.Strategy{
		"local_agent": slowStrategy{delay: 200 * time.Millisecond},
	}
	o := newTestOrchestrator(t, nil, agents)

	e := taskEnv("assistant_workflow", map[string]any{"query": "x", "strategy": "local", "max_results": 5}, 0)
	e.TTLSeconds = 0

	reply, err := o.Handle(context.Background(), e)
	require.NoError(t, err)
	require.NotNil(t, reply)
}

type slowStrategy struct{ delay time.Duration }

func (s slowStrategy) Query(ctx context.Context, query string, maxResults int) (retrieval.Record, error) {
	select {
	case <-time.After(s.delay):
		return retrieval.Record{Nodes: []retrieval.Node{{ID: "late"}}}, nil
	case <-ctx.Done():
		return retrieval.Record{}, ctx.Err()
	}
}
