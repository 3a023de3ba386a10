// Package retrieval defines the Retrieval Record data model and the three
// retrieval agents (C3): local, global and drift. Each agent wraps one
// opaque strategy collaborator; the core never inspects how a record is
// produced. Coverage and confidence are passed through as the strategy
// returns them; nothing here checks that they lie in [0,1].
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uaelegal/agent-coordinator/internal/envelope"
	"github.com/uaelegal/agent-coordinator/internal/graphdb"
)

// Node is a single graph node surfaced by a retrieval strategy.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Edge is a single graph edge surfaced by a retrieval strategy.
type Edge struct {
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Type     string         `json:"type"`
	Weight   float64        `json:"weight"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Citation is a source reference attached to a retrieval record.
type Citation struct {
	NodeID  string  `json:"node_id"`
	Type    string  `json:"type"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Record is the uniform output shape every retrieval agent produces.
type Record struct {
	AgentID    string     `json:"agent_id"`
	Strategy   string     `json:"strategy"`
	Query      string     `json:"query"`
	Nodes      []Node     `json:"nodes"`
	Edges      []Edge     `json:"edges"`
	Citations  []Citation `json:"citations"`
	Coverage   float64    `json:"coverage"`
	Confidence float64    `json:"confidence"`
}

// TaskInput is the decoded payload of a retrieve task envelope.
type TaskInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Strategy is the opaque collaborator each agent wraps: given a query and
// a result budget it produces a Record, or an error if it cannot.
type Strategy interface {
	Query(ctx context.Context, query string, maxResults int) (Record, error)
}

// Agent adapts a Strategy into the Router's Handler contract: success is
// always a RESULT envelope, never a thrown error. Only conditions the
// agent itself cannot model (e.g. a handler panic) reach the Router as a
// failure.
type Agent struct {
	id       string
	strategy Strategy
}

// NewAgent builds a retrieval agent identified by id, wrapping strategy.
func NewAgent(id string, strategy Strategy) *Agent {
	return &Agent{id: id, strategy: strategy}
}

// Handle implements router.Handler. It accepts task_type=retrieve only;
// any other task type is a modelled failure, not a panic.
func (a *Agent) Handle(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
	var payload struct {
		TaskType string `json:"task_type"`
		TaskInput
	}
	if err := e.UnmarshalPayload(&payload); err != nil {
		return a.failureReply(e, fmt.Sprintf("malformed task payload: %v", err)), nil
	}
	if payload.TaskType != "retrieve" {
		return a.failureReply(e, fmt.Sprintf("unsupported task type: %s", payload.TaskType)), nil
	}

	record, err := a.strategy.Query(ctx, payload.Query, payload.MaxResults)
	if err != nil {
		return a.failureReply(e, err.Error()), nil
	}
	record.AgentID = a.id

	reply := envelope.New(envelope.Result, a.id, e.Sender, e.ConversationID, e.TTLSeconds, map[string]any{
		"success":       true,
		"result":        record,
		"original_task": "retrieve",
		"agent_id":      a.id,
	}).Build()
	return &reply, nil
}

func (a *Agent) failureReply(e envelope.Envelope, reason string) *envelope.Envelope {
	reply := envelope.New(envelope.Result, a.id, e.Sender, e.ConversationID, e.TTLSeconds, map[string]any{
		"success": false,
		"error":   reason,
	}).Build()
	return &reply
}

// ResultPayload mirrors the shape agents reply with, for callers that
// need to decode a retrieval RESULT envelope's payload.
type ResultPayload struct {
	Success      bool            `json:"success"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	OriginalTask string          `json:"original_task,omitempty"`
	AgentID      string          `json:"agent_id,omitempty"`
}

// LocalStrategy performs a bounded local-neighborhood graph lookup.
type LocalStrategy struct{ DB graphdb.Client }

func (s LocalStrategy) Query(ctx context.Context, query string, maxResults int) (Record, error) {
	return queryGraph(ctx, s.DB, "local", query, maxResults)
}

// GlobalStrategy performs a community-summary graph lookup.
type GlobalStrategy struct{ DB graphdb.Client }

func (s GlobalStrategy) Query(ctx context.Context, query string, maxResults int) (Record, error) {
	return queryGraph(ctx, s.DB, "global", query, maxResults)
}

// DriftStrategy performs an iterative, drift-style graph lookup.
type DriftStrategy struct{ DB graphdb.Client }

func (s DriftStrategy) Query(ctx context.Context, query string, maxResults int) (Record, error) {
	return queryGraph(ctx, s.DB, "drift", query, maxResults)
}

func queryGraph(ctx context.Context, db graphdb.Client, strategy, query string, maxResults int) (Record, error) {
	result, err := db.Search(ctx, graphdb.SearchRequest{Strategy: strategy, Query: query, MaxResults: maxResults})
	if err != nil {
		return Record{}, fmt.Errorf("retrieval: %s strategy: %w", strategy, err)
	}

	rec := Record{
		Strategy:   strategy,
		Query:      query,
		Coverage:   result.Coverage,
		Confidence: result.Confidence,
	}
	for _, n := range result.Nodes {
		rec.Nodes = append(rec.Nodes, Node{ID: n.ID, Type: n.Type, Content: n.Content, Metadata: n.Metadata, Score: n.Score})
	}
	for _, edg := range result.Edges {
		rec.Edges = append(rec.Edges, Edge{Source: edg.Source, Target: edg.Target, Type: edg.Type, Weight: edg.Weight, Metadata: edg.Metadata})
	}
	for _, c := range result.Citations {
		rec.Citations = append(rec.Citations, Citation{NodeID: c.NodeID, Type: c.Type, Content: c.Content, Score: c.Score})
	}
	return rec, nil
}
