// Package orchestrator implements the Orchestrator (C5): the state
// machine that parses a task envelope, fans it out to retrieval agents via
// the Router, merges the survivors, invokes synthesis, and emits the
// final reply envelope.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uaelegal/agent-coordinator/internal/conversation"
	"github.com/uaelegal/agent-coordinator/internal/envelope"
	"github.com/uaelegal/agent-coordinator/internal/graphdb"
	"github.com/uaelegal/agent-coordinator/internal/retrieval"
	"github.com/uaelegal/agent-coordinator/internal/router"
	"github.com/uaelegal/agent-coordinator/internal/similarity"
	"github.com/uaelegal/agent-coordinator/internal/synthesis"
)

// topK is the fixed number of citations forwarded to synthesis.
const topK = 5

const (
	strategyLocal  = "local"
	strategyGlobal = "global"
	strategyDrift  = "drift"
	strategyHybrid = "hybrid"
)

var allAgents = []string{"local_agent", "global_agent", "drift_agent"}

// Orchestrator wires a Router, a graph driver and a synthesis provider
// into the assistant/analysis task-type state machine.
type Orchestrator struct {
	router *router.Router
	convo  *conversation.Manager
	graph  graphdb.Client
	synth  synthesis.Provider
	cache  *similarity.Cache
	log    *logrus.Entry
	selfID string
}

// New builds an Orchestrator registered on router under selfID. A
// similarity cache is built eagerly; if it cannot be built the
// orchestrator runs on without one rather than failing startup.
func New(r *router.Router, convo *conversation.Manager, graph graphdb.Client, synth synthesis.Provider, log *logrus.Entry, selfID string) *Orchestrator {
	cache, err := similarity.New()
	if err != nil {
		cache = nil
		if log != nil {
			log.WithError(err).Warn("orchestrator: similarity cache disabled")
		}
	}
	o := &Orchestrator{router: r, convo: convo, graph: graph, synth: synth, cache: cache, log: log, selfID: selfID}
	r.Register(selfID, o.Handle)
	return o
}

type taskEnvelope struct {
	TaskType string `json:"task_type"`
}

// Handle implements router.Handler, dispatching on payload.task_type.
func (o *Orchestrator) Handle(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
	var head taskEnvelope
	if err := e.UnmarshalPayload(&head); err != nil {
		return o.failureReply(e, fmt.Sprintf("malformed task payload: %v", err)), nil
	}

	o.convo.Touch(e.ConversationID, time.Duration(e.TTLSeconds)*time.Second)

	switch head.TaskType {
	case "assistant_workflow":
		return o.handleAssistantWorkflow(ctx, e)
	case "analysis_workflow":
		return o.handleAnalysisWorkflow(ctx, e)
	default:
		return o.failureReply(e, fmt.Sprintf("Unknown task type: %s", head.TaskType)), nil
	}
}

func (o *Orchestrator) failureReply(e envelope.Envelope, reason string) *envelope.Envelope {
	reply := envelope.New(envelope.Result, o.selfID, e.Sender, e.ConversationID, e.TTLSeconds, map[string]any{
		"success": false,
		"error":   reason,
	}).Build()
	return &reply
}

// agentsForStrategy resolves a requested strategy name to the concrete
// set of agent ids that should be fanned out to.
func agentsForStrategy(strategy string) []string {
	switch strategy {
	case strategyLocal:
		return []string{"local_agent"}
	case strategyGlobal:
		return []string{"global_agent"}
	case strategyDrift:
		return []string{"drift_agent"}
	default: // hybrid or anything else
		return allAgents
	}
}

// perAgentBudget splits maxResults across numAgents, flooring at 1: a
// floor division that truncates to zero would mean some agents are asked
// for zero results, which is indistinguishable from "don't call this
// agent" and defeats fan-out tolerance testing. A minimum of 1 keeps
// every selected agent meaningfully queried.
func perAgentBudget(maxResults, numAgents int) int {
	if numAgents <= 1 {
		return maxResults
	}
	budget := maxResults / numAgents
	if budget < 1 {
		budget = 1
	}
	return budget
}

// fanOut dispatches a retrieve TASK to each agent concurrently via the
// Router and collects whichever replies succeed before deadline elapses.
// Replies are ordered by agent id for deterministic merge input.
func (o *Orchestrator) fanOut(ctx context.Context, parent envelope.Envelope, agents []string, query string, budget int, deadline time.Time) []retrieval.Record {
	type outcome struct {
		agentID string
		record  retrieval.Record
		ok      bool
	}

	results := make(chan outcome, len(agents))
	ttl := int(time.Until(deadline).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	var wg sync.WaitGroup
	for _, agentID := range agents {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()

			cacheKey := similarity.Key(agentID, query, budget)
			if o.cache != nil {
				if rec, ok := o.cache.Get(cacheKey); ok {
					rec.AgentID = agentID
					results <- outcome{agentID: agentID, record: rec, ok: true}
					return
				}
			}

			task := envelope.New(envelope.Task, o.selfID, agentID, parent.ConversationID, ttl, map[string]any{
				"task_type":   "retrieve",
				"query":       query,
				"max_results": budget,
			}).Build()
			o.convo.Touch(parent.ConversationID, time.Duration(ttl)*time.Second)

			reply := o.router.Route(ctx, task)
			if reply == nil || reply.MessageType != envelope.Result {
				results <- outcome{agentID: agentID}
				return
			}
			var payload retrieval.ResultPayload
			if err := reply.UnmarshalPayload(&payload); err != nil || !payload.Success {
				results <- outcome{agentID: agentID}
				return
			}
			var record retrieval.Record
			if err := json.Unmarshal(payload.Result, &record); err != nil {
				results <- outcome{agentID: agentID}
				return
			}
			record.AgentID = agentID
			if o.cache != nil {
				o.cache.Set(cacheKey, record)
			}
			results <- outcome{agentID: agentID, record: record, ok: true}
		}(agentID)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make(map[string]retrieval.Record)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

loop:
	for {
		select {
		case out, open := <-results:
			if !open {
				break loop
			}
			if out.ok {
				collected[out.agentID] = out.record
			}
		case <-timer.C:
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	ordered := make([]string, 0, len(agents))
	ordered = append(ordered, agents...)
	sort.Strings(ordered)

	var records []retrieval.Record
	for _, agentID := range ordered {
		if rec, ok := collected[agentID]; ok {
			records = append(records, rec)
		}
	}
	return records
}

func citationExcerpts(citations []retrieval.Citation, k int) []string {
	if len(citations) > k {
		citations = citations[:k]
	}
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		out = append(out, c.Content)
	}
	return out
}
