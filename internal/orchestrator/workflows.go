package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/uaelegal/agent-coordinator/internal/envelope"
	"github.com/uaelegal/agent-coordinator/internal/merge"
	"github.com/uaelegal/agent-coordinator/internal/synthesis"
	"github.com/uaelegal/agent-coordinator/internal/telemetry"
)

type assistantTaskInput struct {
	Query      string `json:"query"`
	Strategy   string `json:"strategy"`
	MaxResults int    `json:"max_results"`
}

// handleAssistantWorkflow fans out a query to the selected retrieval
// agents, merges the survivors, and synthesizes a response.
func (o *Orchestrator) handleAssistantWorkflow(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
	log := telemetry.Span(o.log, "orchestrator.assistant_workflow", e.ConversationID)

	var in assistantTaskInput
	if err := e.UnmarshalPayload(&in); err != nil {
		return o.failureReply(e, fmt.Sprintf("malformed assistant_workflow payload: %v", err)), nil
	}
	if in.MaxResults <= 0 {
		in.MaxResults = 10
	}

	agents := agentsForStrategy(in.Strategy)
	budget := perAgentBudget(in.MaxResults, len(agents))
	deadline := e.ExpiresAt()

	records := o.fanOut(ctx, e, agents, in.Query, budget, deadline)
	if len(records) == 0 {
		return o.failureReply(e, "all agents failed"), nil
	}

	merged := merge.Merge(records)

	strategyLabel := in.Strategy
	if strategyLabel == "" {
		strategyLabel = strategyHybrid
	}

	excerpts := citationExcerpts(merged.Citations, topK)
	synthText, synthMode := o.synthesize(ctx, log, in.Query, strategyLabel, excerpts)

	citations := merged.Citations
	if len(citations) > topK {
		citations = citations[:topK]
	}

	result := AssistantResult{
		ResponseText:   synthText,
		ConversationID: e.ConversationID,
		Citations:      citations,
		Nodes:          merged.Nodes,
		Edges:          merged.Edges,
		Metadata: AssistantMetadata{
			Strategy:   strategyLabel,
			Coverage:   merged.Coverage,
			Confidence: merged.Confidence,
			AgentsUsed: merged.AgentsUsed,
			Synthesis:  synthMode,
		},
	}

	reply := envelope.New(envelope.Result, o.selfID, e.Sender, e.ConversationID, e.TTLSeconds, map[string]any{
		"success": true,
		"result":  result,
	}).Build()
	return &reply, nil
}

// synthesize invokes the synthesis collaborator, falling back to an
// apologetic string on failure while marking metadata.synthesis so tests
// can assert the degradation happened.
func (o *Orchestrator) synthesize(ctx context.Context, log *logrus.Entry, query, strategyLabel string, excerpts []string) (text string, mode string) {
	if o.synth == nil {
		return fallbackText(query), "fallback"
	}
	req := synthesis.Request{
		Messages:    synthesis.BuildPrompt(query, strategyLabel, excerpts),
		Temperature: 0.2,
		MaxTokens:   800,
	}
	out, err := o.synth.Complete(ctx, req)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("orchestrator: synthesis failed, using fallback")
		}
		return fallbackText(query), "fallback"
	}
	return out, "model"
}

func fallbackText(query string) string {
	return fmt.Sprintf("I wasn't able to generate a full answer for %q right now, but the supporting citations below are still relevant.", query)
}

type analysisTaskInput struct {
	Query        string `json:"query"`
	AnalysisType string `json:"analysis_type"`
	MaxDepth     int    `json:"max_depth"`
}

// handleAnalysisWorkflow fans out a query to every retrieval agent, merges
// the survivors, and derives contradictions from the merged node set.
func (o *Orchestrator) handleAnalysisWorkflow(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
	log := telemetry.Span(o.log, "orchestrator.analysis_workflow", e.ConversationID)

	var in analysisTaskInput
	if err := e.UnmarshalPayload(&in); err != nil {
		return o.failureReply(e, fmt.Sprintf("malformed analysis_workflow payload: %v", err)), nil
	}
	if in.AnalysisType == "" {
		in.AnalysisType = "contradiction"
	}
	if in.MaxDepth <= 0 {
		in.MaxDepth = 3
	}

	agents := allAgents
	const analysisMaxResults = 15
	budget := perAgentBudget(analysisMaxResults, len(agents))
	deadline := e.ExpiresAt()

	records := o.fanOut(ctx, e, agents, in.Query, budget, deadline)
	if len(records) == 0 {
		return o.failureReply(e, "all agents failed"), nil
	}

	merged := merge.Merge(records)
	nodeIDs := make([]string, 0, len(merged.Nodes))
	for _, n := range merged.Nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}

	contradictions, harmonizations, recommendations, stats := o.deriveContradictions(ctx, log, nodeIDs)

	summary := buildSummary(in.Query, stats)
	citations := merged.Citations
	if len(citations) > topK {
		citations = citations[:topK]
	}

	result := AnalysisResult{
		Query:           in.Query,
		Contradictions:  contradictions,
		Recommendations: recommendations,
		Summary:         summary,
		Confidence:      merged.Confidence,
		Stats:           stats,
		Harmonizations:  harmonizations,
		Citations:       citations,
	}

	reply := envelope.New(envelope.Result, o.selfID, e.Sender, e.ConversationID, e.TTLSeconds, map[string]any{
		"success": true,
		"result":  result,
	}).Build()
	return &reply, nil
}

func (o *Orchestrator) deriveContradictions(ctx context.Context, log *logrus.Entry, nodeIDs []string) ([]Contradiction, []Harmonization, []Recommendation, AnalysisStats) {
	var stats AnalysisStats
	if o.graph == nil || len(nodeIDs) == 0 {
		return nil, nil, nil, stats
	}

	edges, err := o.graph.Contradictions(ctx, nodeIDs)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("orchestrator: contradiction lookup failed")
		}
		return nil, nil, nil, stats
	}

	var contradictions []Contradiction
	var harmonizations []Harmonization
	var recommendations []Recommendation

	for i, edge := range edges {
		severity := edge.Severity
		if severity == "" {
			severity = severityFromPriority(edge.Priority)
		}
		id := fmt.Sprintf("contradiction-%d", i+1)

		contradictions = append(contradictions, Contradiction{
			ID:          id,
			Title:       fmt.Sprintf("%s vs %s", edge.Source, edge.Target),
			Description: edge.Description,
			Severity:    severity,
			Priority:    edge.Priority,
			Category:    edge.Category,
			Sources:     []string{edge.Source, edge.Target},
			Impact:      severityTable[severity].costImpact,
			Recommendation: fmt.Sprintf("Harmonize %s and %s under a single controlling provision.", edge.Source, edge.Target),
		})

		harmonizations = append(harmonizations, Harmonization{
			ContradictionID: id,
			Approach:        fmt.Sprintf("Reconcile %s and %s by adopting the higher-specificity provision.", edge.Source, edge.Target),
			Sources:         []string{edge.Source, edge.Target},
		})

		row := severityTable[severity]
		recommendations = append(recommendations, Recommendation{
			ContradictionID: id,
			Priority:        row.priority,
			Timeline:        row.timeline,
			CostImpact:      row.costImpact,
			Action:          fmt.Sprintf("Review and resolve the conflict between %s and %s.", edge.Source, edge.Target),
		})

		switch severity {
		case "critical":
			stats.CriticalCount++
		case "high":
			stats.HighCount++
		case "medium":
			stats.MediumCount++
		default:
			stats.LowCount++
		}
	}

	return contradictions, harmonizations, recommendations, stats
}

func buildSummary(query string, stats AnalysisStats) string {
	total := stats.CriticalCount + stats.HighCount + stats.MediumCount + stats.LowCount
	if total == 0 {
		return fmt.Sprintf("No contradictions were found for %q. Consider broadening the query.", query)
	}
	return fmt.Sprintf("Found %d contradiction(s) for %q: %d critical, %d high, %d medium, %d low.",
		total, query, stats.CriticalCount, stats.HighCount, stats.MediumCount, stats.LowCount)
}
