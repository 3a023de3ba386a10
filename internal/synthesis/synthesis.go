// Package synthesis defines the LLM collaborator contract: given merged
// citations, produce human-readable response text. The core never
// inspects which model or provider services the call.
package synthesis

import (
	"context"
	"strconv"
)

// Message is one turn of the synthesis prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is what the orchestrator hands the synthesis collaborator.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Provider turns a Request into response text, or an error on failure.
// A failure is a SynthesisFailure: the orchestrator substitutes a
// graceful fallback rather than propagating it to the caller.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// BuildPrompt assembles the fixed two-message prompt the assistant
// workflow sends: a system turn naming the strategy and a user turn with
// the query and the top-K citation excerpts.
func BuildPrompt(query, strategyLabel string, citationExcerpts []string) []Message {
	system := Message{
		Role:    "system",
		Content: "You are a legal research assistant. Answer using only the provided citations. Strategy: " + strategyLabel + ".",
	}
	content := query + "\n\nCitations:\n"
	for i, c := range citationExcerpts {
		content += strconv.Itoa(i+1) + ". " + c + "\n"
	}
	return []Message{system, {Role: "user", Content: content}}
}
