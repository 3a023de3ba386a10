package graphdb

import (
	"context"
	"sort"
	"sync"
)

// MemoryClient is an in-process reference Client, useful for tests and for
// seeding deterministic fixtures. Real deployments would instead implement
// Client against whatever graph driver they run (the pack carries no
// ready-made Go client for one, so this stands in for it).
type MemoryClient struct {
	mu             sync.RWMutex
	byStrategy     map[string]SearchResult
	contradictions []ContradictionEdge
}

// NewMemoryClient returns an empty in-memory graph client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{byStrategy: make(map[string]SearchResult)}
}

// Seed registers the fixed SearchResult a strategy should return,
// regardless of query text. Intended for tests.
func (m *MemoryClient) Seed(strategy string, result SearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byStrategy[strategy] = result
}

// SeedContradictions registers the fixed set of contradiction edges
// Contradictions will return. Intended for tests.
func (m *MemoryClient) SeedContradictions(edges []ContradictionEdge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contradictions = edges
}

func (m *MemoryClient) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.byStrategy[req.Strategy]
	if !ok {
		return SearchResult{}, nil
	}
	if req.MaxResults > 0 && len(result.Nodes) > req.MaxResults {
		result.Nodes = result.Nodes[:req.MaxResults]
	}
	return result, nil
}

func (m *MemoryClient) Contradictions(ctx context.Context, nodeIDs []string) ([]ContradictionEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	present := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		present[id] = true
	}

	var out []ContradictionEdge
	for _, edge := range m.contradictions {
		if present[edge.Source] && present[edge.Target] {
			out = append(out, edge)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}

func (m *MemoryClient) Close() error { return nil }
