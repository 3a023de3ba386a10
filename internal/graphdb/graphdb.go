// Package graphdb abstracts the underlying graph-database driver the
// retrieval strategies query on the core's behalf. The core never imports
// a concrete driver: the graph store is treated as an external
// collaborator reached only through this interface.
package graphdb

import "context"

// NodeRecord is one node as returned by the graph driver.
type NodeRecord struct {
	ID       string
	Type     string
	Content  string
	Metadata map[string]any
	Score    float64
}

// EdgeRecord is one edge as returned by the graph driver.
type EdgeRecord struct {
	Source   string
	Target   string
	Type     string
	Weight   float64
	Metadata map[string]any
}

// CitationRecord is one citation as returned by the graph driver.
type CitationRecord struct {
	NodeID  string
	Type    string
	Content string
	Score   float64
}

// SearchRequest parameterizes a single strategy query.
type SearchRequest struct {
	Strategy   string
	Query      string
	MaxResults int
}

// SearchResult is the raw shape a strategy query returns before the
// retrieval package reshapes it into a Record.
type SearchResult struct {
	Nodes      []NodeRecord
	Edges      []EdgeRecord
	Citations  []CitationRecord
	Coverage   float64
	Confidence float64
}

// ContradictionEdge is a RELATES_TO edge carrying CONTRADICTS attributes,
// as needed by the analysis workflow.
type ContradictionEdge struct {
	Source      string
	Target      string
	Priority    string
	Severity    string
	Category    string
	Description string
}

// Client is the graph driver contract. Implementations wrap whatever
// client library the deployment uses; the core only ever sees this
// interface.
type Client interface {
	// Search executes one retrieval strategy query.
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)

	// Contradictions returns RELATES_TO/CONTRADICTS edges between any of
	// the given node ids, for the analysis workflow.
	Contradictions(ctx context.Context, nodeIDs []string) ([]ContradictionEdge, error)

	// Close releases driver resources.
	Close() error
}
