// Package similarity implements the vector-similarity store as a pure
// value cache: an in-process cache of previously-computed
// retrieval records keyed by a fixed agent/query/max_results triple, so
// repeated identical fan-out requests skip the strategy round trip
// entirely. Entries are not scoped to a conversation and carry no TTL;
// they stay until the cache evicts them.
package similarity

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/uaelegal/agent-coordinator/internal/retrieval"
)

// Cache wraps a ristretto cache of retrieval.Record values.
type Cache struct {
	c *ristretto.Cache[string, retrieval.Record]
}

// New builds a Cache sized for numCounters/maxCost, following ristretto's
// own recommended defaults (10x expected entries for counters).
func New() (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, retrieval.Record]{
		NumCounters: 1_000_000,
		MaxCost:     1 << 26, // Set charges cost 1 per record: up to 1<<26 records
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity: new cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Key derives the cache key for a strategy query.
func Key(agentID, query string, maxResults int) string {
	return fmt.Sprintf("%s|%s|%d", agentID, query, maxResults)
}

// Get returns the cached record for key, if present.
func (c *Cache) Get(key string) (retrieval.Record, bool) {
	return c.c.Get(key)
}

// Set stores rec under key with a cost of 1 (count-based eviction; the
// records here are small and roughly uniform in size).
func (c *Cache) Set(key string, rec retrieval.Record) {
	c.c.Set(key, rec, 1)
	c.c.Wait()
}

// Close releases cache resources.
func (c *Cache) Close() {
	c.c.Close()
}
