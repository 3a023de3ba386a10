// Package conversation implements the Conversation Manager (C6): TTL
// bookkeeping for conversation ids, sharded to keep touch/sweep
// contention low under concurrent orchestrator fan-out.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const shardCount = 16

// Manager tracks conversation_id -> expiry_instant. Reads and writes are
// partitioned by hash across shardCount mutex-guarded maps so touch calls
// from unrelated conversations contend only when their ids hash to the
// same shard.
type Manager struct {
	shards [shardCount]shard
	now    func() time.Time
}

type shard struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// New builds an empty Manager.
func New() *Manager {
	m := &Manager{now: time.Now}
	for i := range m.shards {
		m.shards[i].expiry = make(map[string]time.Time)
	}
	return m
}

func (m *Manager) shardFor(id string) *shard {
	var h uint32
	for i := 0; i < len(id); i++ {
		h = h*31 + uint32(id[i])
	}
	return &m.shards[h%shardCount]
}

// Touch sets conversation_id's expiry to now+ttl if that is later than its
// current expiry (or the conversation is new). The orchestrator calls this
// on every incoming TASK.
func (m *Manager) Touch(conversationID string, ttl time.Duration) {
	s := m.shardFor(conversationID)
	newExpiry := m.now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.expiry[conversationID]; !ok || newExpiry.After(current) {
		s.expiry[conversationID] = newExpiry
	}
}

// Sweep removes every conversation whose expiry is in the past and
// returns the removed ids, for logging.
func (m *Manager) Sweep() []string {
	var removed []string
	now := m.now()
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for id, exp := range s.expiry {
			if now.After(exp) {
				delete(s.expiry, id)
				removed = append(removed, id)
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// NewConversationID generates a fresh opaque conversation id.
func (m *Manager) NewConversationID() string {
	return uuid.NewString()
}

// Expiry returns the current expiry for conversationID and whether it is
// tracked at all. Exposed for tests and diagnostics.
func (m *Manager) Expiry(conversationID string) (time.Time, bool) {
	s := m.shardFor(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[conversationID]
	return exp, ok
}
