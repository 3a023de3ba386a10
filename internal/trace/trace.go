// Package trace implements the append-only envelope log (C1): every
// envelope the router dispatches or synthesizes is persisted here before
// the corresponding handler runs or a reply is returned.
package trace

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/uaelegal/agent-coordinator/internal/envelope"
)

// Store is the persistence contract for C1. Implementations must be safe
// for concurrent use; reads must return a consistent snapshot at call
// time even while writes are in flight.
type Store interface {
	Append(ctx context.Context, e envelope.Envelope) error
	ByConversation(ctx context.Context, conversationID string) ([]envelope.Envelope, error)
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// timestampLayout is a fixed-width UTC layout, so the stored timestamp
// column sorts and compares as text in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the default Store backed by mattn/go-sqlite3. A single
// mutex serializes writes; reads go through the same *sql.DB and are safe
// to run concurrently with writes because sqlite3's driver already
// serializes at the connection level for a single *sql.DB.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or attaches to) a sqlite-backed trace store at path. Use
// ":memory:" for ephemeral stores in tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("trace: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS envelopes (
	message_id      TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	timestamp       TEXT NOT NULL,
	inserted_at     INTEGER NOT NULL,
	body            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_envelopes_conversation ON envelopes(conversation_id, timestamp);
`)
	if err != nil {
		return fmt.Errorf("trace: migrate: %w", err)
	}
	return nil
}

// Append stores e. Idempotent on MessageID: re-appending an id already on
// disk is a no-op that returns nil.
func (s *SQLiteStore) Append(ctx context.Context, e envelope.Envelope) error {
	body, err := envelope.Encode(e)
	if err != nil {
		return fmt.Errorf("trace: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
INSERT INTO envelopes (message_id, conversation_id, timestamp, inserted_at, body)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(message_id) DO NOTHING`,
		e.MessageID, e.ConversationID, e.Timestamp.UTC().Format(timestampLayout), time.Now().UnixNano(), string(body))
	if err != nil {
		return fmt.Errorf("trace: append: %w", err)
	}
	return nil
}

// ByConversation returns every envelope for conversationID, ascending by
// timestamp then insertion order.
func (s *SQLiteStore) ByConversation(ctx context.Context, conversationID string) ([]envelope.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT body FROM envelopes WHERE conversation_id = ? ORDER BY timestamp ASC, inserted_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("trace: query: %w", err)
	}
	defer rows.Close()

	var out []envelope.Envelope
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("trace: scan: %w", err)
		}
		e, err := envelope.Decode([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("trace: decode: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Belt-and-suspenders: readers must tolerate out-of-causal-order
	// writers even though the query already orders by timestamp.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Cleanup deletes every envelope whose timestamp is strictly before
// olderThan and returns the count removed.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM envelopes WHERE timestamp < ?`, olderThan.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("trace: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
