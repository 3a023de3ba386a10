// Package envelope defines the unit of communication between agents on the
// coordination bus and its deterministic on-disk encoding.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies the intent of an envelope.
type Type string

const (
	Task      Type = "task"
	Result    Type = "result"
	Error     Type = "error"
	Heartbeat Type = "heartbeat"
)

// Envelope is immutable once constructed; callers that need to change a
// field should build a new one.
type Envelope struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	MessageType    Type            `json:"message_type"`
	Sender         string          `json:"sender"`
	Recipient      string          `json:"recipient,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	TTLSeconds     int             `json:"ttl"`
	Payload        json.RawMessage `json:"payload"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// Builder fills message_id, timestamp and metadata with sane defaults so
// callers only ever supply what's required for their message.
type Builder struct {
	e Envelope
}

// New starts a builder for a task/result/error/heartbeat envelope. payload
// is marshaled as-is; pass a struct, not raw bytes.
func New(msgType Type, sender, recipient, conversationID string, ttlSeconds int, payload any) *Builder {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	return &Builder{e: Envelope{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		MessageType:    msgType,
		Sender:         sender,
		Recipient:      recipient,
		Timestamp:      time.Now().UTC(),
		TTLSeconds:     ttlSeconds,
		Payload:        raw,
		Metadata:       map[string]any{},
	}}
}

// WithMessageID overrides the generated message id. Exposed for tests that
// need deterministic ids.
func (b *Builder) WithMessageID(id string) *Builder {
	b.e.MessageID = id
	return b
}

// WithTimestamp overrides the generated timestamp. Exposed for tests.
func (b *Builder) WithTimestamp(t time.Time) *Builder {
	b.e.Timestamp = t
	return b
}

// WithMetadata merges keys into the envelope's metadata map.
func (b *Builder) WithMetadata(kv map[string]any) *Builder {
	for k, v := range kv {
		b.e.Metadata[k] = v
	}
	return b
}

// Build returns the finished envelope.
func (b *Builder) Build() Envelope {
	return b.e
}

// ExpiresAt returns the instant at which e is no longer valid.
func (e Envelope) ExpiresAt() time.Time {
	return e.Timestamp.Add(time.Duration(e.TTLSeconds) * time.Second)
}

// IsExpired reports whether e's TTL had already elapsed as of now.
func (e Envelope) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// UnmarshalPayload decodes e.Payload into v.
func (e Envelope) UnmarshalPayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope: empty payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// encoded mirrors the stable, deterministic persistence shape from the
// boundary contract: field order is fixed regardless of map iteration
// order elsewhere in the program.
type encoded struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	MessageType    string          `json:"message_type"`
	Sender         string          `json:"sender"`
	Recipient      *string         `json:"recipient"`
	Timestamp      string          `json:"timestamp"`
	TTL            int             `json:"ttl"`
	Payload        json.RawMessage `json:"payload"`
	Metadata       json.RawMessage `json:"metadata"`
}

// Encode serializes e with a fixed field order so trace replay reproduces
// the original byte image regardless of how the caller built the value.
func Encode(e Envelope) ([]byte, error) {
	var recipient *string
	if e.Recipient != "" {
		recipient = &e.Recipient
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode metadata: %w", err)
	}
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	enc := encoded{
		MessageID:      e.MessageID,
		ConversationID: e.ConversationID,
		MessageType:    string(e.MessageType),
		Sender:         e.Sender,
		Recipient:      recipient,
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		TTL:            e.TTLSeconds,
		Payload:        payload,
		Metadata:       metaRaw,
	}
	return json.Marshal(enc)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Envelope, error) {
	var enc encoded
	if err := json.Unmarshal(data, &enc); err != nil {
		return Envelope{}, fmt.Errorf("envelope: decode: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, enc.Timestamp)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: decode timestamp: %w", err)
	}
	var meta map[string]any
	if len(enc.Metadata) > 0 {
		if err := json.Unmarshal(enc.Metadata, &meta); err != nil {
			return Envelope{}, fmt.Errorf("envelope: decode metadata: %w", err)
		}
	}
	recipient := ""
	if enc.Recipient != nil {
		recipient = *enc.Recipient
	}
	return Envelope{
		MessageID:      enc.MessageID,
		ConversationID: enc.ConversationID,
		MessageType:    Type(enc.MessageType),
		Sender:         enc.Sender,
		Recipient:      recipient,
		Timestamp:      ts,
		TTLSeconds:     enc.TTL,
		Payload:        enc.Payload,
		Metadata:       meta,
	}, nil
}
