package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uaelegal/agent-coordinator/internal/envelope"
	"github.com/uaelegal/agent-coordinator/internal/trace"
)

func newTestRouter(t *testing.T) (*Router, trace.Store) {
	t.Helper()
	store, err := trace.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, nil), store
}

func TestRouteDropsExpiredEnvelope(t *testing.T) {
	r, store := newTestRouter(t)
	called := false
	r.Register("local_agent", func(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
		called = true
		return nil, nil
	})

	e := envelope.New(envelope.Task, "orchestrator", "local_agent", "conv-1", 1, map[string]any{}).
		WithMessageID("s1").WithTimestamp(time.Now().Add(-2 * time.Second)).Build()

	reply := r.Route(context.Background(), e)
	require.Nil(t, reply)
	require.False(t, called, "handler must not be invoked for an expired envelope")

	traced, err := store.ByConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, traced, 1, "the dropped envelope is still traced")
}

func TestRouteUnknownRecipientReturnsNoReply(t *testing.T) {
	r, _ := newTestRouter(t)
	e := envelope.New(envelope.Task, "orchestrator", "ghost_agent", "conv-2", 30, map[string]any{}).Build()
	reply := r.Route(context.Background(), e)
	require.Nil(t, reply)
}

func TestRouteHandlerErrorSynthesizesErrorEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)
	r.Register("local_agent", func(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
		return nil, errors.New("strategy unavailable")
	})

	e := envelope.New(envelope.Task, "orchestrator", "local_agent", "conv-3", 30, map[string]any{}).Build()
	reply := r.Route(context.Background(), e)
	require.NotNil(t, reply)
	require.Equal(t, envelope.Error, reply.MessageType)
	require.Equal(t, "system", reply.Sender)
	require.Equal(t, "orchestrator", reply.Recipient)
}

func TestRouteHandlerPanicSynthesizesErrorEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)
	r.Register("local_agent", func(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
		panic("boom")
	})

	e := envelope.New(envelope.Task, "orchestrator", "local_agent", "conv-4", 30, map[string]any{}).Build()
	reply := r.Route(context.Background(), e)
	require.NotNil(t, reply)
	require.Equal(t, envelope.Error, reply.MessageType)
}

func TestRouteReturnsHandlerReply(t *testing.T) {
	r, _ := newTestRouter(t)
	r.Register("local_agent", func(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error) {
		reply := envelope.New(envelope.Result, "local_agent", e.Sender, e.ConversationID, 30, map[string]any{"success": true}).Build()
		return &reply, nil
	})

	e := envelope.New(envelope.Task, "orchestrator", "local_agent", "conv-5", 30, map[string]any{}).Build()
	reply := r.Route(context.Background(), e)
	require.NotNil(t, reply)
	require.Equal(t, envelope.Result, reply.MessageType)
}
