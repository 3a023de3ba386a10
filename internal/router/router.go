// Package router implements the Router (C2): a frozen-after-startup
// registry of agent_id -> Handler with synchronous, TTL-aware dispatch.
package router

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uaelegal/agent-coordinator/internal/envelope"
	"github.com/uaelegal/agent-coordinator/internal/telemetry"
	"github.com/uaelegal/agent-coordinator/internal/trace"
)

// Handler processes an envelope addressed to the agent it's registered
// under and optionally returns a reply. A returned error is treated as an
// unexpected handler failure (HandlerFailure) and is never propagated to
// the caller of route directly -- the Router converts it into an ERROR
// envelope instead.
type Handler func(ctx context.Context, e envelope.Envelope) (*envelope.Envelope, error)

// Router dispatches envelopes to registered handlers. The registry is
// populated once at startup via Register and is read-only thereafter, so
// route needs no lock around registry lookups on the hot path.
type Router struct {
	handlers map[string]Handler
	trace    trace.Store
	log      *logrus.Entry
}

// New builds a Router backed by store for trace persistence. log may be
// nil, in which case a disabled logger is used.
func New(store trace.Store, log *logrus.Entry) *Router {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Router{
		handlers: make(map[string]Handler),
		trace:    store,
		log:      log,
	}
}

// Register installs handler under agentID. A second registration for the
// same id overwrites the first. Intended to be called only during
// startup, before any call to Route.
func (r *Router) Register(agentID string, handler Handler) {
	r.handlers[agentID] = handler
}

// Route is the sole dispatch entry point. It is safe for concurrent
// callers; handlers are invoked without any lock held by the router.
func (r *Router) Route(ctx context.Context, e envelope.Envelope) *envelope.Envelope {
	log := telemetry.Span(r.log, "a2a.route", e.ConversationID)
	now := time.Now().UTC()

	// 1. TTL check: silent drop, no handler invocation, no reply. The
	// dropped envelope is still appended to the trace (best-effort).
	if e.IsExpired(now) {
		if r.trace != nil {
			if err := r.trace.Append(ctx, e); err != nil {
				log.WithError(err).WithField("message_id", e.MessageID).Warn("router: trace append failed for expired envelope")
			}
		}
		log.WithFields(logrus.Fields{
			"message_id":      e.MessageID,
			"conversation_id": e.ConversationID,
		}).Debug("router: dropping expired envelope")
		return nil
	}

	// 2. Trace append is best-effort: a failure is logged and routing
	// proceeds, because trace durability is operational, not
	// correctness-bearing.
	if r.trace != nil {
		if err := r.trace.Append(ctx, e); err != nil {
			log.WithError(err).WithField("message_id", e.MessageID).Warn("router: trace append failed")
		}
	}

	// 3. Unregistered recipient: silent drop, caller treats missing reply
	// as failure.
	handler, ok := r.handlers[e.Recipient]
	if !ok {
		log.WithFields(logrus.Fields{
			"message_id": e.MessageID,
			"recipient":  e.Recipient,
		}).Debug("router: unknown recipient")
		return nil
	}

	// 4 & 5. Invoke the handler; unexpected failures (returned error or
	// panic) become a synthesized ERROR envelope, never a propagated Go
	// error or panic across the route() boundary.
	reply, err := r.invoke(ctx, handler, e)
	if err != nil {
		errEnv := r.synthesizeError(e, err)
		if r.trace != nil {
			if appendErr := r.trace.Append(ctx, errEnv); appendErr != nil {
				log.WithError(appendErr).Warn("router: trace append failed for error envelope")
			}
		}
		return &errEnv
	}

	// 6. Append and return the handler's reply, if any.
	if reply != nil && r.trace != nil {
		if appendErr := r.trace.Append(ctx, *reply); appendErr != nil {
			log.WithError(appendErr).Warn("router: trace append failed for reply envelope")
		}
	}
	return reply
}

// invoke calls handler and converts any panic into an error so a single
// misbehaving agent can never bring down the router's calling goroutine.
func (r *Router) invoke(ctx context.Context, handler Handler, e envelope.Envelope) (reply *envelope.Envelope, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("router: handler panicked: %v", p)
		}
	}()
	return handler(ctx, e)
}

func (r *Router) synthesizeError(original envelope.Envelope, cause error) envelope.Envelope {
	payload := map[string]any{
		"error":                cause.Error(),
		"original_message_id": original.MessageID,
	}
	return envelope.New(envelope.Error, "system", original.Sender, original.ConversationID, original.TTLSeconds, payload).Build()
}
