// Package api implements the API Boundary Adapter (C7): a thin HTTP
// surface that decodes external requests into TASK envelopes, calls
// Router.Route, and unwraps the reply. No business logic lives here.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/uaelegal/agent-coordinator/internal/conversation"
	"github.com/uaelegal/agent-coordinator/internal/envelope"
	"github.com/uaelegal/agent-coordinator/internal/ratelimit"
	"github.com/uaelegal/agent-coordinator/internal/router"
	"github.com/uaelegal/agent-coordinator/internal/trace"
)

var errInvalidJSON = fmt.Errorf("invalid JSON body")

const (
	orchestratorID   = "orchestrator"
	defaultTTLSecond = 30
)

var assistantSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"message": {"type": "string", "minLength": 1},
		"conversation_id": {"type": "string"},
		"max_results": {"type": "integer", "minimum": 1},
		"strategy": {"type": "string", "enum": ["local", "global", "drift", "hybrid"]}
	},
	"required": ["message"]
}`)

var analysisSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1},
		"analysis_type": {"type": "string"},
		"max_depth": {"type": "integer", "minimum": 1}
	},
	"required": ["query"]
}`)

// Adapter is the C7 HTTP boundary: request decoding and envelope
// unwrapping only.
type Adapter struct {
	router  *router.Router
	convo   *conversation.Manager
	trace   trace.Store
	limiter *ratelimit.Limiter
	log     *logrus.Entry
}

// New builds an Adapter.
func New(r *router.Router, convo *conversation.Manager, store trace.Store, limiter *ratelimit.Limiter, log *logrus.Entry) *Adapter {
	return &Adapter{router: r, convo: convo, trace: store, limiter: limiter, log: log}
}

// Routes returns the chi router mounting this adapter's handlers.
func (a *Adapter) Routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", a.handleHealthz)
	mux.Post("/assistant", a.handleAssistant)
	mux.Post("/analysis", a.handleAnalysis)
	mux.Get("/conversation/{id}", a.handleConversation)
	return mux
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type assistantRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	MaxResults     int    `json:"max_results"`
	Strategy       string `json:"strategy"`
}

func (a *Adapter) handleAssistant(w http.ResponseWriter, r *http.Request) {
	body, err := validateAgainstSchema(r, assistantSchema)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req assistantRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = 10
	}
	if req.Strategy == "" {
		req.Strategy = "hybrid"
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = a.convo.NewConversationID()
	}
	if a.limiter != nil && !a.limiter.Allow(conversationID) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	a.convo.Touch(conversationID, defaultTTLSecond*time.Second)

	task := envelope.New(envelope.Task, "api", orchestratorID, conversationID, defaultTTLSecond, map[string]any{
		"task_type":   "assistant_workflow",
		"query":       req.Message,
		"strategy":    req.Strategy,
		"max_results": req.MaxResults,
	}).Build()

	reply := a.router.Route(r.Context(), task)
	if a.limiter != nil {
		w.Header().Set("X-RateLimit-Remaining", itoa(a.limiter.Remaining(conversationID)))
	}
	a.writeReply(w, conversationID, reply)
}

type analysisRequest struct {
	Query        string `json:"query"`
	AnalysisType string `json:"analysis_type"`
	MaxDepth     int    `json:"max_depth"`
}

func (a *Adapter) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	body, err := validateAgainstSchema(r, analysisSchema)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req analysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.AnalysisType == "" {
		req.AnalysisType = "contradiction"
	}
	if req.MaxDepth == 0 {
		req.MaxDepth = 3
	}

	conversationID := a.convo.NewConversationID()
	if a.limiter != nil && !a.limiter.Allow(conversationID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	a.convo.Touch(conversationID, defaultTTLSecond*time.Second)

	task := envelope.New(envelope.Task, "api", orchestratorID, conversationID, defaultTTLSecond, map[string]any{
		"task_type":     "analysis_workflow",
		"query":         req.Query,
		"analysis_type": req.AnalysisType,
		"max_depth":     req.MaxDepth,
	}).Build()

	reply := a.router.Route(r.Context(), task)
	a.writeReply(w, conversationID, reply)
}

// writeReply: a missing reply or success=false becomes a failure
// response; otherwise the payload is returned as-is.
func (a *Adapter) writeReply(w http.ResponseWriter, conversationID string, reply *envelope.Envelope) {
	if reply == nil {
		writeError(w, http.StatusGatewayTimeout, "no reply from orchestrator")
		return
	}

	var probe struct {
		Success bool `json:"success"`
	}
	_ = reply.UnmarshalPayload(&probe)

	w.Header().Set("Content-Type", "application/json")
	if !probe.Success {
		w.WriteHeader(http.StatusUnprocessableEntity)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Write(reply.Payload)
}

type tracePage struct {
	ConversationID string                `json:"conversation_id"`
	Messages       []envelope.Envelope   `json:"messages"`
	Metadata       traceMetadata         `json:"metadata"`
}

type traceMetadata struct {
	TotalMessages int `json:"total_messages"`
}

func (a *Adapter) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if a.trace == nil {
		writeError(w, http.StatusServiceUnavailable, "trace store unavailable")
		return
	}
	messages, err := a.trace.ByConversation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	page := tracePage{
		ConversationID: id,
		Messages:       messages,
		Metadata:       traceMetadata{TotalMessages: len(messages)},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func validateAgainstSchema(r *http.Request, schema gojsonschema.JSONLoader) ([]byte, error) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errInvalidJSON
	}
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, schemaError(result)
	}
	return body, nil
}

func schemaError(result *gojsonschema.Result) error {
	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(reasons, "; "))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
