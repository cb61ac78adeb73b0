package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opencode-ai/llmcall/internal/orchestrator"
	"github.com/opencode-ai/llmcall/internal/provider"
	"github.com/opencode-ai/llmcall/internal/structured"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// CallRequest is the body of POST /v1/call.
type CallRequest struct {
	orchestrator.CallRequest
	// NewThread assigns a fresh thread id when ThreadID is empty.
	NewThread bool `json:"newThread,omitempty"`
}

// CallResponse is the body returned by POST /v1/call.
type CallResponse struct {
	orchestrator.CallResponse
	ThreadID string `json:"threadId,omitempty"`
}

// StructuredCallRequest is the body of POST /v1/call/structured.
type StructuredCallRequest struct {
	CallRequest
	Schema structured.Schema `json:"schema"`
}

// StructuredCallResponse is the body returned by POST /v1/call/structured.
type StructuredCallResponse struct {
	Response json.RawMessage `json:"response"`
	Model    string          `json:"model"`
	ThreadID string          `json:"threadId,omitempty"`
}

// HistoryResponse is the body returned by GET /v1/threads/{threadID}/history.
type HistoryResponse struct {
	ThreadID    string                     `json:"threadId"`
	Messages    []types.HistoryMessageItem `json:"messages"`
	FullHistory any                        `json:"fullHistory"`
}

// call handles POST /v1/call.
func (s *Server) call(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if !decodeCall(w, r, &req) {
		return
	}

	resp, err := s.orch.Call(r.Context(), req.CallRequest)
	if err != nil {
		writeCallError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{CallResponse: *resp, ThreadID: req.ThreadID})
}

// callStructured handles POST /v1/call/structured.
func (s *Server) callStructured(w http.ResponseWriter, r *http.Request) {
	var req StructuredCallRequest
	if !decodeCall(w, r, &req) {
		return
	}
	if req.Schema.Kind != structured.KindObject || len(req.Schema.Fields) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "schema must be an object with at least one field")
		return
	}
	if req.Schema.Name == "" {
		req.Schema.Name = "response"
	}

	resp, err := orchestrator.CallStructured[json.RawMessage](r.Context(), s.orch, req.CallRequest.CallRequest, req.Schema)
	if err != nil {
		writeCallError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StructuredCallResponse{
		Response: resp.Response,
		Model:    resp.Model,
		ThreadID: req.ThreadID,
	})
}

// callBody is implemented by both call request bodies.
type callBody interface {
	base() *CallRequest
}

func (c *CallRequest) base() *CallRequest { return c }

// decodeCall decodes and checks a call body. It writes the error response and
// returns false when the body is unusable.
func decodeCall(w http.ResponseWriter, r *http.Request, body callBody) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}

	req := body.base()
	if err := validateMessages(req.Messages); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return false
	}
	if req.NewThread && req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}
	return true
}

func validateMessages(msgs []types.Message) error {
	if len(msgs) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, m := range msgs {
		switch m.Role {
		case types.RoleSystem, types.RoleHuman, types.RoleAI:
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// threadHistory handles GET /v1/threads/{threadID}/history.
func (s *Server) threadHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	hist, err := s.orch.History(r.Context(), threadID)
	if errors.Is(err, orchestrator.ErrNoCheckpointer) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "memory is not configured")
		return
	}
	if err != nil {
		writeCallError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		ThreadID:    threadID,
		Messages:    hist.Messages,
		FullHistory: hist.FullHistory,
	})
}

// listModels handles GET /v1/models. The optional family query parameter
// filters by provider family.
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	family := r.URL.Query().Get("family")

	models := make([]provider.Model, 0)
	for _, m := range provider.Models() {
		if family == "" || m.Family == family {
			models = append(models, m)
		}
	}
	writeJSON(w, http.StatusOK, models)
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"persistent": s.orch.Persistent(),
	})
}
