// Package llmtest provides a mock chat-completions server for tests.
//
// The server speaks the OpenAI chat-completions wire protocol, so the real
// Eino OpenAI model can be pointed at it with BaseURL set to [Server.BaseURL].
package llmtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds canned responses.
type Config struct {
	// Responses are matched by a case-insensitive substring of the last
	// user message.
	Responses map[string]Response `yaml:"responses"`
	Defaults  Defaults            `yaml:"defaults"`
}

// Response is one canned completion.
type Response struct {
	Content   string     `yaml:"content"`
	ToolCalls []ToolCall `yaml:"tool_calls,omitempty"`
	// Status, when non-zero, makes the server fail with this HTTP status.
	Status int `yaml:"status,omitempty"`
}

// ToolCall is a tool call in a canned response.
type ToolCall struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments"`
}

// Defaults provides the fallback content when nothing matches.
type Defaults struct {
	Fallback string `yaml:"fallback"`
}

// ParseConfig decodes a YAML fixture.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mock config: %w", err)
	}
	return &cfg, nil
}

// Request is a recorded request.
type Request struct {
	Timestamp time.Time
	Path      string
	Header    http.Header
	Body      map[string]any
}

// Server is a mock chat-completions server.
type Server struct {
	server *httptest.Server
	config *Config

	mu       sync.Mutex
	script   []Response
	requests []Request
}

// NewServer starts a server answering from cfg. A nil cfg answers every
// request with an empty completion.
func NewServer(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Server{config: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the server root.
func (s *Server) URL() string {
	return s.server.URL
}

// BaseURL returns the OpenAI-style API base.
func (s *Server) BaseURL() string {
	return s.server.URL + "/v1"
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.Close()
}

// Enqueue queues responses served in order before the matching rules apply.
func (s *Server) Enqueue(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, responses...)
}

// Requests returns the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	resp := s.record(r, req)
	if resp.Status != 0 {
		writeError(w, resp.Status, resp.Content)
		return
	}
	writeCompletion(w, req, resp)
}

func (s *Server) record(r *http.Request, req map[string]any) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Timestamp: time.Now(),
		Path:      r.URL.Path,
		Header:    r.Header.Clone(),
		Body:      req,
	})

	if len(s.script) > 0 {
		resp := s.script[0]
		s.script = s.script[1:]
		return resp
	}

	prompt := strings.ToLower(LastUserPrompt(req))
	for key, resp := range s.config.Responses {
		if strings.Contains(prompt, strings.ToLower(key)) {
			return resp
		}
	}
	return Response{Content: s.config.Defaults.Fallback}
}

// LastUserPrompt returns the text of the last user message in a decoded
// request body.
func LastUserPrompt(req map[string]any) string {
	messages, _ := req["messages"].([]any)
	for i := len(messages) - 1; i >= 0; i-- {
		msg, ok := messages[i].(map[string]any)
		if !ok || msg["role"] != "user" {
			continue
		}
		switch content := msg["content"].(type) {
		case string:
			return content
		case []any:
			for _, item := range content {
				if part, ok := item.(map[string]any); ok && part["type"] == "text" {
					if text, ok := part["text"].(string); ok {
						return text
					}
				}
			}
		}
		// Multimodal messages may carry their parts under multi_content.
		if parts, ok := msg["multi_content"].([]any); ok {
			for _, item := range parts {
				if part, ok := item.(map[string]any); ok && part["type"] == "text" {
					if text, ok := part["text"].(string); ok {
						return text
					}
				}
			}
		}
	}
	return ""
}

func writeCompletion(w http.ResponseWriter, req map[string]any, resp Response) {
	model, _ := req["model"].(string)
	if model == "" {
		model = "mock-gpt-4o"
	}

	msg := map[string]any{
		"role":    "assistant",
		"content": resp.Content,
	}
	finish := "stop"
	if len(resp.ToolCalls) > 0 {
		calls := make([]map[string]any, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			calls[i] = map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": tc.Arguments,
				},
			}
		}
		msg["tool_calls"] = calls
		finish = "tool_calls"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       msg,
			"finish_reason": finish,
		}},
		"usage": map[string]any{
			"prompt_tokens":     100,
			"completion_tokens": 50,
			"total_tokens":      150,
		},
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "mock_error",
			"code":    status,
		},
	})
}
