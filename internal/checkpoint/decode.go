package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// storedMessage is the union of the message layouts found in checkpoint
// records: Eino messages (role), LangChain dicts (type) and serialized
// LangChain constructors (id + kwargs).
type storedMessage struct {
	Role         string                   `json:"role"`
	Type         string                   `json:"type"`
	ID           json.RawMessage          `json:"id"`
	Kwargs       json.RawMessage          `json:"kwargs"`
	Content      json.RawMessage          `json:"content"`
	MultiContent []schema.ChatMessagePart `json:"multi_content"`
	Name         string                   `json:"name"`
	ToolCalls    []schema.ToolCall        `json:"tool_calls"`
	ToolCallID   string                   `json:"tool_call_id"`
}

// DecodeMessage decodes one stored message and resolves its role. An explicit
// role field wins (case-insensitive); otherwise the type discriminator, then
// the constructor class name is used. Messages whose role cannot be resolved
// keep an empty role.
func DecodeMessage(data []byte) (*schema.Message, error) {
	var sm storedMessage
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, err
	}

	if len(sm.Kwargs) > 0 && !bytes.Equal(bytes.TrimSpace(sm.Kwargs), []byte("null")) {
		var inner storedMessage
		if err := json.Unmarshal(sm.Kwargs, &inner); err != nil {
			return nil, fmt.Errorf("decode kwargs: %w", err)
		}
		if inner.Role == "" {
			inner.Role = sm.Role
		}
		inner.Type = sm.Type
		inner.ID = sm.ID
		sm = inner
	}

	msg := &schema.Message{
		Role:         resolveRole(sm),
		Name:         sm.Name,
		MultiContent: sm.MultiContent,
		ToolCalls:    sm.ToolCalls,
		ToolCallID:   sm.ToolCallID,
	}

	text, parts, err := decodeContent(sm.Content)
	if err != nil {
		return nil, err
	}
	msg.Content = text
	if len(parts) > 0 && len(msg.MultiContent) == 0 {
		msg.MultiContent = parts
	}
	return msg, nil
}

func resolveRole(sm storedMessage) schema.RoleType {
	if sm.Role != "" {
		if r, ok := roleFromName(sm.Role); ok {
			return r
		}
	}
	if r, ok := roleFromName(sm.Type); ok {
		return r
	}
	if r, ok := roleFromClass(sm.ID); ok {
		return r
	}
	return ""
}

func roleFromName(name string) (schema.RoleType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "user", "human":
		return schema.User, true
	case "assistant", "ai":
		return schema.Assistant, true
	case "tool", "function":
		return schema.Tool, true
	case "system", "developer":
		return schema.System, true
	default:
		return "", false
	}
}

// roleFromClass reads the class name at the end of a serialized constructor
// path such as ["langchain_core", "messages", "HumanMessage"].
func roleFromClass(id json.RawMessage) (schema.RoleType, bool) {
	if len(id) == 0 {
		return "", false
	}
	var path []string
	if err := json.Unmarshal(id, &path); err != nil || len(path) == 0 {
		return "", false
	}
	class := path[len(path)-1]
	class = strings.TrimSuffix(class, "Chunk")
	class = strings.TrimSuffix(class, "Message")
	return roleFromName(class)
}

// decodeContent accepts a string or a list of content blocks.
func decodeContent(raw json.RawMessage) (string, []schema.ChatMessagePart, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", nil, err
		}
		return s, nil, nil
	case '[':
		var blocks []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return "", nil, err
		}
		parts := make([]schema.ChatMessagePart, 0, len(blocks))
		for _, b := range blocks {
			if b.Text == "" {
				continue
			}
			parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: b.Text})
		}
		return "", parts, nil
	default:
		return "", nil, nil
	}
}
