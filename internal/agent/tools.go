package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/structured"
)

// bindable returns the enabled tools by name together with the infos to
// bind, including the respond tool for structured calls.
func (r *Runner) bindable(ctx context.Context, s *structured.Schema) (map[string]einotool.InvokableTool, []*schema.ToolInfo, error) {
	tools := make(map[string]einotool.InvokableTool, len(r.tools))
	infos := make([]*schema.ToolInfo, 0, len(r.tools)+1)

	for _, t := range r.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to describe tool: %w", err)
		}
		if !ToolEnabled(r.filter, info.Name) {
			continue
		}
		if s != nil && info.Name == RespondTool {
			return nil, nil, fmt.Errorf("tool name %q is reserved for structured output", RespondTool)
		}
		tools[info.Name] = t
		infos = append(infos, info)
	}

	if s != nil {
		infos = append(infos, respondToolInfo(*s))
	}
	return tools, infos, nil
}

func respondToolInfo(s structured.Schema) *schema.ToolInfo {
	desc := "Return the final answer in the required format. Call this exactly once."
	if s.Description != "" {
		desc = s.Description
	}
	return &schema.ToolInfo{
		Name:        RespondTool,
		Desc:        desc,
		ParamsOneOf: schema.NewParamsOneOfByJSONSchema(s.JSONSchema()),
	}
}

// runTool executes one tool call. Failures are reported to the model as the
// tool result rather than aborting the invocation.
func (r *Runner) runTool(ctx context.Context, tools map[string]einotool.InvokableTool, call schema.ToolCall) string {
	log := logging.Component("agent")

	t, ok := tools[call.Function.Name]
	if !ok {
		log.Warn().Str("tool", call.Function.Name).Msg("model called unknown tool")
		return fmt.Sprintf("Error: tool not found: %s", call.Function.Name)
	}

	args := call.Function.Arguments
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}

	out, err := t.InvokableRun(ctx, args)
	if err != nil {
		log.Debug().Err(err).Str("tool", call.Function.Name).Msg("tool failed")
		return "Error: " + err.Error()
	}
	return out
}

// ToolEnabled reports whether filter enables the named tool. Exact keys win
// over patterns, and among matching patterns the one with the most literal
// characters wins (ties go to the lexically smaller pattern). Unmatched tools
// are enabled.
func ToolEnabled(filter map[string]bool, name string) bool {
	if enabled, ok := filter[name]; ok {
		return enabled
	}

	patterns := make([]string, 0, len(filter))
	for pattern := range filter {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	enabled, best := true, -1
	for _, pattern := range patterns {
		if !matchWildcard(pattern, name) {
			continue
		}
		if n := len(strings.ReplaceAll(pattern, "*", "")); n > best {
			enabled, best = filter[pattern], n
		}
	}
	return enabled
}

func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}
	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}
	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}
	return pattern == s
}

// extractJSON returns text as JSON when it is a JSON document, optionally
// inside a markdown code fence. Otherwise nil.
func extractJSON(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
	}
	if text == "" || !json.Valid([]byte(text)) {
		return nil
	}
	return json.RawMessage(text)
}
