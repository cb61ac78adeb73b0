package message

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/llmcall/pkg/types"
)

// ToEino converts messages to Eino messages. Multimodal human messages become
// MultiContent parts with data URLs.
func ToEino(msgs []types.Message) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(msgs))
	for i, m := range msgs {
		em, err := toEino(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, em)
	}
	return out, nil
}

func toEino(m types.Message) (*schema.Message, error) {
	switch m.Role {
	case types.RoleSystem:
		return &schema.Message{Role: schema.System, Content: m.Text}, nil
	case types.RoleAI:
		return &schema.Message{Role: schema.Assistant, Content: m.Text}, nil
	case types.RoleHuman:
		if len(m.Blocks) == 0 {
			return &schema.Message{Role: schema.User, Content: m.Text}, nil
		}
		parts := make([]schema.ChatMessagePart, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			part, err := toPart(b)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		return &schema.Message{Role: schema.User, MultiContent: parts}, nil
	default:
		return nil, fmt.Errorf("unsupported role %q", m.Role)
	}
}

func toPart(b types.Block) (schema.ChatMessagePart, error) {
	switch b.Type {
	case types.BlockText:
		return schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: b.Text}, nil
	case types.BlockAudio:
		return schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeAudioURL,
			AudioURL: &schema.ChatMessageAudioURL{
				URL:      DataURL(b.MIMEType, b.Data),
				MIMEType: b.MIMEType,
			},
		}, nil
	case types.BlockImage:
		return schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      DataURL(b.MIMEType, b.Data),
				MIMEType: b.MIMEType,
			},
		}, nil
	default:
		return schema.ChatMessagePart{}, fmt.Errorf("unsupported block type %q", b.Type)
	}
}

// RoleOf maps an Eino role to a message role. Unknown roles map to "".
func RoleOf(role schema.RoleType) types.Role {
	switch strings.ToLower(string(role)) {
	case "user", "human":
		return types.RoleHuman
	case "assistant", "ai":
		return types.RoleAI
	case "tool":
		return types.RoleTool
	case "system":
		return types.RoleSystem
	default:
		return ""
	}
}

// ContentText extracts the text of an Eino message: Content when set,
// otherwise the text parts of MultiContent joined by newline.
func ContentText(m *schema.Message) string {
	if m == nil {
		return ""
	}
	if m.Content != "" {
		return m.Content
	}
	var texts []string
	for _, p := range m.MultiContent {
		if p.Type == schema.ChatMessagePartTypeText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// FromEino converts Eino messages back to messages. Tool messages are kept
// with RoleTool; media parts are not reconstructed.
func FromEino(msgs []*schema.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, types.Message{Role: RoleOf(m.Role), Text: ContentText(m)})
	}
	return out
}
