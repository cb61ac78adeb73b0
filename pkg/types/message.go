package types

import "time"

// Role tags a message with its author.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// BlockType identifies a content block inside a human message.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockAudio BlockType = "audio"
	BlockImage BlockType = "image"
)

// Message is a role-tagged conversation message.
// System and AI messages carry Text only. Human messages carry either Text
// or an ordered list of Blocks; when Blocks is non-empty Text is ignored.
type Message struct {
	Role   Role    `json:"role"`
	Text   string  `json:"text,omitempty"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is one content block of a multimodal human message.
type Block struct {
	Type BlockType `json:"type"`

	// Text blocks
	Text string `json:"text,omitempty"`

	// Audio and image blocks
	Data     string         `json:"data,omitempty"` // base64
	MIMEType string         `json:"mimeType,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HistoryMessageItem is one entry of a reconstructed thread timeline.
type HistoryMessageItem struct {
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
}
