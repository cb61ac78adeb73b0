// Package message builds role-tagged messages, including multimodal human
// messages, and converts them to Eino messages.
package message

import (
	"github.com/opencode-ai/llmcall/pkg/types"
)

// System builds a system message.
func System(text string) types.Message {
	return types.Message{Role: types.RoleSystem, Text: text}
}

// Human builds a plain-text human message.
func Human(text string) types.Message {
	return types.Message{Role: types.RoleHuman, Text: text}
}

// AI builds an AI message.
func AI(text string) types.Message {
	return types.Message{Role: types.RoleAI, Text: text}
}

// Media is an audio or image payload.
type Media struct {
	Data     []byte
	MIMEType string // detected from Filename/Data when empty
	Filename string
	Metadata map[string]any
}

// Text builds a text block.
func Text(text string) types.Block {
	return types.Block{Type: types.BlockText, Text: text}
}

// Audio builds an audio block from raw bytes.
func Audio(m Media) (types.Block, error) {
	return mediaBlock(types.BlockAudio, m)
}

// Image builds an image block from raw bytes.
func Image(m Media) (types.Block, error) {
	return mediaBlock(types.BlockImage, m)
}

func mediaBlock(kind types.BlockType, m Media) (types.Block, error) {
	mimeType := m.MIMEType
	if mimeType == "" {
		var err error
		if mimeType, err = DetectMIME(m.Filename, m.Data); err != nil {
			return types.Block{}, err
		}
	}
	return types.Block{
		Type:     kind,
		Data:     EncodeBase64(m.Data),
		MIMEType: mimeType,
		Metadata: m.Metadata,
	}, nil
}

// HumanWithAudio builds a human message with an optional text block followed
// by an audio block.
func HumanWithAudio(text string, audio Media) (types.Message, error) {
	block, err := Audio(audio)
	if err != nil {
		return types.Message{}, err
	}
	return HumanBlocks(text, block), nil
}

// HumanWithImage builds a human message with an optional text block followed
// by an image block.
func HumanWithImage(text string, image Media) (types.Message, error) {
	block, err := Image(image)
	if err != nil {
		return types.Message{}, err
	}
	return HumanBlocks(text, block), nil
}

// HumanBlocks builds a multimodal human message. Text, when non-empty, is
// placed before every media block, and any text blocks among blocks are
// moved ahead of the media blocks in their original order.
func HumanBlocks(text string, blocks ...types.Block) types.Message {
	ordered := make([]types.Block, 0, len(blocks)+1)
	if text != "" {
		ordered = append(ordered, Text(text))
	}
	for _, b := range blocks {
		if b.Type == types.BlockText {
			ordered = append(ordered, b)
		}
	}
	for _, b := range blocks {
		if b.Type != types.BlockText {
			ordered = append(ordered, b)
		}
	}
	return types.Message{Role: types.RoleHuman, Blocks: ordered}
}
