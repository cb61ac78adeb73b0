package message

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencode-ai/llmcall/internal/provider"
	"github.com/opencode-ai/llmcall/internal/transcribe"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, params transcribe.Params) (string, error)
}

// HumanFromAudio builds the human message for an audio input addressed to
// target. Models that take raw audio get a text+audio message; the others get
// the transcript, appended to text when both are present.
func HumanFromAudio(ctx context.Context, target provider.ModelName, text string, audio Media, tr Transcriber) (types.Message, error) {
	if target.AcceptsAudio() {
		return HumanWithAudio(text, audio)
	}

	if tr == nil {
		return types.Message{}, fmt.Errorf("model %s does not accept audio and no transcriber is configured", target.Raw)
	}

	mimeType := audio.MIMEType
	if mimeType == "" {
		var err error
		if mimeType, err = DetectMIME(audio.Filename, audio.Data); err != nil {
			return types.Message{}, err
		}
	}

	transcript, err := tr.Transcribe(ctx, audio.Data, transcribe.Params{
		Filename: audio.Filename,
		MIMEType: mimeType,
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("transcribe audio: %w", err)
	}

	parts := make([]string, 0, 2)
	if text != "" {
		parts = append(parts, text)
	}
	if transcript = strings.TrimSpace(transcript); transcript != "" {
		parts = append(parts, transcript)
	}
	return Human(strings.Join(parts, "\n\n")), nil
}

// HumanFromAudioFile reads path and calls HumanFromAudio.
func HumanFromAudioFile(ctx context.Context, target provider.ModelName, text, path string, tr Transcriber) (types.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Message{}, fmt.Errorf("read audio file: %w", err)
	}
	return HumanFromAudio(ctx, target, text, Media{Data: data, Filename: filepath.Base(path)}, tr)
}

// Transcripts adapts a conversation to each model it is sent to. Audio blocks
// are transcribed at most once per Transcripts, however many models need
// the text.
type Transcripts struct {
	tr Transcriber

	mu   sync.Mutex
	done map[blockKey]string
}

type blockKey struct {
	msg, block int
}

// NewTranscripts creates a Transcripts for one conversation. tr may be nil,
// in which case only audio-capable models can take audio messages.
func NewTranscripts(tr Transcriber) *Transcripts {
	return &Transcripts{tr: tr, done: make(map[blockKey]string)}
}

// ForModel returns msgs as target should receive them. Models that accept
// audio get msgs unchanged. For the others every audio block is replaced by
// its transcript, and a message left with text only is flattened.
func (t *Transcripts) ForModel(ctx context.Context, target provider.ModelName, msgs []types.Message) ([]types.Message, error) {
	if target.AcceptsAudio() || !hasAudio(msgs) {
		return msgs, nil
	}

	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		if !blocksHaveAudio(m.Blocks) {
			out[i] = m
			continue
		}

		blocks := make([]types.Block, 0, len(m.Blocks))
		for j, b := range m.Blocks {
			if b.Type != types.BlockAudio {
				blocks = append(blocks, b)
				continue
			}
			text, err := t.transcript(ctx, target, blockKey{msg: i, block: j}, b)
			if err != nil {
				return nil, err
			}
			if text != "" {
				blocks = append(blocks, Text(text))
			}
		}
		out[i] = flatten(m.Role, blocks)
	}
	return out, nil
}

func (t *Transcripts) transcript(ctx context.Context, target provider.ModelName, key blockKey, b types.Block) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text, ok := t.done[key]; ok {
		return text, nil
	}
	if t.tr == nil {
		return "", fmt.Errorf("model %s does not accept audio and no transcriber is configured", target.Raw)
	}

	data, err := DecodeBase64(b.Data)
	if err != nil {
		return "", err
	}
	text, err := t.tr.Transcribe(ctx, data, transcribe.Params{MIMEType: b.MIMEType})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	text = strings.TrimSpace(text)
	t.done[key] = text
	return text, nil
}

func hasAudio(msgs []types.Message) bool {
	for _, m := range msgs {
		if blocksHaveAudio(m.Blocks) {
			return true
		}
	}
	return false
}

func blocksHaveAudio(blocks []types.Block) bool {
	for _, b := range blocks {
		if b.Type == types.BlockAudio {
			return true
		}
	}
	return false
}

// flatten joins text-only blocks into a plain message. Blocks with media are
// kept as they are.
func flatten(role types.Role, blocks []types.Block) types.Message {
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type != types.BlockText {
			return types.Message{Role: role, Blocks: blocks}
		}
		texts = append(texts, b.Text)
	}
	return types.Message{Role: role, Text: strings.Join(texts, "\n\n")}
}
