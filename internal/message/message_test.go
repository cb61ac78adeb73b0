package message

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/llmcall/internal/provider"
	"github.com/opencode-ai/llmcall/internal/transcribe"
	"github.com/opencode-ai/llmcall/pkg/types"
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestEncodeBase64(t *testing.T) {
	assert.Equal(t, "QUJD", EncodeBase64([]byte{0x41, 0x42, 0x43}))

	data, err := DecodeBase64("QUJD")
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), data)

	data, err = DecodeBase64("data:audio/wav;base64,QUJD")
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), data)

	_, err = DecodeBase64("!!not base64!!")
	assert.Error(t, err)
}

func TestDetectMIME_FilenameWins(t *testing.T) {
	got, err := DetectMIME("clip.wav", jpegMagic)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", got)
}

func TestDetectMIME_SniffsContent(t *testing.T) {
	got, err := DetectMIME("upload", jpegMagic)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got)

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	got, err = DetectMIME("", png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)
}

func TestDetectMIME_Unknown(t *testing.T) {
	_, err := DetectMIME("notes.txt", []byte("plain text"))
	assert.True(t, errors.Is(err, ErrUnknownMedia))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".wav", Extension("audio/wav"))
	assert.Equal(t, ".mp3", Extension("audio/mpeg"))
	assert.Equal(t, ".bin", Extension("application/x-unknown-thing"))
}

func TestHumanWithAudio_TextFirst(t *testing.T) {
	msg, err := HumanWithAudio("what is said here?", Media{Data: []byte("RIFF"), Filename: "a.wav"})
	require.NoError(t, err)

	assert.Equal(t, types.RoleHuman, msg.Role)
	require.Len(t, msg.Blocks, 2)
	assert.Equal(t, types.BlockText, msg.Blocks[0].Type)
	assert.Equal(t, "what is said here?", msg.Blocks[0].Text)
	assert.Equal(t, types.BlockAudio, msg.Blocks[1].Type)
	assert.Equal(t, "audio/wav", msg.Blocks[1].MIMEType)
	assert.Equal(t, EncodeBase64([]byte("RIFF")), msg.Blocks[1].Data)
}

func TestHumanBlocks_MovesTextAheadOfMedia(t *testing.T) {
	img := types.Block{Type: types.BlockImage, Data: "AA==", MIMEType: "image/png"}
	msg := HumanBlocks("", img, Text("describe"))

	require.Len(t, msg.Blocks, 2)
	assert.Equal(t, types.BlockText, msg.Blocks[0].Type)
	assert.Equal(t, types.BlockImage, msg.Blocks[1].Type)
}

func TestHumanWithImage_NoText(t *testing.T) {
	msg, err := HumanWithImage("", Media{Data: jpegMagic, Metadata: map[string]any{"source": "camera"}})
	require.NoError(t, err)
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, "image/jpeg", msg.Blocks[0].MIMEType)
	assert.Equal(t, "camera", msg.Blocks[0].Metadata["source"])
}

func TestToEino(t *testing.T) {
	img, err := Image(Media{Data: jpegMagic, MIMEType: "image/jpeg"})
	require.NoError(t, err)

	out, err := ToEino([]types.Message{
		System("be brief"),
		Human("hi"),
		AI("hello"),
		HumanBlocks("look", img),
	})
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, schema.System, out[0].Role)
	assert.Equal(t, schema.User, out[1].Role)
	assert.Equal(t, "hi", out[1].Content)
	assert.Equal(t, schema.Assistant, out[2].Role)

	parts := out[3].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, schema.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, schema.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.Equal(t, "data:image/jpeg;base64,"+EncodeBase64(jpegMagic), parts[1].ImageURL.URL)
}

func TestToEino_UnknownRole(t *testing.T) {
	_, err := ToEino([]types.Message{{Role: "narrator", Text: "x"}})
	assert.Error(t, err)
}

func TestContentText(t *testing.T) {
	assert.Equal(t, "plain", ContentText(&schema.Message{Content: "plain"}))
	assert.Equal(t, "a\nb", ContentText(&schema.Message{MultiContent: []schema.ChatMessagePart{
		{Type: schema.ChatMessagePartTypeText, Text: "a"},
		{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: "data:"}},
		{Type: schema.ChatMessagePartTypeText, Text: "b"},
	}}))
	assert.Equal(t, "", ContentText(nil))
}

func TestFromEino(t *testing.T) {
	out := FromEino([]*schema.Message{
		{Role: schema.User, Content: "q"},
		nil,
		{Role: schema.Tool, Content: "42", ToolCallID: "call_1"},
		{Role: schema.Assistant, Content: "a"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, types.RoleHuman, out[0].Role)
	assert.Equal(t, types.RoleTool, out[1].Role)
	assert.Equal(t, types.RoleAI, out[2].Role)
}

type fakeTranscriber struct {
	calls  int
	params transcribe.Params
	text   string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, p transcribe.Params) (string, error) {
	f.calls++
	f.params = p
	return f.text, nil
}

func TestHumanFromAudio_RoutedProviderTranscribes(t *testing.T) {
	name, err := provider.ParseModelName("openrouter/openai/gpt-4o")
	require.NoError(t, err)

	tr := &fakeTranscriber{text: " turn on the lights "}
	msg, err := HumanFromAudio(context.Background(), name, "Voice command:", Media{Data: []byte("RIFF"), Filename: "cmd.wav"}, tr)
	require.NoError(t, err)

	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, "audio/wav", tr.params.MIMEType)
	assert.Equal(t, types.RoleHuman, msg.Role)
	assert.Empty(t, msg.Blocks)
	assert.Equal(t, "Voice command:\n\nturn on the lights", msg.Text)
}

func TestHumanFromAudio_DirectProviderKeepsAudio(t *testing.T) {
	name, err := provider.ParseModelName("gemini-2.0-flash")
	require.NoError(t, err)

	tr := &fakeTranscriber{}
	msg, err := HumanFromAudio(context.Background(), name, "", Media{Data: []byte("ID3"), Filename: "x.mp3"}, tr)
	require.NoError(t, err)

	assert.Zero(t, tr.calls)
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, "audio/mpeg", msg.Blocks[0].MIMEType)
}

func TestHumanFromAudio_NoTranscriber(t *testing.T) {
	name, err := provider.ParseModelName("openrouter/anthropic/claude-sonnet-4")
	require.NoError(t, err)

	_, err = HumanFromAudio(context.Background(), name, "", Media{Data: []byte("x"), Filename: "x.wav"}, nil)
	assert.Error(t, err)
}

func TestTranscripts_ForModel(t *testing.T) {
	audio, err := HumanWithAudio("Voice command:", Media{Data: []byte("RIFF"), Filename: "cmd.wav"})
	require.NoError(t, err)
	msgs := []types.Message{System("be brief"), audio}

	direct, err := provider.ParseModelName("gpt-4o")
	require.NoError(t, err)
	routed, err := provider.ParseModelName("openrouter/openai/gpt-4o")
	require.NoError(t, err)

	tr := &fakeTranscriber{text: " lights on "}
	tx := NewTranscripts(tr)

	out, err := tx.ForModel(context.Background(), direct, msgs)
	require.NoError(t, err)
	assert.Equal(t, msgs, out)
	assert.Zero(t, tr.calls)

	out, err = tx.ForModel(context.Background(), routed, msgs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, msgs[0], out[0])
	assert.Equal(t, types.Message{Role: types.RoleHuman, Text: "Voice command:\n\nlights on"}, out[1])
	assert.Equal(t, "audio/wav", tr.params.MIMEType)

	// A second routed model reuses the transcript.
	_, err = tx.ForModel(context.Background(), routed, msgs)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls)

	// The caller's messages are left untouched.
	require.Len(t, msgs[1].Blocks, 2)
	assert.Equal(t, types.BlockAudio, msgs[1].Blocks[1].Type)
}

func TestTranscripts_KeepsOtherMedia(t *testing.T) {
	img, err := Image(Media{Data: jpegMagic, Filename: "a.jpg"})
	require.NoError(t, err)
	aud, err := Audio(Media{Data: []byte("RIFF"), Filename: "a.wav"})
	require.NoError(t, err)
	msgs := []types.Message{HumanBlocks("look and listen", img, aud)}

	routed, err := provider.ParseModelName("openrouter/google/gemini-2.5-pro")
	require.NoError(t, err)

	out, err := NewTranscripts(&fakeTranscriber{text: "hello"}).ForModel(context.Background(), routed, msgs)
	require.NoError(t, err)
	require.Len(t, out[0].Blocks, 3)
	assert.Equal(t, types.BlockText, out[0].Blocks[0].Type)
	assert.Equal(t, types.BlockImage, out[0].Blocks[1].Type)
	assert.Equal(t, Text("hello"), out[0].Blocks[2])
}

func TestTranscripts_NoTranscriber(t *testing.T) {
	audio, err := HumanWithAudio("", Media{Data: []byte("x"), Filename: "x.wav"})
	require.NoError(t, err)
	routed, err := provider.ParseModelName("openrouter/anthropic/claude-sonnet-4")
	require.NoError(t, err)

	_, err = NewTranscripts(nil).ForModel(context.Background(), routed, []types.Message{audio})
	assert.Error(t, err)
}
