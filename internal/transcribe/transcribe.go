// Package transcribe converts speech to text through the OpenAI audio API.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/opencode-ai/llmcall/internal/logging"
)

// DefaultModel is the speech-to-text model used when Params.Model is empty.
const DefaultModel = "whisper-1"

// Params are the per-request transcription parameters.
type Params struct {
	Filename    string // used for the temp file extension when MIMEType is empty
	MIMEType    string
	Model       string
	Language    string
	Prompt      string
	Temperature *float64
}

// Client is the speech-to-text endpoint.
type Client interface {
	CreateTranscription(ctx context.Context, file *os.File, params Params) (string, error)
}

// Transcriber writes audio to a temp file and sends it to a Client.
type Transcriber struct {
	client   Client
	tempDir  string
	defaults Params
	now      func() time.Time
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithTempDir sets the directory for temp files. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(t *Transcriber) { t.tempDir = dir }
}

// WithDefaults sets parameters applied when a request leaves them empty.
func WithDefaults(p Params) Option {
	return func(t *Transcriber) { t.defaults = p }
}

// New creates a Transcriber backed by the OpenAI audio API.
func New(apiKey string, baseURL string, opts ...Option) *Transcriber {
	return NewWithClient(NewOpenAIClient(apiKey, baseURL), opts...)
}

// NewWithClient creates a Transcriber backed by client.
func NewWithClient(client Client, opts ...Option) *Transcriber {
	t := &Transcriber{client: client, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe returns the transcript of audio. The temp file is removed on
// every exit path; removal failures are logged and never returned.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, params Params) (string, error) {
	params = t.withDefaults(params)

	f, err := t.createTempFile(params)
	if err != nil {
		return "", err
	}
	defer t.cleanup(f)

	if _, err := f.Write(audio); err != nil {
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind temp audio file: %w", err)
	}

	text, err := t.client.CreateTranscription(ctx, f, params)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return text, nil
}

func (t *Transcriber) withDefaults(p Params) Params {
	if p.Model == "" {
		p.Model = t.defaults.Model
	}
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.Language == "" {
		p.Language = t.defaults.Language
	}
	if p.Prompt == "" {
		p.Prompt = t.defaults.Prompt
	}
	if p.Temperature == nil {
		p.Temperature = t.defaults.Temperature
	}
	return p
}

// createTempFile creates llmcall-audio-<unix-ms>-<ulid><ext>.
func (t *Transcriber) createTempFile(p Params) (*os.File, error) {
	dir := t.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("llmcall-audio-%d-%s%s",
		t.now().UnixMilli(), strings.ToLower(ulid.Make().String()), extension(p))

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create temp audio file: %w", err)
	}
	return f, nil
}

func (t *Transcriber) cleanup(f *os.File) {
	log := logging.Component("transcribe")
	if err := f.Close(); err != nil {
		log.Warn().Err(err).Str("file", f.Name()).Msg("failed to close temp audio file")
	}
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", f.Name()).Msg("failed to remove temp audio file")
	}
}

func extension(p Params) string {
	if ext := filepath.Ext(p.Filename); ext != "" {
		return strings.ToLower(ext)
	}
	if p.MIMEType != "" {
		if m := mimetype.Lookup(p.MIMEType); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}
	return ".wav"
}

// openAIClient calls the OpenAI audio transcription endpoint.
type openAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a Client for the OpenAI audio API. An empty baseURL
// uses the OpenAI default.
func NewOpenAIClient(apiKey, baseURL string) Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openAIClient{client: openai.NewClient(opts...)}
}

func (c *openAIClient) CreateTranscription(ctx context.Context, file *os.File, p Params) (string, error) {
	req := openai.AudioTranscriptionNewParams{
		File:           file,
		Model:          openai.AudioModel(p.Model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if p.Language != "" {
		req.Language = openai.String(p.Language)
	}
	if p.Prompt != "" {
		req.Prompt = openai.String(p.Prompt)
	}
	if p.Temperature != nil {
		req.Temperature = openai.Float(*p.Temperature)
	}

	res, err := c.client.Audio.Transcriptions.New(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
