package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/internal/orchestrator"
	"github.com/opencode-ai/llmcall/internal/structured"
	"github.com/opencode-ai/llmcall/internal/transcribe"
	"github.com/opencode-ai/llmcall/pkg/types"
)

var (
	callModel           string
	callFallback        []string
	callSystem          string
	callThread          string
	callNewThread       bool
	callMaxRetries      int
	callTemperature     float64
	callMaxTokens       int
	callReasoningEffort string
	callAudio           string
	callImage           string
	callSchema          string
	callFormat          string
)

var callCmd = &cobra.Command{
	Use:   "call [message..]",
	Short: "Send a message to a model",
	Long: `Send a message to the configured model and print its answer.

The message is read from the arguments, or from stdin when none are given.
On failure the call is retried and then handed to the fallback models.

Examples:
  llmcall call "What is the capital of France?"
  llmcall call --model gemini-2.0-flash --fallback gpt-4o "hello"
  llmcall call --new-thread "remember the number 7"
  llmcall call --thread <id> "which number did I ask you to remember?"
  llmcall call --audio memo.mp3 "summarize this"
  llmcall call --schema answer.json "extract the answer"`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&callModel, "model", "m", "", "Model to use (overrides config)")
	callCmd.Flags().StringSliceVar(&callFallback, "fallback", nil, "Fallback models, tried in order (empty disables fallback)")
	callCmd.Flags().StringVarP(&callSystem, "system", "s", "", "System prompt")
	callCmd.Flags().StringVarP(&callThread, "thread", "t", "", "Thread id for persisted conversations")
	callCmd.Flags().BoolVar(&callNewThread, "new-thread", false, "Start a new thread and print its id")
	callCmd.Flags().IntVar(&callMaxRetries, "max-retries", 0, "Attempts per model (overrides config)")
	callCmd.Flags().Float64Var(&callTemperature, "temperature", 0, "Sampling temperature")
	callCmd.Flags().IntVar(&callMaxTokens, "max-tokens", 0, "Maximum tokens in the answer")
	callCmd.Flags().StringVar(&callReasoningEffort, "reasoning-effort", "", "Reasoning effort (low|medium|high)")
	callCmd.Flags().StringVar(&callAudio, "audio", "", "Audio file to attach (transcribed for text-only models)")
	callCmd.Flags().StringVar(&callImage, "image", "", "Image file to attach")
	callCmd.Flags().StringVar(&callSchema, "schema", "", "JSON file with a response schema for structured output")
	callCmd.Flags().StringVar(&callFormat, "format", "text", "Output format (text|json)")
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	text, err := promptText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := buildCallRequest(cmd, a.cfg)
	if err != nil {
		return err
	}

	msg, err := buildHumanMessage(text)
	if err != nil {
		return err
	}
	req.Messages = []types.Message{msg}

	out := cmd.OutOrStdout()

	if callSchema != "" {
		s, err := readSchema(callSchema)
		if err != nil {
			return err
		}
		resp, err := orchestrator.CallStructured[json.RawMessage](ctx, a.orch, req, s)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{
			"response": resp.Response,
			"model":    resp.Model,
			"threadId": req.ThreadID,
		})
	}

	resp, err := a.orch.Call(ctx, req)
	if err != nil {
		return err
	}

	if callFormat == "json" {
		return printJSON(out, map[string]any{
			"text":     resp.Text,
			"model":    resp.Model,
			"threadId": req.ThreadID,
		})
	}
	if callNewThread {
		fmt.Fprintf(cmd.ErrOrStderr(), "thread: %s\n", req.ThreadID)
	}
	fmt.Fprintln(out, resp.Text)
	return nil
}

// promptText joins args, falling back to stdin when there are none.
func promptText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if callAudio != "" || callImage != "" {
		return "", nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no message given")
	}
	return text, nil
}

// buildCallRequest maps the flags that were set onto a request.
func buildCallRequest(cmd *cobra.Command, cfg *types.Config) (orchestrator.CallRequest, error) {
	flags := cmd.Flags()
	req := orchestrator.CallRequest{
		Model:        callModel,
		SystemPrompt: callSystem,
		ThreadID:     callThread,
	}

	if flags.Changed("fallback") {
		req.Fallback = make([]string, 0, len(callFallback))
		for _, f := range callFallback {
			if f = strings.TrimSpace(f); f != "" {
				req.Fallback = append(req.Fallback, f)
			}
		}
	}
	if flags.Changed("max-retries") {
		n := callMaxRetries
		req.MaxRetries = &n
	}

	if flags.Changed("temperature") || flags.Changed("max-tokens") || flags.Changed("reasoning-effort") {
		mc := types.ModelConfig{}
		if cfg.ModelConfig != nil {
			mc = *cfg.ModelConfig
		}
		if flags.Changed("temperature") {
			t := callTemperature
			mc.Temperature = &t
		}
		if flags.Changed("max-tokens") {
			n := callMaxTokens
			mc.MaxTokens = &n
		}
		if flags.Changed("reasoning-effort") {
			mc.ReasoningEffort = callReasoningEffort
		}
		req.ModelConfig = &mc
	}

	if callNewThread {
		if req.ThreadID != "" {
			return req, fmt.Errorf("--thread and --new-thread are mutually exclusive")
		}
		req.ThreadID = uuid.NewString()
	}
	return req, nil
}

// buildHumanMessage builds the user message, attaching audio or an image.
// Audio is sent as is; the orchestrator transcribes it for candidates that
// cannot take it.
func buildHumanMessage(text string) (types.Message, error) {
	switch {
	case callAudio != "" && callImage != "":
		return types.Message{}, fmt.Errorf("--audio and --image are mutually exclusive")
	case callAudio != "":
		data, err := os.ReadFile(callAudio)
		if err != nil {
			return types.Message{}, err
		}
		return message.HumanWithAudio(text, message.Media{Data: data, Filename: filepath.Base(callAudio)})
	case callImage != "":
		data, err := os.ReadFile(callImage)
		if err != nil {
			return types.Message{}, err
		}
		return message.HumanWithImage(text, message.Media{Data: data, Filename: filepath.Base(callImage)})
	default:
		return message.Human(text), nil
	}
}

// newTranscriber returns nil when no OpenAI key is configured.
func newTranscriber(cfg *types.Config) *transcribe.Transcriber {
	if cfg.Tokens.OpenAIAPIKey == "" {
		return nil
	}
	var (
		baseURL  string
		defaults transcribe.Params
	)
	if t := cfg.Transcription; t != nil {
		baseURL = t.BaseURL
		defaults = transcribe.Params{Model: t.Model, Language: t.Language}
	}
	return transcribe.New(cfg.Tokens.OpenAIAPIKey, baseURL, transcribe.WithDefaults(defaults))
}

func readSchema(path string) (structured.Schema, error) {
	var s structured.Schema
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if s.Kind != structured.KindObject || len(s.Fields) == 0 {
		return s, fmt.Errorf("schema %s must be an object with at least one field", path)
	}
	if s.Name == "" {
		s.Name = "response"
	}
	return s, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
