package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/llmcall/internal/config"
	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/internal/transcribe"
)

var (
	transcribeModel    string
	transcribeLanguage string
	transcribePrompt   string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe an audio file",
	Long: `Transcribe an audio file with the OpenAI speech-to-text API and
print the transcript. Requires OPENAI_API_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeModel, "model", "", "Transcription model (default whisper-1)")
	transcribeCmd.Flags().StringVar(&transcribeLanguage, "language", "", "Audio language (ISO-639-1)")
	transcribeCmd.Flags().StringVar(&transcribePrompt, "prompt", "", "Prompt to guide the transcription")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Tokens.OpenAIAPIKey == "" {
		return fmt.Errorf("transcription needs an OpenAI key: %w", config.ErrNoCredentials)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType, err := message.DetectMIME(path, data)
	if err != nil {
		return err
	}

	text, err := newTranscriber(cfg).Transcribe(context.Background(), data, transcribe.Params{
		Filename: filepath.Base(path),
		MIMEType: mimeType,
		Model:    transcribeModel,
		Language: transcribeLanguage,
		Prompt:   transcribePrompt,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
