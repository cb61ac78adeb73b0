// Package commands provides the CLI commands for llmcall.
package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/llmcall/internal/config"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/telemetry"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs  bool
	logLevel   string
	configFile string
	workDir    string
)

var rootCmd = &cobra.Command{
	Use:   "llmcall",
	Short: "llmcall - resilient LLM calls with fallback and memory",
	Long: `llmcall sends a conversation to a chat model and returns its answer.

Failed calls are retried with exponential backoff and then handed to the
configured fallback models. Conversations can be persisted per thread.

Run 'llmcall call "hello"' for a one-off call, or 'llmcall serve' to expose
the same operations over HTTP.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: bootstrap,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (overrides LLMCALL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&workDir, "directory", "", "Project directory to load config from")

	rootCmd.SetVersionTemplate(fmt.Sprintf("llmcall %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(transcribeCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// bootstrap loads .env and sets up logging. It runs before every command.
func bootstrap(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if configFile != "" {
		os.Setenv("LLMCALL_CONFIG", configFile)
	}

	telemetry.Version = Version

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(logLevel)
	if printLogs {
		logCfg.Pretty = true
	} else {
		// Without --print-logs stderr stays clean for the command's output.
		logCfg.Output = io.Discard
		logCfg.LogToFile = true
		logCfg.LogDir = config.GetPaths().State
	}
	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return nil
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
