package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/llmcall/internal/orchestrator"
)

var (
	historyFormat string
	historyFull   bool
)

var historyCmd = &cobra.Command{
	Use:   "history <threadID>",
	Short: "Show the conversation stored for a thread",
	Long: `Show the conversation stored for a thread, oldest message first.

Memory must be configured (see LLMCALL_MEMORY).`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "text", "Output format (text|json)")
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "Include the raw snapshots (json format only)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	threadID := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	hist, err := a.orch.History(ctx, threadID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoCheckpointer) {
			return fmt.Errorf("memory is not configured: set LLMCALL_MEMORY or the memory section of the config")
		}
		return err
	}

	out := cmd.OutOrStdout()

	if historyFormat == "json" {
		v := map[string]any{
			"threadId": threadID,
			"messages": hist.Messages,
		}
		if historyFull {
			v["fullHistory"] = hist.FullHistory
		}
		return printJSON(out, v)
	}

	if len(hist.Messages) == 0 {
		fmt.Fprintf(out, "No messages for thread %s\n", threadID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, m := range hist.Messages {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.CreatedAt.Format(time.DateTime), m.Role, m.Content)
	}
	return w.Flush()
}
