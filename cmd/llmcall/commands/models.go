package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/llmcall/internal/provider"
)

var modelsVerbose bool

var modelsCmd = &cobra.Command{
	Use:   "models [family]",
	Short: "List known models",
	Long: `List the models llmcall knows about.

Examples:
  llmcall models              # List all models
  llmcall models gemini       # List only Gemini models
  llmcall models --verbose    # Show context and output limits`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVarP(&modelsVerbose, "verbose", "v", false, "Include context and output limits")
}

func runModels(cmd *cobra.Command, args []string) error {
	var family string
	if len(args) > 0 {
		family = args[0]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	if modelsVerbose {
		fmt.Fprintln(w, "FAMILY\tMODEL\tCONTEXT\tMAX OUTPUT\tFEATURES\t")
	} else {
		fmt.Fprintln(w, "FAMILY\tMODEL\tFEATURES\t")
	}

	for _, model := range provider.Models() {
		if family != "" && model.Family != family {
			continue
		}

		if modelsVerbose {
			fmt.Fprintf(w, "%s\t%s\t%dk\t%d\t%s\t\n",
				model.Family,
				model.ID,
				model.ContextLength/1000,
				model.MaxOutputTokens,
				features(model),
			)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", model.Family, model.ID, features(model))
		}
	}

	return w.Flush()
}

func features(m provider.Model) string {
	var f []string
	if m.SupportsVision {
		f = append(f, "vision")
	}
	if m.SupportsAudio {
		f = append(f, "audio")
	}
	if m.SupportsTools {
		f = append(f, "tools")
	}
	if m.SupportsReasoning {
		f = append(f, "reasoning")
	}
	return strings.Join(f, " ")
}
