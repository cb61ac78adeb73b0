// Package main provides the entry point for the llmcall CLI.
package main

import (
	"fmt"
	"os"

	// Checkpointer SQL drivers.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/opencode-ai/llmcall/cmd/llmcall/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
