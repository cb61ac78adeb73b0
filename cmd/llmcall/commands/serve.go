package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the llmcall HTTP server",
	Long: `Start llmcall as a server that exposes the call, history and model
operations over HTTP, plus a Server-Sent Events stream of call events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config, default 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	serverConfig := server.ConfigFrom(a.cfg.Server)
	if cmd.Flags().Changed("port") {
		serverConfig.Port = servePort
	}

	log := logging.Component("serve")
	log.Info().
		Str("version", Version).
		Str("model", a.cfg.Model).
		Strs("fallback", a.cfg.Fallback).
		Bool("persistent", a.orch.Persistent()).
		Msg("Starting llmcall server")

	srv := server.New(serverConfig, a.orch, a.bus)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "llmcall server listening on http://localhost:%d\n", serverConfig.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
	return nil
}
