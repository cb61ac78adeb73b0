package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/config"
	"github.com/opencode-ai/llmcall/internal/event"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/orchestrator"
	"github.com/opencode-ai/llmcall/internal/telemetry"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// app holds what a command needs to talk to the models.
type app struct {
	cfg      *types.Config
	orch     *orchestrator.Orchestrator
	bus      *event.Bus
	shutdown telemetry.Shutdown
}

// loadConfig loads and validates the configuration for the working directory.
func loadConfig() (*types.Config, error) {
	dir, err := GetWorkDir(workDir)
	if err != nil {
		return nil, err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	checkpoint.DefaultFileDir = paths.CheckpointPath()

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp loads the configuration and builds an orchestrator with tracing.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn().Err(err).Msg("Tracing disabled")
		shutdown = func(context.Context) error { return nil }
	}

	bus := event.NewBus()
	opts := []orchestrator.Option{
		orchestrator.WithBus(bus),
		orchestrator.WithTracer(telemetry.Tracer()),
	}
	if tr := newTranscriber(cfg); tr != nil {
		opts = append(opts, orchestrator.WithTranscriber(tr))
	}
	orch, err := orchestrator.New(*cfg, opts...)
	if err != nil {
		shutdown(ctx)
		bus.Close()
		return nil, err
	}

	return &app{cfg: cfg, orch: orch, bus: bus, shutdown: shutdown}, nil
}

// Close releases the checkpointer, the bus and the exporter.
func (a *app) Close() {
	if err := a.orch.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close checkpointer")
	}
	a.bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to flush traces")
	}
}
