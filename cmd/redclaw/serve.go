package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redclaw-sec/redclaw/internal/agent"
	"github.com/redclaw-sec/redclaw/internal/config"
	"github.com/redclaw-sec/redclaw/internal/llm"
	"github.com/redclaw-sec/redclaw/internal/notify"
	"github.com/redclaw-sec/redclaw/internal/server"
	"github.com/redclaw-sec/redclaw/internal/session"
	"github.com/redclaw-sec/redclaw/internal/task"
	"github.com/redclaw-sec/redclaw/internal/telemetry"
	"github.com/redclaw-sec/redclaw/internal/tools"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web orchestration backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			level := parseLevel(cfg.LogLevel)
			if verbose {
				level = slog.LevelDebug
			}
			logger := telemetry.NewLogger(os.Stdout, level)
			slog.SetDefault(logger)

			shellTimeout, err := cfg.ShellTimeoutDuration()
			if err != nil {
				return err
			}
			guard, err := tools.NewGuard(cfg.ToolGuard)
			if err != nil {
				return err
			}

			registry := tools.NewRegistry()
			registry.Register(tools.GenericLinuxCommand, llm.ToolDefinition{
				Name:        tools.GenericLinuxCommand,
				Description: "Execute a Linux shell command and return its output",
				InputSchema: tools.ShellDefinition(),
			}, tools.WithGuard(tools.GenericLinuxCommand, guard,
				tools.NewShellExecutor(tools.ShellConfig{Timeout: shellTimeout})))

			factory := agent.NewFactory(agent.BuiltinDefinitions())
			sessions := session.NewRegistry(factory)
			hub := notify.NewHub(logger)
			metrics := telemetry.NewMetrics()

			retention, err := cfg.RetentionDuration()
			if err != nil {
				return err
			}

			runner := agent.NewLoopRunner(llm.NewAnthropicClient(), registry)
			orch := task.New(runner,
				task.WithNotifier(hub),
				task.WithLogger(logger),
				task.WithMetrics(metrics),
				task.WithRetention(retention),
			)

			metrics.RegisterGauges(
				func() float64 { return float64(sessions.Count()) },
				func() float64 { return float64(orch.Count()) },
			)

			srv := server.New(cfg, sessions, orch, hub, factory,
				server.WithLogger(logger),
				server.WithMetrics(metrics),
			)

			if watch && configPath != "" {
				stop, err := config.Watch(configPath, logger, srv.SetConfig)
				if err != nil {
					return err
				}
				defer stop()
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down")

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancelShutdown()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", "error", err)
			}
			if err := orch.Shutdown(shutdownCtx); err != nil {
				logger.Warn("orchestrator shutdown", "error", err)
			}
			hub.DisconnectAll()

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload config file on change")

	return cmd
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
