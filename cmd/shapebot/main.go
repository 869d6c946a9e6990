package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"shapebot/internal/bus"
	"shapebot/internal/channel"
	"shapebot/internal/config"
	"shapebot/internal/domain"
	"shapebot/internal/metrics"
	"shapebot/internal/pipeline"
	"shapebot/internal/provider"
	"shapebot/internal/store"
	"shapebot/internal/tool"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = newLogger("info")

	root := &cobra.Command{
		Use:   "shapebot",
		Short: "ShapeBot: Discord assistant backed by a generation relay",
		Long:  "ShapeBot answers Discord messages through a generation relay, with optional passive replies gated by Gemini.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file, .json or .yaml (default: ~/.shapebot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(dedicatedCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("shapebot", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg.General.LogLevel)
	return cfg, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and answer messages",
		Long:  "Connects to Discord and runs the response pipeline until interrupted. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.CheckRuntime(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channels, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("dedicated channel store: %w", err)
	}
	defer channels.Close()

	// Message bus (closed during graceful shutdown below)
	messageBus := bus.New(cfg.General.BusBufferSize, logger)

	discord := channel.NewDiscord(channel.DiscordConfig{
		Token:            cfg.Discord.Token,
		GuildID:          cfg.Discord.GuildID,
		RegisterCommands: cfg.Discord.RegisterCommands,
		Store:            channels,
		Logger:           logger,
	})
	if err := discord.Open(ctx, messageBus); err != nil {
		messageBus.Close()
		return err
	}

	relay := provider.NewRelay(provider.RelayConfig{
		URL:     cfg.Relay.URL,
		Timeout: time.Duration(cfg.Relay.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	var gate *pipeline.Gate
	if cfg.Trigger.EnablePassive {
		gemini, err := provider.NewGemini(ctx, provider.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
			Limiter: provider.NewRateLimiter(cfg.Gemini.Burst, float64(cfg.Gemini.RequestsPerMinute)),
			Logger:  logger,
		})
		if err != nil {
			discord.Close()
			messageBus.Close()
			return fmt.Errorf("gemini classifier: %w", err)
		}
		gate = pipeline.NewGate(pipeline.GateConfig{
			History:    discord,
			Classifier: gemini,
			Window:     cfg.Trigger.HistoryWindow,
			Logger:     logger,
		})
		logger.Info("passive replies enabled", "probability", cfg.Trigger.PassiveProbability, "model", cfg.Gemini.Model)
	}

	tools := registerTools(cfg, relay)

	handler := pipeline.NewHandler(pipeline.HandlerConfig{
		BotID:         discord.BotID(),
		CommandPrefix: cfg.Trigger.CommandPrefix,
		Trigger: pipeline.NewTriggerEvaluator(pipeline.TriggerConfig{
			BotID:              discord.BotID(),
			CommandPrefix:      cfg.Trigger.CommandPrefix,
			Dedicated:          channels,
			PassiveEnabled:     cfg.Trigger.EnablePassive,
			PassiveProbability: cfg.Trigger.PassiveProbability,
		}),
		AttributionTemplate: cfg.Trigger.AttributionTemplate,
		ErrorReply:          cfg.General.ErrorReply,
		Gate:                gate,
		Generator:           relay,
		Dispatcher:          pipeline.NewDispatcher(relay, tools, logger),
		Platform:            discord,
		Logger:              logger,
	})

	loop := pipeline.NewLoop(pipeline.LoopConfig{
		Bus:         messageBus,
		Handler:     handler,
		Concurrency: cfg.General.MaxConcurrentMessages,
		Logger:      logger,
	})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetrics(cfg.Metrics.Addr, cfg.Metrics.Endpoint)
	}

	logger.Info("shapebot started. Press Ctrl+C to stop.", "version", version, "bot_id", discord.BotID())

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := discord.Close(); err != nil {
			logger.Warn("discord close failed", "err", err)
		}
		messageBus.Close()
		<-loopDone
		if metricsSrv != nil {
			metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		shutdownErr = fmt.Errorf("shutdown timed out")
	}

	return shutdownErr
}

// registerTools creates the directive tools. The code tool reuses the
// generation relay.
func registerTools(cfg *config.Config, generator domain.Generator) *tool.Registry {
	toolReg := tool.NewRegistry(logger)
	toolReg.Register(tool.NewImageTool(tool.ImageConfig{
		URL:     cfg.Tools.Image.URL,
		Timeout: time.Duration(cfg.Tools.Image.TimeoutSeconds) * time.Second,
		Logger:  logger,
	}))
	toolReg.Register(tool.NewCodeTool(tool.CodeConfig{
		Generator:    generator,
		MaxFileBytes: cfg.Tools.Code.MaxFileBytes,
		Logger:       logger,
	}))
	return toolReg
}

func startMetrics(addr, endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(endpoint, metrics.Collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "err", err)
		}
	}()
	logger.Info("metrics endpoint enabled", "addr", addr, "path", endpoint)
	return srv
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. trigger.passiveProbability)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. trigger.enablePassive true)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := config.Update(cfgPath, args[0], args[1]); err != nil {
				return fmt.Errorf("update config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "List every config path with its value (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths := config.ListPaths(config.Sanitize(cfg))
			keys := make([]string, 0, len(paths))
			for k := range paths {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s = %v\n", k, paths[k])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
