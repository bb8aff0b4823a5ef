package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"tokenchat/internal/channel"
	"tokenchat/internal/config"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "tokenchat",
		Short: "tokenchat: token-gated community chat over a message relay",
		Long:  "tokenchat joins per-collection chat channels where reading is open and writing requires holding an asset of the collection.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.tokenchat/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.Registry.Dir), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "collections", cfg.Registry.Dir)
			logger.Info("next: set relay.baseUrl and your identity, then drop collection YAML files into the collections directory")
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [collection]",
		Short: "Join a collection channel interactively",
		Long:  "Joins the channel for a collection, given its registry slug or contract address. The feed is readable by anyone; sending requires holding an asset.",
		Args:  cobra.ExactArgs(1),
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	contract, ok := app.registry.ResolveContract(args[0])
	if !ok {
		return fmt.Errorf("unknown collection %q: not a registered slug or contract address", args[0])
	}

	view := app.activateChannel(ctx, contract)
	defer app.manager.Shutdown()

	term := channel.NewTerminal(channel.TerminalConfig{
		View:     view,
		Registry: app.registry,
		Assets:   app.assets,
		Events:   app.events,
		Logger:   logger,
	})
	return term.Run(ctx)
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run headless: sync all registered channels, mirror, and serve metrics",
		Long:  "Activates every registered collection channel, keeps them synced, mirrors confirmed messages to Telegram when the bridge is enabled, and serves metrics. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.store.Prune(ctx); err != nil {
		logger.Warn("cache prune failed", "err", err)
	}

	cols := app.registry.All()
	if len(cols) == 0 {
		return fmt.Errorf("no collections registered in %s", cfg.Registry.Dir)
	}
	for _, col := range cols {
		view := app.activateChannel(ctx, col.ContractAddress)
		if app.bridge != nil {
			app.bridge.Attach(view.ChannelID(), view.Messages)
		}
		logger.Info("channel active", "slug", col.Slug, "channel", view.ChannelID())
	}
	defer app.manager.Shutdown()

	if err := app.serveMetrics(ctx); err != nil {
		return err
	}

	logger.Info("gateway started. Press Ctrl+C to stop.", "channels", len(cols))
	<-ctx.Done()
	logger.Info("shutting down gateway")
	app.persistHistories(context.Background())
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and relay status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			logger.Info("relay", "baseUrl", cfg.Relay.BaseURL, "push", cfg.Relay.UsePush)
			logger.Info("identity",
				"id", cfg.Identity.ID,
				"wallets", len(cfg.Identity.Wallets),
				"relayWallet", cfg.Identity.RelayWallet,
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			for _, col := range app.registry.All() {
				msgs, err := app.feed.FetchMessages(ctx, channelIDOf(col.ContractAddress))
				if err != nil {
					logger.Warn("channel unreachable", "slug", col.Slug, "err", err)
					continue
				}
				logger.Info("channel", "slug", col.Slug, "messages", len(msgs))
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. relay.baseUrl)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
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
		Short: "Set a config value (e.g. relay.pollIntervalSeconds 5)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
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
