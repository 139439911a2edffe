package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linanwx/waitbot/channel"
	"github.com/linanwx/waitbot/config"
	"github.com/linanwx/waitbot/internal/health"
	"github.com/linanwx/waitbot/logger"
	"github.com/linanwx/waitbot/messages"
	"github.com/linanwx/waitbot/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start waitbot as a service with channel integrations",
	Long: `Start waitbot as a long-running service that listens on multiple channels.
Every chat gets its own waiting agent.

Supported channels:
  - cli: Interactive command line
  - telegram: Telegram bot (requires TELEGRAM_BOT_TOKEN or channels.telegram.token)
  - web: Browser chat UI (http + websocket)

Chat commands: /start restarts the agent, /stop silences it.

Examples:
  waitbot serve              # Start all channels (default)
  waitbot serve --cli        # Start with CLI channel only
  waitbot serve --telegram   # Start with Telegram bot only
  waitbot serve --web        # Start Web chat channel only`,
	RunE: runServe,
}

var (
	serveCLI      bool
	serveTelegram bool
	serveWeb      bool
)

func init() {
	serveCmd.Flags().BoolVar(&serveCLI, "cli", true, "Enable CLI channel")
	serveCmd.Flags().BoolVar(&serveTelegram, "telegram", false, "Enable Telegram bot channel")
	serveCmd.Flags().BoolVar(&serveWeb, "web", false, "Enable Web chat channel")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	finalServeCLI, finalServeTelegram, finalServeWeb, err := resolveServeTargets(cmd)
	if err != nil {
		return err
	}
	// Telegram is opt-in when no token is configured and the user did not ask for it.
	if finalServeTelegram && cfg.GetTelegramToken() == "" && !cmd.Flags().Changed("telegram") {
		logger.Info("telegram channel skipped, no bot token configured")
		finalServeTelegram = false
	}

	sessMgr, err := buildSessionManager(cfg)
	if err != nil {
		return err
	}
	defer sessMgr.Close()

	if err := sessMgr.StartReaper(cfg.Sessions.ReapSchedule); err != nil {
		return fmt.Errorf("failed to start session reaper: %w", err)
	}

	chManager := channel.NewManager()
	var cli *channel.CLIChannel
	if finalServeCLI {
		cli = channel.NewCLIChannel(channel.CLIConfig{})
		chManager.Register(cli)
	}
	if finalServeTelegram {
		chManager.Register(channel.NewTelegramChannel(channel.TelegramConfig{
			Token:      cfg.GetTelegramToken(),
			AllowedIDs: cfg.GetTelegramAllowedIDs(),
		}))
	}
	if finalServeWeb {
		startedAt := time.Now()
		chManager.Register(channel.NewWebChannel(channel.WebConfig{
			Addr:   cfg.GetWebAddr(),
			Status: func() any { return sessMgr.Snapshot() },
			Health: func() any {
				return health.Collect(health.Options{StartedAt: startedAt, Sessions: sessMgr.Snapshot()})
			},
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Leaving the terminal ends the service only when it is the sole channel.
	if cli != nil && !finalServeTelegram && !finalServeWeb {
		go func() {
			select {
			case <-cli.Closed():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	logger.Info("waitbot is running. Press Ctrl+C to stop.", "channels", chManager.Names())

	if err := chManager.StartAll(ctx); err != nil {
		_ = chManager.StopAll()
		return fmt.Errorf("failed to start channels: %w", err)
	}

	// Dispatcher reads from channels and hands messages to sessions. Blocks until ctx done.
	NewDispatcher(chManager, sessMgr).Run(ctx)

	if err := chManager.StopAll(); err != nil {
		logger.Error("error stopping channels", "err", err)
	}

	logger.Info("waitbot service stopped")
	return nil
}

// buildSessionManager loads the corpus and builds the per-chat agent pool.
func buildSessionManager(cfg *config.Config) (*session.Manager, error) {
	table, err := cfg.LoadMessages()
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if err := table.Validate(cfg.Bot.MaxBadMessages); err != nil {
		if !onlyShortBadPool(err) {
			return nil, fmt.Errorf("invalid messages: %w", err)
		}
		logger.Warn("message corpus is thin", "err", err)
	}

	return session.NewManager(session.Config{
		Agent:     cfg.AgentConfig(),
		Table:     table,
		IdleAfter: cfg.Sessions.IdleAfter,
	})
}

// onlyShortBadPool reports whether err carries nothing worse than a short
// bad pool, which the agent tolerates.
func onlyShortBadPool(err error) bool {
	if err == nil {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !onlyShortBadPool(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, messages.ErrShortBadPool)
}

func resolveServeTargets(cmd *cobra.Command) (finalServeCLI, finalServeTelegram, finalServeWeb bool, err error) {
	if cmd == nil {
		return false, false, false, fmt.Errorf("serve command is nil")
	}
	flags := cmd.Flags()
	cliChanged := flags.Changed("cli")
	telegramChanged := flags.Changed("telegram")
	webChanged := flags.Changed("web")

	// No explicit channel flags -> default to all channels.
	if !cliChanged && !telegramChanged && !webChanged {
		return true, true, true, nil
	}

	// Any explicit channel flag -> use explicit switches only.
	if cliChanged {
		finalServeCLI = serveCLI
	}
	if telegramChanged {
		finalServeTelegram = serveTelegram
	}
	if webChanged {
		finalServeWeb = serveWeb
	}

	if !finalServeCLI && !finalServeTelegram && !finalServeWeb {
		return false, false, false, fmt.Errorf("no channels enabled; use --cli, --telegram or --web")
	}
	return finalServeCLI, finalServeTelegram, finalServeWeb, nil
}
