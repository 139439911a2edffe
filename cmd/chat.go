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
	"github.com/linanwx/waitbot/logger"
)

var (
	chatGreeting time.Duration
	chatGood     time.Duration
	chatBad      time.Duration
	chatMaxBad   int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a single waiting agent in this terminal",
	Long: `Start one waiting agent on stdin/stdout. The config file is optional;
flags override the configured delays for this run. Logs go to stderr at
the configured level, or warn when there is no config file.

Type /start to restart the agent, /stop to silence it, exit to quit.

Examples:
  waitbot chat
  waitbot chat --greeting 2s --bad 3s --max-bad 3`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().DurationVar(&chatGreeting, "greeting", 0, "Greeting delay (e.g. 10s)")
	chatCmd.Flags().DurationVar(&chatGood, "good", 0, "Reply delay")
	chatCmd.Flags().DurationVar(&chatBad, "bad", 0, "Delay between impatient messages")
	chatCmd.Flags().IntVar(&chatMaxBad, "max-bad", 0, "Impatient messages before giving up")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	configured := err == nil
	if errors.Is(err, config.ErrNotFound) {
		cfg = config.DefaultConfig()
	} else if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyChatOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout belongs to the conversation.
	level, _ := normalizeLogLevel(logLevelOverride)
	logger.SetOutput(os.Stderr, chatLogLevel(level, cfg.Logging.Level, configured))

	sessMgr, err := buildSessionManager(cfg)
	if err != nil {
		return err
	}
	defer sessMgr.Close()

	cli := channel.NewCLIChannel(channel.CLIConfig{Prompt: "you> "})
	chManager := channel.NewManager()
	chManager.Register(cli)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-cli.Closed():
		case <-ctx.Done():
		}
		cancel()
	}()

	fmt.Printf("%s is waiting for you (greeting in %s).\n", cfg.Bot.Name, cfg.Bot.Delays.Greeting)

	if err := chManager.StartAll(ctx); err != nil {
		return err
	}

	// The agent starts before the first line so the greeting comes unprompted.
	dispatcher := NewDispatcher(chManager, sessMgr)
	startMsg := &channel.Message{
		ChannelID: "cli:" + channel.CLIChatID,
		Text:      "/start",
		Metadata:  map[string]string{"chat_id": channel.CLIChatID},
	}
	dispatcher.dispatch(cli, startMsg)
	dispatcher.Run(ctx)

	return chManager.StopAll()
}

// chatLogLevel picks the stderr level for chat: --log-level, then the
// configured level, then warn when running without a config file.
func chatLogLevel(override, configuredLevel string, configured bool) string {
	if override != "" {
		return override
	}
	if configured && configuredLevel != "" {
		return configuredLevel
	}
	return "warn"
}

func applyChatOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("greeting") {
		cfg.Bot.Delays.Greeting = chatGreeting
	}
	if flags.Changed("good") {
		cfg.Bot.Delays.Good = chatGood
	}
	if flags.Changed("bad") {
		cfg.Bot.Delays.Bad = chatBad
	}
	if flags.Changed("max-bad") {
		cfg.Bot.MaxBadMessages = chatMaxBad
	}
}
