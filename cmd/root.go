// Package cmd provides CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/waitbot/config"
	"github.com/linanwx/waitbot/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	logLevelOverride  string
	configDirOverride string
)

// rootCmd is the root command.
var rootCmd = &cobra.Command{
	Use:     "waitbot",
	Short:   "waitbot - a chat bot that waits for you, impatiently",
	Long:    buildRootLong(),
	Version: Version,
}

func buildRootLong() string {
	var sb strings.Builder
	sb.WriteString("waitbot greets you, answers when you write, and grows impatient\n")
	sb.WriteString("when you don't, until it gives up with a final message.\n\n")
	sb.WriteString("Channels:\n")
	sb.WriteString("  - cli: interactive terminal\n")
	sb.WriteString("  - telegram: Telegram bot (long polling)\n")
	sb.WriteString("  - web: browser chat (http + websocket)\n")
	sb.WriteString("\nTry it with: waitbot chat\n")
	sb.WriteString("Get started with: waitbot onboard")
	return sb.String()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level for this run (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configDirOverride, "config-dir", "", "Config directory (default: $WAITBOT_CONFIG_DIR or ~/.waitbot)")
	rootCmd.PersistentPreRunE = initRuntime
}

func initRuntime(cmd *cobra.Command, args []string) error {
	if configDirOverride != "" {
		config.SetConfigDir(configDirOverride)
	}

	level, err := normalizeLogLevel(logLevelOverride)
	if err != nil {
		return err
	}

	// A broken config file is reported by the command itself; logging
	// still comes up with defaults.
	cfg, err := config.LoadOrDefault()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if level != "" {
		cfg.Logging.Level = level
	}

	configDir, _ := config.ConfigDir()
	logCfg := logger.Config{
		Enabled: cfg.LoggingEnabled(),
		Level:   cfg.Logging.Level,
		Stdout:  cfg.Logging.Stdout,
		File:    cfg.Logging.File,
	}
	if err := logger.Init(logCfg, configDir); err != nil {
		return fmt.Errorf("logger init error: %w", err)
	}
	return nil
}

func normalizeLogLevel(raw string) (string, error) {
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "", "debug", "info", "warn", "error":
		return level, nil
	default:
		return "", fmt.Errorf("invalid --log-level: %q (use debug, info, warn, error)", raw)
	}
}
