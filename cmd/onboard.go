package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/waitbot/config"
	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/messages"
)

var (
	onboardTelegramToken string
	onboardWebAddr       string
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize waitbot configuration",
	Long: `Create the waitbot configuration directory, the default config file and
an editable copy of the built-in messages. Existing files are never overwritten.

Examples:
  waitbot onboard
  waitbot onboard --telegram-token BOT_TOKEN --web-addr 0.0.0.0:8080`,
	RunE: runOnboard,
}

func init() {
	onboardCmd.Flags().StringVar(&onboardTelegramToken, "telegram-token", "", "Telegram bot token (optional)")
	onboardCmd.Flags().StringVar(&onboardWebAddr, "web-addr", "", "Web chat listen address (optional)")
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.Bot.MessagesFile = runtimecfg.MessagesFileName
	if token := strings.TrimSpace(onboardTelegramToken); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if addr := strings.TrimSpace(onboardWebAddr); addr != "" {
		cfg.Channels.Web.Addr = addr
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	messagesPath := filepath.Join(filepath.Dir(configPath), runtimecfg.MessagesFileName)
	if err := writeIfMissing(messagesPath, messages.DefaultYAML()); err != nil {
		return fmt.Errorf("failed to write messages: %w", err)
	}

	fmt.Println("waitbot initialized successfully!")
	fmt.Println()
	fmt.Println("Config file:", configPath)
	fmt.Println("Messages:", messagesPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit", messagesPath, "to change what the bot says")
	fmt.Println("  2. Run 'waitbot chat' to try it in the terminal")
	fmt.Println("  3. Run 'waitbot serve' to open the web and Telegram channels")
	return nil
}

func writeIfMissing(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
