package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linanwx/waitbot/config"
	"github.com/linanwx/waitbot/messages"
)

var messagesFile string

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Show and validate the message corpus",
	Long: `Print how many messages each category holds and check that the corpus
can drive a full escalation. Without --file the configured corpus is used.`,
	RunE: runMessages,
}

func init() {
	messagesCmd.Flags().StringVar(&messagesFile, "file", "", "Corpus YAML file to check")
	rootCmd.AddCommand(messagesCmd)
}

func runMessages(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source := "built-in"
	var table *messages.Table
	switch {
	case messagesFile != "":
		source = messagesFile
		table, err = messages.Load(messagesFile)
	default:
		if path, pathErr := cfg.MessagesPath(); pathErr == nil && path != "" {
			source = path
		}
		table, err = cfg.LoadMessages()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Messages:", source)
	fmt.Fprintln(out)
	counts := table.Counts()
	for _, c := range messages.Categories {
		fmt.Fprintf(out, "  %-14s %d\n", c, counts[c])
	}
	fmt.Fprintln(out)

	if err := table.Validate(cfg.Bot.MaxBadMessages); err != nil {
		return fmt.Errorf("corpus check failed for maxBadMessages=%d: %w", cfg.Bot.MaxBadMessages, err)
	}
	fmt.Fprintf(out, "OK for maxBadMessages=%d\n", cfg.Bot.MaxBadMessages)
	return nil
}
