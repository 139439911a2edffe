package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/linanwx/waitbot/config"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show waitbot configuration status",
	Long:  `Display the effective waitbot configuration.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Configured bool   `json:"configured"`
	ConfigPath string `json:"config_path"`
	Messages   string `json:"messages"`

	Bot struct {
		Name           string `json:"name"`
		Greeting       string `json:"greeting"`
		Good           string `json:"good"`
		Bad            string `json:"bad"`
		MaxBadMessages int    `json:"max_bad_messages"`
	} `json:"bot"`

	Sessions struct {
		IdleAfter    string `json:"idle_after"`
		ReapSchedule string `json:"reap_schedule"`
	} `json:"sessions"`

	Telegram  string `json:"telegram"`
	WebAddr   string `json:"web_addr"`
	LogLevel  string `json:"log_level"`
	GoVersion string `json:"go_version"`
}

func buildStatusReport(cfg *config.Config, configured bool) statusReport {
	var r statusReport
	r.Configured = configured
	r.ConfigPath, _ = config.ConfigPath()
	r.Messages = "built-in"
	if path, err := cfg.MessagesPath(); err == nil && path != "" {
		r.Messages = path
	}

	r.Bot.Name = cfg.Bot.Name
	r.Bot.Greeting = cfg.Bot.Delays.Greeting.String()
	r.Bot.Good = cfg.Bot.Delays.Good.String()
	r.Bot.Bad = cfg.Bot.Delays.Bad.String()
	r.Bot.MaxBadMessages = cfg.Bot.MaxBadMessages

	r.Sessions.IdleAfter = cfg.Sessions.IdleAfter.String()
	r.Sessions.ReapSchedule = cfg.Sessions.ReapSchedule

	r.Telegram = "not configured"
	if cfg.GetTelegramToken() != "" {
		r.Telegram = "configured"
	}
	r.WebAddr = cfg.GetWebAddr()
	r.LogLevel = cfg.Logging.Level
	r.GoVersion = runtime.Version()
	return r
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	configured := err == nil
	if errors.Is(err, config.ErrNotFound) {
		cfg = config.DefaultConfig()
	} else if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r := buildStatusReport(cfg, configured)
	out := cmd.OutOrStdout()

	if statusJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, "waitbot Status")
	fmt.Fprintln(out, "==============")
	fmt.Fprintln(out)
	if !configured {
		fmt.Fprintln(out, "Config: not found, showing defaults (run 'waitbot onboard')")
	} else {
		fmt.Fprintln(out, "Config:", r.ConfigPath)
	}
	fmt.Fprintln(out, "Messages:", r.Messages)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Bot:")
	fmt.Fprintf(out, "  Name: %s\n", r.Bot.Name)
	fmt.Fprintf(out, "  Greeting delay: %s\n", r.Bot.Greeting)
	fmt.Fprintf(out, "  Reply delay: %s\n", r.Bot.Good)
	fmt.Fprintf(out, "  Impatience delay: %s\n", r.Bot.Bad)
	fmt.Fprintf(out, "  Max bad messages: %d\n", r.Bot.MaxBadMessages)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sessions:")
	fmt.Fprintf(out, "  Idle after: %s\n", r.Sessions.IdleAfter)
	fmt.Fprintf(out, "  Reap schedule: %s\n", r.Sessions.ReapSchedule)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Channels:")
	fmt.Fprintf(out, "  Telegram: %s\n", r.Telegram)
	fmt.Fprintf(out, "  Web: %s\n", r.WebAddr)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Log level: %s\n", r.LogLevel)
	fmt.Fprintf(out, "Go: %s\n", r.GoVersion)
	return nil
}
