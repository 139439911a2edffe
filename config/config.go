// Package config handles configuration loading and saving.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/linanwx/waitbot/agent"
	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/messages"
)

// Config is the root configuration structure.
type Config struct {
	Bot      BotConfig       `yaml:"bot"`
	Sessions SessionsConfig  `yaml:"sessions"`
	Channels *ChannelsConfig `yaml:"channels,omitempty"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// BotConfig configures every waiting agent the service creates.
type BotConfig struct {
	Name           string       `yaml:"name"`
	Delays         DelaysConfig `yaml:"delays"`
	MaxBadMessages int          `yaml:"maxBadMessages"`
	MessagesFile   string       `yaml:"messagesFile,omitempty"` // relative to the config dir; empty = built-in corpus
}

// DelaysConfig holds phase delays as Go duration strings ("10s", "1500ms").
type DelaysConfig struct {
	Greeting time.Duration `yaml:"greeting"`
	Good     time.Duration `yaml:"good"`
	Bad      time.Duration `yaml:"bad"`
}

// SessionsConfig controls how idle conversations are dropped.
type SessionsConfig struct {
	IdleAfter    time.Duration `yaml:"idleAfter"`
	ReapSchedule string        `yaml:"reapSchedule"` // duration ("5m") or cron expression
}

// ChannelsConfig contains channel-specific configuration.
type ChannelsConfig struct {
	Telegram *TelegramChannelConfig `yaml:"telegram,omitempty"`
	Web      *WebChannelConfig      `yaml:"web,omitempty"`
}

// TelegramChannelConfig contains Telegram bot settings.
type TelegramChannelConfig struct {
	Token      string  `yaml:"token"`
	AllowedIDs []int64 `yaml:"allowedIds"`
}

// WebChannelConfig contains web chat settings.
type WebChannelConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig mirrors logger.Config with an optional Enabled flag.
type LoggingConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Level   string `yaml:"level"`
	Stdout  bool   `yaml:"stdout"`
	File    string `yaml:"file,omitempty"`
}

// AgentConfig converts the bot section into an agent configuration. The
// delivery callback is left for the caller.
func (c *Config) AgentConfig() agent.Config {
	return agent.Config{
		Name: strings.TrimSpace(c.Bot.Name),
		Delays: agent.Delays{
			Greeting: c.Bot.Delays.Greeting,
			Good:     c.Bot.Delays.Good,
			Bad:      c.Bot.Delays.Bad,
		},
		MaxBadMessages: c.Bot.MaxBadMessages,
	}
}

// MessagesPath returns the resolved corpus path, or "" for the built-in one.
func (c *Config) MessagesPath() (string, error) {
	return ResolvePath(c.Bot.MessagesFile)
}

// LoadMessages loads the configured corpus.
func (c *Config) LoadMessages() (*messages.Table, error) {
	path, err := c.MessagesPath()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return messages.Default(), nil
	}
	return messages.Load(path)
}

// GetTelegramToken returns the bot token; TELEGRAM_BOT_TOKEN wins over the file.
func (c *Config) GetTelegramToken() string {
	if v := strings.TrimSpace(os.Getenv(runtimecfg.TelegramTokenEnv)); v != "" {
		return v
	}
	if c == nil || c.Channels == nil || c.Channels.Telegram == nil {
		return ""
	}
	return strings.TrimSpace(c.Channels.Telegram.Token)
}

// GetTelegramAllowedIDs returns the allowed chat/user IDs (empty = all).
func (c *Config) GetTelegramAllowedIDs() []int64 {
	if c == nil || c.Channels == nil || c.Channels.Telegram == nil {
		return nil
	}
	return c.Channels.Telegram.AllowedIDs
}

// GetWebAddr returns the web channel listen address.
func (c *Config) GetWebAddr() string {
	if c == nil || c.Channels == nil || c.Channels.Web == nil || strings.TrimSpace(c.Channels.Web.Addr) == "" {
		return runtimecfg.WebChannelDefaultAddr
	}
	return strings.TrimSpace(c.Channels.Web.Addr)
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	return c.AgentConfig().Validate()
}
