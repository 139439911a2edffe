package config

import (
	"github.com/linanwx/waitbot/internal/runtimecfg"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Name: runtimecfg.AgentDefaultName,
			Delays: DelaysConfig{
				Greeting: runtimecfg.AgentDefaultGreetingDelay,
				Good:     runtimecfg.AgentDefaultGoodDelay,
				Bad:      runtimecfg.AgentDefaultBadDelay,
			},
			MaxBadMessages: runtimecfg.AgentDefaultMaxBadMessages,
		},
		Sessions: SessionsConfig{
			IdleAfter:    runtimecfg.SessionDefaultIdleAfter,
			ReapSchedule: runtimecfg.SessionDefaultReapSchedule,
		},
		Channels: &ChannelsConfig{
			Telegram: &TelegramChannelConfig{
				Token:      "",
				AllowedIDs: []int64{},
			},
			Web: &WebChannelConfig{
				Addr: runtimecfg.WebChannelDefaultAddr,
			},
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Stdout:  true,
		File:    runtimecfg.LogFileDefaultPath,
	}
}

func (c *Config) applyDefaults() {
	if c.Bot.Name == "" {
		c.Bot.Name = runtimecfg.AgentDefaultName
	}
	if c.Bot.Delays.Greeting == 0 {
		c.Bot.Delays.Greeting = runtimecfg.AgentDefaultGreetingDelay
	}
	if c.Bot.Delays.Good == 0 {
		c.Bot.Delays.Good = runtimecfg.AgentDefaultGoodDelay
	}
	if c.Bot.Delays.Bad == 0 {
		c.Bot.Delays.Bad = runtimecfg.AgentDefaultBadDelay
	}
	if c.Bot.MaxBadMessages == 0 {
		c.Bot.MaxBadMessages = runtimecfg.AgentDefaultMaxBadMessages
	}

	if c.Sessions.IdleAfter <= 0 {
		c.Sessions.IdleAfter = runtimecfg.SessionDefaultIdleAfter
	}
	if c.Sessions.ReapSchedule == "" {
		c.Sessions.ReapSchedule = runtimecfg.SessionDefaultReapSchedule
	}

	if c.Channels == nil {
		c.Channels = &ChannelsConfig{}
	}
	if c.Channels.Telegram == nil {
		c.Channels.Telegram = &TelegramChannelConfig{}
	}
	if c.Channels.Telegram.AllowedIDs == nil {
		c.Channels.Telegram.AllowedIDs = []int64{}
	}
	if c.Channels.Web == nil {
		c.Channels.Web = &WebChannelConfig{}
	}
	if c.Channels.Web.Addr == "" {
		c.Channels.Web.Addr = runtimecfg.WebChannelDefaultAddr
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if !c.Logging.Stdout && c.Logging.File == "" {
		c.Logging.Stdout = def.Stdout
	}
}

// LoggingEnabled reports the effective logging switch.
func (c *Config) LoggingEnabled() bool {
	return c.Logging.Enabled == nil || *c.Logging.Enabled
}
