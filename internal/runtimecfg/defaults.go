package runtimecfg

import "time"

const (
	AgentDefaultName           = "waiting-bot"
	AgentDefaultGreetingDelay  = 10 * time.Second
	AgentDefaultGoodDelay      = 1 * time.Second
	AgentDefaultBadDelay       = 20 * time.Second
	AgentDefaultMaxBadMessages = 5
)

const (
	SessionDefaultIdleAfter    = 30 * time.Minute
	SessionDefaultReapSchedule = "5m"
	SessionDefaultKey          = "channel:default"
	SessionSendTimeout         = 10 * time.Second
)

const (
	CLIChannelMessageBufferSize      = 10
	CLIChannelStopWaitTimeout        = 500 * time.Millisecond
	TelegramChannelMessageBufferSize = 100
	TelegramUpdateTimeoutSeconds     = 30
	TelegramMaxMessageLength         = 4096
	WebChannelMessageBufferSize      = 100
	WebChannelDefaultAddr            = "127.0.0.1:8080"
	WebChannelShutdownTimeout        = 5 * time.Second
)

const (
	ConfigDirName      = ".waitbot"
	ConfigFileName     = "config.yaml"
	ConfigDirEnv       = "WAITBOT_CONFIG_DIR"
	TelegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	MessagesFileName   = "messages.yaml"
	LogFileDefaultPath = "logs/waitbot.log"
)
