package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/logger"
)

// TelegramChannel implements the Channel interface for a Telegram bot.
type TelegramChannel struct {
	token      string
	allowedIDs map[int64]bool // Allowed user/chat IDs (empty = allow all)
	bot        *tgbotapi.BotAPI
	messages   chan *Message
	done       chan struct{}
	wg         sync.WaitGroup
}

// TelegramConfig holds Telegram channel configuration.
type TelegramConfig struct {
	Token      string  // Bot token from BotFather
	AllowedIDs []int64 // Allowed user/chat IDs (empty = allow all)
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(cfg TelegramConfig) *TelegramChannel {
	allowedIDs := make(map[int64]bool, len(cfg.AllowedIDs))
	for _, id := range cfg.AllowedIDs {
		allowedIDs[id] = true
	}

	return &TelegramChannel{
		token:      strings.TrimSpace(cfg.Token),
		allowedIDs: allowedIDs,
		messages:   make(chan *Message, runtimecfg.TelegramChannelMessageBufferSize),
		done:       make(chan struct{}),
	}
}

// Name returns the channel name.
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// Start connects to the Bot API and begins long polling.
func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.token == "" {
		return fmt.Errorf("telegram token not configured (set channels.telegram.token or %s)", runtimecfg.TelegramTokenEnv)
	}

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram connection failed: %w", err)
	}
	t.bot = bot
	logger.Info("telegram bot connected", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = runtimecfg.TelegramUpdateTimeoutSeconds
	updates := bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go t.pollUpdates(ctx, updates)

	logger.Info("telegram channel started")
	return nil
}

// Stop gracefully shuts down the channel.
func (t *TelegramChannel) Stop() error {
	close(t.done)
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	t.wg.Wait()
	close(t.messages)
	logger.Info("telegram channel stopped")
	return nil
}

// Send sends a message to the chat named by resp.ReplyTo.
func (t *TelegramChannel) Send(ctx context.Context, resp *Response) error {
	if t.bot == nil {
		return fmt.Errorf("telegram channel not started")
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(resp.ReplyTo), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	for _, chunk := range SplitMessage(resp.Text, runtimecfg.TelegramMaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send error: %w", err)
		}
	}
	return nil
}

// Messages returns the incoming message channel.
func (t *TelegramChannel) Messages() <-chan *Message {
	return t.messages
}

func (t *TelegramChannel) pollUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg, ok := t.convertUpdate(update)
			if !ok {
				continue
			}
			select {
			case t.messages <- msg:
			default:
				logger.Warn("telegram message buffer full, dropping message", "chatID", msg.Metadata["chat_id"])
			}
		}
	}
}

// convertUpdate maps a text update to a Message, dropping non-text updates
// and senders outside the allow list.
func (t *TelegramChannel) convertUpdate(update tgbotapi.Update) (*Message, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil, false
	}

	var fromID int64
	var username string
	if msg.From != nil {
		fromID = msg.From.ID
		username = msg.From.UserName
	}

	if len(t.allowedIDs) > 0 && !t.allowedIDs[msg.Chat.ID] && !t.allowedIDs[fromID] {
		logger.Warn("telegram message from unauthorized user",
			"userID", fromID,
			"chatID", msg.Chat.ID,
			"username", username,
		)
		return nil, false
	}

	text := normalizeCommand(strings.TrimSpace(msg.Text))
	if text == "" {
		return nil, false
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	return &Message{
		ID:        strconv.Itoa(msg.MessageID),
		ChannelID: "telegram:" + chatID,
		UserID:    strconv.FormatInt(fromID, 10),
		Username:  username,
		Text:      text,
		Metadata: map[string]string{
			"chat_id":   chatID,
			"chat_type": msg.Chat.Type,
		},
	}, true
}

// normalizeCommand strips the bot mention from group commands ("/start@waitbot").
func normalizeCommand(text string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	cmd, rest, _ := strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	if rest == "" {
		return cmd
	}
	return cmd + " " + rest
}
