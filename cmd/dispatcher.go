package cmd

import (
	"context"
	"strings"

	"github.com/linanwx/waitbot/channel"
	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/logger"
	"github.com/linanwx/waitbot/session"
)

// sessionHandler is the part of session.Manager the dispatcher needs.
type sessionHandler interface {
	Handle(key, text string, sink session.Sink) error
}

// Dispatcher routes channel messages to sessions. It is the bridge between
// the channel layer (pure I/O) and the per-conversation agents.
type Dispatcher struct {
	channels *channel.Manager
	sessions sessionHandler
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(channels *channel.Manager, sessions sessionHandler) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		sessions: sessions,
	}
}

// Run starts a goroutine for each channel that reads messages and hands
// them to sessions. Blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.channels.Each(func(ch channel.Channel) {
		go d.processChannel(ctx, ch)
	})
	<-ctx.Done()
}

func (d *Dispatcher) processChannel(ctx context.Context, ch channel.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Messages():
			if !ok {
				return
			}
			d.dispatch(ch, msg)
		}
	}
}

func (d *Dispatcher) dispatch(ch channel.Channel, msg *channel.Message) {
	if msg == nil {
		return
	}
	logger.Debug("dispatching message",
		"channel", ch.Name(),
		"channelID", msg.ChannelID,
		"user", msg.Username,
		"text", truncate(msg.Text, 50),
	)

	key := route(msg)
	if err := d.sessions.Handle(key, msg.Text, d.buildSink(ch.Name(), msg)); err != nil {
		logger.Error("session handle failed", "session", key, "err", err)
	}
}

// route determines the session key for a message: one conversation per
// chat, web tab or terminal.
func route(msg *channel.Message) string {
	if msg == nil {
		return runtimecfg.SessionDefaultKey
	}
	if key := strings.TrimSpace(msg.ChannelID); key != "" {
		return key
	}
	if msg.UserID != "" {
		return "user:" + msg.UserID
	}
	return runtimecfg.SessionDefaultKey
}

// buildSink creates a sink that delivers agent messages back to the
// originating chat. It runs on the agent's timer goroutine, so each send
// gets its own timeout.
func (d *Dispatcher) buildSink(channelName string, msg *channel.Message) session.Sink {
	manager := d.channels
	replyTo := strings.TrimSpace(msg.Metadata["chat_id"])

	return func(text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), runtimecfg.SessionSendTimeout)
		defer cancel()
		if err := manager.SendTo(ctx, channelName, text, replyTo); err != nil {
			logger.Error("failed to deliver message", "channel", channelName, "replyTo", replyTo, "err", err)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
