package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/logger"
)

// CLIChatID is the reply address of the local terminal session.
const CLIChatID = "local"

// CLIChannel implements the Channel interface for an interactive terminal.
type CLIChannel struct {
	prompt   string
	in       io.Reader
	out      io.Writer
	outMu    sync.Mutex
	messages chan *Message
	done     chan struct{}
	closed   chan struct{} // closed when input ends (EOF or exit command)
	stopOnce sync.Once
	msgID    int64
}

// CLIConfig holds CLI channel configuration.
type CLIConfig struct {
	Prompt string    // Input prompt (default: "> ")
	In     io.Reader // default: os.Stdin
	Out    io.Writer // default: os.Stdout
}

// NewCLIChannel creates a new CLI channel.
func NewCLIChannel(cfg CLIConfig) *CLIChannel {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "> "
	}
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	return &CLIChannel{
		prompt:   prompt,
		in:       in,
		out:      out,
		messages: make(chan *Message, runtimecfg.CLIChannelMessageBufferSize),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// Name returns the channel name.
func (c *CLIChannel) Name() string {
	return "cli"
}

// Start begins reading input.
func (c *CLIChannel) Start(ctx context.Context) error {
	logger.Info("cli channel started")
	go c.readInput(ctx)
	return nil
}

// Stop shuts the channel down. A reader blocked on the terminal cannot be
// interrupted, so Stop waits only briefly for it.
func (c *CLIChannel) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)
		select {
		case <-c.closed:
			close(c.messages)
		case <-time.After(runtimecfg.CLIChannelStopWaitTimeout):
			logger.Debug("cli reader still blocked on input")
		}
		logger.Info("cli channel stopped")
	})
	return nil
}

// Closed is closed once the user ends the input.
func (c *CLIChannel) Closed() <-chan struct{} {
	return c.closed
}

// Send prints a message above the prompt.
func (c *CLIChannel) Send(ctx context.Context, resp *Response) error {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, err := fmt.Fprintf(c.out, "\r%s\n%s", resp.Text, c.prompt)
	return err
}

// Messages returns the incoming message channel.
func (c *CLIChannel) Messages() <-chan *Message {
	return c.messages
}

func (c *CLIChannel) write(s string) {
	c.outMu.Lock()
	fmt.Fprint(c.out, s)
	c.outMu.Unlock()
}

// readInput reads lines until EOF, an exit command, or shutdown.
func (c *CLIChannel) readInput(ctx context.Context) {
	defer close(c.closed)

	scanner := bufio.NewScanner(c.in)
	c.write(c.prompt)

	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			c.write(c.prompt)
			continue
		}

		switch text {
		case "exit", "quit", "/exit", "/quit":
			c.write("Goodbye!\n")
			return
		}

		c.msgID++
		msg := &Message{
			ID:        fmt.Sprintf("cli-%d", c.msgID),
			ChannelID: "cli:" + CLIChatID,
			UserID:    CLIChatID,
			Username:  os.Getenv("USER"),
			Text:      text,
			Metadata:  map[string]string{"chat_id": CLIChatID},
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
		c.write(c.prompt)
	}
}
