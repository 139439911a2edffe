package channel

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCLIChannelReadsLines(t *testing.T) {
	out := &syncBuffer{}
	ch := NewCLIChannel(CLIConfig{
		In:  strings.NewReader("hello\n\n  are you there?  \nexit\nignored\n"),
		Out: out,
	})
	if err := ch.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	var got []string
	for _, want := range []string{"hello", "are you there?"} {
		select {
		case msg := <-ch.Messages():
			if msg.ChannelID != "cli:local" || msg.Metadata["chat_id"] != CLIChatID {
				t.Fatalf("unexpected routing fields: %+v", msg)
			}
			got = append(got, msg.Text)
			if msg.Text != want {
				t.Fatalf("message = %q, want %q", msg.Text, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}

	select {
	case <-ch.Closed():
	case <-time.After(time.Second):
		t.Fatalf("exit command did not close input")
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Fatalf("missing goodbye: %q", out.String())
	}

	if err := ch.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := <-ch.Messages(); ok {
		t.Fatalf("messages channel should be closed after stop")
	}
}

func TestCLIChannelSend(t *testing.T) {
	out := &syncBuffer{}
	ch := NewCLIChannel(CLIConfig{Prompt: "you> ", In: strings.NewReader(""), Out: out})

	if err := ch.Send(context.Background(), &Response{Text: "Still there?"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Still there?\nyou> ") {
		t.Fatalf("unexpected output %q", got)
	}
	if ch.Name() != "cli" {
		t.Fatalf("name = %s", ch.Name())
	}
}
