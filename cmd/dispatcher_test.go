package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/linanwx/waitbot/channel"
	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/logger"
	"github.com/linanwx/waitbot/session"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard, "error")
	os.Exit(m.Run())
}

type handledCall struct {
	key  string
	text string
	sink session.Sink
}

type fakeSessions struct {
	calls []handledCall
	err   error
}

func (f *fakeSessions) Handle(key, text string, sink session.Sink) error {
	f.calls = append(f.calls, handledCall{key: key, text: text, sink: sink})
	return f.err
}

type recordingChannel struct {
	name string
	sent []*channel.Response
}

func (r *recordingChannel) Name() string                    { return r.name }
func (r *recordingChannel) Start(ctx context.Context) error { return nil }
func (r *recordingChannel) Stop() error                     { return nil }
func (r *recordingChannel) Messages() <-chan *channel.Message {
	return nil
}
func (r *recordingChannel) Send(ctx context.Context, resp *channel.Response) error {
	r.sent = append(r.sent, resp)
	return nil
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		msg  *channel.Message
		want string
	}{
		{name: "nil", msg: nil, want: runtimecfg.SessionDefaultKey},
		{name: "telegram chat", msg: &channel.Message{ChannelID: "telegram:42", UserID: "7"}, want: "telegram:42"},
		{name: "web tab", msg: &channel.Message{ChannelID: "web:abc"}, want: "web:abc"},
		{name: "user only", msg: &channel.Message{UserID: "7"}, want: "user:7"},
		{name: "empty", msg: &channel.Message{}, want: runtimecfg.SessionDefaultKey},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := route(tc.msg); got != tc.want {
				t.Fatalf("route() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDispatchSinkRepliesToOrigin(t *testing.T) {
	web := &recordingChannel{name: "web"}
	chMgr := channel.NewManager()
	chMgr.Register(web)
	sessions := &fakeSessions{}
	d := NewDispatcher(chMgr, sessions)

	d.dispatch(web, &channel.Message{
		ChannelID: "web:abc",
		Text:      "hello?",
		Metadata:  map[string]string{"chat_id": "abc"},
	})

	if len(sessions.calls) != 1 {
		t.Fatalf("expected 1 handled message, got %d", len(sessions.calls))
	}
	call := sessions.calls[0]
	if call.key != "web:abc" || call.text != "hello?" {
		t.Fatalf("unexpected call: %+v", call)
	}

	call.sink("Still there?")
	call.sink("   ")
	if len(web.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(web.sent))
	}
	if web.sent[0].Text != "Still there?" || web.sent[0].ReplyTo != "abc" {
		t.Fatalf("unexpected response: %+v", web.sent[0])
	}
}

func TestDispatchSurvivesHandleError(t *testing.T) {
	ch := &recordingChannel{name: "cli"}
	chMgr := channel.NewManager()
	chMgr.Register(ch)
	sessions := &fakeSessions{err: errors.New("boom")}

	NewDispatcher(chMgr, sessions).dispatch(ch, &channel.Message{ChannelID: "cli:local", Text: "hi"})
	NewDispatcher(chMgr, sessions).dispatch(ch, nil)

	if len(sessions.calls) != 1 {
		t.Fatalf("expected 1 handled message, got %d", len(sessions.calls))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Fatalf("truncate long = %q", got)
	}
}

func TestWebStopCommandMatchesSessionCommand(t *testing.T) {
	if channel.WebStopCommand != session.CommandStop {
		t.Fatalf("web stop command %q does not match session command %q", channel.WebStopCommand, session.CommandStop)
	}
}
