package channel

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/linanwx/waitbot/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard, "error")
	os.Exit(m.Run())
}

type fakeChannel struct {
	name    string
	started []string
	sent    []*Response
	stopErr error
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) Start(ctx context.Context) error {
	f.started = append(f.started, f.name)
	return nil
}
func (f *fakeChannel) Stop() error { return f.stopErr }
func (f *fakeChannel) Send(ctx context.Context, resp *Response) error {
	f.sent = append(f.sent, resp)
	return nil
}
func (f *fakeChannel) Messages() <-chan *Message { return nil }

type orderRecorder struct {
	order []string
}

type orderedChannel struct {
	fakeChannel
	rec *orderRecorder
}

func (o *orderedChannel) Start(ctx context.Context) error {
	o.rec.order = append(o.rec.order, o.name)
	return nil
}

func TestManagerStartsCLILast(t *testing.T) {
	rec := &orderRecorder{}
	m := NewManager()
	m.Register(&orderedChannel{fakeChannel: fakeChannel{name: "cli"}, rec: rec})
	m.Register(&orderedChannel{fakeChannel: fakeChannel{name: "web"}, rec: rec})
	m.Register(&orderedChannel{fakeChannel: fakeChannel{name: "telegram"}, rec: rec})
	m.Register(nil)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	want := "telegram,web,cli"
	if got := strings.Join(rec.order, ","); got != want {
		t.Fatalf("start order = %s, want %s", got, want)
	}
}

func TestManagerSendTo(t *testing.T) {
	ch := &fakeChannel{name: "web"}
	m := NewManager()
	m.Register(ch)

	if err := m.SendTo(context.Background(), "web", "hello", "abc"); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	if len(ch.sent) != 1 || ch.sent[0].Text != "hello" || ch.sent[0].ReplyTo != "abc" {
		t.Fatalf("unexpected sends: %+v", ch.sent)
	}
	if err := m.SendTo(context.Background(), "nope", "x", ""); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

func TestManagerStopAllReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	m := NewManager()
	m.Register(&fakeChannel{name: "a", stopErr: boom})
	m.Register(&fakeChannel{name: "b"})

	if err := m.StopAll(); !errors.Is(err, boom) {
		t.Fatalf("StopAll() = %v, want boom", err)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{name: "short", text: "hello", maxLen: 10, want: []string{"hello"}},
		{name: "hard split", text: "abcdefghij", maxLen: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "newline preferred", text: "abcd\nefgh", maxLen: 6, want: []string{"abcd\n", "efgh"}},
		{name: "no mid-rune split", text: "ééé", maxLen: 3, want: []string{"é", "é", "é"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitMessage(tc.text, tc.maxLen)
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("SplitMessage(%q, %d) = %q, want %q", tc.text, tc.maxLen, got, tc.want)
			}
		})
	}
}
