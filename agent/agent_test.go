package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/linanwx/waitbot/logger"
	"github.com/linanwx/waitbot/messages"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard, "error")
	os.Exit(m.Run())
}

const tick = 10 * time.Millisecond

func testTable(bad ...string) *messages.Table {
	if len(bad) == 0 {
		bad = []string{"bad-1", "bad-2", "bad-3"}
	}
	return messages.New(map[messages.Category][]string{
		messages.Greeting:      {"hello"},
		messages.Good:          {"good"},
		messages.QuestionReply: {"question"},
		messages.Bad:           bad,
		messages.BadFinal:      {"final"},
	})
}

type recorder struct {
	ch chan string
}

func newRecorder() *recorder { return &recorder{ch: make(chan string, 64)} }

func (r *recorder) deliver(msg string) { r.ch <- msg }

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivery")
		return ""
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case msg := <-r.ch:
		t.Fatalf("unexpected delivery %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	t     *testing.T
	agent *Agent
	clock *clockwork.FakeClock
	rec   *recorder
}

func newHarness(t *testing.T, maxBad int, table *messages.Table, opts ...Option) *harness {
	t.Helper()
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	cfg := Config{
		Name:           "test",
		Delays:         Delays{Greeting: tick, Good: tick, Bad: tick},
		MaxBadMessages: maxBad,
		Deliver:        rec.deliver,
	}
	opts = append([]Option{WithClock(clock), WithRand(func(int) int { return 0 })}, opts...)
	a, err := New(cfg, table, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return &harness{t: t, agent: a, clock: clock, rec: rec}
}

// step advances one delay and returns the delivered message. Reading the
// phase afterwards waits for the firing to finish re-arming.
func (h *harness) step(d time.Duration) string {
	h.t.Helper()
	h.clock.Advance(d)
	msg := h.rec.next(h.t)
	_ = h.agent.Phase()
	return msg
}

func TestExampleScenario(t *testing.T) {
	h := newHarness(t, 3, testTable())
	h.agent.Start()

	require.Equal(t, "hello", h.step(tick))
	require.Equal(t, "bad-1", h.step(tick))
	require.Equal(t, 1, h.agent.BadCount())
	require.Equal(t, "bad-2", h.step(tick))
	require.Equal(t, 2, h.agent.BadCount())
	require.Equal(t, "final", h.step(tick))

	require.False(t, h.agent.Active())
	require.Equal(t, PhaseIdle, h.agent.Phase())

	h.clock.Advance(time.Hour)
	h.rec.none(t)
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, 5, testTable())

	h.agent.Start()
	h.clock.Advance(tick / 2)
	h.agent.Start()
	h.clock.Advance(tick / 2)
	require.Equal(t, "hello", h.rec.next(t), "second Start must not push the greeting back")
	_ = h.agent.Phase()

	require.Equal(t, "bad-1", h.step(tick))
	h.agent.Start()
	require.Equal(t, 1, h.agent.BadCount())
	require.Equal(t, PhaseEscalation, h.agent.Phase())
	require.Equal(t, "bad-2", h.step(tick))
}

func TestRestartAfterStop(t *testing.T) {
	h := newHarness(t, 5, testTable())
	h.agent.Start()
	require.Equal(t, "hello", h.step(tick))
	require.Equal(t, "bad-1", h.step(tick))

	h.agent.Stop()
	h.agent.Start()
	require.Equal(t, 0, h.agent.BadCount())
	require.Equal(t, PhaseGreeting, h.agent.Phase())
	require.Equal(t, "hello", h.step(tick))
}

func TestStopCancelsPending(t *testing.T) {
	h := newHarness(t, 5, testTable())
	h.agent.Start()
	h.agent.Stop()
	h.agent.Stop()

	require.False(t, h.agent.Active())
	h.clock.Advance(time.Hour)
	h.rec.none(t)
}

func TestReceiveResetsEscalation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "statement", text: "hi", want: "good"},
		{name: "question", text: "hi?", want: "question"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 5, testTable())
			h.agent.Start()
			require.Equal(t, "hello", h.step(tick))
			require.Equal(t, "bad-1", h.step(tick))
			require.Equal(t, "bad-2", h.step(tick))
			require.Equal(t, 2, h.agent.BadCount())

			h.agent.Receive(tc.text)
			require.Equal(t, 0, h.agent.BadCount())
			require.Equal(t, PhaseGoodReply, h.agent.Phase())

			require.Equal(t, tc.want, h.step(tick))
			// the pool was cleared and refilled, so the streak starts over
			require.Equal(t, "bad-1", h.step(tick))
			require.Equal(t, 1, h.agent.BadCount())
		})
	}
}

func TestReceiveInterruptsGreeting(t *testing.T) {
	h := newHarness(t, 5, testTable())
	h.agent.Start()
	h.clock.Advance(tick / 2)
	h.agent.Receive("already here")

	require.Equal(t, "good", h.step(tick))
	require.Equal(t, PhaseEscalation, h.agent.Phase())
}

func TestEmptyReceiveIsNoop(t *testing.T) {
	h := newHarness(t, 5, testTable())

	h.agent.Receive("")
	require.Equal(t, PhaseIdle, h.agent.Phase())
	h.clock.Advance(time.Hour)
	h.rec.none(t)

	h.agent.Start()
	require.Equal(t, "hello", h.step(tick))
	require.Equal(t, "bad-1", h.step(tick))
	h.agent.Receive("")
	require.Equal(t, 1, h.agent.BadCount())
	require.Equal(t, PhaseEscalation, h.agent.Phase())
	require.Equal(t, "bad-2", h.step(tick))
}

func TestReceiveWhileInactiveStillArms(t *testing.T) {
	h := newHarness(t, 2, testTable())

	h.agent.Receive("anyone?")
	require.False(t, h.agent.Active())
	require.Equal(t, PhaseGoodReply, h.agent.Phase())

	require.Equal(t, "question", h.step(tick))
	require.Equal(t, "bad-1", h.step(tick))
	require.Equal(t, "final", h.step(tick))
	require.Equal(t, PhaseIdle, h.agent.Phase())
}

func TestSinglePendingTimer(t *testing.T) {
	h := newHarness(t, 5, testTable())
	h.agent.Start()
	h.agent.Receive("a")
	h.agent.Receive("b?")
	h.agent.Start()

	require.NoError(t, h.clock.BlockUntilContext(context.Background(), 1))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, h.clock.BlockUntilContext(ctx, 2), "more than one timer pending")

	require.Equal(t, "question", h.step(tick))
	h.rec.none(t)
}

func TestNoRepeatWithinStreak(t *testing.T) {
	bad := []string{"b1", "b2", "b3", "b4", "b5", "b6", "b7"}
	r := rand.New(rand.NewPCG(7, 11))
	h := newHarness(t, len(bad)+1, testTable(bad...), WithRand(r.IntN))

	h.agent.Start()
	require.Equal(t, "hello", h.step(tick))

	seen := make(map[string]bool)
	for range bad {
		msg := h.step(tick)
		require.False(t, seen[msg], "bad message %q repeated", msg)
		require.Contains(t, bad, msg)
		seen[msg] = true
	}
	require.Equal(t, "final", h.step(tick))
	require.False(t, h.agent.Active())
}

func TestMaxBadOneGoesStraightToFinal(t *testing.T) {
	h := newHarness(t, 1, testTable())
	h.agent.Start()
	require.Equal(t, "hello", h.step(tick))
	require.Equal(t, "final", h.step(tick))
	require.False(t, h.agent.Active())
}

func TestExhaustedPoolDeliversNothing(t *testing.T) {
	h := newHarness(t, 4, testTable("only"))
	h.agent.Start()
	require.Equal(t, "hello", h.step(tick))
	require.Equal(t, "only", h.step(tick))

	h.clock.Advance(tick)
	require.Eventually(t, func() bool { return h.agent.BadCount() == 2 }, time.Second, time.Millisecond)
	h.rec.none(t)
	require.NoError(t, h.clock.BlockUntilContext(context.Background(), 1))

	h.clock.Advance(tick)
	require.Eventually(t, func() bool { return h.agent.BadCount() == 3 }, time.Second, time.Millisecond)
	require.NoError(t, h.clock.BlockUntilContext(context.Background(), 1))

	require.Equal(t, "final", h.step(tick))
}

func TestEmptyCategoryDoesNotPanic(t *testing.T) {
	table := messages.New(map[messages.Category][]string{
		messages.Bad:      {"bad-1"},
		messages.BadFinal: {"final"},
	})
	h := newHarness(t, 2, table)
	h.agent.Start()

	h.clock.Advance(tick)
	require.Eventually(t, func() bool { return h.agent.Phase() == PhaseEscalation }, time.Second, time.Millisecond)
	h.rec.none(t)

	require.Equal(t, "bad-1", h.step(tick))
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, 3, testTable())

	fresh, err := json.Marshal(h.agent.Snapshot())
	require.NoError(t, err)
	require.NotContains(t, string(fresh), "last_delivery")

	h.agent.Start()
	require.Equal(t, "hello", h.step(tick))

	st := h.agent.Snapshot()
	require.Equal(t, "test", st.Name)
	require.True(t, st.Active)
	require.Equal(t, "escalation", st.Phase)
	require.Equal(t, 3, st.MaxBad)
	require.Equal(t, 3, st.BadRemaining)
	require.Equal(t, 1, st.Delivered)
	require.NotNil(t, st.LastDelivery)
	require.Equal(t, h.clock.Now(), *st.LastDelivery)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	require.Contains(t, string(data), `"last_delivery"`)
}

func TestNew(t *testing.T) {
	_, err := New(Config{}, nil)
	require.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = New(Config{Delays: Delays{Bad: -time.Second}}, testTable())
	require.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = New(Config{MaxBadMessages: -1}, testTable())
	require.True(t, errors.Is(err, ErrInvalidConfig))

	a, err := New(Config{}, testTable())
	require.NoError(t, err)
	st := a.Snapshot()
	require.Equal(t, "waiting-bot", st.Name)
	require.Equal(t, 5, st.MaxBad)
	require.False(t, st.Active)
	require.Equal(t, "idle", st.Phase)
}
