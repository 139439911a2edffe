// Package agent implements the waiting agent: a single-timer state machine
// that greets, answers, grows impatient and finally gives up.
package agent

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/logger"
	"github.com/linanwx/waitbot/messages"
)

// ErrInvalidConfig is returned by New for negative delays or counts.
var ErrInvalidConfig = errors.New("invalid agent config")

// Delays holds the wait before each phase fires.
type Delays struct {
	Greeting time.Duration
	Good     time.Duration
	Bad      time.Duration
}

// Config is the immutable agent configuration. Zero fields take defaults.
type Config struct {
	Name           string
	Delays         Delays
	MaxBadMessages int

	// Deliver receives every emitted message. It runs synchronously while
	// the agent is locked and must not call back into the same agent.
	Deliver func(message string)
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Name: runtimecfg.AgentDefaultName,
		Delays: Delays{
			Greeting: runtimecfg.AgentDefaultGreetingDelay,
			Good:     runtimecfg.AgentDefaultGoodDelay,
			Bad:      runtimecfg.AgentDefaultBadDelay,
		},
		MaxBadMessages: runtimecfg.AgentDefaultMaxBadMessages,
		Deliver:        func(message string) { fmt.Println(message) },
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = def.Name
	}
	if c.Delays.Greeting == 0 {
		c.Delays.Greeting = def.Delays.Greeting
	}
	if c.Delays.Good == 0 {
		c.Delays.Good = def.Delays.Good
	}
	if c.Delays.Bad == 0 {
		c.Delays.Bad = def.Delays.Bad
	}
	if c.MaxBadMessages == 0 {
		c.MaxBadMessages = def.MaxBadMessages
	}
	if c.Deliver == nil {
		c.Deliver = def.Deliver
	}
	return c
}

// Validate reports negative delays or a negative escalation count.
func (c Config) Validate() error {
	var errs []error
	if c.Delays.Greeting < 0 {
		errs = append(errs, fmt.Errorf("%w: greeting delay %s", ErrInvalidConfig, c.Delays.Greeting))
	}
	if c.Delays.Good < 0 {
		errs = append(errs, fmt.Errorf("%w: good delay %s", ErrInvalidConfig, c.Delays.Good))
	}
	if c.Delays.Bad < 0 {
		errs = append(errs, fmt.Errorf("%w: bad delay %s", ErrInvalidConfig, c.Delays.Bad))
	}
	if c.MaxBadMessages < 0 {
		errs = append(errs, fmt.Errorf("%w: maxBadMessages %d", ErrInvalidConfig, c.MaxBadMessages))
	}
	return errors.Join(errs...)
}

// Option customises an Agent.
type Option func(*Agent)

// WithClock sets the clock used to arm phases.
func WithClock(c clockwork.Clock) Option {
	return func(a *Agent) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithRand sets the index source used to pick messages. fn(n) must return a
// value in [0, n).
func WithRand(fn func(n int) int) Option {
	return func(a *Agent) {
		if fn != nil {
			a.randIndex = fn
		}
	}
}

// Agent owns at most one pending timer. Every public method and every timer
// firing runs under mu, so a schedule that was replaced can never deliver.
type Agent struct {
	name      string
	delays    Delays
	maxBad    int
	deliver   func(string)
	table     *messages.Table
	clock     clockwork.Clock
	randIndex func(int) int

	mu        sync.Mutex
	active    bool
	phase     Phase
	question  bool
	badCount  int
	available []string
	timer     clockwork.Timer
	gen       uint64 // bumped on every arm/cancel; stale firings compare unequal

	delivered    int
	lastDelivery time.Time
}

// New creates an idle agent.
func New(cfg Config, table *messages.Table, opts ...Option) (*Agent, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: message table is nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	a := &Agent{
		name:      cfg.Name,
		delays:    cfg.Delays,
		maxBad:    cfg.MaxBadMessages,
		deliver:   cfg.Deliver,
		table:     table,
		clock:     clockwork.NewRealClock(),
		randIndex: rand.IntN,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mu.Lock()
	a.resetLocked()
	a.mu.Unlock()
	return a, nil
}

// Name returns the agent identifier.
func (a *Agent) Name() string { return a.name }

// Start arms the greeting phase. It does nothing while the agent is active;
// call Stop first to restart.
func (a *Agent) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		return
	}
	a.resetLocked()
	a.active = true
	a.armLocked(PhaseGreeting)
	logger.Debug("agent started", "agent", a.name)
}

// Stop cancels the pending phase and marks the agent inactive.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Receive handles a message from the other party. Empty text is ignored.
// Anything else resets the escalation and arms a reply, a question reply if
// text ends with '?'. The reply is armed even when the agent is inactive.
func (a *Agent) Receive(text string) {
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.badCount = 0
	a.available = nil
	a.question = strings.HasSuffix(text, "?")
	a.armLocked(PhaseGoodReply)
	logger.Debug("agent received message", "agent", a.name, "question", a.question, "active", a.active)
}

// Active reports whether the schedule started by Start is still running.
func (a *Agent) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Phase returns the currently armed phase.
func (a *Agent) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// BadCount returns the number of escalation firings in the current streak.
func (a *Agent) BadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.badCount
}

// Status is a point-in-time view of an agent.
type Status struct {
	Name         string     `json:"name"`
	Active       bool       `json:"active"`
	Phase        string     `json:"phase"`
	BadCount     int        `json:"bad_count"`
	MaxBad       int        `json:"max_bad"`
	BadRemaining int        `json:"bad_remaining"`
	Delivered    int        `json:"delivered"`
	LastDelivery *time.Time `json:"last_delivery,omitempty"` // nil until the first delivery
}

// Snapshot returns the agent status.
func (a *Agent) Snapshot() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{
		Name:         a.name,
		Active:       a.active,
		Phase:        a.phase.String(),
		BadCount:     a.badCount,
		MaxBad:       a.maxBad,
		BadRemaining: len(a.available),
		Delivered:    a.delivered,
	}
	if !a.lastDelivery.IsZero() {
		last := a.lastDelivery
		st.LastDelivery = &last
	}
	return st
}

func (a *Agent) resetLocked() {
	a.cancelLocked()
	a.active = false
	a.phase = PhaseIdle
	a.question = false
	a.badCount = 0
	a.available = nil
}

func (a *Agent) stopLocked() {
	a.cancelLocked()
	a.active = false
	a.phase = PhaseIdle
}

func (a *Agent) cancelLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
}

// armLocked replaces whatever is pending with phase p.
func (a *Agent) armLocked(p Phase) {
	a.cancelLocked()
	a.phase = p

	gen := a.gen
	a.timer = a.clock.AfterFunc(a.delayFor(p), func() { a.fire(gen) })
}

func (a *Agent) delayFor(p Phase) time.Duration {
	switch p {
	case PhaseGreeting:
		return a.delays.Greeting
	case PhaseGoodReply:
		return a.delays.Good
	default:
		return a.delays.Bad
	}
}

func (a *Agent) fire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen {
		return
	}
	a.timer = nil

	switch a.phase {
	case PhaseGreeting:
		a.deliverFromLocked(messages.Greeting)
		a.escalateLocked()
	case PhaseGoodReply:
		category := messages.Good
		if a.question {
			category = messages.QuestionReply
		}
		a.deliverFromLocked(category)
		a.escalateLocked()
	case PhaseEscalation:
		a.fireBadLocked()
	}
}

// escalateLocked refills the bad pool and arms the repeating escalation.
func (a *Agent) escalateLocked() {
	a.available = append(a.available, a.table.Get(messages.Bad)...)
	a.armLocked(PhaseEscalation)
}

func (a *Agent) fireBadLocked() {
	a.badCount++

	if a.badCount == a.maxBad {
		a.deliverFromLocked(messages.BadFinal)
		a.stopLocked()
		logger.Info("agent gave up", "agent", a.name, "badCount", a.badCount)
		return
	}

	if len(a.available) == 0 {
		logger.Warn("no message available", "agent", a.name, "category", messages.Bad, "badCount", a.badCount)
	} else {
		i := a.randIndex(len(a.available))
		msg := a.available[i]
		a.available = slices.Delete(a.available, i, i+1)
		a.deliverLocked(msg)
	}
	a.armLocked(PhaseEscalation)
}

func (a *Agent) deliverFromLocked(c messages.Category) {
	msg, err := a.table.Pick(c, a.randIndex)
	if err != nil {
		logger.Warn("no message available", "agent", a.name, "category", c, "err", err)
		return
	}
	a.deliverLocked(msg)
}

func (a *Agent) deliverLocked(msg string) {
	a.delivered++
	a.lastDelivery = a.clock.Now()
	logger.Debug("agent delivering", "agent", a.name, "phase", a.phase, "badCount", a.badCount)
	a.deliver(msg)
}
