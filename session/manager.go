// Package session keeps one waiting agent per conversation.
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/linanwx/waitbot/agent"
	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/logger"
	"github.com/linanwx/waitbot/messages"
)

// Chat commands understood by Handle.
const (
	CommandStart = "/start"
	CommandStop  = "/stop"
)

// Sink delivers an agent message back to the conversation.
type Sink func(message string)

// Config configures a Manager.
type Config struct {
	Agent     agent.Config // template; Deliver is replaced per session
	Table     *messages.Table
	Options   []agent.Option
	Clock     clockwork.Clock
	IdleAfter time.Duration
}

// Session is one conversation and its agent.
type Session struct {
	key   string
	agent *agent.Agent

	mu         sync.Mutex
	sink       Sink
	lastActive time.Time
}

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// Agent returns the session's agent.
func (s *Session) Agent() *agent.Agent { return s.agent }

// LastActive returns the time of the last incoming message.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) setSink(sink Sink) {
	if sink == nil {
		return
	}
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time, idleAfter time.Duration) bool {
	return now.Sub(s.LastActive()) >= idleAfter
}

func (s *Session) deliver(message string) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		logger.Warn("session has no sink, dropping message", "session", s.key)
		return
	}
	sink(message)
}

// Manager maps session keys to agents.
type Manager struct {
	cfg   Config
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]*Session
	reaper   gocron.Scheduler
}

// NewManager creates a session manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("session: message table is nil")
	}
	if err := cfg.Agent.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = runtimecfg.SessionDefaultIdleAfter
	}
	return &Manager{
		cfg:      cfg,
		clock:    cfg.Clock,
		sessions: make(map[string]*Session),
	}, nil
}

// Handle routes one incoming message. The first message of a new session
// starts its agent; later messages are replies. "/start" restarts the
// agent and "/stop" silences it.
func (m *Manager) Handle(key, text string, sink Sink) error {
	s, created, err := m.getOrCreate(key, m.clock.Now())
	if err != nil {
		return err
	}
	s.setSink(sink)

	switch strings.TrimSpace(text) {
	case CommandStart:
		s.agent.Stop()
		s.agent.Start()
		logger.Info("session restarted", "session", s.key)
	case CommandStop:
		s.agent.Stop()
		logger.Info("session stopped", "session", s.key)
	default:
		if created {
			s.agent.Start()
			logger.Info("session started", "session", s.key)
			return nil
		}
		s.agent.Receive(text)
	}
	return nil
}

// Get returns a session by key.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[normalizeKey(key)]
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Status describes one session.
type Status struct {
	Key        string       `json:"key"`
	LastActive time.Time    `json:"last_active"`
	Agent      agent.Status `json:"agent"`
}

// Snapshot returns the status of every session, sorted by key.
func (m *Manager) Snapshot() []Status {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(list))
	for _, s := range list {
		out = append(out, Status{Key: s.key, LastActive: s.LastActive(), Agent: s.agent.Snapshot()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Reap drops sessions whose agent has nothing armed and whose last message
// is at least IdleAfter old. It returns the removed keys.
//
// Agent state is read without m.mu: a firing holds its agent while the sink
// runs, and a slow sink must not stall Handle for other sessions.
func (m *Manager) Reap(now time.Time) []string {
	m.mu.Lock()
	candidates := make(map[string]*Session, len(m.sessions))
	for key, s := range m.sessions {
		if s.idleSince(now, m.cfg.IdleAfter) {
			candidates[key] = s
		}
	}
	m.mu.Unlock()

	for key, s := range candidates {
		if s.agent.Phase() != agent.PhaseIdle {
			delete(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Handle refreshes lastActive under m.mu, so a session touched since the
	// scan fails the second idle check.
	var removed []*Session
	var keys []string
	m.mu.Lock()
	for key, s := range candidates {
		if m.sessions[key] != s || !s.idleSince(now, m.cfg.IdleAfter) {
			continue
		}
		delete(m.sessions, key)
		removed = append(removed, s)
		keys = append(keys, key)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, s := range removed {
		s.agent.Stop()
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		logger.Info("reaped idle sessions", "count", len(keys), "remaining", remaining)
	}
	return keys
}

// Close stops the reaper and every agent.
func (m *Manager) Close() {
	m.mu.Lock()
	reaper := m.reaper
	m.reaper = nil
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if reaper != nil {
		if err := reaper.Shutdown(); err != nil {
			logger.Warn("session reaper shutdown error", "err", err)
		}
	}
	for _, s := range sessions {
		s.agent.Stop()
	}
}

// getOrCreate returns the session for key and marks it active at now while
// m.mu is held, so Reap cannot drop it in between.
func (m *Manager) getOrCreate(key string, now time.Time) (*Session, bool, error) {
	key = normalizeKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		s.touch(now)
		return s, false, nil
	}

	s := &Session{key: key, lastActive: now}
	cfg := m.cfg.Agent
	cfg.Name = agentName(cfg.Name, key)
	cfg.Deliver = s.deliver

	opts := append([]agent.Option{agent.WithClock(m.clock)}, m.cfg.Options...)
	a, err := agent.New(cfg, m.cfg.Table, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("session %s: %w", key, err)
	}
	s.agent = a
	m.sessions[key] = s
	logger.Debug("session created", "session", key)
	return s, true, nil
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return runtimecfg.SessionDefaultKey
	}
	return key
}

func agentName(base, key string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = runtimecfg.AgentDefaultName
	}
	return base + "@" + key
}
