package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/linanwx/waitbot/logger"
)

// ParseSchedule turns a reap schedule into a job definition. A Go duration
// ("5m") runs on a fixed interval; anything else must be a standard
// five-field cron expression.
func ParseSchedule(spec string) (gocron.JobDefinition, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty reap schedule")
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("reap interval must be positive: %s", spec)
		}
		return gocron.DurationJob(d), nil
	}
	if _, err := robfigcron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reap schedule %q: %w", spec, err)
	}
	return gocron.CronJob(spec, false), nil
}

// StartReaper runs Reap on the given schedule until Close.
func (m *Manager) StartReaper(spec string) error {
	def, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	sch, err := gocron.NewScheduler(gocron.WithClock(m.clock))
	if err != nil {
		return fmt.Errorf("create reaper scheduler: %w", err)
	}
	_, err = sch.NewJob(
		def,
		gocron.NewTask(func() { m.Reap(m.clock.Now()) }),
		gocron.WithName("session-reaper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sch.Shutdown()
		return fmt.Errorf("schedule reaper: %w", err)
	}

	m.mu.Lock()
	old := m.reaper
	m.reaper = sch
	m.mu.Unlock()
	if old != nil {
		_ = old.Shutdown()
	}

	sch.Start()
	logger.Info("session reaper started", "schedule", spec, "idleAfter", m.cfg.IdleAfter)
	return nil
}
