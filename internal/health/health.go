// Package health reports process and session health for the running service.
package health

import (
	"runtime"
	"sort"
	"time"

	"github.com/linanwx/waitbot/session"
)

// Snapshot is a runtime health snapshot of the current process.
type Snapshot struct {
	Status     string       `json:"status"`
	Goroutines int          `json:"goroutines"`
	Memory     MemoryInfo   `json:"memory"`
	Runtime    RuntimeInfo  `json:"runtime"`
	Uptime     string       `json:"uptime,omitempty"`
	Timestamp  string       `json:"timestamp"`
	Sessions   SessionsInfo `json:"sessions"`
}

// MemoryInfo contains memory statistics in MB.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
	NumGC        uint32  `json:"numGC"`
}

// RuntimeInfo contains Go runtime metadata.
type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
}

// SessionsInfo summarises the live conversations.
type SessionsInfo struct {
	Total     int            `json:"total"`
	Active    int            `json:"active"`
	ByPhase   map[string]int `json:"byPhase"`
	Delivered int            `json:"delivered"`
	// Oldest is the key of the session that has been quiet the longest.
	Oldest string `json:"oldest,omitempty"`
}

// Options controls the snapshot inputs.
type Options struct {
	Now       time.Time
	StartedAt time.Time
	Sessions  []session.Status
}

// Collect returns a health snapshot for the current process.
func Collect(opts Options) Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	s := Snapshot{
		Status:     "healthy",
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Timestamp: now.Format(time.RFC3339),
		Sessions:  summarizeSessions(opts.Sessions),
	}
	if !opts.StartedAt.IsZero() {
		s.Uptime = now.Sub(opts.StartedAt).Truncate(time.Second).String()
	}
	return s
}

func summarizeSessions(list []session.Status) SessionsInfo {
	info := SessionsInfo{
		Total:   len(list),
		ByPhase: make(map[string]int),
	}
	if len(list) == 0 {
		return info
	}

	sorted := append([]session.Status(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastActive.Before(sorted[j].LastActive)
	})
	info.Oldest = sorted[0].Key

	for _, st := range list {
		if st.Agent.Active {
			info.Active++
		}
		info.ByPhase[st.Agent.Phase]++
		info.Delivered += st.Agent.Delivered
	}
	return info
}
