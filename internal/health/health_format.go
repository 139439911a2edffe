package health

import (
	"fmt"
	"sort"
	"strings"
)

// FormatText formats a snapshot into a human-readable text block.
func FormatText(s Snapshot) string {
	var b strings.Builder
	b.WriteString("waitbot Health\n")
	b.WriteString("==============\n\n")
	b.WriteString(fmt.Sprintf("Status: %s\n", s.Status))
	if s.Uptime != "" {
		b.WriteString(fmt.Sprintf("Uptime: %s\n", s.Uptime))
	}
	b.WriteString("\nSessions:\n")
	b.WriteString(fmt.Sprintf("  Total: %d\n", s.Sessions.Total))
	b.WriteString(fmt.Sprintf("  Active: %d\n", s.Sessions.Active))
	b.WriteString(fmt.Sprintf("  Delivered: %d\n", s.Sessions.Delivered))
	phases := make([]string, 0, len(s.Sessions.ByPhase))
	for p := range s.Sessions.ByPhase {
		phases = append(phases, p)
	}
	sort.Strings(phases)
	for _, p := range phases {
		b.WriteString(fmt.Sprintf("  %s: %d\n", p, s.Sessions.ByPhase[p]))
	}
	if s.Sessions.Oldest != "" {
		b.WriteString(fmt.Sprintf("  Quietest: %s\n", s.Sessions.Oldest))
	}

	b.WriteString("\nMemory:\n")
	b.WriteString(fmt.Sprintf("  Allocated: %.2f MB\n", s.Memory.AllocMB))
	b.WriteString(fmt.Sprintf("  Total Allocated: %.2f MB\n", s.Memory.TotalAllocMB))
	b.WriteString(fmt.Sprintf("  System: %.2f MB\n", s.Memory.SysMB))
	b.WriteString(fmt.Sprintf("  GC Cycles: %d\n\n", s.Memory.NumGC))
	b.WriteString("Runtime:\n")
	b.WriteString(fmt.Sprintf("  Go Version: %s\n", s.Runtime.Version))
	b.WriteString(fmt.Sprintf("  OS/Arch: %s/%s\n", s.Runtime.OS, s.Runtime.Arch))
	b.WriteString(fmt.Sprintf("  CPUs: %d\n", s.Runtime.CPUs))
	b.WriteString(fmt.Sprintf("  Goroutines: %d\n", s.Goroutines))
	b.WriteString(fmt.Sprintf("\nTimestamp: %s\n", s.Timestamp))
	return b.String()
}

// String renders the snapshot with FormatText.
func (s Snapshot) String() string { return FormatText(s) }
