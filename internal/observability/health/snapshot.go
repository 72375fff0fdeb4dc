package health

import (
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/runtime/supervisor"
)

// Snapshot is the process state served on /healthz and by /status.
type Snapshot struct {
	Status    string                         `json:"status"` // "ok" or "starting"
	StartedAt time.Time                      `json:"started_at"`
	Uptime    string                         `json:"uptime"`
	Bot       string                         `json:"bot,omitempty"`
	Reminders reminder.StoreStats            `json:"reminders"`
	Scheduler reminder.SchedulerStats        `json:"scheduler"`
	Cadence   string                         `json:"cadence"`
	Runtime   map[string]supervisor.Snapshot `json:"runtime,omitempty"`
}

func (s Snapshot) Ready() bool { return s.Status == "ok" }

// Collector builds a fresh Snapshot on each call.
type Collector func() Snapshot
