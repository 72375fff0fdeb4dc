// Package ops holds owner-only operational commands.
package ops

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"remindbot/internal/notifier"
	"remindbot/internal/observability/health"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

const (
	historyShown = 5
	auditDefault = 10
	auditMax     = 50
)

// Module renders process state for the bot owners.
type Module struct {
	collect health.Collector
	history func() []notifier.HistoryItem
	audit   storage.Store // nil when storage is disabled
	log     logx.Logger
	now     func() time.Time
}

func New(collect health.Collector, history func() []notifier.HistoryItem, audit storage.Store, log logx.Logger) *Module {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Module{
		collect: collect,
		history: history,
		audit:   audit,
		log:     log.With(logx.String("comp", "ops")),
		now:     time.Now,
	}
}

func (m *Module) Commands() []router.Command {
	return []router.Command{
		{
			Route:       "status",
			Description: "bot health and delivery stats",
			Usage:       "/status",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      m.handleStatus,
		},
		{
			Route:       "status audit",
			Description: "recent reminder actions of a user",
			Usage:       "/status audit <user_id> [--limit 10]",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      m.handleAudit,
		},
	}
}

func (m *Module) handleStatus(ctx context.Context, req *router.Request) error {
	_, err := req.Reply(ctx, m.render().String(), &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

func (m *Module) render() tgui.H {
	snap := m.collect()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := "Running"
	if !snap.Ready() {
		status = "Starting"
	}
	last := "never"
	if !snap.Scheduler.LastScan.IsZero() {
		last = humanize.RelTime(snap.Scheduler.LastScan, m.now(), "ago", "from now")
	}

	lines := []tgui.H{
		tgui.B("Bot status"),
		row("Status", status),
		row("Bot", "@"+snap.Bot),
		row("Uptime", snap.Uptime),
		"",
		tgui.B("Reminders"),
		row("Pending", strconv.Itoa(snap.Reminders.Reminders)),
		row("Users", strconv.Itoa(snap.Reminders.Owners)),
		row("Delivered", strconv.FormatUint(snap.Scheduler.Delivered, 10)),
		row("Failed", strconv.FormatUint(snap.Scheduler.Failed, 10)),
		row("Check", snap.Cadence),
		row("Last scan", last),
		"",
		tgui.B("Runtime"),
		row("Go", runtime.Version()),
		row("Goroutines", strconv.Itoa(runtime.NumGoroutine())),
		row("Heap", humanize.IBytes(mem.HeapInuse)),
		row("Sys", humanize.IBytes(mem.Sys)),
	}

	if len(snap.Runtime) > 0 {
		lines = append(lines, "", tgui.B("Supervisors"))
		names := make([]string, 0, len(snap.Runtime))
		for name := range snap.Runtime {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := snap.Runtime[name]
			v := fmt.Sprintf("%d active, %d tasks", s.Counters.Active, len(s.Tasks))
			if s.FirstError != "" {
				v += ", error: " + tgui.TruncRunes(s.FirstError, 80)
			}
			lines = append(lines, row(name, v))
		}
	}

	if m.history != nil {
		if h := m.history(); len(h) > 0 {
			lines = append(lines, "", tgui.B("Recent sends"))
			if len(h) > historyShown {
				h = h[len(h)-historyShown:]
			}
			for i := len(h) - 1; i >= 0; i-- {
				it := h[i]
				v := it.Kind + " to " + strconv.FormatInt(it.ChatID, 10)
				if it.Error != "" {
					v += " failed: " + tgui.TruncRunes(it.Error, 80)
				}
				lines = append(lines, row(humanize.RelTime(it.At, m.now(), "ago", "from now"), v))
			}
		}
	}
	return tgui.Lines(lines...)
}

func (m *Module) handleAudit(ctx context.Context, req *router.Request) error {
	if m.audit == nil {
		_, err := req.Reply(ctx, "Storage is disabled; there is no audit log.", nil)
		return err
	}
	if len(req.Args) == 0 {
		_, err := req.Reply(ctx, "Usage: /status audit <user_id> [--limit 10]", nil)
		return err
	}
	owner, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		_, err = req.Reply(ctx, "user_id must be a number", nil)
		return err
	}
	limit := auditDefault
	if s := req.Flag("limit", "n"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, auditMax)
		}
	}

	entries, err := m.audit.RecentAudit(ctx, owner, limit)
	if err != nil {
		req.Logger.Warn("audit read failed", logx.Int64("owner", owner), logx.Err(err))
		_, err = req.Reply(ctx, "Could not read the audit log.", nil)
		return err
	}
	_, err = req.Reply(ctx, renderAudit(owner, entries, m.now()).String(), &transport.SendOptions{ParseMode: "HTML"})
	return err
}

func renderAudit(owner int64, entries []storage.AuditEntry, now time.Time) tgui.H {
	head := tgui.B("Audit for " + strconv.FormatInt(owner, 10))
	if len(entries) == 0 {
		return tgui.Lines(head, tgui.I("nothing recorded"))
	}
	lines := []tgui.H{head}
	for _, e := range entries {
		var b strings.Builder
		b.WriteString(e.Action)
		b.WriteString(": ")
		b.WriteString(tgui.TruncRunes(e.Message, 60))
		if !e.DueAt.IsZero() {
			b.WriteString(" @ ")
			b.WriteString(e.DueAt.Format("Jan 02 15:04"))
		}
		if e.Error != "" {
			b.WriteString(" (")
			b.WriteString(tgui.TruncRunes(e.Error, 60))
			b.WriteString(")")
		}
		lines = append(lines, tgui.Esc("• "+humanize.RelTime(e.At, now, "ago", "from now")+" "+b.String()))
	}
	return tgui.Lines(lines...)
}

func row(k, v string) tgui.H { return tgui.Esc("• "+k+": ") + tgui.Code(v) }
