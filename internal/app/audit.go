package app

import (
	"context"
	"strings"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

const auditWriteTimeout = 2 * time.Second

// auditEntry maps a reminder event; other events are skipped.
func auditEntry(e eventbus.Event) (storage.AuditEntry, bool) {
	d, ok := e.Data.(reminder.EventData)
	if !ok || !strings.HasPrefix(e.Type, "reminder.") {
		return storage.AuditEntry{}, false
	}
	a := storage.AuditEntry{
		At:      e.Time,
		Owner:   int64(d.Owner),
		Action:  strings.TrimPrefix(e.Type, "reminder."),
		DueAt:   d.Reminder.DueAt,
		Message: d.Reminder.Message,
		Error:   d.Err,
	}
	if d.Previous != nil {
		a.PrevDueAt = d.Previous.DueAt
		a.PrevMessage = d.Previous.Message
	}
	return a, true
}

// runEvents logs every bus event and, when store is set, appends reminder
// events to the audit log. Audit failures are logged, never fatal.
func runEvents(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			if store == nil {
				continue
			}
			entry, ok := auditEntry(e)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
			err := store.AppendAudit(wctx, entry)
			cancel()
			if err != nil {
				log.Warn("audit write failed", logx.String("action", entry.Action), logx.Int64("owner", entry.Owner), logx.Err(err))
			}
		}
	}
}
