package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

var t0 = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

type memAudit struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
	err     error
	hit     chan struct{}
}

func (m *memAudit) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	m.mu.Lock()
	if m.err == nil {
		m.entries = append(m.entries, e)
	}
	err := m.err
	m.mu.Unlock()
	m.hit <- struct{}{}
	return err
}

func (m *memAudit) RecentAudit(context.Context, int64, int) ([]storage.AuditEntry, error) {
	return nil, nil
}

func (m *memAudit) Close() error { return nil }

func TestAuditEntry(t *testing.T) {
	t.Parallel()
	prev := reminder.New(t0, "old")
	cur := reminder.New(t0.Add(time.Hour), "new")

	got, ok := auditEntry(eventbus.Event{
		Type: reminder.EventModified,
		Time: t0,
		Data: reminder.EventData{Owner: 7, Reminder: cur, Previous: &prev},
	})
	if !ok {
		t.Fatal("modified event skipped")
	}
	want := storage.AuditEntry{
		At:          t0,
		Owner:       7,
		Action:      "modified",
		DueAt:       cur.DueAt,
		Message:     "new",
		PrevDueAt:   t0,
		PrevMessage: "old",
	}
	if got != want {
		t.Fatalf("entry = %+v, want %+v", got, want)
	}

	failed, ok := auditEntry(eventbus.Event{
		Type: reminder.EventDeliveryFailed,
		Data: reminder.EventData{Owner: 7, Reminder: cur, Err: "blocked"},
	})
	if !ok || failed.Action != "delivery_failed" || failed.Error != "blocked" {
		t.Fatalf("failed entry = %+v, %v", failed, ok)
	}

	if _, ok := auditEntry(eventbus.Event{Type: "config.reloaded"}); ok {
		t.Fatal("unrelated event mapped")
	}
}

func TestRunEventsWritesAudit(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	store := &memAudit{hit: make(chan struct{}, 8)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runEvents(ctx, events, store, logx.Nop())
	}()

	bus.Publish(eventbus.Event{Type: "noise", Time: t0})
	bus.Publish(eventbus.Event{Type: reminder.EventSet, Time: t0, Data: reminder.EventData{Owner: 1, Reminder: reminder.New(t0, "a")}})
	select {
	case <-store.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("audit not written")
	}
	cancel()
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.entries) != 1 || store.entries[0].Action != "set" || store.entries[0].Owner != 1 {
		t.Fatalf("entries = %+v", store.entries)
	}
}

func TestRunEventsSurvivesAuditErrors(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	store := &memAudit{hit: make(chan struct{}, 8), err: errors.New("disk full")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runEvents(ctx, events, store, logx.Nop())

	for i := 0; i < 2; i++ {
		bus.Publish(eventbus.Event{Type: reminder.EventDeleted, Time: t0, Data: reminder.EventData{Owner: 1}})
		select {
		case <-store.hit:
		case <-time.After(2 * time.Second):
			t.Fatalf("write %d not attempted", i)
		}
	}
}
