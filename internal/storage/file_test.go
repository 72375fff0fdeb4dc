package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestFileAuditAppendAndRecent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "audit", "remindbot.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, action := range []string{"reminder.set", "reminder.modified", "reminder.delivered"} {
		e := AuditEntry{At: at.Add(time.Duration(i) * time.Second), Owner: 1, Action: action, DueAt: at.Add(time.Hour), Message: "tea"}
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.AppendAudit(ctx, AuditEntry{At: at, Owner: 2, Action: "reminder.set"}); err != nil {
		t.Fatal(err)
	}

	got, err := st.RecentAudit(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Action != "reminder.delivered" || got[1].Action != "reminder.modified" {
		t.Fatalf("RecentAudit = %+v", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "audit", "remindbot.audit.jsonl")); err != nil {
		t.Fatalf("audit file missing: %v", err)
	}

	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{}); err != ErrClosed {
		t.Fatalf("append after close = %v, want ErrClosed", err)
	}
}
