package router

import (
	"context"
	"strings"
	"testing"
	"time"

	"remindbot/internal/transport"
	"remindbot/internal/transport/transporttest"
	logx "remindbot/pkg/logx"
)

const ownerID = 42

func startRouter(t *testing.T, cmds []Command, cbs []CallbackRoute) (*transporttest.Recorder, chan<- transport.Update) {
	t.Helper()
	rec := transporttest.New()
	m := NewCommandManager(logx.Nop(), rec, []int64{ownerID}, WithWorkers(2), WithUsername("remind_bot"))
	m.SetRegistry(cmds, cbs)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan transport.Update, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.DispatchLoop(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rec, updates
}

func text(from int64, private bool, s string) transport.Update {
	return transport.Update{Kind: transport.UpdateMessage, Message: &transport.Message{
		ChatID: from, FromID: from, Text: s, Private: private,
	}}
}

func echo(route string) Command {
	return Command{
		Route:       route,
		Description: "echo " + route,
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Reply(ctx, req.Command+"|"+strings.Join(req.Args, ",")+"|"+req.Flag("message"), nil)
			return err
		},
	}
}

func lastSent(t *testing.T, rec *transporttest.Recorder, n int) string {
	t.Helper()
	if err := rec.WaitCalls(n, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	sent := rec.Sent()
	return sent[len(sent)-1].Text
}

func TestRouteSubcommandsAndFlags(t *testing.T) {
	t.Parallel()
	rec, updates := startRouter(t, []Command{echo("remind set"), echo("remind list")}, nil)

	updates <- text(1, true, `/remind set 9:00 AM --message "buy milk"`)
	if got, want := lastSent(t, rec, 1), "remind set|9:00,AM|buy milk"; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}

	updates <- text(1, true, "/Remind@remind_bot LIST")
	if got, want := lastSent(t, rec, 2), "remind list||"; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
}

func TestRouteMenuAlias(t *testing.T) {
	t.Parallel()
	rec, updates := startRouter(t, []Command{echo("remind set")}, nil)
	updates <- text(1, true, "/remind_set 10:00 PM x")
	if got, want := lastSent(t, rec, 1), "remind set|10:00,PM,x|"; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
}

func TestRouteGroupShowsHelp(t *testing.T) {
	t.Parallel()
	rec, updates := startRouter(t, []Command{echo("remind set"), echo("remind list")}, nil)
	updates <- text(1, true, "/remind")
	got := lastSent(t, rec, 1)
	if !strings.Contains(got, "/remind set") || !strings.Contains(got, "/remind list") {
		t.Fatalf("group help = %q", got)
	}
}

func TestRouteIgnoresOtherBotsAndGroupNoise(t *testing.T) {
	t.Parallel()
	rec, updates := startRouter(t, []Command{echo("ping")}, nil)
	updates <- text(-100, false, "/ping@some_other_bot")
	updates <- text(-100, false, "/unknown")
	updates <- text(-100, false, "just chatting")
	updates <- text(1, true, "/unknown")
	if got := lastSent(t, rec, 1); !strings.Contains(got, "Unknown command") {
		t.Fatalf("reply = %q", got)
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(rec.Sent()); n != 1 {
		t.Fatalf("sent %d messages, want 1: %+v", n, rec.Sent())
	}
}

func TestRouteOwnerOnly(t *testing.T) {
	t.Parallel()
	status := echo("status")
	status.Access = AccessOwnerOnly
	rec, updates := startRouter(t, []Command{status}, nil)

	updates <- text(7, true, "/status")
	if got := lastSent(t, rec, 1); !strings.Contains(got, "restricted") {
		t.Fatalf("non-owner reply = %q", got)
	}
	updates <- text(ownerID, true, "/status")
	if got := lastSent(t, rec, 2); got != "status||" {
		t.Fatalf("owner reply = %q", got)
	}
}

func TestRouteCallback(t *testing.T) {
	t.Parallel()
	got := make(chan string, 1)
	cbs := []CallbackRoute{
		{
			Namespace: "remind",
			Action:    "del",
			Access:    CallbackAccessEveryone,
			Handle: func(ctx context.Context, req *Request, payload string) error {
				got <- payload
				return req.Answer(ctx, "Reminder deleted")
			},
		},
		{
			Namespace: "admin",
			Action:    "x",
			Handle:    func(ctx context.Context, req *Request, payload string) error { return nil },
		},
	}
	rec, updates := startRouter(t, nil, cbs)

	updates <- transport.Update{Kind: transport.UpdateCallback, Callback: &transport.Callback{
		ID: "cb1", FromID: 7, ChatID: 7, MessageID: 3, Data: "remind:del:1735725600.abc:x",
	}}
	select {
	case p := <-got:
		if p != "1735725600.abc:x" {
			t.Fatalf("payload = %q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not handled")
	}
	if err := rec.WaitCalls(1, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if a := rec.Answered(); len(a) != 1 || a[0].Text != "Reminder deleted" {
		t.Fatalf("answers = %+v, want one explicit answer", a)
	}

	updates <- transport.Update{Kind: transport.UpdateCallback, Callback: &transport.Callback{
		ID: "cb2", FromID: 7, ChatID: 7, Data: "admin:x",
	}}
	if err := rec.WaitCalls(2, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	if a := rec.Answered(); a[1].CallbackID != "cb2" || a[1].Text != "forbidden" {
		t.Fatalf("answers = %+v", a)
	}
}

func TestRoutePanicKeepsWorkers(t *testing.T) {
	t.Parallel()
	boom := Command{Route: "boom", Handle: func(ctx context.Context, req *Request) error { panic("boom") }}
	rec, updates := startRouter(t, []Command{boom, echo("ping")}, nil)
	updates <- text(1, true, "/boom")
	updates <- text(1, true, "/boom")
	updates <- text(1, true, "/ping")
	if got := lastSent(t, rec, 1); got != "ping||" {
		t.Fatalf("reply = %q", got)
	}
}

func TestHelpAndMenu(t *testing.T) {
	t.Parallel()
	rec := transporttest.New()
	m := NewCommandManager(logx.Nop(), rec, nil)
	status := echo("status")
	status.Access = AccessOwnerOnly
	m.SetRegistry([]Command{echo("remind set"), echo("remind list"), status}, nil)

	top := m.helpText(nil)
	if !strings.Contains(top, "/remind") || !strings.Contains(top, "🔒 <code>/status</code>") {
		t.Fatalf("top help = %q", top)
	}
	if strings.Index(top, "/status") < strings.Index(top, "/help") {
		t.Fatalf("owner-only command listed before public ones: %q", top)
	}
	leaf := m.helpText([]string{"remind", "set"})
	if !strings.Contains(leaf, "echo remind set") || !strings.Contains(leaf, "/remind_set") {
		t.Fatalf("leaf help = %q", leaf)
	}
	if !strings.Contains(m.helpText([]string{"nope"}), "Unknown command") {
		t.Fatal("unknown help")
	}

	if err := m.SyncMenu(context.Background()); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range rec.Menu() {
		names = append(names, c.Command)
	}
	want := "help,remind,status,remind_list,remind_set"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("menu = %s, want %s", got, want)
	}
}
