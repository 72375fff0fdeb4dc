package remind

import (
	"context"
	"errors"
	"strings"
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

const (
	namespace   = "remind"
	actDelete   = "del"
	actModify   = "mod"
	actCancel   = "cancel"
	labelRunes  = 60
	handlerWait = 15 * time.Second
)

// pending is what a button token points at.
type pending struct {
	Owner    reminder.Owner
	Selector string
	Change   reminder.Change
}

type Module struct {
	svc     *reminder.Service
	log     logx.Logger
	pending *tgui.TokenStore[pending]
}

func New(svc *reminder.Service, callbackTTL time.Duration, log logx.Logger) *Module {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Module{
		svc:     svc,
		log:     log.With(logx.String("comp", "commands.remind")),
		pending: tgui.NewTokenStore[pending](callbackTTL),
	}
}

// SetCallbackTTL changes how long new buttons stay usable.
func (m *Module) SetCallbackTTL(ttl time.Duration) { m.pending.SetTTL(ttl) }

func (m *Module) Commands() []router.Command {
	return []router.Command{
		{
			Route:       "start",
			Description: "introduce the bot",
			Usage:       "/start",
			Timeout:     handlerWait,
			Handle:      m.handleStart,
		},
		{
			Route:       "remind set",
			Aliases:     []string{"remindme"},
			Description: "set a reminder",
			Usage:       "/remind set <h:mm AM|PM> [dd-mm-yyyy] <message>\n/remind set --time 9:00 AM --date 12-12-2025 --message <message>",
			Timeout:     handlerWait,
			Handle:      m.handleSet,
		},
		{
			Route:       "remind list",
			Aliases:     []string{"reminders"},
			Description: "list your reminders",
			Usage:       "/remind list",
			Timeout:     handlerWait,
			Handle:      m.handleList,
		},
		{
			Route:       "remind delete",
			Description: "delete a reminder",
			Usage:       "/remind delete [search text]",
			Timeout:     handlerWait,
			Handle:      m.handleDelete,
		},
		{
			Route:       "remind modify",
			Description: "change a reminder's message, time or date",
			Usage:       "/remind modify [search text] [--message <text>] [--time <h:mm AM|PM>] [--date <dd-mm-yyyy>]",
			Timeout:     handlerWait,
			Handle:      m.handleModify,
		},
	}
}

func (m *Module) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Namespace: namespace, Action: actDelete, Description: "delete the chosen reminder", Access: router.CallbackAccessEveryone, Timeout: handlerWait, Handle: m.onDelete},
		{Namespace: namespace, Action: actModify, Description: "apply a pending change", Access: router.CallbackAccessEveryone, Timeout: handlerWait, Handle: m.onModify},
		{Namespace: namespace, Action: actCancel, Description: "close the menu", Access: router.CallbackAccessEveryone, Timeout: handlerWait, Handle: m.onCancel},
	}
}

func (m *Module) handleStart(ctx context.Context, req *router.Request) error {
	text := tgui.Lines(
		tgui.B("Hi! I keep reminders for you and message you privately when they are due."),
		"",
		tgui.Code("/remind set 9:00 AM stretch")+tgui.Esc(": today, or tomorrow if 9 AM already passed"),
		tgui.Code("/remind set 6:30 PM 24-12-2025 buy gifts")+tgui.Esc(": on a given day"),
		tgui.Code("/remind list")+tgui.Esc(": your reminders"),
		tgui.Code("/remind delete gifts")+tgui.Esc(", ")+tgui.Code("/remind modify gifts --time 7:00 PM"),
		"",
		tgui.I("Times use the bot's clock. Send /help for all commands."),
	)
	_, err := req.Reply(ctx, text.String(), &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

func (m *Module) handleSet(ctx context.Context, req *router.Request) error {
	a, err := parseSetArgs(req.Args, req.Flag)
	if err != nil {
		return m.fail(ctx, req, err)
	}
	r, err := m.svc.Set(owner(req), a.Message, a.Time, a.Date)
	if err != nil {
		return m.fail(ctx, req, err)
	}
	text := "I'll remind you on " + r.Display()
	if msg := req.Update.Message; msg != nil && !msg.Private {
		text += "\nI'll send it as a private message, so make sure you have started a chat with me."
	}
	_, err = req.Reply(ctx, text, nil)
	return err
}

func (m *Module) handleList(ctx context.Context, req *router.Request) error {
	_, err := req.Reply(ctx, m.svc.List(owner(req)).String(), nil)
	return err
}

func (m *Module) handleDelete(ctx context.Context, req *router.Request) error {
	return m.offer(ctx, req, req.Args, actDelete, reminder.Change{}, "Which reminder should I delete?")
}

func (m *Module) handleModify(ctx context.Context, req *router.Request) error {
	ch := changeArgs(req.Flag)
	if ch.IsZero() {
		return m.fail(ctx, req, reminder.ErrNothingToModify)
	}
	return m.offer(ctx, req, req.Args, actModify, ch, "Which reminder should I change?")
}

// offer replies with one button per candidate matching query.
func (m *Module) offer(ctx context.Context, req *router.Request, query []string, action string, ch reminder.Change, prompt string) error {
	o := owner(req)
	cands := m.svc.Suggest(o, strings.Join(query, " "))
	if len(cands) == 0 {
		_, err := req.Reply(ctx, reminder.Listing{}.String(), nil)
		return err
	}

	kb := tgui.NewInline()
	for _, c := range cands {
		tok := m.pending.Put(pending{Owner: o, Selector: c.Selector, Change: ch})
		data, err := tgui.Data(namespace, action, tok)
		if err != nil {
			return err
		}
		kb.Row(transport.Button{Text: tgui.TruncRunes(c.Label, labelRunes), Data: data})
	}
	cancel, err := tgui.Data(namespace, actCancel, m.pending.Put(pending{Owner: o}))
	if err != nil {
		return err
	}
	kb.Row(transport.Button{Text: "Cancel", Data: cancel})

	_, err = req.Reply(ctx, prompt, kb.Options(""))
	return err
}

func (m *Module) onDelete(ctx context.Context, req *router.Request, payload string) error {
	p, ok := m.claim(ctx, req, payload)
	if !ok {
		return nil
	}
	r, err := m.svc.Lookup(p.Owner, p.Selector)
	if err == nil {
		err = m.svc.Delete(p.Owner, r)
	}
	if err != nil {
		return m.settle(ctx, req, err)
	}
	_ = req.Answer(ctx, "Deleted")
	return req.Adapter.EditText(ctx, req.Source, "Reminder deleted successfully!\n"+r.Display()+": "+r.Message, nil)
}

func (m *Module) onModify(ctx context.Context, req *router.Request, payload string) error {
	p, ok := m.claim(ctx, req, payload)
	if !ok {
		return nil
	}
	r, err := m.svc.Lookup(p.Owner, p.Selector)
	var next reminder.Reminder
	if err == nil {
		next, err = m.svc.Modify(p.Owner, r, p.Change)
	}
	if err != nil {
		return m.settle(ctx, req, err)
	}
	text := "Reminder modified successfully!"
	if next.DueAt.Equal(r.DueAt) {
		text = "Reminder message changed!"
	}
	_ = req.Answer(ctx, "Saved")
	return req.Adapter.EditText(ctx, req.Source, text+"\n"+next.Display()+": "+next.Message, nil)
}

func (m *Module) onCancel(ctx context.Context, req *router.Request, payload string) error {
	if _, ok := m.claim(ctx, req, payload); !ok {
		return nil
	}
	return req.Adapter.EditText(ctx, req.Source, "Okay, nothing changed.", nil)
}

// claim consumes the token behind a button. Only the user who opened the
// menu may press it; anyone else just gets a toast.
func (m *Module) claim(ctx context.Context, req *router.Request, tok string) (pending, bool) {
	p, ok := m.pending.Get(tok)
	if !ok {
		_ = req.Answer(ctx, "This menu has expired, run the command again.")
		return pending{}, false
	}
	if p.Owner != owner(req) {
		_ = req.Answer(ctx, "This menu belongs to someone else.")
		return pending{}, false
	}
	if _, ok := m.pending.Take(tok); !ok {
		_ = req.Answer(ctx, "Already handled.")
		return pending{}, false
	}
	return p, true
}

// settle reports a failed button action in place of the menu.
func (m *Module) settle(ctx context.Context, req *router.Request, err error) error {
	m.logUnexpected(req, err)
	return req.Adapter.EditText(ctx, req.Source, reminder.UserMessage(err), nil)
}

func (m *Module) fail(ctx context.Context, req *router.Request, err error) error {
	m.logUnexpected(req, err)
	text := reminder.UserMessage(err)
	if errors.Is(err, reminder.ErrInvalidFormat) || errors.Is(err, reminder.ErrEmptyMessage) {
		text += "\nUsage: /remind set <h:mm AM|PM> [dd-mm-yyyy] <message>"
	}
	_, sendErr := req.Reply(ctx, text, nil)
	return sendErr
}

func (m *Module) logUnexpected(req *router.Request, err error) {
	for _, known := range []error{
		reminder.ErrInvalidFormat, reminder.ErrPastDateTime, reminder.ErrDuplicateReminder,
		reminder.ErrNotFound, reminder.ErrNothingToModify, reminder.ErrEmptyMessage, reminder.ErrTooManyReminders,
	} {
		if errors.Is(err, known) {
			req.Logger.Debug("reminder request rejected", logx.Err(err))
			return
		}
	}
	req.Logger.Error("reminder request failed", logx.Err(err))
}

func owner(req *router.Request) reminder.Owner { return reminder.Owner(req.FromID) }
