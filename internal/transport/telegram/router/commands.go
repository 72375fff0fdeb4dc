package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	// Route is a space-separated command path, e.g. "remind set".
	Route       string
	Aliases     []string // root-level aliases, e.g. ["remind_set", "rs"]
	Description string
	Usage       string
	Access      Access

	Timeout time.Duration
	Handle  HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackAccess controls who can press an inline button. The zero value is
// owner-only; user-facing buttons opt in to CallbackAccessEveryone.
type CallbackAccess int

const (
	CallbackAccessOwnerOnly CallbackAccess = iota
	CallbackAccessEveryone
)

// CallbackRoute handles callback data of the form "<namespace>:<action>:<payload>".
type CallbackRoute struct {
	Namespace   string
	Action      string
	Description string
	Access      CallbackAccess
	Timeout     time.Duration
	Handle      CallbackHandlerFunc
}

type Request struct {
	Update  transport.Update
	Chat    transport.ChatTarget
	FromID  int64
	Path    []string // matched command path
	Command string
	Args    []string // positionals
	Payload string   // callback payload

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	// Source is the message holding the pressed button (callbacks only).
	Source transport.MessageRef

	Adapter transport.Adapter
	Logger  logx.Logger

	answered bool
}

// Reply sends text to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, text, opt)
}

// Answer acknowledges the pressed button with a short toast. Without a call
// the router answers with an empty text once the handler returns.
func (r *Request) Answer(ctx context.Context, text string) error {
	if r.Update.Callback == nil || r.answered {
		return nil
	}
	r.answered = true
	return r.Adapter.AnswerCallback(ctx, r.Update.Callback.ID, text)
}

// Flag returns the first non-empty value among the given flag names.
func (r *Request) Flag(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.Flags[n]); v != "" {
			return v
		}
	}
	return ""
}

type CommandManager struct {
	mu    sync.RWMutex
	root  *cmdNode
	alias map[string]*cmdNode // alias -> leaf node
	menu  []transport.BotCommand

	cbMu      sync.RWMutex
	callbacks map[string]map[string]CallbackRoute // namespace -> action -> route

	owners   []int64
	username string

	log     logx.Logger
	adapter transport.Adapter
	workers int

	runMu sync.Mutex
	sup   *supervisor.Supervisor

	jobs chan func(context.Context)
}

type Option func(*CommandManager)

// WithWorkers sets the handler pool size. The default is NumCPU, at least 2.
func WithWorkers(n int) Option { return func(m *CommandManager) { m.workers = n } }

// WithQueue sets the pending job capacity.
func WithQueue(n int) Option {
	return func(m *CommandManager) {
		if n > 0 {
			m.jobs = make(chan func(context.Context), n)
		}
	}
}

// WithUsername makes the router ignore "/cmd@otherbot".
func WithUsername(name string) Option {
	return func(m *CommandManager) { m.username = strings.TrimPrefix(name, "@") }
}

func NewCommandManager(log logx.Logger, adapter transport.Adapter, owners []int64, opts ...Option) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &CommandManager{
		root:      newRoot(),
		alias:     map[string]*cmdNode{},
		callbacks: map[string]map[string]CallbackRoute{},
		log:       log,
		adapter:   adapter,
		owners:    append([]int64(nil), owners...),
		jobs:      make(chan func(context.Context), 256),
	}
	for _, o := range opts {
		o(m)
	}
	if m.workers <= 0 {
		m.workers = max(runtime.NumCPU(), 2)
	}
	return m
}

// Supervisor returns the worker pool supervisor, nil when not dispatching.
func (m *CommandManager) Supervisor() *supervisor.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.sup
}

func (m *CommandManager) setSupervisor(s *supervisor.Supervisor) {
	m.runMu.Lock()
	m.sup = s
	m.runMu.Unlock()
}

// SetOwners replaces the owner list used for owner-only checks. Safe during reload.
func (m *CommandManager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *CommandManager) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.owners {
		if o == id {
			return true
		}
	}
	return false
}

// SetRegistry swaps in a new command and callback set. /help is always added.
func (m *CommandManager) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	cmds = append(cmds, Command{
		Route:       "help",
		Aliases:     []string{"h"},
		Description: "show available commands",
		Usage:       "/help [command] [subcommand]",
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Reply(ctx, m.helpText(req.Args), &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
			return err
		},
	})

	root := newRoot()
	alias := map[string]*cmdNode{}
	leaves := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		leaf := root.add(route, c)
		leaves = append(leaves, c)

		// "/remind_set" reaches "remind set" from the Telegram menu. A single-token
		// route is never aliased to itself, that would cut off its subcommands.
		if name, ok := telegramCommandNameFromRoute(route); ok && (len(route) > 1 || name != route[0]) {
			if _, exists := alias[name]; !exists {
				alias[name] = leaf
			}
		}
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = leaf
			if sa := sanitizeTelegramCommand(a); sa != "" {
				if _, exists := alias[sa]; !exists {
					alias[sa] = leaf
				}
			}
		}
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, r := range cbs {
		ns, act := strings.TrimSpace(r.Namespace), strings.TrimSpace(r.Action)
		if ns == "" || act == "" || r.Handle == nil {
			continue
		}
		if cb[ns] == nil {
			cb[ns] = map[string]CallbackRoute{}
		}
		cb[ns][act] = r
	}

	m.mu.Lock()
	m.root = root
	m.alias = alias
	m.menu = buildTelegramMenuCommands(root, leaves)
	m.mu.Unlock()

	m.cbMu.Lock()
	m.callbacks = cb
	m.cbMu.Unlock()
}

// SyncMenu pushes the command menu to the adapter, if it has one.
func (m *CommandManager) SyncMenu(ctx context.Context) error {
	up, ok := m.adapter.(transport.CommandMenuUpdater)
	if !ok {
		return nil
	}
	m.mu.RLock()
	menu := append([]transport.BotCommand(nil), m.menu...)
	m.mu.RUnlock()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(ctx, menu)
}

// DispatchLoop routes updates to a bounded worker pool until ctx is done or
// updates is closed.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(m.log.With(logx.String("comp", "router"))),
		supervisor.WithCancelOnError(false),
	)
	m.setSupervisor(sup)
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("queue", cap(m.jobs)))

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					m.runJob(c, idx, job)
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithPublishFirstError(true),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.setSupervisor(nil)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.Route(ctx, up)
		}
	}
}

func (m *CommandManager) runJob(ctx context.Context, worker int, job func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job(ctx)
}

func (m *CommandManager) enqueue(fn func(context.Context)) bool {
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// Route handles a single update. DispatchLoop calls it for every update;
// without a running pool the queued job waits for one.
func (m *CommandManager) Route(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		m.routeMessage(ctx, up)
	case transport.UpdateCallback:
		m.routeCallback(ctx, up)
	}
}

func (m *CommandManager) routeMessage(ctx context.Context, up transport.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if name, bot, ok := strings.Cut(word, "@"); ok {
		if m.username != "" && !strings.EqualFold(bot, m.username) {
			return
		}
		word = name
	}
	word = strings.ToLower(word)
	args := parts[1:]
	chat := transport.ChatTarget{ChatID: msg.ChatID}

	m.mu.RLock()
	rootNode, aliasMap := m.root, m.alias
	m.mu.RUnlock()

	if leaf, ok := aliasMap[word]; ok && leaf.cmd != nil {
		m.dispatchCommand(ctx, up, *leaf.cmd, splitRoute(leaf.cmd.Route), args)
		return
	}

	cur, ok := rootNode.child(word)
	if !ok {
		// Groups see commands meant for other bots.
		if msg.Private {
			_, _ = m.adapter.SendText(ctx, chat, "Unknown command. Try /help", nil)
		}
		return
	}
	path := []string{word}
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		child, ok := cur.child(strings.ToLower(args[0]))
		if !ok {
			break
		}
		cur = child
		path = append(path, strings.ToLower(args[0]))
		args = args[1:]
	}

	if cur.cmd == nil {
		_, _ = m.adapter.SendText(ctx, chat, m.helpText(path), &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
		return
	}
	m.dispatchCommand(ctx, up, *cur.cmd, path, args)
}

func (m *CommandManager) dispatchCommand(ctx context.Context, up transport.Update, cmd Command, path, raw []string) {
	msg := up.Message
	chat := transport.ChatTarget{ChatID: msg.ChatID}
	if cmd.Access == AccessOwnerOnly && !m.isOwner(msg.FromID) {
		_, _ = m.adapter.SendText(ctx, chat, "This command is restricted to the bot owners.", nil)
		return
	}

	pos, flags, bools := parseFlags(raw)
	rid := newReqID()
	req := &Request{
		Update:    up,
		Chat:      chat,
		FromID:    msg.FromID,
		Path:      path,
		Command:   cmd.Route,
		Args:      pos,
		RawArgs:   raw,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Adapter:   m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Route),
		),
	}
	final := Chain(cmd.Handle, MWPanicRecover(), MWRequestLog(), MWTimeout(cmd.Timeout))
	if !m.enqueue(func(c context.Context) { _ = final(c, req) }) {
		_, _ = m.adapter.SendText(ctx, chat, "I'm busy right now, please try again in a moment.", nil)
	}
}

func (m *CommandManager) routeCallback(ctx context.Context, up transport.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	ns, action := parts[0], parts[1]
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	m.cbMu.RLock()
	route, ok := m.callbacks[ns][action]
	m.cbMu.RUnlock()
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if route.Access == CallbackAccessOwnerOnly && !m.isOwner(cb.FromID) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}

	key := "cb:" + ns + ":" + action
	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    transport.ChatTarget{ChatID: cb.ChatID},
		FromID:  cb.FromID,
		Command: key,
		Payload: payload,
		ReqID:   rid,
		Source:  transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID},
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", cb.ChatID),
			logx.Int64("from_id", cb.FromID),
			logx.String("cmd", key),
		),
	}
	h := func(c context.Context, r *Request) error { return route.Handle(c, r, payload) }
	final := Chain(h, MWPanicRecover(), MWRequestLog(), MWTimeout(route.Timeout))

	if !m.enqueue(func(c context.Context) {
		_ = final(c, req)
		// Stops the client's loading spinner.
		_ = req.Answer(c, "")
	}) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "busy, try again")
	}
}
