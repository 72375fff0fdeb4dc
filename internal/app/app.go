package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"remindbot/internal/commands/ops"
	"remindbot/internal/commands/remind"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/health"
	"remindbot/internal/reminder"
	"remindbot/internal/runtime/sdnotify"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter

	reminders *reminder.Service
	sched     *reminder.Scheduler
	notif     *notifier.Service
	remind    *remind.Module
	http      *health.Service
	sd        *sdnotify.Notifier

	cmdm *router.CommandManager

	loc       atomic.Pointer[time.Location]
	cadence   atomic.Value // string
	startedAt time.Time

	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateRuntime(cfg); err != nil {
		return nil, err
	}
	settings, err := cfg.Reminders.Settings()
	if err != nil {
		return nil, err
	}
	groupID, _ := cfg.Telegram.GroupLogID()

	// Chat logging starts off; the sink needs the adapter and notifier first.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg)
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		Proxy:       cfg.Telegram.Proxy,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	notif := notifier.New(mapNotifierConfig(settings), ad, log)
	notif.SetGroup(groupID)
	logSvc.SetTelegramSink(groupID, notif.SendLog)
	logSvc.Apply(logCfg)

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		notif:   notif,
		sd:      sdnotify.New(cfg.Systemd.Notify, log),
		updates: make(chan transport.Update, 256),
	}
	a.loc.Store(settings.Location)
	a.cadence.Store(settings.Cadence.String())

	remStore := reminder.NewStore(settings.MaxPerOwner)
	a.reminders = reminder.NewService(remStore, reminder.NewMatcher(settings.SuggestLimit), a.now, log, bus)
	a.sched = reminder.NewScheduler(mapSchedulerConfig(settings), remStore, notif, ad.Ready(), a.now, log, bus)
	a.remind = remind.New(a.reminders, settings.CallbackTTL, log)

	httpCfg, err := mapHTTPConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.http = health.New(httpCfg, a.snapshot, log)

	if len(cfg.Telegram.OwnerUserIDs) == 0 {
		log.Warn("telegram.owner_user_ids is empty; owner commands are disabled")
	}
	a.cmdm = router.NewCommandManager(log.With(logx.String("comp", "commands")),
		ad, cfg.Telegram.OwnerUserIDs, router.WithUsername(ad.Username()))
	opsMod := ops.New(a.snapshot, notif.History, store, log)
	a.cmdm.SetRegistry(
		append(a.remind.Commands(), opsMod.Commands()...),
		a.remind.Callbacks(),
	)
	return a, nil
}

// now is the reminder clock in the configured zone.
func (a *App) now() time.Time {
	if loc := a.loc.Load(); loc != nil {
		return time.Now().In(loc)
	}
	return time.Now()
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) snapshot() health.Snapshot {
	s := health.Snapshot{
		Status:    "starting",
		StartedAt: a.startedAt,
		Bot:       a.adapter.Username(),
		Reminders: a.reminders.Store().Stats(),
		Scheduler: a.sched.Stats(),
		Runtime:   map[string]supervisor.Snapshot{},
	}
	if c, ok := a.cadence.Load().(string); ok {
		s.Cadence = c
	}
	if !a.startedAt.IsZero() {
		s.Uptime = time.Since(a.startedAt).Truncate(time.Second).String()
	}
	select {
	case <-a.adapter.Ready():
		s.Status = "ok"
	default:
	}
	sups := map[string]*supervisor.Supervisor{
		"app":      a.sup,
		"telegram": a.adapter.Supervisor(),
		"commands": a.cmdm.Supervisor(),
		"http":     a.http.Supervisor(),
	}
	for name, sp := range sups {
		if sp != nil {
			s.Runtime[name] = sp.Snapshot()
		}
	}
	return s
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateRuntime(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("commands.menu", func(c context.Context) {
		if !a.waitReady(c) {
			return
		}
		mctx, cancel := context.WithTimeout(c, 15*time.Second)
		defer cancel()
		if err := a.cmdm.SyncMenu(mctx); err != nil {
			a.log.Warn("command menu sync failed", logx.Err(err))
		}
	})
	a.sup.GoRestart("reminders.scheduler", a.sched.Run,
		supervisor.WithPublishFirstError(true),
		supervisor.WithRestartBackoff(time.Second, 30*time.Second),
	)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.audit", func(c context.Context) {
		defer unsub()
		runEvents(c, events, a.store, a.log.With(logx.String("comp", "audit")))
	})

	a.http.Start(a.sup.Context())

	a.sup.Go("systemd.watchdog", a.sd.Watchdog)
	a.sup.Go0("announce.start", func(c context.Context) {
		if !a.waitReady(c) {
			return
		}
		a.sd.Ready()
		a.sd.Status("serving @" + a.adapter.Username())
		a.announce(c, tgui.Lines(
			tgui.B("remindbot started"),
			tgui.Esc("bot: @"+a.adapter.Username()),
		))
	})

	// hot reload config fan-out
	sub, unsubCfg := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer unsubCfg()
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) waitReady(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-a.adapter.Ready():
		return true
	}
}

// announce posts to the ops chat; a no-op without telegram.group_log.
func (a *App) announce(ctx context.Context, text tgui.H) {
	actx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.notif.Announce(actx, text.String()); err != nil {
		a.log.Warn("announce failed", logx.Err(err))
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	a.sd.Reloading()
	defer a.sd.Ready()

	sections, attrs := config.Summarize(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RequiresRestart(sections); len(restart) > 0 {
		a.log.Warn("some config changes need a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}

	groupID, _ := newCfg.Telegram.GroupLogID()
	a.notif.SetGroup(groupID)
	a.logs.SetTelegramSink(groupID, a.notif.SendLog)
	a.logs.Apply(mapLogConfig(newCfg))

	a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)

	if settings, err := newCfg.Reminders.Settings(); err != nil {
		a.log.Warn("invalid reminders config; keeping previous", logx.Err(err))
	} else {
		a.loc.Store(settings.Location)
		a.cadence.Store(settings.Cadence.String())
		a.reminders.Store().SetMaxPerOwner(settings.MaxPerOwner)
		a.sched.Apply(mapSchedulerConfig(settings))
		a.notif.Apply(mapNotifierConfig(settings))
		a.remind.SetCallbackTTL(settings.CallbackTTL)
		if oldCfg != nil && oldCfg.Reminders.SuggestLimit != newCfg.Reminders.SuggestLimit {
			a.log.Warn("reminders.suggest_limit changes apply after a restart")
		}
	}

	if hc, err := mapHTTPConfig(newCfg); err != nil {
		a.log.Warn("invalid http config; keeping previous", logx.Err(err))
	} else {
		a.http.Reconfigure(ctx, hc)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// Runs a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// fn must honor stepCtx; log when it finally returns.
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// The adapter is still up here, so the goodbye can go out.
	step("announce", 3*time.Second, func(c context.Context) error {
		select {
		case <-a.adapter.Ready():
		default:
			return nil
		}
		a.announce(c, tgui.Lines(
			tgui.B("remindbot stopping"),
			tgui.Esc("reason: "+string(reason)),
		))
		return nil
	})

	a.sup.Cancel()

	step("http", time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	// Wait for supervised goroutines (scheduler, dispatcher, audit writer, config watch).
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	if n := a.reminders.Store().Stats().Reminders; n > 0 {
		a.log.Warn("pending reminders are dropped on shutdown", logx.Int("count", n))
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
