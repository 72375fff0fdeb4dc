package reminder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

// DefaultCheckEvery is the scan cadence when none is configured.
const DefaultCheckEvery = 3 * time.Second

// Sink delivers a notice to an owner (e.g. a Telegram direct message).
type Sink interface {
	Deliver(ctx context.Context, owner Owner, n Notice) error
}

type SchedulerConfig struct {
	// Cadence decides when the next scan runs. Nil means every DefaultCheckEvery.
	Cadence cron.Schedule
	// DeliveryTimeout bounds a single Deliver call (0 = no bound).
	DeliveryTimeout time.Duration
}

// Scheduler periodically drains expired reminders and hands them to a Sink.
//
// Delivery is at-most-once: reminders leave the store before Deliver is called.
type Scheduler struct {
	store *Store
	sink  Sink
	now   Clock
	log   logx.Logger
	bus   eventbus.Bus
	ready <-chan struct{}

	mu  sync.Mutex
	cfg SchedulerConfig

	wake chan struct{}

	lastScan  atomic.Int64 // unix nano
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// SchedulerStats is exposed on the health endpoint.
type SchedulerStats struct {
	LastScan  time.Time `json:"last_scan"`
	Delivered uint64    `json:"delivered"`
	Failed    uint64    `json:"failed"`
}

// NewScheduler builds a loop over store. ready is closed once the chat
// connection is live; a nil ready channel means "ready immediately".
func NewScheduler(cfg SchedulerConfig, store *Store, sink Sink, ready <-chan struct{}, now Clock, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Cadence == nil {
		cfg.Cadence = cron.Every(DefaultCheckEvery)
	}
	return &Scheduler{
		store: store,
		sink:  sink,
		now:   now,
		log:   log,
		bus:   bus,
		ready: ready,
		cfg:   cfg,
		wake:  make(chan struct{}, 1),
	}
}

// Apply swaps cadence/timeout at runtime; a sleeping loop re-plans immediately.
func (s *Scheduler) Apply(cfg SchedulerConfig) {
	if cfg.Cadence == nil {
		cfg.Cadence = cron.Every(DefaultCheckEvery)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) config() SchedulerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Run blocks until ctx is canceled. It checks ctx before every scan, so once
// shutdown starts no further reminders are drained.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.ready != nil {
		s.log.Debug("waiting for connection before first scan")
		select {
		case <-ctx.Done():
			return nil
		case <-s.ready:
		}
	}
	s.log.Info("reminder scheduler started")
	defer s.log.Info("reminder scheduler stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.ScanOnce(ctx)

		now := s.now()
		wait := s.config().Cadence.Next(now).Sub(now)
		if wait <= 0 {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		}
	}
}

// ScanOnce drains and delivers one batch. It returns the number delivered.
// Delivery is detached from ctx cancellation so an in-flight pass completes.
func (s *Scheduler) ScanOnce(ctx context.Context) int {
	now := s.now()
	s.lastScan.Store(now.UnixNano())

	due := s.store.DrainExpired(now)
	if len(due) == 0 {
		return 0
	}
	s.log.Debug("expired reminders drained", logx.Int("count", len(due)))

	cfg := s.config()
	base := context.WithoutCancel(ctx)
	ok := 0
	for _, d := range due {
		if err := s.deliver(base, cfg.DeliveryTimeout, d); err != nil {
			s.failed.Add(1)
			s.log.Warn("reminder delivery failed",
				logx.Int64("owner", int64(d.Owner)),
				logx.Time("due_at", d.Reminder.DueAt),
				logx.Err(err),
			)
			s.publish(EventDeliveryFailed, d.Owner, d.Reminder, nil, err)
			continue
		}
		ok++
		s.delivered.Add(1)
		s.publish(EventDelivered, d.Owner, d.Reminder, nil, nil)
	}
	return ok
}

// deliver turns a sink panic into an error so the rest of the batch still goes out.
func (s *Scheduler) deliver(ctx context.Context, timeout time.Duration, d Due) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deliver panic: %v", r)
		}
	}()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.sink.Deliver(ctx, d.Owner, NoticeFor(d.Reminder))
}

func (s *Scheduler) publish(typ string, owner Owner, r Reminder, prev *Reminder, err error) {
	publish(s.bus, s.now, typ, owner, r, prev, err)
}

func (s *Scheduler) Stats() SchedulerStats {
	st := SchedulerStats{Delivered: s.delivered.Load(), Failed: s.failed.Load()}
	if ns := s.lastScan.Load(); ns != 0 {
		st.LastScan = time.Unix(0, ns)
	}
	return st
}
