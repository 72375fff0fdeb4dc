package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

type tick time.Duration

func (d tick) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

type delivery struct {
	owner Owner
	text  string
}

type fakeSink struct {
	mu     sync.Mutex
	got    []delivery
	fail   map[Owner]error
	panics map[Owner]bool
	hit    chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{fail: map[Owner]error{}, panics: map[Owner]bool{}, hit: make(chan struct{}, 64)}
}

func (f *fakeSink) Deliver(ctx context.Context, owner Owner, n Notice) error {
	f.mu.Lock()
	if f.panics[owner] {
		f.mu.Unlock()
		panic("sink exploded")
	}
	err := f.fail[owner]
	if err == nil {
		f.got = append(f.got, delivery{owner: owner, text: n.Text})
	}
	f.mu.Unlock()
	select {
	case f.hit <- struct{}{}:
	default:
	}
	return err
}

func (f *fakeSink) deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.got...)
}

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestScanOnceDeliversExpired(t *testing.T) {
	t.Parallel()
	store := NewStore(0)
	_ = store.Insert(1, New(t0.Add(-time.Second), "stretch"))
	_ = store.Insert(1, New(t0.Add(time.Hour), "later"))
	sink := newFakeSink()
	s := NewScheduler(SchedulerConfig{}, store, sink, nil, fixedClock(t0), logx.Nop(), nil)

	if n := s.ScanOnce(context.Background()); n != 1 {
		t.Fatalf("ScanOnce = %d, want 1", n)
	}
	got := sink.deliveries()
	want := "On January 01, 09:59 AM you asked me to remind you about: stretch"
	if len(got) != 1 || got[0].owner != 1 || got[0].text != want {
		t.Fatalf("deliveries = %+v", got)
	}
	if left := store.List(1); len(left) != 1 || left[0].Message != "later" {
		t.Fatalf("left = %v", left)
	}
	if st := s.Stats(); st.Delivered != 1 || st.Failed != 0 || !st.LastScan.Equal(t0) {
		t.Fatalf("stats = %+v", st)
	}
}

func TestScanOnceFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	store := NewStore(0)
	_ = store.Insert(1, New(t0.Add(-time.Second), "blocked user"))
	_ = store.Insert(2, New(t0.Add(-time.Second), "fine user"))
	sink := newFakeSink()
	sink.fail[1] = errors.New("forbidden: bot was blocked by the user")
	s := NewScheduler(SchedulerConfig{}, store, sink, nil, fixedClock(t0), logx.Nop(), nil)

	if n := s.ScanOnce(context.Background()); n != 1 {
		t.Fatalf("ScanOnce = %d, want 1", n)
	}
	got := sink.deliveries()
	if len(got) != 1 || got[0].owner != 2 {
		t.Fatalf("deliveries = %+v", got)
	}
	// At-most-once: the failed reminder is gone, not retried.
	if store.Stats().Reminders != 0 {
		t.Fatalf("failed reminder was put back")
	}
	if n := s.ScanOnce(context.Background()); n != 0 {
		t.Fatalf("second scan delivered %d", n)
	}
	if st := s.Stats(); st.Failed != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestScanOncePanicDoesNotDropBatch(t *testing.T) {
	t.Parallel()
	store := NewStore(0)
	for owner := Owner(1); owner <= 3; owner++ {
		_ = store.Insert(owner, New(t0.Add(-time.Second), "tea"))
	}
	sink := newFakeSink()
	sink.panics[1] = true
	s := NewScheduler(SchedulerConfig{}, store, sink, nil, fixedClock(t0), logx.Nop(), nil)

	if n := s.ScanOnce(context.Background()); n != 2 {
		t.Fatalf("ScanOnce = %d, want 2", n)
	}
	got := sink.deliveries()
	if len(got) != 2 || got[0].owner == 1 || got[1].owner == 1 {
		t.Fatalf("deliveries = %+v", got)
	}
	if st := s.Stats(); st.Failed != 1 || st.Delivered != 2 {
		t.Fatalf("stats = %+v", st)
	}
	if store.Stats().Reminders != 0 {
		t.Fatalf("store not drained")
	}
}

func TestRunWaitsForReady(t *testing.T) {
	t.Parallel()
	store := NewStore(0)
	_ = store.Insert(1, New(t0.Add(-time.Second), "x"))
	sink := newFakeSink()
	ready := make(chan struct{})
	s := NewScheduler(SchedulerConfig{Cadence: tick(5 * time.Millisecond)}, store, sink, ready, fixedClock(t0), logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	if got := sink.deliveries(); len(got) != 0 {
		t.Fatalf("delivered before ready: %+v", got)
	}

	close(ready)
	select {
	case <-sink.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery after ready")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunPicksUpNewlyExpired(t *testing.T) {
	t.Parallel()
	clock := &mutableClock{now: t0}
	store := NewStore(0)
	_ = store.Insert(1, New(t0.Add(time.Minute), "soon"))
	sink := newFakeSink()
	s := NewScheduler(SchedulerConfig{Cadence: tick(5 * time.Millisecond)}, store, sink, nil, clock.Now, logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if len(sink.deliveries()) != 0 {
		t.Fatal("delivered before due")
	}
	clock.Set(t0.Add(2 * time.Minute))
	select {
	case <-sink.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder not delivered after it expired")
	}
}

func TestRunStopsBeforeScanWhenCanceled(t *testing.T) {
	t.Parallel()
	store := NewStore(0)
	_ = store.Insert(1, New(t0.Add(-time.Second), "x"))
	sink := newFakeSink()
	s := NewScheduler(SchedulerConfig{}, store, sink, nil, fixedClock(t0), logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if len(sink.deliveries()) != 0 || store.Stats().Reminders != 1 {
		t.Fatal("canceled scheduler still drained")
	}
}

func TestApplyWakesSleepingLoop(t *testing.T) {
	t.Parallel()
	clock := &mutableClock{now: t0}
	store := NewStore(0)
	sink := newFakeSink()
	s := NewScheduler(SchedulerConfig{Cadence: tick(time.Hour)}, store, sink, nil, clock.Now, logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	_ = store.Insert(1, New(t0.Add(-time.Second), "x"))
	s.Apply(SchedulerConfig{Cadence: tick(5 * time.Millisecond)})

	select {
	case <-sink.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("Apply did not wake the loop")
	}
}
