package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

// Change describes a modification; empty fields stay unchanged.
type Change struct {
	Message string
	Time    string
	Date    string
}

func (c Change) IsZero() bool {
	return strings.TrimSpace(c.Message) == "" && strings.TrimSpace(c.Time) == "" && strings.TrimSpace(c.Date) == ""
}

// Service is the facade used by the command layer.
type Service struct {
	store    *Store
	resolver Resolver
	matcher  *Matcher
	now      Clock
	log      logx.Logger
	bus      eventbus.Bus
}

func NewService(store *Store, matcher *Matcher, now Clock, log logx.Logger, bus eventbus.Bus) *Service {
	if now == nil {
		now = time.Now
	}
	if matcher == nil {
		matcher = NewMatcher(DefaultSuggestLimit)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:    store,
		resolver: NewResolver(now),
		matcher:  matcher,
		now:      now,
		log:      log,
		bus:      bus,
	}
}

func (s *Service) Store() *Store { return s.store }

// Set resolves the requested time and stores a new reminder.
func (s *Service) Set(owner Owner, message, timeText, dateText string) (Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reminder{}, ErrEmptyMessage
	}
	due, err := s.resolver.Resolve(timeText, dateText)
	if err != nil {
		return Reminder{}, err
	}
	r := New(due, message)
	if err := s.store.Insert(owner, r); err != nil {
		return Reminder{}, err
	}
	s.log.Debug("reminder set", logx.Int64("owner", int64(owner)), logx.Time("due_at", r.DueAt))
	publish(s.bus, s.now, EventSet, owner, r, nil, nil)
	return r, nil
}

// Modify replaces target according to ch. On any failure target is left untouched.
func (s *Service) Modify(owner Owner, target Reminder, ch Change) (Reminder, error) {
	if ch.IsZero() {
		return Reminder{}, ErrNothingToModify
	}
	message := strings.TrimSpace(ch.Message)
	if message == "" {
		message = target.Message
	}

	due := target.DueAt
	timeText := strings.TrimSpace(ch.Time)
	dateText := strings.TrimSpace(ch.Date)
	if timeText != "" || dateText != "" {
		// A missing half comes from target.
		if timeText == "" {
			timeText = target.DueAt.Format(TimeLayout)
		}
		if dateText == "" {
			dateText = target.DueAt.Format(DateLayout)
		}
		var err error
		due, err = s.resolver.Resolve(timeText, dateText)
		if err != nil {
			return Reminder{}, err
		}
	}

	next := New(due, message)
	if next.Equal(target) {
		return Reminder{}, ErrNothingToModify
	}
	if err := s.store.Replace(owner, target, next); err != nil {
		return Reminder{}, err
	}
	prev := target
	publish(s.bus, s.now, EventModified, owner, next, &prev, nil)
	return next, nil
}

// Delete removes target. It fails with ErrNotFound if the scheduler got there first.
func (s *Service) Delete(owner Owner, target Reminder) error {
	if err := s.store.Remove(owner, target); err != nil {
		return err
	}
	publish(s.bus, s.now, EventDeleted, owner, target, nil, nil)
	return nil
}

// Listing is an owner's reminders in due order.
type Listing struct {
	Reminders []Reminder
}

func (l Listing) Empty() bool { return len(l.Reminders) == 0 }

// String renders a numbered list, one reminder per line.
func (l Listing) String() string {
	if l.Empty() {
		return "No reminders set. Set reminders using /remind set"
	}
	var b strings.Builder
	for i, r := range l.Reminders {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(r.Display())
		b.WriteString(": ")
		b.WriteString(r.Message)
	}
	return b.String()
}

func (s *Service) List(owner Owner) Listing {
	return Listing{Reminders: s.store.List(owner)}
}

// Suggest ranks owner's live reminders against query.
func (s *Service) Suggest(owner Owner, query string) []Candidate {
	return s.matcher.Suggest(s.store.List(owner), query)
}

// Lookup resolves a selector produced by Suggest.
func (s *Service) Lookup(owner Owner, selector string) (Reminder, error) {
	r, err := s.store.Lookup(owner, selector)
	if err != nil {
		return Reminder{}, fmt.Errorf("lookup %q: %w", selector, err)
	}
	return r, nil
}
