package reminder

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
)

const treeDegree = 8

// Store holds every owner's reminders in an ordered set.
//
// A single RWMutex guards the whole map: mutations and drains never interleave,
// so Replace is observed either fully before or fully after a drain.
type Store struct {
	mu     sync.RWMutex
	owners map[Owner]*btree.BTreeG[Reminder]

	// maxPerOwner caps a single partition (0 = unlimited).
	maxPerOwner int
}

// StoreStats is a point-in-time view used by health output.
type StoreStats struct {
	Owners    int `json:"owners"`
	Reminders int `json:"reminders"`
}

func NewStore(maxPerOwner int) *Store {
	if maxPerOwner < 0 {
		maxPerOwner = 0
	}
	return &Store{owners: map[Owner]*btree.BTreeG[Reminder]{}, maxPerOwner: maxPerOwner}
}

// SetMaxPerOwner applies a new cap. Existing partitions above it are kept.
func (s *Store) SetMaxPerOwner(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.maxPerOwner = n
	s.mu.Unlock()
}

func (s *Store) Insert(owner Owner, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(owner, r)
}

func (s *Store) insertLocked(owner Owner, r Reminder) error {
	t := s.owners[owner]
	if t == nil {
		t = btree.NewG[Reminder](treeDegree, Less)
		s.owners[owner] = t
	}
	if t.Has(r) {
		return ErrDuplicateReminder
	}
	if s.maxPerOwner > 0 && t.Len() >= s.maxPerOwner {
		return fmt.Errorf("%w (limit %d)", ErrTooManyReminders, s.maxPerOwner)
	}
	t.ReplaceOrInsert(r)
	return nil
}

func (s *Store) Remove(owner Owner, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(owner, r)
}

func (s *Store) removeLocked(owner Owner, r Reminder) error {
	t := s.owners[owner]
	if t == nil {
		return ErrNotFound
	}
	if _, ok := t.Delete(r); !ok {
		return ErrNotFound
	}
	s.pruneLocked(owner, t)
	return nil
}

func (s *Store) pruneLocked(owner Owner, t *btree.BTreeG[Reminder]) {
	if t.Len() == 0 {
		delete(s.owners, owner)
	}
}

// Replace swaps old for new under one lock acquisition. Validation happens
// before any mutation, so a failed Replace leaves old in place.
func (s *Store) Replace(owner Owner, old, new Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.owners[owner]
	if t == nil || !t.Has(old) {
		return ErrNotFound
	}
	if old.Equal(new) {
		return nil
	}
	if t.Has(new) {
		return ErrDuplicateReminder
	}
	t.Delete(old)
	t.ReplaceOrInsert(new)
	return nil
}

// List returns owner's reminders in ascending order. Absent owners yield nil.
func (s *Store) List(owner Owner) []Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.owners[owner]
	if t == nil {
		return nil
	}
	out := make([]Reminder, 0, t.Len())
	t.Ascend(func(r Reminder) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Lookup resolves a Selector against owner's live reminders.
func (s *Store) Lookup(owner Owner, selector string) (Reminder, error) {
	unix, _, ok := parseSelector(selector)
	if !ok {
		return Reminder{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.owners[owner]
	if t == nil {
		return Reminder{}, ErrNotFound
	}
	var (
		found Reminder
		hit   bool
	)
	// Every reminder sharing the same second sorts together; scan just that run.
	from := Reminder{DueAt: time.Unix(unix, 0)}
	t.AscendGreaterOrEqual(from, func(r Reminder) bool {
		if r.DueAt.Unix() != unix {
			return false
		}
		if r.Selector() == selector {
			found, hit = r, true
			return false
		}
		return true
	})
	if !hit {
		return Reminder{}, ErrNotFound
	}
	return found, nil
}

// DrainExpired removes and returns every reminder with DueAt before now,
// owner by owner, earliest first.
func (s *Store) DrainExpired(now time.Time) []Due {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Due
	for owner, t := range s.owners {
		for {
			r, ok := t.Min()
			if !ok || !r.DueAt.Before(now) {
				break
			}
			t.DeleteMin()
			out = append(out, Due{Owner: owner, Reminder: r})
		}
		s.pruneLocked(owner, t)
	}
	return out
}

func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := StoreStats{Owners: len(s.owners)}
	for _, t := range s.owners {
		st.Reminders += t.Len()
	}
	return st
}
