package tgui

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

const (
	DefaultTokenTTL = 10 * time.Minute
	DefaultTokenMax = 5000
)

// TokenStore keeps values server-side for a limited time and hands out a
// short token to carry in callback data. Tokens never contain ':'.
type TokenStore[T any] struct {
	mu  sync.Mutex
	ttl time.Duration
	max int
	now func() time.Time

	nextSweep time.Time
	m         map[string]tokenEntry[T]
}

type tokenEntry[T any] struct {
	v   T
	exp time.Time
}

func NewTokenStore[T any](ttl time.Duration) *TokenStore[T] {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore[T]{ttl: ttl, max: DefaultTokenMax, now: time.Now, m: map[string]tokenEntry[T]{}}
}

// WithClock replaces time.Now, for tests.
func (s *TokenStore[T]) WithClock(now func() time.Time) *TokenStore[T] {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// WithMax caps live entries; the ones closest to expiry are evicted first.
func (s *TokenStore[T]) WithMax(n int) *TokenStore[T] {
	if n <= 0 {
		n = DefaultTokenMax
	}
	s.mu.Lock()
	s.max = n
	s.mu.Unlock()
	return s
}

// SetTTL applies to tokens created afterwards.
func (s *TokenStore[T]) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

// Put stores v and returns its token (12 url-safe characters).
func (s *TokenStore[T]) Put(v T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)

	var buf [9]byte
	var tok string
	for {
		_, _ = rand.Read(buf[:])
		tok = base64.RawURLEncoding.EncodeToString(buf[:])
		if _, taken := s.m[tok]; !taken {
			break
		}
	}
	s.m[tok] = tokenEntry[T]{v: v, exp: now.Add(s.ttl)}
	for len(s.m) > s.max {
		s.evictOldestLocked()
	}
	return tok
}

// Get returns the value for tok if it has not expired.
func (s *TokenStore[T]) Get(tok string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(tok, false)
}

// Take is Get followed by removal; a token can be taken once.
func (s *TokenStore[T]) Take(tok string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(tok, true)
}

func (s *TokenStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *TokenStore[T]) getLocked(tok string, remove bool) (T, bool) {
	var zero T
	e, ok := s.m[tok]
	if !ok {
		return zero, false
	}
	if !s.now().Before(e.exp) {
		delete(s.m, tok)
		return zero, false
	}
	if remove {
		delete(s.m, tok)
	}
	return e.v, true
}

// sweepLocked drops expired entries at most once per ttl.
func (s *TokenStore[T]) sweepLocked(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for k, e := range s.m {
		if !now.Before(e.exp) {
			delete(s.m, k)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}

func (s *TokenStore[T]) evictOldestLocked() {
	var (
		oldest string
		exp    time.Time
	)
	for k, e := range s.m {
		if oldest == "" || e.exp.Before(exp) {
			oldest, exp = k, e.exp
		}
	}
	delete(s.m, oldest)
}
