package tgui

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestData(t *testing.T) {
	t.Parallel()
	got, err := Data("remind", "del", "1735725600.1x2y3z")
	if err != nil || got != "remind:del:1735725600.1x2y3z" {
		t.Fatalf("Data = %q, %v", got, err)
	}
	if got, _ := Data(" remind ", "list", ""); got != "remind:list" {
		t.Fatalf("Data without payload = %q", got)
	}
	if _, err := Data("remind", "del", strings.Repeat("x", 60)); !errors.Is(err, ErrCallbackDataTooLong) {
		t.Fatalf("err = %v, want ErrCallbackDataTooLong", err)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"buy milk", 20, "buy milk"},
		{"buy milk", 5, "buy …"},
		{"héllo wörld", 4, "hél…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTokenStoreExpiryAndTake(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewTokenStore[string](time.Minute).WithClock(func() time.Time { return now })

	tok := s.Put("change")
	if len(tok) != 12 || strings.Contains(tok, ":") {
		t.Fatalf("token %q", tok)
	}
	if v, ok := s.Get(tok); !ok || v != "change" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if v, ok := s.Take(tok); !ok || v != "change" {
		t.Fatalf("Take = %q, %v", v, ok)
	}
	if _, ok := s.Take(tok); ok {
		t.Fatal("token taken twice")
	}

	tok = s.Put("late")
	now = now.Add(time.Minute)
	if _, ok := s.Get(tok); ok {
		t.Fatal("expired token still readable")
	}
}

func TestTokenStoreMax(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewTokenStore[int](time.Hour).WithClock(func() time.Time { return now }).WithMax(2)
	first := s.Put(1)
	now = now.Add(time.Second)
	s.Put(2)
	now = now.Add(time.Second)
	s.Put(3)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if _, ok := s.Get(first); ok {
		t.Fatal("oldest entry survived eviction")
	}
}

func TestLinesEscapes(t *testing.T) {
	t.Parallel()
	got := Lines(B("a<b"), "", Esc("x & y")+Code("1"))
	want := "<b>a&lt;b</b>\n\nx &amp; y<code>1</code>"
	if got.String() != want {
		t.Fatalf("Lines = %q, want %q", got, want)
	}
}
