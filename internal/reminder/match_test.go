package reminder

import (
	"fmt"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func TestSuggestEmptyQueryBrowsesInDueOrder(t *testing.T) {
	t.Parallel()
	s := NewStore(0)
	// Inserted out of due order on purpose.
	callMom := New(t0.Add(2*time.Hour), "call mom")
	buyMilk := New(t0.Add(time.Hour), "buy milk")
	_ = s.Insert(1, callMom)
	_ = s.Insert(1, buyMilk)

	m := NewMatcher(0)
	got := m.Suggest(s.List(1), "  ")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Reminder.Equal(buyMilk) || !got[1].Reminder.Equal(callMom) {
		t.Fatalf("browse order = [%s, %s], want [buy milk, call mom]", got[0].Label, got[1].Label)
	}
	if got[0].Label != "buy milk at "+buyMilk.Display() {
		t.Fatalf("label = %q", got[0].Label)
	}
	if got[0].Selector != buyMilk.Selector() {
		t.Fatalf("selector = %q, want %q", got[0].Selector, buyMilk.Selector())
	}
}

func TestSuggestNoReminders(t *testing.T) {
	t.Parallel()
	if got := NewMatcher(5).Suggest(nil, "anything"); len(got) != 0 {
		t.Fatalf("got %v, want none", got)
	}
}

func TestSuggestRanksBestMatchFirst(t *testing.T) {
	t.Parallel()
	var rs []Reminder
	for i, msg := range []string{"pay rent", "dentist appointment", "buy milk", "call mom", "team standup"} {
		rs = append(rs, New(t0.Add(time.Duration(i+1)*time.Hour), msg))
	}
	m := NewMatcher(5)

	tests := []struct{ query, want string }{
		{"milk", "buy milk"},
		{"MOM", "call mom"},
		{"dentst", "dentist appointment"},
		{"standup", "team standup"},
	}
	for _, tt := range tests {
		got := m.Suggest(rs, tt.query)
		if len(got) == 0 || got[0].Reminder.Message != tt.want {
			t.Fatalf("Suggest(%q) top = %+v, want %q", tt.query, got, tt.want)
		}
		if want := tt.want + " at " + got[0].Reminder.Display(); got[0].Label != want {
			t.Fatalf("Suggest(%q) label = %q, want %q", tt.query, got[0].Label, want)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Score > got[i-1].Score {
				t.Fatalf("Suggest(%q) not sorted by score: %+v", tt.query, got)
			}
		}
	}
}

func TestSuggestCapsAtLimit(t *testing.T) {
	t.Parallel()
	var rs []Reminder
	for i := 0; i < 12; i++ {
		rs = append(rs, New(t0.Add(time.Duration(i)*time.Minute), fmt.Sprintf("task %d", i)))
	}
	got := NewMatcher(5).Suggest(rs, "task")
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	// Equal scores keep store order.
	for i := 1; i < len(got); i++ {
		if got[i].Score == got[i-1].Score && Less(got[i].Reminder, got[i-1].Reminder) {
			t.Fatalf("tie order not stable: %v before %v", got[i-1].Reminder, got[i].Reminder)
		}
	}
}

func TestSuggestSelectorResolvesAgainstLiveStore(t *testing.T) {
	t.Parallel()
	store := NewStore(0)
	svc := NewService(store, NewMatcher(5), fixedClock(t0), logx.Nop(), nil)
	a, _ := svc.Set(1, "alpha", "11:00 AM", "")
	b, _ := svc.Set(1, "beta", "12:00 PM", "")

	cands := svc.Suggest(1, "beta")
	if len(cands) == 0 || !cands[0].Reminder.Equal(b) {
		t.Fatalf("top candidate = %+v, want beta", cands)
	}
	// The store shifts underneath (alpha goes away); the selector still finds beta.
	if err := svc.Delete(1, a); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Lookup(1, cands[0].Selector)
	if err != nil || !got.Equal(b) {
		t.Fatalf("Lookup = %v, %v; want beta", got, err)
	}
}
