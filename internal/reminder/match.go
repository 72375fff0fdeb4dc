package reminder

import (
	"sort"
	"strings"

	"github.com/adrg/strutil/metrics"
)

// DefaultSuggestLimit matches Telegram's comfortable inline keyboard height.
const DefaultSuggestLimit = 5

// partialWeight scales window matches so a full-string match still wins ties.
const partialWeight = 0.9

// Candidate is one ranked suggestion for a free-text query.
type Candidate struct {
	Reminder Reminder
	Label    string
	Selector string
	Score    float64
}

// Matcher ranks reminders against a query. It holds no mutable state.
type Matcher struct {
	Limit int
	lev   *metrics.Levenshtein
}

func NewMatcher(limit int) *Matcher {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return &Matcher{Limit: limit, lev: lev}
}

// Key is the text a query is matched against.
func Key(r Reminder) string { return r.Message + ": " + r.Display() }

// Label is the button/list text for r.
func Label(r Reminder) string { return r.Message + " at " + r.Display() }

// Suggest returns candidates from reminders (already in store order).
// An empty query lists everything in store order.
func (m *Matcher) Suggest(reminders []Reminder, query string) []Candidate {
	if len(reminders) == 0 {
		return nil
	}
	query = strings.TrimSpace(query)
	out := make([]Candidate, 0, len(reminders))
	for _, r := range reminders {
		c := Candidate{Reminder: r, Label: Label(r), Selector: r.Selector()}
		if query != "" {
			c.Score = m.score(query, Key(r))
		}
		out = append(out, c)
	}
	if query == "" {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > m.Limit {
		out = out[:m.Limit]
	}
	return out
}

func (m *Matcher) score(query, key string) float64 {
	q := strings.ToLower(query)
	k := strings.ToLower(key)
	full := m.lev.Compare(q, k)
	partial := partialWeight * m.bestWindow(q, k)
	if partial > full {
		return partial
	}
	return full
}

// bestWindow compares the shorter string against every same-length window of the longer.
func (m *Matcher) bestWindow(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		v := m.lev.Compare(s, string(long[i:i+len(short)]))
		if v > best {
			best = v
			if best == 1 {
				break
			}
		}
	}
	return best
}
