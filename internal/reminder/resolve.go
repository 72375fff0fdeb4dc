package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-module/carbon/v2"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// Resolver turns user supplied clock/date text into a future timestamp.
type Resolver struct {
	now Clock
}

func NewResolver(now Clock) Resolver {
	if now == nil {
		now = time.Now
	}
	return Resolver{now: now}
}

// Resolve combines timeText with dateText (or today when dateText is empty).
//
// Without a date, a time that is not after now rolls to tomorrow. With a date,
// a result that is not after now fails with ErrPastDateTime.
func (r Resolver) Resolve(timeText, dateText string) (time.Time, error) {
	now := r.now()
	clock, err := ParseClock(timeText)
	if err != nil {
		return time.Time{}, err
	}

	var due time.Time
	if strings.TrimSpace(dateText) != "" {
		day, err := ParseDate(dateText)
		if err != nil {
			return time.Time{}, err
		}
		due = combine(day, clock, now.Location())
	} else {
		due = combine(now, clock, now.Location())
		if !due.After(now) {
			due = nextDay(due)
		}
	}

	if !due.After(now) {
		return time.Time{}, pastError(due, now)
	}
	return due, nil
}

// ParseClock parses a 12-hour "h:mm AM" string. Meridiem is case-insensitive.
func ParseClock(s string) (time.Time, error) {
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q, expected %s", ErrInvalidFormat, s, TimeLayoutHint)
	}
	return t, nil
}

// ParseDate parses a "dd-mm-yyyy" string.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q, expected %s", ErrInvalidFormat, s, DateLayoutHint)
	}
	return t, nil
}

func combine(day, clock time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

func nextDay(t time.Time) time.Time {
	return carbon.Time2Carbon(t).AddDay().Carbon2Time().In(t.Location())
}

func pastError(due, now time.Time) error {
	dy, dm, dd := due.Date()
	ny, nm, nd := now.Date()
	dayBefore := dy < ny || (dy == ny && (dm < nm || (dm == nm && dd < nd)))
	if dayBefore {
		return &PastDateTimeError{Reason: ReasonDayOver, At: due}
	}
	return &PastDateTimeError{Reason: ReasonTimeOver, At: due}
}
