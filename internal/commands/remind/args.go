package remind

import (
	"fmt"
	"strings"

	"remindbot/internal/reminder"
)

// setArgs is the parsed form of a /remind set invocation.
type setArgs struct {
	Time    string
	Date    string
	Message string
}

// parseSetArgs reads "<h:mm> <AM|PM> [dd-mm-yyyy] <message...>" from pos.
// Flags take precedence; with --time given, positionals are the message.
func parseSetArgs(pos []string, flag func(...string) string) (setArgs, error) {
	a := setArgs{
		Time:    flag("time", "t"),
		Date:    flag("date", "d"),
		Message: flag("message", "m"),
	}
	rest := pos
	if a.Time == "" {
		clock, n := leadingClock(rest)
		if n == 0 {
			return a, fmt.Errorf("%w: expected %s first", reminder.ErrInvalidFormat, reminder.TimeLayoutHint)
		}
		a.Time = clock
		rest = rest[n:]
		if a.Date == "" && len(rest) > 0 {
			if _, err := reminder.ParseDate(rest[0]); err == nil {
				a.Date = rest[0]
				rest = rest[1:]
			}
		}
	}
	if a.Message == "" {
		a.Message = strings.Join(rest, " ")
	}
	if strings.TrimSpace(a.Message) == "" {
		return a, reminder.ErrEmptyMessage
	}
	return a, nil
}

// leadingClock accepts "9:00 AM" as two tokens or "9:00AM" as one.
func leadingClock(pos []string) (string, int) {
	if len(pos) >= 2 {
		s := pos[0] + " " + pos[1]
		if _, err := reminder.ParseClock(s); err == nil {
			return s, 2
		}
	}
	if len(pos) >= 1 {
		tok := pos[0]
		if len(tok) > 2 {
			s := tok[:len(tok)-2] + " " + tok[len(tok)-2:]
			if _, err := reminder.ParseClock(s); err == nil {
				return s, 1
			}
		}
	}
	return "", 0
}

// changeArgs reads the modify flags.
func changeArgs(flag func(...string) string) reminder.Change {
	ch := reminder.Change{
		Message: flag("message", "m"),
		Time:    flag("time", "t"),
		Date:    flag("date", "d"),
	}
	if ch.Time != "" {
		if clock, n := leadingClock(strings.Fields(ch.Time)); n > 0 {
			ch.Time = clock
		}
	}
	return ch
}
