package reminder

import (
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// Input and display layouts.
const (
	TimeLayout    = "3:04 PM"             // 12-hour clock, e.g. "12:30 PM"
	DateLayout    = "2-1-2006"            // day-month-year, e.g. "12-12-2025"
	DisplayLayout = "January 02, 03:04 PM" // e.g. "December 12, 12:30 PM"
)

var (
	ErrInvalidFormat     = errors.New("invalid format")
	ErrPastDateTime      = errors.New("date time already over")
	ErrDuplicateReminder = errors.New("the reminder already exists")
	ErrNotFound          = errors.New("reminder not found")
	ErrNothingToModify   = errors.New("nothing to modify")
	ErrEmptyMessage      = errors.New("reminder message is empty")
	ErrTooManyReminders  = errors.New("too many reminders")
)

// Owner identifies the user a reminder belongs to (Telegram user id).
type Owner int64

func (o Owner) String() string { return strconv.FormatInt(int64(o), 10) }

// Reminder is an immutable (due time, message) pair.
type Reminder struct {
	DueAt   time.Time
	Message string
}

// New truncates due to whole seconds so equality survives formatting round trips.
func New(due time.Time, message string) Reminder {
	return Reminder{DueAt: due.Truncate(time.Second), Message: message}
}

func (r Reminder) Equal(o Reminder) bool {
	return r.DueAt.Equal(o.DueAt) && r.Message == o.Message
}

// Less orders by due time, then message.
func Less(a, b Reminder) bool {
	if !a.DueAt.Equal(b.DueAt) {
		return a.DueAt.Before(b.DueAt)
	}
	return a.Message < b.Message
}

// Display renders the due time for humans.
func (r Reminder) Display() string { return r.DueAt.Format(DisplayLayout) }

// Selector returns a short, callback-safe token for r.
// It never contains ':' so it can travel as a callback payload.
func (r Reminder) Selector() string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(r.Message))
	return strconv.FormatInt(r.DueAt.Unix(), 36) + "." + strconv.FormatUint(uint64(h.Sum32()), 36)
}

func parseSelector(sel string) (unix int64, hash string, ok bool) {
	ts, hs, found := strings.Cut(strings.TrimSpace(sel), ".")
	if !found || ts == "" || hs == "" {
		return 0, "", false
	}
	u, err := strconv.ParseInt(ts, 36, 64)
	if err != nil {
		return 0, "", false
	}
	return u, hs, true
}

// Due is a reminder taken off the store by the scheduler.
type Due struct {
	Owner    Owner
	Reminder Reminder
}

// Notice is what the delivery sink sends to an owner.
type Notice struct {
	Reminder Reminder
	Text     string
}

// NoticeFor renders the delivery text for r.
func NoticeFor(r Reminder) Notice {
	return Notice{
		Reminder: r,
		Text:     "On " + r.Display() + " you asked me to remind you about: " + r.Message,
	}
}

// PastDateTimeError reports why a resolved date time was rejected.
type PastDateTimeError struct {
	Reason string
	At     time.Time
}

const (
	ReasonDayOver  = "The day passed in is already over"
	ReasonTimeOver = "The time passed in is already over"
)

func (e *PastDateTimeError) Error() string { return e.Reason }

func (e *PastDateTimeError) Is(target error) bool { return target == ErrPastDateTime }

// UserMessage maps reminder errors to text suitable for chat replies.
func UserMessage(err error) string {
	var past *PastDateTimeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &past):
		return "Invalid time: " + past.Reason
	case errors.Is(err, ErrPastDateTime):
		return "Invalid time: the date and time passed in is already over"
	case errors.Is(err, ErrInvalidFormat):
		return "Invalid time: use " + TimeLayoutHint + " and " + DateLayoutHint
	case errors.Is(err, ErrDuplicateReminder):
		return "The reminder already exists"
	case errors.Is(err, ErrNotFound):
		return "That reminder no longer exists (it may have just been delivered)"
	case errors.Is(err, ErrNothingToModify):
		return "Reminder unmodified, it stays the same"
	case errors.Is(err, ErrEmptyMessage):
		return "The reminder message can't be empty"
	case errors.Is(err, ErrTooManyReminders):
		return "You have too many reminders, delete some first"
	default:
		return "Something went wrong, try again later"
	}
}

const (
	TimeLayoutHint = "HH:MM AM/PM (Ex: 12:30 PM)"
	DateLayoutHint = "DD-MM-YYYY (Ex: 12-12-2025)"
)
