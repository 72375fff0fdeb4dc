// Package schedule turns the configured scan cadence into a cron.Schedule.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// MinInterval is the shortest cadence cron.Every can express.
const MinInterval = time.Second

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Kind is how a cadence was written.
type Kind string

const (
	KindInterval Kind = "interval"
	KindCron     Kind = "cron"
)

// Cadence is a parsed scan cadence.
type Cadence struct {
	Kind     Kind
	Every    time.Duration // KindInterval only
	Expr     string        // KindCron only
	Schedule cron.Schedule
}

func (c Cadence) String() string {
	if c.Kind == KindCron {
		return "cron:" + c.Expr
	}
	return "every:" + c.Every.String()
}

// Parse accepts:
//
//	"3s", "every:3s"                 fixed interval (>= 1s)
//	"cron:*/5 * * * * *", "@every 5s" cron expression, seconds optional
//
// An empty string yields def.
func Parse(raw string, def time.Duration) (Cadence, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return interval(def)
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronExpr(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		s = strings.TrimSpace(s[len("every:"):])
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return cronExpr(s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Cadence{}, fmt.Errorf("invalid cadence %q (use a duration like '3s' or cron like '*/5 * * * * *')", raw)
	}
	return interval(d)
}

func interval(d time.Duration) (Cadence, error) {
	if d < MinInterval {
		return Cadence{}, fmt.Errorf("cadence interval must be >= %s, got %s", MinInterval, d)
	}
	return Cadence{Kind: KindInterval, Every: d, Schedule: cron.Every(d)}, nil
}

func cronExpr(expr string) (Cadence, error) {
	if expr == "" {
		return Cadence{}, fmt.Errorf("cron expression required")
	}
	sch, err := parser.Parse(expr)
	if err != nil {
		return Cadence{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Cadence{Kind: KindCron, Expr: expr, Schedule: sch}, nil
}
