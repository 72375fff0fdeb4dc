package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/schedule"
)

const (
	DefaultCheckEvery      = 3 * time.Second
	DefaultMaxPerOwner     = 100
	DefaultSuggestLimit    = 5
	DefaultDeliveryRate    = 25
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultCallbackTTL     = 10 * time.Minute
	DefaultPollTimeout     = 10 * time.Second
	DefaultHTTPAddr        = "127.0.0.1:8089"
)

var ErrMissingToken = errors.New("telegram.token is empty (set it in the config or $TOKEN)")

// ReminderSettings is RemindersConfig with defaults applied and values parsed.
type ReminderSettings struct {
	Cadence         schedule.Cadence
	MaxPerOwner     int
	SuggestLimit    int
	DeliveryRate    int
	DeliveryTimeout time.Duration
	CallbackTTL     time.Duration
	Location        *time.Location
}

func (r RemindersConfig) Settings() (ReminderSettings, error) {
	var (
		s   ReminderSettings
		err error
	)
	if s.Cadence, err = schedule.Parse(r.CheckEvery, DefaultCheckEvery); err != nil {
		return s, fmt.Errorf("reminders.check_every: %w", err)
	}
	if s.DeliveryTimeout, err = ParseDurationOrDefault("reminders.delivery_timeout", r.DeliveryTimeout, DefaultDeliveryTimeout); err != nil {
		return s, err
	}
	if s.CallbackTTL, err = ParseDurationOrDefault("reminders.callback_ttl", r.CallbackTTL, DefaultCallbackTTL); err != nil {
		return s, err
	}
	s.MaxPerOwner = orDefault(r.MaxPerOwner, DefaultMaxPerOwner)
	s.SuggestLimit = orDefault(r.SuggestLimit, DefaultSuggestLimit)
	s.DeliveryRate = orDefault(r.DeliveryRatePerSec, DefaultDeliveryRate)

	s.Location = time.Local
	if tz := strings.TrimSpace(r.Timezone); tz != "" {
		if s.Location, err = time.LoadLocation(tz); err != nil {
			return s, fmt.Errorf("reminders.timezone: %w", err)
		}
	}
	return s, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// GroupLogID parses telegram.group_log; 0 when unset.
func (t TelegramConfig) GroupLogID() (int64, error) {
	s := strings.TrimSpace(t.GroupLog)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.group_log: %w", err)
	}
	return id, nil
}

// HTTPAddr returns the listen address with the default applied.
func (h HTTPConfig) HTTPAddr() string {
	if a := strings.TrimSpace(h.Addr); a != "" {
		return a
	}
	return DefaultHTTPAddr
}

// Validate checks the whole config. Env overrides must already be applied.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, ErrMissingToken)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Telegram.GroupLogID(); err != nil {
		errs = append(errs, err)
	}
	if p := strings.TrimSpace(c.Telegram.Proxy); p != "" {
		if u, err := url.Parse(p); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("telegram.proxy: invalid url %q", p))
		}
	}
	if _, err := c.Reminders.Settings(); err != nil {
		errs = append(errs, err)
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if c.HTTP.Enabled {
		if err := checkHTTPExposure(c.HTTP); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("http.read_timeout", c.HTTP.ReadTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("http.idle_timeout", c.HTTP.IdleTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkHTTPExposure(h HTTPConfig) error {
	host, _, err := net.SplitHostPort(h.HTTPAddr())
	if err != nil {
		return fmt.Errorf("http.addr: %w", err)
	}
	if strings.TrimSpace(h.Token) != "" {
		return nil
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("http.addr %q is not loopback; set http.token", h.HTTPAddr())
}
