package app

import (
	"errors"
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/health"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

const defaultBusyTimeout = time.Second

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(cfg.Storage.Driver),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func mapHTTPConfig(cfg *config.Config) (health.Config, error) {
	h := cfg.HTTP
	read, err := config.ParseDurationField("http.read_timeout", h.ReadTimeout)
	if err != nil {
		return health.Config{}, err
	}
	idle, err := config.ParseDurationField("http.idle_timeout", h.IdleTimeout)
	if err != nil {
		return health.Config{}, err
	}
	return health.Config{
		Enabled:     h.Enabled,
		Addr:        h.HTTPAddr(),
		Token:       strings.TrimSpace(h.Token),
		Pprof:       h.Pprof,
		ReadTimeout: read,
		IdleTimeout: idle,
	}, nil
}

func mapSchedulerConfig(s config.ReminderSettings) reminder.SchedulerConfig {
	return reminder.SchedulerConfig{Cadence: s.Cadence.Schedule, DeliveryTimeout: s.DeliveryTimeout}
}

func mapNotifierConfig(s config.ReminderSettings) notifier.Config {
	return notifier.Config{RatePerSec: float64(s.DeliveryRate)}
}

// validateRuntime covers rules that only make sense for a running bot; the
// config package checks syntax.
func validateRuntime(cfg *config.Config) error {
	var errs []error
	group, err := cfg.Telegram.GroupLogID()
	if err != nil {
		errs = append(errs, err)
	}
	if cfg.Logging.Telegram.Enabled && group == 0 {
		errs = append(errs, errors.New("logging.telegram.enabled needs telegram.group_log"))
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	if _, err := mapHTTPConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
