package config

import (
	"reflect"
	"strings"

	logx "remindbot/pkg/logx"
)

// Summarize lists the sections that differ and log-safe fields describing the new values.
// Tokens are never included.
func Summarize(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout || ot.GroupLog != nt.GroupLog ||
		ot.Proxy != nt.Proxy || !reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
			logx.Bool("telegram.proxy_set", strings.TrimSpace(nt.Proxy) != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Reminders != newCfg.Reminders {
		changed = append(changed, "reminders")
		r := newCfg.Reminders
		fields = append(fields,
			logx.String("reminders.check_every", r.CheckEvery),
			logx.Int("reminders.max_per_owner", r.MaxPerOwner),
			logx.Int("reminders.delivery_rate_per_sec", r.DeliveryRatePerSec),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	oh, nh := oldCfg.HTTP, newCfg.HTTP
	oh.Token, nh.Token = "", ""
	if oh != nh || oldCfg.HTTP.Token != newCfg.HTTP.Token {
		changed = append(changed, "http")
		fields = append(fields,
			logx.Bool("http.enabled", nh.Enabled),
			logx.String("http.addr", nh.HTTPAddr()),
			logx.Bool("http.pprof", nh.Pprof),
		)
	}
	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
	}
	return changed, fields
}

// RequiresRestart reports sections that cannot be fully applied to a running
// process. Owners and group_log under telegram still apply live.
func RequiresRestart(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram", "storage", "systemd":
			out = append(out, s)
		}
	}
	return out
}
