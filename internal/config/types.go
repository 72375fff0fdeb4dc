package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	HTTP      HTTPConfig      `json:"http"`
	Systemd   SystemdConfig   `json:"systemd"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied through $TOKEN.
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the ops chat id receiving mirrored logs and start/stop notices.
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout"`
	// Proxy is an http(s) proxy URL for the Bot API client; $http_proxy also works.
	Proxy string `json:"proxy,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RemindersConfig tunes the scheduler and the commands.
//
// Defaults: check_every "3s", max_per_owner 100, suggest_limit 5,
// delivery_rate_per_sec 25, delivery_timeout "10s", callback_ttl "10m".
type RemindersConfig struct {
	// CheckEvery is a duration ("3s") or cron expression ("cron:*/5 * * * * *").
	CheckEvery         string `json:"check_every"`
	MaxPerOwner        int    `json:"max_per_owner"`
	SuggestLimit       int    `json:"suggest_limit"`
	DeliveryRatePerSec int    `json:"delivery_rate_per_sec"`
	DeliveryTimeout    string `json:"delivery_timeout"`
	CallbackTTL        string `json:"callback_ttl"`
	// Timezone used to interpret times typed by users. Empty means the host zone.
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig selects the audit log backend.
//
//	"storage": { "driver": "file", "path": "./remindbot_audit" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// HTTPConfig controls the health endpoint and optional pprof.
//
// Bind to loopback, or set a token; a non-loopback address without one is rejected.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`  // default 127.0.0.1:8089
	Token   string `json:"token,omitempty"` // bearer token, never logged
	Pprof   bool   `json:"pprof,omitempty"`

	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`
}

type SystemdConfig struct {
	Notify bool `json:"notify"`
}
