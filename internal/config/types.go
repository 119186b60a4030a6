package config

// Config is the whole daemon configuration. Accepted as JSON or YAML;
// unknown fields are rejected so typos fail at load time instead of
// silently doing nothing.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Store    StoreConfig    `json:"store"`
	Engine   EngineConfig   `json:"engine"`

	// Notifier is optional; omitted means defaults.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID receives reminder alerts.
	ChatID int64 `json:"chat_id"`
	// OwnerUserIDs restricts commands and location ingest.
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StoreConfig selects the reminder persistence backend.
//
// Example:
//
//	"store": { "driver": "sqlite", "path": "./remindd.db" }
type StoreConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// EngineConfig controls trigger behavior.
type EngineConfig struct {
	// Timezone is the IANA zone exact-mode and cron reminders resolve in.
	// Empty means the system local zone.
	Timezone string `json:"timezone,omitempty"`
	// BaselineTimeout bounds the wait for the initial geofence fix.
	// Go duration string; default "30s".
	BaselineTimeout string `json:"baseline_timeout,omitempty"`
}

// NotifierConfig controls the alert pipeline.
// All durations are Go duration strings.
type NotifierConfig struct {
	Workers     int    `json:"workers,omitempty"`
	QueueSize   int    `json:"queue_size,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}
