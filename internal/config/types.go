package config

// Config is the on-disk configuration. Unknown keys are rejected.
//
// Durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
}

type TelegramConfig struct {
	// Token falls back to TELEGRAM_BOT_TOKEN.
	Token string `json:"token" validate:"required"`
	// OwnerUserIDs may run admin commands such as /premium.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SendInterval is the minimum gap between outbound messages. Default "500ms".
	SendInterval string `json:"send_interval,omitempty"`
	RetryMax     int    `json:"retry_max,omitempty" validate:"gte=0,lte=10"`
}

type LoggingConfig struct {
	Level    string          `json:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warnings and errors into an ops chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id" validate:"required_if=Enabled true"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level" validate:"omitempty,oneof=trace debug info warn error"`
	RatePerSec int    `json:"rate_per_sec" validate:"gte=0"`
}

// StorageConfig selects the database.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/remindbot.db" }
type StorageConfig struct {
	Driver string `json:"driver" validate:"omitempty,oneof=sqlite postgres"`
	Path   string `json:"path,omitempty"`
	// DSN falls back to DATABASE_URL.
	DSN          string `json:"dsn,omitempty" validate:"required_if=Driver postgres"`
	BusyTimeout  string `json:"busy_timeout,omitempty"` // sqlite
	MaxOpenConns int    `json:"max_open_conns,omitempty" validate:"gte=0"`
}

// RemindersConfig controls the scheduling engine.
type RemindersConfig struct {
	// Schedule is a cron expression or "every:<duration>". Default "* * * * *".
	Schedule string `json:"schedule,omitempty"`
	// ServerUTCOffset falls back to SERVER_UTC_OFFSET, then 3.
	ServerUTCOffset *int `json:"server_utc_offset,omitempty" validate:"omitempty,gte=-12,lte=14"`
	// TrialDays falls back to TRIAL_DURATION_DAYS, then 14.
	TrialDays       int    `json:"trial_days,omitempty" validate:"gte=0,lte=365"`
	ActivityWindow  string `json:"activity_window,omitempty"`
	ReflectionDelay string `json:"reflection_delay,omitempty"`
	RetentionDays   int    `json:"retention_days,omitempty" validate:"gte=0,lte=30"`
}

// MetricsConfig controls the ops HTTP server (/metrics, /healthz).
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	// Pprof mounts /debug/pprof on the same listener.
	Pprof bool `json:"pprof,omitempty"`
}

const (
	DefaultServerUTCOffset = 3
	DefaultTrialDays       = 14
	DefaultMetricsAddr     = "127.0.0.1:9090"
)

// Offset returns the configured server offset or the default.
func (r RemindersConfig) Offset() int {
	if r.ServerUTCOffset == nil {
		return DefaultServerUTCOffset
	}
	return *r.ServerUTCOffset
}

func (r RemindersConfig) Trial() int {
	if r.TrialDays <= 0 {
		return DefaultTrialDays
	}
	return r.TrialDays
}
