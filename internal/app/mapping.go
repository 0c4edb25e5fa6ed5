package app

import (
	"strings"
	"time"

	"remindbot/internal/activity"
	"remindbot/internal/config"
	"remindbot/internal/domain"
	"remindbot/internal/notifier"
	"remindbot/internal/storage"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

const defaultSQLitePath = "./data/remindbot.db"

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
			ChatID:     cfg.Logging.Telegram.ChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	every, err := config.ParseDurationOrDefault("telegram.send_interval", cfg.Telegram.SendInterval, notifier.DefaultSendInterval)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{SendInterval: every, RetryMax: cfg.Telegram.RetryMax}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	sc := storage.Config{
		Driver:       strings.TrimSpace(cfg.Storage.Driver),
		Path:         strings.TrimSpace(cfg.Storage.Path),
		DSN:          strings.TrimSpace(cfg.Storage.DSN),
		BusyTimeout:  busy,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
	}
	if sc.Driver == "" {
		sc.Driver = "sqlite"
	}
	if sc.Driver == "sqlite" && sc.Path == "" {
		sc.Path = defaultSQLitePath
	}
	return sc, nil
}

// reminderSettings are the engine knobs derived from the reminders section.
type reminderSettings struct {
	Schedule        string
	ServerOffset    int
	Trial           time.Duration
	ActivityWindow  time.Duration
	ReflectionDelay time.Duration
	RetentionDays   int
}

func mapReminderSettings(cfg *config.Config) (reminderSettings, error) {
	r := cfg.Reminders
	window, err := config.ParseDurationOrDefault("reminders.activity_window", r.ActivityWindow, activity.DefaultWindow)
	if err != nil {
		return reminderSettings{}, err
	}
	delay, err := config.ParseDurationOrDefault("reminders.reflection_delay", r.ReflectionDelay, domain.DefaultReflectionDelay)
	if err != nil {
		return reminderSettings{}, err
	}
	return reminderSettings{
		Schedule:        strings.TrimSpace(r.Schedule),
		ServerOffset:    r.Offset(),
		Trial:           time.Duration(r.Trial()) * 24 * time.Hour,
		ActivityWindow:  window,
		ReflectionDelay: delay,
		RetentionDays:   r.RetentionDays,
	}, nil
}
