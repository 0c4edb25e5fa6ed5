package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a duration option. Empty means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// durationFields lists every duration option by its json path.
func (c *Config) durationFields() map[string]string {
	return map[string]string{
		"telegram.poll_timeout":      c.Telegram.PollTimeout,
		"telegram.send_interval":     c.Telegram.SendInterval,
		"storage.busy_timeout":       c.Storage.BusyTimeout,
		"reminders.activity_window":  c.Reminders.ActivityWindow,
		"reminders.reflection_delay": c.Reminders.ReflectionDelay,
	}
}
