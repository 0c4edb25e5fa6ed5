package config

import (
	"reflect"

	logx "remindbot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// returns log fields describing the new values. Secrets are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
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
	if ot.PollTimeout != nt.PollTimeout || ot.SendInterval != nt.SendInterval ||
		ot.RetryMax != nt.RetryMax || ot.Token != nt.Token ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.String("telegram.send_interval", nt.SendInterval),
			logx.Int("telegram.retry_max", nt.RetryMax),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
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
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		changed = append(changed, "reminders")
		fields = append(fields,
			logx.String("reminders.schedule", newCfg.Reminders.Schedule),
			logx.Int("reminders.server_utc_offset", newCfg.Reminders.Offset()),
			logx.Int("reminders.trial_days", newCfg.Reminders.Trial()),
		)
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		fields = append(fields, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}
	return changed, fields
}

// RestartRequired reports whether a change needs a process restart. Only
// logging and the send throttle are applied live.
func RestartRequired(changed []string, oldCfg, newCfg *Config) bool {
	for _, s := range changed {
		switch s {
		case "storage", "metrics", "reminders":
			return true
		case "telegram":
			if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
				return true
			}
		}
	}
	return false
}
