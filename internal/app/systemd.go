package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "remindbot/pkg/logx"
)

// notifier abstracts sd_notify so tests can observe the protocol.
type sdNotifier interface {
	Notify(state string) (bool, error)
	WatchdogInterval() (time.Duration, error)
}

type systemdNotifier struct{}

func (systemdNotifier) Notify(state string) (bool, error) { return daemon.SdNotify(false, state) }

func (systemdNotifier) WatchdogInterval() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

func (a *App) sdNotify(state string) {
	sent, err := a.sd.Notify(state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify", logx.String("state", state))
	}
}

// watchdog pings systemd at half the configured interval while ticks are
// completing on time. A stalled scheduler stops the pings.
func (a *App) watchdog(ctx context.Context) {
	every, err := a.sd.WatchdogInterval()
	if err != nil {
		a.log.Warn("watchdog interval lookup failed", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if ok, last := a.metrics.Healthy(now, a.maxTickAge); ok {
				a.sdNotify(daemon.SdNotifyWatchdog)
			} else {
				a.log.Warn("scheduler stalled; withholding watchdog ping", logx.Time("last_tick", last))
			}
		}
	}
}
