package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/metrics"
	logx "remindbot/pkg/logx"
)

func TestMapStorageConfigDefaults(t *testing.T) {
	t.Parallel()
	sc, err := mapStorageConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapStorageConfig: %v", err)
	}
	if sc.Driver != "sqlite" || sc.Path != defaultSQLitePath {
		t.Fatalf("defaults = %+v", sc)
	}

	sc, err = mapStorageConfig(&config.Config{Storage: config.StorageConfig{
		Driver:      "postgres",
		DSN:         " postgres://u@h/db ",
		BusyTimeout: "2s",
	}})
	if err != nil {
		t.Fatalf("mapStorageConfig: %v", err)
	}
	if sc.Path != "" || sc.DSN != "postgres://u@h/db" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("postgres = %+v", sc)
	}

	if _, err := mapStorageConfig(&config.Config{Storage: config.StorageConfig{BusyTimeout: "soon"}}); err == nil {
		t.Fatal("expected error for bad busy_timeout")
	}
}

func TestMapReminderSettings(t *testing.T) {
	t.Parallel()
	rs, err := mapReminderSettings(&config.Config{})
	if err != nil {
		t.Fatalf("mapReminderSettings: %v", err)
	}
	if rs.ServerOffset != config.DefaultServerUTCOffset || rs.Trial != 14*24*time.Hour {
		t.Fatalf("defaults = %+v", rs)
	}
	if rs.ActivityWindow != 15*time.Minute || rs.ReflectionDelay != 5*time.Hour {
		t.Fatalf("durations = %+v", rs)
	}

	zero := 0
	rs, err = mapReminderSettings(&config.Config{Reminders: config.RemindersConfig{
		Schedule:        " 30s ",
		ServerUTCOffset: &zero,
		TrialDays:       7,
		ActivityWindow:  "5m",
	}})
	if err != nil {
		t.Fatalf("mapReminderSettings: %v", err)
	}
	if rs.Schedule != "30s" || rs.ServerOffset != 0 || rs.Trial != 7*24*time.Hour || rs.ActivityWindow != 5*time.Minute {
		t.Fatalf("custom = %+v", rs)
	}
}

func TestMapLogConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "debug", Console: true}}
	cfg.Logging.Telegram.Enabled = true
	cfg.Logging.Telegram.ChatID = -100
	cfg.Logging.Telegram.RatePerSec = 2

	lc := mapLogConfig(cfg)
	if lc.Level != "debug" || !lc.Console || !lc.Telegram.Enabled || lc.Telegram.ChatID != -100 || lc.Telegram.RatePerSec != 2 {
		t.Fatalf("log config = %+v", lc)
	}
}

func TestMaxTickAge(t *testing.T) {
	t.Parallel()
	tests := []struct {
		schedule string
		want     time.Duration
	}{
		{"", 3 * time.Minute},
		{"* * * * *", 3 * time.Minute},
		{"10s", time.Minute},
		{"5m", 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := maxTickAge(tt.schedule); got != tt.want {
			t.Fatalf("maxTickAge(%q) = %v, want %v", tt.schedule, got, tt.want)
		}
	}
}

type fakeSD struct {
	mu     sync.Mutex
	every  time.Duration
	states []string
}

func (f *fakeSD) Notify(state string) (bool, error) {
	f.mu.Lock()
	f.states = append(f.states, state)
	f.mu.Unlock()
	return true, nil
}

func (f *fakeSD) WatchdogInterval() (time.Duration, error) { return f.every, nil }

func (f *fakeSD) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}

func TestWatchdogPingsWhileHealthy(t *testing.T) {
	t.Parallel()
	sd := &fakeSD{every: 20 * time.Millisecond}
	a := &App{log: logx.Nop(), sd: sd, metrics: metrics.New(), maxTickAge: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	a.watchdog(ctx)
	if sd.count() == 0 {
		t.Fatal("expected watchdog pings")
	}
}

func TestWatchdogWithholdsWhenStalled(t *testing.T) {
	t.Parallel()
	sd := &fakeSD{every: 20 * time.Millisecond}
	a := &App{log: logx.Nop(), sd: sd, metrics: metrics.New(), maxTickAge: time.Nanosecond}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.watchdog(ctx)
	if n := sd.count(); n != 0 {
		t.Fatalf("pings = %d, want 0", n)
	}
}

func TestWatchdogDisabled(t *testing.T) {
	t.Parallel()
	sd := &fakeSD{}
	a := &App{log: logx.Nop(), sd: sd, metrics: metrics.New()}
	done := make(chan struct{})
	go func() {
		a.watchdog(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog should return when systemd has no watchdog")
	}
}
