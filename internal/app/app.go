package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/internal/access"
	"remindbot/internal/activity"
	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/metrics"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/timezone"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

const updateWorkers = 4

// App wires the reminder service together and owns its lifecycle.
type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	adapter *telegram.Adapter
	bus     eventbus.Bus
	store   storage.Store
	sender  *notifier.Sender
	engine  *reminder.Engine
	driver  *reminder.Driver
	bot     *bot.Bot
	metrics *metrics.Metrics
	server  *metrics.Server

	sd         sdNotifier
	maxTickAge time.Duration
	updates    chan kit.Update

	mu       sync.Mutex
	sup      *rtsup.Supervisor
	stopOnce sync.Once
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("info").With(logx.String("comp", "boot"))
	cfgm := config.NewManager(cfgPath, bootLog)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	acfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	rs, err := mapReminderSettings(cfg)
	if err != nil {
		return nil, err
	}

	adapter, err := telegram.New(acfg, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	logs, log := logx.New(mapLogConfig(cfg), adapter)

	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.Open(openCtx, scfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	sender := notifier.New(adapter, ncfg, log.With(logx.String("comp", "notifier")))
	cal := timezone.Manual{ServerOffsetHours: rs.ServerOffset}
	gate := access.Gate{Store: store, Log: log.With(logx.String("comp", "access"))}

	engine := reminder.NewEngine(reminder.Deps{
		Store:         store,
		Sender:        sender,
		Sweeper:       access.Sweeper{Store: store, Log: log.With(logx.String("comp", "access"))},
		Gate:          gate,
		Suppressor:    activity.Suppressor{Window: rs.ActivityWindow},
		Calibrator:    cal,
		Bus:           bus,
		Log:           log.With(logx.String("comp", "engine")),
		RetentionDays: rs.RetentionDays,
	})
	driver, err := reminder.NewDriver(engine, rs.Schedule, log.With(logx.String("comp", "driver")))
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	b := bot.New(bot.Deps{
		Store:           store,
		Activity:        activity.Tracker{Store: store},
		Gate:            gate,
		Calibrator:      cal,
		Adapter:         adapter,
		Log:             log.With(logx.String("comp", "bot")),
		TrialDuration:   rs.Trial,
		ReflectionDelay: rs.ReflectionDelay,
		Owners:          cfg.Telegram.OwnerUserIDs,
	})

	a := &App{
		cfgm:       cfgm,
		logs:       logs,
		log:        log.With(logx.String("comp", "app")),
		adapter:    adapter,
		bus:        bus,
		store:      store,
		sender:     sender,
		engine:     engine,
		driver:     driver,
		bot:        b,
		metrics:    metrics.New(),
		sd:         systemdNotifier{},
		maxTickAge: maxTickAge(rs.Schedule),
		updates:    make(chan kit.Update, 256),
	}
	if cfg.Metrics.Enabled {
		a.server = metrics.NewServer(metrics.ServerConfig{
			Addr:       cfg.Metrics.Addr,
			MaxTickAge: a.maxTickAge,
			Pprof:      cfg.Metrics.Pprof,
		}, a.metrics, log.With(logx.String("comp", "metrics")))
	}
	return a, nil
}

// maxTickAge allows three missed ticks before the scheduler counts as stalled.
func maxTickAge(schedule string) time.Duration {
	s, err := reminder.ParseSchedule(schedule)
	if err != nil || s.Kind != reminder.ScheduleInterval {
		return 3 * time.Minute
	}
	return max(3*s.Every, time.Minute)
}

// Done is closed when the app stops running, including on a fatal error.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup == nil {
		ch := make(chan struct{})
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(true),
	)
	a.mu.Lock()
	a.sup = sup
	a.mu.Unlock()

	sup.Go0("metrics.collect", func(c context.Context) { a.metrics.Run(c, a.bus) })
	if a.server != nil {
		a.server.Start(sup.Context())
	}

	if err := a.adapter.Start(sup.Context(), a.updates); err != nil {
		sup.Cancel()
		return fmt.Errorf("telegram start: %w", err)
	}
	sup.Go("bot.dispatch", func(c context.Context) error {
		return a.bot.Run(c, a.updates, updateWorkers)
	})

	if err := a.driver.Start(sup.Context()); err != nil {
		sup.Cancel()
		return fmt.Errorf("driver start: %w", err)
	}

	cfgCh := a.cfgm.Subscribe(1)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(cfgCh)
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-cfgCh:
				if !ok {
					return
				}
				a.applyConfig(cfg, next)
				cfg = next
			}
		}
	})
	sup.GoRestart("config.watch", a.cfgm.Watch,
		rtsup.WithRestartBackoff(time.Second, 30*time.Second),
		rtsup.WithPublishFirstError(false),
	)

	sup.Go0("systemd.watchdog", a.watchdog)
	a.sdNotify(daemon.SdNotifyReady)

	a.log.Info("started",
		logx.String("schedule", cfg.Reminders.Schedule),
		logx.Int("server_utc_offset", cfg.Reminders.Offset()),
		logx.Int("trial_days", cfg.Reminders.Trial()),
		logx.Bool("metrics", a.server != nil),
	)
	return nil
}

// applyConfig applies the live-reloadable parts of next. Changes that need a
// new process are only logged.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, fields := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded", append(fields, logx.String("sections", strings.Join(changed, ",")))...)

	a.logs.Apply(mapLogConfig(next))
	if ncfg, err := mapNotifierConfig(next); err == nil {
		a.sender.Apply(ncfg)
	} else {
		a.log.Warn("notifier config not applied", logx.Err(err))
	}
	a.bot.SetOwners(next.Telegram.OwnerUserIDs)

	if config.RestartRequired(changed, prev, next) {
		a.log.Warn("some changes take effect after restart", logx.String("sections", strings.Join(changed, ",")))
	}
}

// Stop shuts components down in reverse dependency order, each bounded so
// one slow component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	var stopErr error
	a.stopOnce.Do(func() {
		stopErr = a.stop(ctx, reason)
	})
	return stopErr
}

func (a *App) stop(ctx context.Context, reason StopReason) error {
	if reason == "" {
		reason = StopUnknown
	}
	start := time.Now()
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sdNotify(daemon.SdNotifyStopping)

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		begin := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < limit {
				limit = rem
			}
		}
		var cancel context.CancelFunc = func() {}
		if limit > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, limit)
		}
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				return
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(begin)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	step("driver", 5*time.Second, a.driver.Stop)
	if a.server != nil {
		step("metrics", time.Second, a.server.Stop)
	}
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup != nil {
		sup.Cancel()
	}
	step("notifier", time.Second, func(context.Context) error { a.sender.Close(); return nil })
	step("adapter", 3*time.Second, a.adapter.Stop)
	if sup != nil {
		step("supervisor", 2*time.Second, sup.Wait)
	}
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	var err error
	if sup != nil {
		err = sup.Err()
	}
	a.log.Info("stopped", logx.String("reason", string(reason)), logx.Duration("took", time.Since(start)))
	_ = a.logs.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
