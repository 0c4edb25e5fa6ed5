package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "remindbot/pkg/logx"
)

// ErrRunning is returned by Start on a driver that is already running.
var ErrRunning = errors.New("driver already running")

// DefaultSchedule ticks at the top of every minute.
const DefaultSchedule = "* * * * *"

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

type Ticker interface {
	Tick(ctx context.Context, now time.Time) TickReport
}

// Driver fires Tick on a schedule. Ticks never overlap: a tick that is still
// running when the next one is due causes that next one to be skipped.
type Driver struct {
	ticker Ticker
	sched  Schedule
	log    logx.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  State
	c      *cron.Cron
	cancel context.CancelFunc
}

func NewDriver(t Ticker, schedule string, log logx.Logger) (*Driver, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Driver{ticker: t, sched: sched, log: log, now: time.Now}, nil
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start begins scheduling ticks. Tick contexts keep ctx's values but not its
// cancellation; only a Stop that runs out of time cancels a running tick.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Running {
		return ErrRunning
	}

	cl := cronLogger{log: d.log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := cron.FuncJob(func() { d.ticker.Tick(runCtx, d.now()) })

	switch d.sched.Kind {
	case ScheduleInterval:
		c.Schedule(cron.Every(d.sched.Every), job)
	default:
		if _, err := c.AddJob(d.sched.Cron, job); err != nil {
			cancel()
			return err
		}
	}
	c.Start()

	d.c, d.cancel = c, cancel
	d.state = Running
	d.log.Info("driver started", logx.String("schedule", d.sched.String()))
	return nil
}

// Stop prevents further ticks and waits for an in-flight tick to finish.
// If ctx expires first the in-flight tick's context is cancelled.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.state == Stopped {
		d.mu.Unlock()
		return nil
	}
	c, cancel := d.c, d.cancel
	d.c, d.cancel = nil, nil
	d.state = Stopped
	d.mu.Unlock()

	start := time.Now()
	defer cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		d.log.Warn("driver stop timed out waiting for tick", logx.Err(ctx.Err()))
		return ctx.Err()
	}
	d.log.Info("driver stopped", logx.Duration("took", time.Since(start)))
	return nil
}

// cronLogger bridges cron.Logger onto logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
