package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/access"
	"remindbot/internal/domain"
	"remindbot/internal/eventbus"
	"remindbot/internal/timezone"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Event types published on the bus.
const (
	EventSent     = "reminder.sent"
	EventFailed   = "reminder.failed"
	EventTickDone = "tick.done"
)

// Store is the data the engine reads and the two flags it writes.
type Store interface {
	ListSchedulable(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	PendingReflections(ctx context.Context, now time.Time) ([]domain.TherapySession, error)
	MarkReflectionSent(ctx context.Context, sessionID int64) error
}

type Sender interface {
	Send(ctx context.Context, chatID int64, text string, kb *kit.Keyboard) error
}

type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type Gate interface {
	Status(ctx context.Context, u *domain.User, now time.Time) access.Status
}

type Suppressor interface {
	IsActive(u domain.User, now time.Time) bool
}

// Delivery is the payload of EventSent and EventFailed.
type Delivery struct {
	Kind   Kind
	UserID int64
	Slot   string
	Err    error
}

// TickReport summarizes one tick. It is the payload of EventTickDone.
type TickReport struct {
	ID       string
	At       time.Time
	Duration time.Duration

	Expired    int
	Users      int
	Ineligible int
	Suppressed int
	Sent       map[Kind]int
	Failed     map[Kind]int

	SweepFailed bool
	ListFailed  bool

	Purged       int
	DedupEntries int
}

func (r TickReport) total() (sent, failed int) {
	for _, n := range r.Sent {
		sent += n
	}
	for _, n := range r.Failed {
		failed += n
	}
	return sent, failed
}

type Deps struct {
	Store      Store
	Sender     Sender
	Sweeper    Sweeper
	Gate       Gate
	Suppressor Suppressor
	Calibrator timezone.Calibrator
	Dedup      *Dedup
	Composer   Composer
	Bus        eventbus.Bus
	Log        logx.Logger

	// RetentionDays bounds dedup entries by local date. Default 2.
	RetentionDays int
}

// Engine decides, per tick, who gets which reminder now. Tick must not be
// called concurrently; the Driver guarantees that.
type Engine struct {
	d Deps

	lastServerDate string
}

func NewEngine(d Deps) *Engine {
	if d.Dedup == nil {
		d.Dedup = NewDedup()
	}
	if d.Composer == nil {
		d.Composer = DefaultComposer{}
	}
	if d.RetentionDays <= 0 {
		d.RetentionDays = 2
	}
	if d.Calibrator == nil {
		d.Calibrator = timezone.Manual{}
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Engine{d: d}
}

func (e *Engine) Dedup() *Dedup { return e.d.Dedup }

func (e *Engine) Tick(ctx context.Context, now time.Time) TickReport {
	started := time.Now()
	rep := TickReport{
		ID:     uuid.NewString(),
		At:     now,
		Sent:   map[Kind]int{},
		Failed: map[Kind]int{},
	}
	log := e.d.Log.With(logx.String("tick", rep.ID))

	// Classify falls back on timestamps, so a failed sweep still fails closed.
	if n, err := e.d.Sweeper.SweepExpired(ctx, now); err != nil {
		rep.SweepFailed = true
		log.Warn("trial sweep failed", logx.Err(err))
	} else {
		rep.Expired = n
	}

	users, err := e.d.Store.ListSchedulable(ctx)
	if err != nil {
		rep.ListFailed = true
		log.Error("list users failed; skipping recurring reminders", logx.Err(err))
	}
	rep.Users = len(users)
	for i := range users {
		if ctx.Err() != nil {
			break
		}
		e.evaluateUser(ctx, log, &users[i], now, &rep)
	}

	e.scanSessions(ctx, log, now, &rep)
	e.purgeDaily(log, now, &rep)

	rep.DedupEntries = e.d.Dedup.Len()
	rep.Duration = time.Since(started)
	e.publish(EventTickDone, rep)

	sent, failed := rep.total()
	lvl := log.Debug
	if sent > 0 || failed > 0 || rep.Expired > 0 {
		lvl = log.Info
	}
	lvl("tick done",
		logx.String("server_time", e.d.Calibrator.ServerNow(now).Format("15:04")),
		logx.Int("users", rep.Users),
		logx.Int("expired", rep.Expired),
		logx.Int("periodic", rep.Sent[KindPeriodic]),
		logx.Int("motivation", rep.Sent[KindMotivation]),
		logx.Int("weekly_reflection", rep.Sent[KindWeeklyReflection]),
		logx.Int("session_reflection", rep.Sent[KindSessionReflection]),
		logx.Int("failed", failed),
		logx.Duration("took", rep.Duration),
	)
	return rep
}

func (e *Engine) evaluateUser(ctx context.Context, log logx.Logger, u *domain.User, now time.Time, rep *TickReport) {
	if !e.d.Gate.Status(ctx, u, now).Eligible() {
		rep.Ineligible++
		return
	}
	if e.d.Suppressor.IsActive(*u, now) {
		rep.Suppressed++
		log.Debug("user active; reminders suppressed", logx.Int64("user_id", u.ID))
		return
	}

	local := e.d.Calibrator.UserNow(now, u.UTCOffsetHours)
	date := local.Format(DateLayout)

	if slot, ok := MatchPeriodic(u.NotificationFrequency, local); ok {
		e.fire(ctx, log, u, KindPeriodic, Key{UserID: u.ID, Date: date, Slot: slot}, rep, func() Message {
			return e.d.Composer.Periodic(*u, Bucket(local.Hour()))
		})
	}
	for _, w := range weeklyTriggers {
		if !w.Matches(local) {
			continue
		}
		compose := func() Message { return e.d.Composer.Motivation(*u) }
		if w.Kind == KindWeeklyReflection {
			compose = func() Message { return e.d.Composer.WeeklyReflection(*u) }
		}
		e.fire(ctx, log, u, w.Kind, Key{UserID: u.ID, Date: date, Slot: w.Slot}, rep, compose)
	}
}

// fire sends once per key. The key is marked only after a successful send.
func (e *Engine) fire(ctx context.Context, log logx.Logger, u *domain.User, kind Kind, k Key, rep *TickReport, compose func() Message) {
	if e.d.Dedup.Seen(k) {
		return
	}
	msg := compose()
	if err := e.d.Sender.Send(ctx, u.ChatID, msg.Text, msg.Keyboard); err != nil {
		rep.Failed[kind]++
		log.Warn("send failed", logx.String("kind", string(kind)), logx.Int64("user_id", u.ID), logx.Err(err))
		e.publish(EventFailed, Delivery{Kind: kind, UserID: u.ID, Slot: k.Slot, Err: err})
		return
	}
	e.d.Dedup.Mark(k)
	rep.Sent[kind]++
	log.Info("reminder sent",
		logx.String("kind", string(kind)),
		logx.Int64("user_id", u.ID),
		logx.String("slot", k.Slot),
		logx.String("local_date", k.Date),
		logx.String("tz", timezone.Label(u.UTCOffsetHours)),
	)
	e.publish(EventSent, Delivery{Kind: kind, UserID: u.ID, Slot: k.Slot})
}

// scanSessions delivers due reflection prompts. The durable flag is written
// after the send, so a crash in between repeats a prompt but never loses one.
func (e *Engine) scanSessions(ctx context.Context, log logx.Logger, now time.Time, rep *TickReport) {
	due, err := e.d.Store.PendingReflections(ctx, now)
	if err != nil {
		log.Error("load pending reflections failed", logx.Err(err))
		return
	}
	for _, s := range due {
		if ctx.Err() != nil {
			return
		}
		u, err := e.d.Store.GetUser(ctx, s.UserID)
		if err != nil {
			log.Warn("load session owner failed", logx.Int64("session_id", s.ID), logx.Int64("user_id", s.UserID), logx.Err(err))
			continue
		}
		if !u.RegistrationComplete {
			continue
		}
		msg := e.d.Composer.SessionReflection(u, e.d.Calibrator.UserNow(s.SessionAt, u.UTCOffsetHours))
		if err := e.d.Sender.Send(ctx, u.ChatID, msg.Text, msg.Keyboard); err != nil {
			rep.Failed[KindSessionReflection]++
			log.Warn("send failed", logx.String("kind", string(KindSessionReflection)), logx.Int64("session_id", s.ID), logx.Err(err))
			e.publish(EventFailed, Delivery{Kind: KindSessionReflection, UserID: u.ID, Err: err})
			continue
		}
		rep.Sent[KindSessionReflection]++
		e.publish(EventSent, Delivery{Kind: KindSessionReflection, UserID: u.ID})
		if err := e.d.Store.MarkReflectionSent(ctx, s.ID); err != nil {
			log.Error("mark reflection sent failed; prompt will repeat", logx.Int64("session_id", s.ID), logx.Err(err))
			continue
		}
		log.Info("reflection prompt sent", logx.Int64("session_id", s.ID), logx.Int64("user_id", u.ID))
	}
}

// purgeDaily drops old dedup entries the first time a tick observes a new
// server-local date.
func (e *Engine) purgeDaily(log logx.Logger, now time.Time, rep *TickReport) {
	server := e.d.Calibrator.ServerNow(now)
	today := server.Format(DateLayout)
	if e.lastServerDate == today {
		return
	}
	first := e.lastServerDate == ""
	e.lastServerDate = today
	if first {
		return
	}
	cutoff := server.AddDate(0, 0, -e.d.RetentionDays).Format(DateLayout)
	rep.Purged = e.d.Dedup.Purge(cutoff)
	log.Info("dedup purged", logx.Int("removed", rep.Purged), logx.String("cutoff", cutoff))
}

func (e *Engine) publish(typ string, data any) {
	if e.d.Bus == nil {
		return
	}
	e.d.Bus.Publish(eventbus.Event{Type: typ, Data: data})
}
