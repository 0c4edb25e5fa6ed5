// Package bot handles inbound chat updates: registration, timezone
// calibration, reminder preferences, session booking and the weekly
// reflection buttons. It records user activity for the reminder engine.
package bot

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"remindbot/internal/access"
	"remindbot/internal/domain"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	"remindbot/internal/timezone"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Store is the part of storage the handlers use.
type Store interface {
	GetUserByChatID(ctx context.Context, chatID int64) (domain.User, error)
	UpsertUser(ctx context.Context, u *domain.User) error
	SetTimezone(ctx context.Context, chatID int64, offsetHours int, label string) error
	SetFrequency(ctx context.Context, chatID int64, freq int) error
	CreateSession(ctx context.Context, s *domain.TherapySession) error
}

type Toucher interface {
	Touch(ctx context.Context, chatID int64, now time.Time) error
}

type Gate interface {
	Status(ctx context.Context, u *domain.User, now time.Time) access.Status
	Upgrade(ctx context.Context, u *domain.User) error
}

// Request is one inbound update reduced to what handlers need.
type Request struct {
	Kind     kit.UpdateKind
	ChatID   int64
	FromID   int64
	FromName string
	Command  string
	Args     []string

	CallbackID string
	Payload    string
}

type Deps struct {
	Store      Store
	Activity   Toucher
	Gate       Gate
	Calibrator timezone.Calibrator
	Adapter    kit.Adapter
	Log        logx.Logger

	TrialDuration   time.Duration
	ReflectionDelay time.Duration
	Owners          []int64
	// Now defaults to time.Now.
	Now func() time.Time
}

type command struct {
	Description string
	Usage       string
	OwnerOnly   bool
	Handle      HandlerFunc
}

// Bot routes commands and callbacks to handlers.
type Bot struct {
	d Deps

	commands  map[string]command
	callbacks map[string]HandlerFunc
	order     []string

	mu     sync.RWMutex
	owners []int64

	handle HandlerFunc
}

func New(d Deps) *Bot {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.TrialDuration <= 0 {
		d.TrialDuration = 14 * 24 * time.Hour
	}
	if d.ReflectionDelay <= 0 {
		d.ReflectionDelay = domain.DefaultReflectionDelay
	}
	b := &Bot{d: d, owners: append([]int64(nil), d.Owners...)}
	b.register()
	b.handle = Chain(b.route,
		MWPanicRecover(d.Log),
		MWRequestLog(d.Log),
		MWTouch(d.Activity, d.Log, d.Now),
		MWTimeout(10*time.Second),
	)
	return b
}

// SetOwners replaces the admin list. Safe during config reload.
func (b *Bot) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	b.mu.Lock()
	b.owners = cp
	b.mu.Unlock()
}

func (b *Bot) isOwner(id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Contains(b.owners, id)
}

func (b *Bot) register() {
	b.commands = map[string]command{
		"start": {
			Description: "register and start the free trial",
			Usage:       "/start",
			Handle:      b.cmdStart,
		},
		"timezone": {
			Description: "set your timezone from your current local time",
			Usage:       "/timezone HH:MM",
			Handle:      b.cmdTimezone,
		},
		"frequency": {
			Description: "diary reminders per day (0, 1, 2, 4 or 6)",
			Usage:       "/frequency N",
			Handle:      b.cmdFrequency,
		},
		"session": {
			Description: "book a therapy session for a reflection prompt afterwards",
			Usage:       "/session DD.MM.YYYY HH:MM",
			Handle:      b.cmdSession,
		},
		"status": {
			Description: "show your access status",
			Usage:       "/status",
			Handle:      b.cmdStatus,
		},
		"help": {
			Description: "list commands",
			Usage:       "/help",
			Handle:      b.cmdHelp,
		},
		"premium": {
			Description: "grant premium access",
			Usage:       "/premium CHAT_ID",
			OwnerOnly:   true,
			Handle:      b.cmdPremium,
		},
	}
	b.order = []string{"start", "timezone", "frequency", "session", "status", "help", "premium"}
	b.callbacks = map[string]HandlerFunc{
		reminder.CallbackWeeklyStart:   b.cbWeeklyStart,
		reminder.CallbackWeeklyDecline: b.cbWeeklyDecline,
	}
}

// Handle processes one update. Errors are logged by the middleware chain.
func (b *Bot) Handle(ctx context.Context, u kit.Update) error {
	req, ok := toRequest(u)
	if !ok {
		return nil
	}
	return b.handle(ctx, req)
}

func toRequest(u kit.Update) (*Request, bool) {
	switch u.Kind {
	case kit.UpdateMessage:
		if u.Message == nil {
			return nil, false
		}
		m := u.Message
		req := &Request{Kind: u.Kind, ChatID: m.ChatID, FromID: m.FromID, FromName: m.FromName}
		req.Command, req.Args = parseCommand(m.Text)
		return req, true
	case kit.UpdateCallback:
		if u.Callback == nil {
			return nil, false
		}
		c := u.Callback
		return &Request{
			Kind:       u.Kind,
			ChatID:     c.ChatID,
			FromID:     c.FromID,
			Command:    c.Data,
			CallbackID: c.ID,
			Payload:    c.Data,
		}, true
	}
	return nil, false
}

// parseCommand splits "/cmd@bot a b" into ("cmd", [a b]). Plain text yields "".
func parseCommand(text string) (string, []string) {
	f := strings.Fields(text)
	if len(f) == 0 || !strings.HasPrefix(f[0], "/") {
		return "", nil
	}
	name := strings.TrimPrefix(f[0], "/")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), f[1:]
}

func (b *Bot) route(ctx context.Context, req *Request) error {
	if req.Kind == kit.UpdateCallback {
		if h, ok := b.callbacks[req.Payload]; ok {
			return h(ctx, req)
		}
		if strings.HasPrefix(req.Payload, callbackFreqPrefix) {
			return b.cbFrequency(ctx, req)
		}
		return b.d.Adapter.AnswerCallback(ctx, req.CallbackID, "")
	}
	if req.Command == "" {
		return b.reply(ctx, req, "I understand commands only. Send /help to see them.")
	}
	c, ok := b.commands[req.Command]
	if !ok {
		return b.reply(ctx, req, "Unknown command. Send /help to see what I can do.")
	}
	if c.OwnerOnly && !b.isOwner(req.FromID) {
		return b.reply(ctx, req, "This command is restricted.")
	}
	return c.Handle(ctx, req)
}

func (b *Bot) reply(ctx context.Context, req *Request, text string) error {
	return b.replyKB(ctx, req, text, nil)
}

func (b *Bot) replyKB(ctx context.Context, req *Request, text string, kb *kit.Keyboard) error {
	_, err := b.d.Adapter.SendText(ctx, kit.ChatTarget{ChatID: req.ChatID}, text, &kit.SendOptions{
		DisablePreview: true,
		Keyboard:       kb,
	})
	return err
}

// user loads the sender's record. ok is false (and a reply already sent)
// when the chat is not registered.
func (b *Bot) user(ctx context.Context, req *Request) (domain.User, bool, error) {
	u, err := b.d.Store.GetUserByChatID(ctx, req.ChatID)
	if isNotFound(err) {
		return domain.User{}, false, b.reply(ctx, req, "You are not registered yet. Send /start first.")
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

func isNotFound(err error) bool { return errors.Is(err, storage.ErrNotFound) }
