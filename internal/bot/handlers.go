package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/access"
	"remindbot/internal/domain"
	"remindbot/internal/timezone"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const (
	callbackFreqPrefix = "freq_"
	sessionLayout      = "02.01.2006 15:04"
)

var frequencyChoices = []int{1, 2, 4, 6, 0}

func (b *Bot) cmdStart(ctx context.Context, req *Request) error {
	u, err := b.d.Store.GetUserByChatID(ctx, req.ChatID)
	switch {
	case err == nil && u.RegistrationComplete:
		return b.reply(ctx, req, fmt.Sprintf("Welcome back, %s! Send /help to see what I can do.", nameOr(u.FullName)))
	case err == nil:
		return b.reply(ctx, req, "Almost done. Tell me your current local time with /timezone HH:MM.")
	case !isNotFound(err):
		return err
	}

	u = domain.User{
		ChatID:                req.ChatID,
		FullName:              strings.TrimSpace(req.FromName),
		NotificationFrequency: 1,
		CreatedAt:             b.d.Now().UTC(),
	}
	if err := b.d.Store.UpsertUser(ctx, &u); err != nil {
		return err
	}
	b.d.Log.Info("user registered", logx.Int64("user_id", u.ID), logx.Int64("chat_id", u.ChatID))
	return b.reply(ctx, req, fmt.Sprintf(
		"Hi, %s! I will remind you to keep your emotion diary.\n\nFirst, what time is it for you now? Reply with /timezone HH:MM, for example /timezone 16:54.",
		nameOr(u.FullName)))
}

// cmdTimezone calibrates the offset from the user's wall clock. The first
// successful calibration completes registration and starts the trial.
func (b *Bot) cmdTimezone(ctx context.Context, req *Request) error {
	u, ok, err := b.user(ctx, req)
	if !ok {
		return err
	}
	if len(req.Args) != 1 {
		return b.reply(ctx, req, "Usage: /timezone HH:MM (your current local time, e.g. 09:30).")
	}
	now := b.d.Now()
	off, err := b.d.Calibrator.Calibrate(req.Args[0], now)
	if err != nil {
		return b.reply(ctx, req, "I could not read that time. Please use HH:MM, e.g. /timezone 16:54.")
	}
	label := off.Label()
	if err := b.d.Store.SetTimezone(ctx, req.ChatID, off.Hours, label); err != nil {
		return err
	}
	b.d.Log.Info("timezone calibrated", logx.Int64("user_id", u.ID), logx.String("tz", label))

	if u.RegistrationComplete {
		return b.reply(ctx, req, "Timezone updated: "+label+".")
	}
	u.UTCOffsetHours, u.TimezoneLabel = off.Hours, label
	u.RegistrationComplete = true
	access.StartTrial(&u, now, b.d.TrialDuration)
	if err := b.d.Store.UpsertUser(ctx, &u); err != nil {
		return err
	}
	b.d.Log.Info("registration complete; trial started",
		logx.Int64("user_id", u.ID),
		logx.Time("trial_end", *u.TrialEndAt),
	)
	return b.replyKB(ctx, req, fmt.Sprintf(
		"Your timezone is %s.\n\nYour free trial lasts %d days. How often should I remind you about the diary?",
		label, int(b.d.TrialDuration/(24*time.Hour))), frequencyKeyboard())
}

func frequencyKeyboard() *kit.Keyboard {
	kb := &kit.Keyboard{}
	row := make([]kit.Button, 0, len(frequencyChoices))
	for _, n := range frequencyChoices {
		row = append(row, kit.Button{Text: frequencyText(n), Data: callbackFreqPrefix + strconv.Itoa(n)})
	}
	return kb.Row(row[:3]...).Row(row[3:]...)
}

func frequencyText(n int) string {
	switch n {
	case 0:
		return "Off"
	case 1:
		return "Once a day"
	default:
		return fmt.Sprintf("%d times a day", n)
	}
}

func (b *Bot) cmdFrequency(ctx context.Context, req *Request) error {
	if _, ok, err := b.user(ctx, req); !ok {
		return err
	}
	if len(req.Args) == 0 {
		return b.replyKB(ctx, req, "How often should I remind you about the diary?", frequencyKeyboard())
	}
	n, err := strconv.Atoi(req.Args[0])
	if err != nil || !domain.ValidFrequency(n) {
		return b.reply(ctx, req, "Choose one of 0, 1, 2, 4 or 6.")
	}
	return b.setFrequency(ctx, req, n)
}

func (b *Bot) setFrequency(ctx context.Context, req *Request, n int) error {
	if err := b.d.Store.SetFrequency(ctx, req.ChatID, n); err != nil {
		if isNotFound(err) {
			return b.reply(ctx, req, "You are not registered yet. Send /start first.")
		}
		return err
	}
	if n == 0 {
		return b.reply(ctx, req, "Diary reminders are off. Weekly messages and session prompts still arrive.")
	}
	return b.reply(ctx, req, "Done: "+strings.ToLower(frequencyText(n))+".")
}

func (b *Bot) cbFrequency(ctx context.Context, req *Request) error {
	n, err := strconv.Atoi(strings.TrimPrefix(req.Payload, callbackFreqPrefix))
	if err != nil || !domain.ValidFrequency(n) {
		return b.d.Adapter.AnswerCallback(ctx, req.CallbackID, "Unknown option")
	}
	if err := b.d.Adapter.AnswerCallback(ctx, req.CallbackID, ""); err != nil {
		b.d.Log.Debug("answer callback failed", logx.Err(err))
	}
	return b.setFrequency(ctx, req, n)
}

// cmdSession books a session given in the user's local time.
func (b *Bot) cmdSession(ctx context.Context, req *Request) error {
	u, ok, err := b.user(ctx, req)
	if !ok {
		return err
	}
	if !u.RegistrationComplete {
		return b.reply(ctx, req, "Set your timezone first with /timezone HH:MM.")
	}
	if len(req.Args) != 2 {
		return b.reply(ctx, req, "Usage: /session DD.MM.YYYY HH:MM (your local time).")
	}
	local, err := time.Parse(sessionLayout, req.Args[0]+" "+req.Args[1])
	if err != nil {
		return b.reply(ctx, req, "I could not read that date. Example: /session 14.05.2026 18:30")
	}
	at := domain.LocalToUTC(local, u.UTCOffsetHours)
	if !at.After(b.d.Now()) {
		return b.reply(ctx, req, "That time has already passed.")
	}
	s := domain.NewTherapySession(u.ID, at, b.d.ReflectionDelay)
	if err := b.d.Store.CreateSession(ctx, &s); err != nil {
		return err
	}
	b.d.Log.Info("session booked",
		logx.Int64("user_id", u.ID),
		logx.Int64("session_id", s.ID),
		logx.Time("session_at", s.SessionAt),
		logx.Time("reflection_at", s.ReflectionAt),
	)
	return b.reply(ctx, req, fmt.Sprintf(
		"Session booked for %s (%s). I will check in with you about %d hours after it.",
		local.Format(sessionLayout), timezone.Label(u.UTCOffsetHours), int(b.d.ReflectionDelay/time.Hour)))
}

func (b *Bot) cmdStatus(ctx context.Context, req *Request) error {
	u, ok, err := b.user(ctx, req)
	if !ok {
		return err
	}
	st := b.d.Gate.Status(ctx, &u, b.d.Now())
	return b.reply(ctx, req, statusText(st))
}

func statusText(st access.Status) string {
	switch st.Kind {
	case access.Premium:
		return "You have premium access. Thank you!"
	case access.TrialActive:
		msg := fmt.Sprintf("Free trial: %s left.", days(st.DaysRemaining))
		switch access.Warning(st) {
		case access.WarnOneDay:
			msg += "\n\nYour trial ends very soon. Reminders stop when it does."
		case access.WarnThreeDays:
			msg += "\n\nYour trial ends in a few days."
		}
		return msg
	case access.TrialExpired:
		return "Your free trial has ended, so reminders are paused."
	default:
		return "You have not finished registration. Send /start."
	}
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func (b *Bot) cmdHelp(ctx context.Context, req *Request) error {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	owner := b.isOwner(req.FromID)
	for _, name := range b.order {
		c := b.commands[name]
		if c.OwnerOnly && !owner {
			continue
		}
		fmt.Fprintf(&sb, "%s - %s\n", c.Usage, c.Description)
	}
	return b.reply(ctx, req, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) cmdPremium(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return b.reply(ctx, req, "Usage: /premium CHAT_ID")
	}
	chatID, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return b.reply(ctx, req, "CHAT_ID must be a number.")
	}
	u, err := b.d.Store.GetUserByChatID(ctx, chatID)
	if isNotFound(err) {
		return b.reply(ctx, req, "No such user.")
	}
	if err != nil {
		return err
	}
	if err := b.d.Gate.Upgrade(ctx, &u); err != nil {
		return err
	}
	b.d.Log.Info("premium granted", logx.Int64("user_id", u.ID), logx.Int64("by", req.FromID))
	return b.reply(ctx, req, fmt.Sprintf("User %d is now premium.", chatID))
}

// The reflection conversation itself lives elsewhere; these only acknowledge.
func (b *Bot) cbWeeklyStart(ctx context.Context, req *Request) error {
	if err := b.d.Adapter.AnswerCallback(ctx, req.CallbackID, ""); err != nil {
		b.d.Log.Debug("answer callback failed", logx.Err(err))
	}
	return b.reply(ctx, req, "Great. Take a moment and think about the past week: what went well, and what was hard?")
}

func (b *Bot) cbWeeklyDecline(ctx context.Context, req *Request) error {
	if err := b.d.Adapter.AnswerCallback(ctx, req.CallbackID, ""); err != nil {
		b.d.Log.Debug("answer callback failed", logx.Err(err))
	}
	return b.reply(ctx, req, "No problem. See you next week!")
}

func nameOr(n string) string {
	if strings.TrimSpace(n) == "" {
		return "friend"
	}
	return n
}
