package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"remindbot/internal/access"
	"remindbot/internal/activity"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	"remindbot/internal/timezone"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type sent struct {
	chat int64
	text string
	kb   *kit.Keyboard
}

type fakeAdapter struct {
	mu       sync.Mutex
	msgs     []sent
	answered []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kb *kit.Keyboard
	if opt != nil {
		kb = opt.Keyboard
	}
	f.msgs = append(f.msgs, sent{chat: to.ChatID, text: text, kb: kb})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.msgs)}, nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, id, _ string) error {
	f.mu.Lock()
	f.answered = append(f.answered, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		t.Fatal("no message sent")
	}
	return f.msgs[len(f.msgs)-1]
}

// Server clock 13:54 at UTC+3, i.e. 10:54 UTC.
var serverNow = time.Date(2026, 5, 6, 10, 54, 0, 0, time.UTC)

type fixture struct {
	bot   *Bot
	store storage.Store
	ad    *fakeAdapter
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite", Path: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	f := &fixture{store: st, ad: &fakeAdapter{}, now: serverNow}
	f.bot = New(Deps{
		Store:         st,
		Activity:      activity.Tracker{Store: st},
		Gate:          access.Gate{Store: st, Log: logx.Nop()},
		Calibrator:    timezone.Manual{ServerOffsetHours: 3},
		Adapter:       f.ad,
		TrialDuration: 14 * 24 * time.Hour,
		Owners:        []int64{999},
		Now:           func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) text(t *testing.T, chat int64, text string) sent {
	t.Helper()
	err := f.bot.Handle(context.Background(), kit.Update{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ChatID: chat, FromID: chat, FromName: "Ann", Text: text},
	})
	if err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
	return f.ad.last(t)
}

func (f *fixture) press(t *testing.T, chat int64, data string) {
	t.Helper()
	err := f.bot.Handle(context.Background(), kit.Update{
		Kind:     kit.UpdateCallback,
		Callback: &kit.Callback{ID: "cb-" + data, ChatID: chat, FromID: chat, Data: data},
	})
	if err != nil {
		t.Fatalf("callback %q: %v", data, err)
	}
}

func TestRegistrationFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if got := f.text(t, 42, "/start"); !strings.Contains(got.text, "/timezone") {
		t.Fatalf("start reply = %q", got.text)
	}
	u, err := f.store.GetUserByChatID(ctx, 42)
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.RegistrationComplete || u.NotificationFrequency != 1 || u.FullName != "Ann" {
		t.Fatalf("after start: %+v", u)
	}
	if u.LastActivityAt != nil {
		t.Fatal("activity is recorded only for known chats")
	}

	got := f.text(t, 42, "/timezone 16:54")
	if !strings.Contains(got.text, "UTC+6") || got.kb.Empty() {
		t.Fatalf("timezone reply = %q kb=%v", got.text, got.kb)
	}
	u, _ = f.store.GetUserByChatID(ctx, 42)
	if !u.RegistrationComplete || u.UTCOffsetHours != 6 || u.TimezoneLabel != "UTC+6" {
		t.Fatalf("after timezone: %+v", u)
	}
	if u.TrialEndAt == nil || !u.TrialEndAt.Equal(serverNow.Add(14*24*time.Hour)) {
		t.Fatalf("trial end = %v", u.TrialEndAt)
	}
	if u.LastActivityAt == nil || !u.LastActivityAt.Equal(serverNow) {
		t.Fatalf("activity = %v, want %v", u.LastActivityAt, serverNow)
	}

	f.press(t, 42, "freq_4")
	u, _ = f.store.GetUserByChatID(ctx, 42)
	if u.NotificationFrequency != 4 {
		t.Fatalf("frequency = %d, want 4", u.NotificationFrequency)
	}

	// Recalibrating later does not restart the trial.
	f.now = serverNow.Add(48 * time.Hour)
	f.text(t, 42, "/timezone 12:54")
	u, _ = f.store.GetUserByChatID(ctx, 42)
	if u.UTCOffsetHours != 2 || !u.TrialEndAt.Equal(serverNow.Add(14*24*time.Hour)) {
		t.Fatalf("after recalibration: %+v", u)
	}
}

func TestCommandValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if got := f.text(t, 7, "/timezone 10:00"); !strings.Contains(got.text, "/start") {
		t.Fatalf("unregistered reply = %q", got.text)
	}
	f.text(t, 7, "/start")

	tests := []struct {
		in   string
		want string
	}{
		{"/timezone 25:00", "HH:MM"},
		{"/timezone", "Usage"},
		{"/frequency 3", "0, 1, 2, 4 or 6"},
		{"/session 14.05.2026 18:30", "timezone first"},
		{"/bogus", "Unknown command"},
		{"hello", "commands only"},
		{"/premium 7", "restricted"},
	}
	for _, tt := range tests {
		if got := f.text(t, 7, tt.in); !strings.Contains(got.text, tt.want) {
			t.Fatalf("%q reply = %q, want substring %q", tt.in, got.text, tt.want)
		}
	}
}

func TestSessionBookingUsesLocalTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.text(t, 5, "/start")
	f.text(t, 5, "/timezone 16:54") // UTC+6

	got := f.text(t, 5, "/session 07.05.2026 18:30")
	if !strings.Contains(got.text, "07.05.2026 18:30 (UTC+6)") {
		t.Fatalf("session reply = %q", got.text)
	}
	pending, err := f.store.PendingReflections(ctx, time.Date(2026, 5, 7, 17, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PendingReflections: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	s := pending[0]
	if want := time.Date(2026, 5, 7, 12, 30, 0, 0, time.UTC); !s.SessionAt.Equal(want) {
		t.Fatalf("SessionAt = %v, want %v", s.SessionAt, want)
	}
	if !s.ReflectionAt.Equal(s.SessionAt.Add(5 * time.Hour)) {
		t.Fatalf("ReflectionAt = %v", s.ReflectionAt)
	}

	if got := f.text(t, 5, "/session 01.01.2020 10:00"); !strings.Contains(got.text, "already passed") {
		t.Fatalf("past session reply = %q", got.text)
	}
}

func TestStatusAndPremium(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.text(t, 5, "/start")
	f.text(t, 5, "/timezone 13:54")

	if got := f.text(t, 5, "/status"); !strings.Contains(got.text, "14 days left") {
		t.Fatalf("status = %q", got.text)
	}
	f.now = serverNow.Add(13 * 24 * time.Hour)
	if got := f.text(t, 5, "/status"); !strings.Contains(got.text, "1 day left") || !strings.Contains(got.text, "very soon") {
		t.Fatalf("status near end = %q", got.text)
	}
	f.now = serverNow.Add(15 * 24 * time.Hour)
	if got := f.text(t, 5, "/status"); !strings.Contains(got.text, "ended") {
		t.Fatalf("status after end = %q", got.text)
	}

	if got := f.text(t, 999, "/premium 5"); !strings.Contains(got.text, "now premium") {
		t.Fatalf("premium reply = %q", got.text)
	}
	if got := f.text(t, 5, "/status"); !strings.Contains(got.text, "premium access") {
		t.Fatalf("status after upgrade = %q", got.text)
	}
}

func TestWeeklyCallbacksAreAcknowledged(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.text(t, 5, "/start")

	f.press(t, 5, reminder.CallbackWeeklyStart)
	if got := f.ad.last(t); !strings.Contains(got.text, "past week") {
		t.Fatalf("start reply = %q", got.text)
	}
	f.press(t, 5, reminder.CallbackWeeklyDecline)
	if got := f.ad.last(t); !strings.Contains(got.text, "next week") {
		t.Fatalf("decline reply = %q", got.text)
	}
	f.press(t, 5, "something_else")

	f.ad.mu.Lock()
	defer f.ad.mu.Unlock()
	if len(f.ad.answered) != 3 {
		t.Fatalf("answered = %v, want 3", f.ad.answered)
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		cmd  string
		args int
	}{
		{"/start", "start", 0},
		{"/Timezone@remind_bot 10:00", "timezone", 1},
		{"  /session 01.02.2026 10:00 ", "session", 2},
		{"hi there", "", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		cmd, args := parseCommand(tt.in)
		if cmd != tt.cmd || len(args) != tt.args {
			t.Fatalf("parseCommand(%q) = %q %v", tt.in, cmd, args)
		}
	}
}

func TestRunShardsByChat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	updates := make(chan kit.Update)
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(context.Background(), updates, 3) }()

	for _, chat := range []int64{1, 2, 3, 4} {
		updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: chat, Text: "/help"}}
	}
	close(updates)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after updates closed")
	}
	f.ad.mu.Lock()
	defer f.ad.mu.Unlock()
	if len(f.ad.msgs) != 4 {
		t.Fatalf("replies = %d, want 4", len(f.ad.msgs))
	}
}
