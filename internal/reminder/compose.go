package reminder

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"remindbot/internal/domain"
	kit "remindbot/internal/transport"
)

// Callback data carried by the weekly reflection buttons.
const (
	CallbackWeeklyStart   = "weekly_start_reflection"
	CallbackWeeklyDecline = "weekly_decline_reflection"
)

// Message is outbound text plus an optional inline keyboard.
type Message struct {
	Text     string
	Keyboard *kit.Keyboard
}

// Composer phrases reminders. sessionLocal is the session start in the
// user's calibrated frame.
type Composer interface {
	Periodic(u domain.User, b TimeBucket) Message
	Motivation(u domain.User) Message
	WeeklyReflection(u domain.User) Message
	SessionReflection(u domain.User, sessionLocal time.Time) Message
}

// DefaultComposer produces plain-text English reminders.
type DefaultComposer struct {
	// Pick chooses an index in [0,n). Nil means math/rand.
	Pick func(n int) int
}

var _ Composer = DefaultComposer{}

var greetings = map[TimeBucket][2]string{
	Morning: {"Good morning", "How has your day started?"},
	Day:     {"Good afternoon", "How is the middle of your day going?"},
	Evening: {"Good evening", "How did your day go?"},
	Other:   {"Hi", "How are you feeling?"},
}

var motivations = []string{
	"Hi, %s!\n\nAnother week of keeping your emotion diary. Every step toward understanding yourself counts.",
	"%s, you are doing important work.\n\nTracking emotions is a skill that helps you understand and steady yourself.",
	"Hi, %s!\n\nChange happens gradually. Each diary entry is an investment in your wellbeing.",
	"%s, there are no right or wrong emotions.\n\nEvery feeling matters. Keep observing yourself with kindness.",
	"Hi, %s!\n\nYou grow a little every day, and the diary helps you see it. Keep going!",
}

func displayName(u domain.User) string {
	if n := strings.TrimSpace(u.FullName); n != "" {
		return n
	}
	return "friend"
}

func (c DefaultComposer) pick(n int) int {
	if c.Pick != nil {
		return c.Pick(n)
	}
	return rand.IntN(n)
}

func (c DefaultComposer) Periodic(u domain.User, b TimeBucket) Message {
	g, ok := greetings[b]
	if !ok {
		g = greetings[Other]
	}
	return Message{Text: fmt.Sprintf("%s, %s!\n\nTime for your emotion diary. %s", g[0], displayName(u), g[1])}
}

func (c DefaultComposer) Motivation(u domain.User) Message {
	return Message{Text: fmt.Sprintf(motivations[c.pick(len(motivations))], displayName(u))}
}

func (c DefaultComposer) WeeklyReflection(u domain.User) Message {
	kb := (&kit.Keyboard{}).Row(
		kit.Button{Text: "Start reflection", Data: CallbackWeeklyStart},
		kit.Button{Text: "Not now", Data: CallbackWeeklyDecline},
	)
	return Message{
		Text: fmt.Sprintf("Hi, %s!\n\nSunday evening is a good time to look back on the week: "+
			"the good moments, and what brought you joy and gratitude.", displayName(u)),
		Keyboard: kb,
	}
}

func (c DefaultComposer) SessionReflection(u domain.User, sessionLocal time.Time) Message {
	return Message{Text: fmt.Sprintf("Hi, %s!\n\nA few hours have passed since your session (%s). "+
		"Now is a good moment to write down your reflection while it is fresh.",
		displayName(u), sessionLocal.Format("02.01.2006 15:04"))}
}
