package reminder

import "time"

// Kind labels a trigger family in logs, events and metrics.
type Kind string

const (
	KindPeriodic          Kind = "periodic"
	KindMotivation        Kind = "weekly_motivation"
	KindWeeklyReflection  Kind = "weekly_reflection"
	KindSessionReflection Kind = "session_reflection"
)

// Local HH:MM slots per daily frequency. Frequency 0 has no slots.
var periodicSlots = map[int][]string{
	1: {"16:00"},
	2: {"12:00", "17:00"},
	4: {"12:00", "15:00", "17:00", "20:00"},
	6: {"11:00", "13:00", "15:00", "17:00", "19:00", "21:00"},
}

// SlotsFor returns a copy of the slot list for freq, nil when disabled or unknown.
func SlotsFor(freq int) []string {
	s := periodicSlots[freq]
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}

// MatchPeriodic reports the slot whose clock equals localNow's HH:MM.
func MatchPeriodic(freq int, localNow time.Time) (string, bool) {
	hhmm := localNow.Format("15:04")
	for _, s := range periodicSlots[freq] {
		if s == hhmm {
			return s, true
		}
	}
	return "", false
}

// WeeklyTrigger fires once on Weekday at Clock in the user's frame.
type WeeklyTrigger struct {
	Kind    Kind
	Slot    string
	Weekday time.Weekday
	Clock   string
}

func (w WeeklyTrigger) Matches(localNow time.Time) bool {
	return localNow.Weekday() == w.Weekday && localNow.Format("15:04") == w.Clock
}

var (
	WeeklyMotivation = WeeklyTrigger{Kind: KindMotivation, Slot: "weekly:motivation", Weekday: time.Sunday, Clock: "10:00"}
	WeeklyReflection = WeeklyTrigger{Kind: KindWeeklyReflection, Slot: "weekly:reflection", Weekday: time.Sunday, Clock: "17:00"}
)

var weeklyTriggers = []WeeklyTrigger{WeeklyMotivation, WeeklyReflection}

// TimeBucket is the part of day a periodic reminder is phrased for.
type TimeBucket string

const (
	Morning TimeBucket = "morning"
	Day     TimeBucket = "day"
	Evening TimeBucket = "evening"
	Other   TimeBucket = "other"
)

func Bucket(hour int) TimeBucket {
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Day
	case hour >= 17 && hour < 22:
		return Evening
	default:
		return Other
	}
}
