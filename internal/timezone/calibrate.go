// Package timezone derives a user's UTC offset from a self-reported clock
// reading. Offsets are whole hours; no timezone database is consulted.
package timezone

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFormat is returned for anything that is not a 24-hour HH:MM.
var ErrInvalidFormat = errors.New("invalid time format, expected HH:MM")

const (
	MinOffset = -12
	MaxOffset = 14

	minutesPerDay = 24 * 60
	halfDay       = 12 * 60
)

// Offset is a calibrated whole-hour UTC offset.
type Offset struct {
	Hours int
}

// Label renders the offset as "UTC+N" or "UTC-N".
func (o Offset) Label() string { return Label(o.Hours) }

func Label(hours int) string {
	if hours >= 0 {
		return "UTC+" + strconv.Itoa(hours)
	}
	return "UTC" + strconv.Itoa(hours)
}

// ParseClock parses "HH:MM" (hour 0-23, minute 0-59) into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return h*60 + m, nil
}

// Calibrate computes the user's UTC offset from their clock reading and the
// server clock read at the same moment. The day-boundary ambiguity resolves
// to the difference closest to zero; half hours round to even.
func Calibrate(userHHMM, serverHHMM string, serverOffset int) (Offset, error) {
	user, err := ParseClock(userHHMM)
	if err != nil {
		return Offset{}, err
	}
	server, err := ParseClock(serverHHMM)
	if err != nil {
		return Offset{}, err
	}

	diff := user - server
	switch {
	case diff > halfDay:
		diff -= minutesPerDay
	case diff < -halfDay:
		diff += minutesPerDay
	}
	raw := int(math.RoundToEven(float64(diff) / 60))
	return Offset{Hours: clamp(raw+serverOffset, MinOffset, MaxOffset)}, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Calibrator isolates offset arithmetic from its callers.
type Calibrator interface {
	// Calibrate derives an offset from a user clock reading taken at now.
	Calibrate(userHHMM string, now time.Time) (Offset, error)
	// ServerNow is the server-local wall clock at instant now.
	ServerNow(now time.Time) time.Time
	// UserNow is the wall clock at instant now for a user with the given offset.
	UserNow(now time.Time, offsetHours int) time.Time
}

// Manual implements Calibrator with a fixed server offset. The user frame is
// derived in two stages: server wall clock, minus the server offset, plus the
// user offset.
type Manual struct {
	ServerOffsetHours int
}

var _ Calibrator = Manual{}

func (m Manual) Calibrate(userHHMM string, now time.Time) (Offset, error) {
	return Calibrate(userHHMM, m.ServerNow(now).Format("15:04"), m.ServerOffsetHours)
}

func (m Manual) ServerNow(now time.Time) time.Time {
	return now.In(zone(m.ServerOffsetHours))
}

func (m Manual) UserNow(now time.Time, offsetHours int) time.Time {
	server := m.ServerNow(now)
	shifted := server.Add(time.Duration(offsetHours-m.ServerOffsetHours) * time.Hour)
	// Re-anchor the shifted wall clock in the user's zone.
	y, mo, d := shifted.Date()
	h, mi, s := shifted.Clock()
	return time.Date(y, mo, d, h, mi, s, shifted.Nanosecond(), zone(offsetHours))
}

func zone(hours int) *time.Location {
	if hours == 0 {
		return time.UTC
	}
	return time.FixedZone(Label(hours), hours*3600)
}
