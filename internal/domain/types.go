package domain

import "time"

// Notification frequencies a user may choose. Zero disables periodic reminders.
var frequencies = map[int]bool{0: true, 1: true, 2: true, 4: true, 6: true}

// ValidFrequency reports whether n is one of the supported daily frequencies.
func ValidFrequency(n int) bool { return frequencies[n] }

// User is the scheduling view of a registered user. All instants are UTC.
type User struct {
	ID       int64
	ChatID   int64
	FullName string

	NotificationFrequency int
	UTCOffsetHours        int
	TimezoneLabel         string

	LastActivityAt       *time.Time
	RegistrationComplete bool

	IsPremium    bool
	TrialStartAt *time.Time
	TrialEndAt   *time.Time
	TrialExpired bool

	CreatedAt time.Time
}

// TherapySession is a booked session. ReflectionAt is fixed at booking time
// and never re-derived from SessionAt.
type TherapySession struct {
	ID             int64
	UserID         int64
	SessionAt      time.Time
	ReflectionAt   time.Time
	ReflectionSent bool
	CreatedAt      time.Time
}

// DefaultReflectionDelay is the gap between a session and its reflection prompt.
const DefaultReflectionDelay = 5 * time.Hour

// NewTherapySession books a session at sessionAt (any zone; stored as UTC).
func NewTherapySession(userID int64, sessionAt time.Time, delay time.Duration) TherapySession {
	if delay <= 0 {
		delay = DefaultReflectionDelay
	}
	at := sessionAt.UTC()
	return TherapySession{
		UserID:       userID,
		SessionAt:    at,
		ReflectionAt: at.Add(delay),
	}
}

// LocalToUTC converts a wall-clock value the user typed in their calibrated
// frame into a UTC instant. The zone of local is ignored.
func LocalToUTC(local time.Time, offsetHours int) time.Time {
	y, mo, d := local.Date()
	h, mi, s := local.Clock()
	return time.Date(y, mo, d, h, mi, s, 0, time.UTC).Add(-time.Duration(offsetHours) * time.Hour)
}
