package storage

import (
	"database/sql"
	"time"

	"remindbot/internal/domain"
)

type userRow struct {
	ID                    int64         `db:"id"`
	ChatID                int64         `db:"chat_id"`
	FullName              string        `db:"full_name"`
	NotificationFrequency int           `db:"notification_frequency"`
	UTCOffsetHours        int           `db:"utc_offset_hours"`
	TimezoneLabel         string        `db:"timezone_label"`
	LastActivityAt        sql.NullInt64 `db:"last_activity_at"`
	RegistrationComplete  bool          `db:"registration_complete"`
	IsPremium             bool          `db:"is_premium"`
	TrialStartAt          sql.NullInt64 `db:"trial_start_at"`
	TrialEndAt            sql.NullInt64 `db:"trial_end_at"`
	TrialExpired          bool          `db:"trial_expired"`
	CreatedAt             int64         `db:"created_at"`
}

const userColumns = `id, chat_id, full_name, notification_frequency, utc_offset_hours, timezone_label,
	last_activity_at, registration_complete, is_premium, trial_start_at, trial_end_at, trial_expired, created_at`

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:                    r.ID,
		ChatID:                r.ChatID,
		FullName:              r.FullName,
		NotificationFrequency: r.NotificationFrequency,
		UTCOffsetHours:        r.UTCOffsetHours,
		TimezoneLabel:         r.TimezoneLabel,
		LastActivityAt:        fromNullInt64(r.LastActivityAt),
		RegistrationComplete:  r.RegistrationComplete,
		IsPremium:             r.IsPremium,
		TrialStartAt:          fromNullInt64(r.TrialStartAt),
		TrialEndAt:            fromNullInt64(r.TrialEndAt),
		TrialExpired:          r.TrialExpired,
		CreatedAt:             time.Unix(r.CreatedAt, 0).UTC(),
	}
}

type sessionRow struct {
	ID             int64 `db:"id"`
	UserID         int64 `db:"user_id"`
	SessionAt      int64 `db:"session_at"`
	ReflectionAt   int64 `db:"reflection_at"`
	ReflectionSent bool  `db:"reflection_sent"`
	CreatedAt      int64 `db:"created_at"`
}

const sessionColumns = `id, user_id, session_at, reflection_at, reflection_sent, created_at`

func (r sessionRow) toDomain() domain.TherapySession {
	return domain.TherapySession{
		ID:             r.ID,
		UserID:         r.UserID,
		SessionAt:      time.Unix(r.SessionAt, 0).UTC(),
		ReflectionAt:   time.Unix(r.ReflectionAt, 0).UTC(),
		ReflectionSent: r.ReflectionSent,
		CreatedAt:      time.Unix(r.CreatedAt, 0).UTC(),
	}
}

func toNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullInt64(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}
