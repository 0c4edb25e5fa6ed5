package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"remindbot/internal/domain"
	logx "remindbot/pkg/logx"
)

// sqlStore writes queries with '?' placeholders and rebinds them for the
// driver in use.
type sqlStore struct {
	db      *sqlx.DB
	dialect string
	log     logx.Logger
}

var _ Store = (*sqlStore)(nil)

func newSQLStore(ctx context.Context, db *sqlx.DB, dialect string, log logx.Logger) (*sqlStore, error) {
	if err := migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", dialect))
	return &sqlStore{db: db, dialect: dialect, log: log}, nil
}

func (s *sqlStore) q(query string) string { return s.db.Rebind(query) }

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) ListSchedulable(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, s.q(`SELECT `+userColumns+` FROM users
		WHERE registration_complete = ? AND (is_premium = ? OR trial_expired = ?)
		ORDER BY id`), true, true, false)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *sqlStore) getUser(ctx context.Context, where string, arg any) (domain.User, error) {
	var r userRow
	err := s.db.GetContext(ctx, &r, s.q(`SELECT `+userColumns+` FROM users WHERE `+where+` = ?`), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return r.toDomain(), nil
}

func (s *sqlStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *sqlStore) GetUserByChatID(ctx context.Context, chatID int64) (domain.User, error) {
	return s.getUser(ctx, "chat_id", chatID)
}

func (s *sqlStore) UpsertUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return s.db.QueryRowxContext(ctx, s.q(`INSERT INTO users (
			chat_id, full_name, notification_frequency, utc_offset_hours, timezone_label,
			last_activity_at, registration_complete, is_premium, trial_start_at, trial_end_at,
			trial_expired, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			full_name = excluded.full_name,
			notification_frequency = excluded.notification_frequency,
			utc_offset_hours = excluded.utc_offset_hours,
			timezone_label = excluded.timezone_label,
			last_activity_at = excluded.last_activity_at,
			registration_complete = excluded.registration_complete,
			is_premium = excluded.is_premium,
			trial_start_at = excluded.trial_start_at,
			trial_end_at = excluded.trial_end_at,
			trial_expired = excluded.trial_expired
		RETURNING id`),
		u.ChatID, u.FullName, u.NotificationFrequency, u.UTCOffsetHours, u.TimezoneLabel,
		toNullInt64(u.LastActivityAt), u.RegistrationComplete, u.IsPremium,
		toNullInt64(u.TrialStartAt), toNullInt64(u.TrialEndAt), u.TrialExpired, u.CreatedAt.Unix(),
	).Scan(&u.ID)
}

func (s *sqlStore) ExpireTrials(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET trial_expired = ?
		WHERE registration_complete = ? AND is_premium = ? AND trial_expired = ?
		AND trial_end_at IS NOT NULL AND trial_end_at < ?`),
		true, true, false, false, now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlStore) MarkTrialExpired(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET trial_expired = ?
		WHERE id = ? AND is_premium = ?`), true, userID, false)
	return err
}

func (s *sqlStore) SetPremium(ctx context.Context, userID int64) error {
	return s.execOne(ctx, `UPDATE users SET is_premium = ?, trial_expired = ? WHERE id = ?`, true, false, userID)
}

func (s *sqlStore) SetTimezone(ctx context.Context, chatID int64, offsetHours int, label string) error {
	return s.execOne(ctx, `UPDATE users SET utc_offset_hours = ?, timezone_label = ? WHERE chat_id = ?`, offsetHours, label, chatID)
}

func (s *sqlStore) SetFrequency(ctx context.Context, chatID int64, freq int) error {
	return s.execOne(ctx, `UPDATE users SET notification_frequency = ? WHERE chat_id = ?`, freq, chatID)
}

func (s *sqlStore) TouchActivity(ctx context.Context, chatID int64, at time.Time) error {
	return s.execOne(ctx, `UPDATE users SET last_activity_at = ? WHERE chat_id = ?`, at.UTC().Unix(), chatID)
}

// execOne runs an update that must hit a row.
func (s *sqlStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) CreateSession(ctx context.Context, ts *domain.TherapySession) error {
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = time.Now().UTC()
	}
	return s.db.QueryRowxContext(ctx, s.q(`INSERT INTO therapy_sessions
			(user_id, session_at, reflection_at, reflection_sent, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		ts.UserID, ts.SessionAt.UTC().Unix(), ts.ReflectionAt.UTC().Unix(), ts.ReflectionSent, ts.CreatedAt.Unix(),
	).Scan(&ts.ID)
}

func (s *sqlStore) PendingReflections(ctx context.Context, now time.Time) ([]domain.TherapySession, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, s.q(`SELECT `+sessionColumns+` FROM therapy_sessions
		WHERE reflection_sent = ? AND reflection_at <= ?
		ORDER BY reflection_at, id`), false, now.UTC().Unix())
	if err != nil {
		return nil, err
	}
	out := make([]domain.TherapySession, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *sqlStore) MarkReflectionSent(ctx context.Context, sessionID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE therapy_sessions SET reflection_sent = ?
		WHERE id = ? AND reflection_sent = ?`), true, sessionID, false)
	return err
}
