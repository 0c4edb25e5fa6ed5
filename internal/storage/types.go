package storage

import (
	"context"
	"errors"
	"time"

	"remindbot/internal/domain"
)

var ErrNotFound = errors.New("storage: not found")

// Config configures storage.
type Config struct {
	Driver       string // "sqlite" | "postgres"
	Path         string // sqlite file path; ":memory:" for tests
	DSN          string // postgres connection string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

type Store interface {
	// ListSchedulable returns registered users that are premium or not yet
	// flagged expired, ordered by id.
	ListSchedulable(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (domain.User, error)
	// UpsertUser inserts or updates by chat id and sets u.ID.
	UpsertUser(ctx context.Context, u *domain.User) error

	// ExpireTrials flags every non-premium registered user whose trial ended
	// before now, in one statement, and returns how many rows changed.
	ExpireTrials(ctx context.Context, now time.Time) (int64, error)
	MarkTrialExpired(ctx context.Context, userID int64) error
	SetPremium(ctx context.Context, userID int64) error

	SetTimezone(ctx context.Context, chatID int64, offsetHours int, label string) error
	SetFrequency(ctx context.Context, chatID int64, freq int) error
	TouchActivity(ctx context.Context, chatID int64, at time.Time) error

	CreateSession(ctx context.Context, s *domain.TherapySession) error
	PendingReflections(ctx context.Context, now time.Time) ([]domain.TherapySession, error)
	MarkReflectionSent(ctx context.Context, sessionID int64) error

	Close() error
}
