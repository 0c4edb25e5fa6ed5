// Package activity tracks the last inbound interaction per user and
// suppresses reminders while a user is actively chatting.
package activity

import (
	"context"
	"time"

	"remindbot/internal/domain"
)

const DefaultWindow = 15 * time.Minute

// Suppressor reports users active within Window. The bound is inclusive.
type Suppressor struct {
	Window time.Duration
}

func (s Suppressor) IsActive(u domain.User, now time.Time) bool {
	if u.LastActivityAt == nil {
		return false
	}
	w := s.Window
	if w <= 0 {
		w = DefaultWindow
	}
	return now.Sub(*u.LastActivityAt) <= w
}

type Store interface {
	TouchActivity(ctx context.Context, chatID int64, at time.Time) error
}

// Tracker records inbound interactions.
type Tracker struct {
	Store Store
}

func (t Tracker) Touch(ctx context.Context, chatID int64, now time.Time) error {
	return t.Store.TouchActivity(ctx, chatID, now.UTC())
}
