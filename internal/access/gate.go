// Package access classifies users by subscription state and decides whether
// they may receive reminders.
package access

import (
	"context"
	"time"

	"remindbot/internal/domain"
	logx "remindbot/pkg/logx"
)

type Kind int

const (
	NoTrial Kind = iota
	TrialActive
	TrialExpired
	Premium
)

func (k Kind) String() string {
	switch k {
	case Premium:
		return "premium"
	case TrialActive:
		return "trial_active"
	case TrialExpired:
		return "trial_expired"
	default:
		return "no_trial"
	}
}

// Status is the result of classifying a user at an instant.
// DaysRemaining is only meaningful for TrialActive.
type Status struct {
	Kind          Kind
	DaysRemaining int
}

// Eligible reports whether the user may receive scheduled reminders.
func (s Status) Eligible() bool { return s.Kind == Premium || s.Kind == TrialActive }

const day = 24 * time.Hour

// Classify is pure. A set TrialExpired flag is never undone here; only a
// premium upgrade lifts it.
func Classify(u domain.User, now time.Time) Status {
	if u.IsPremium {
		return Status{Kind: Premium}
	}
	if u.TrialStartAt == nil || u.TrialEndAt == nil {
		return Status{Kind: NoTrial}
	}
	if u.TrialExpired || now.After(*u.TrialEndAt) {
		return Status{Kind: TrialExpired}
	}
	return Status{Kind: TrialActive, DaysRemaining: int(u.TrialEndAt.Sub(now) / day)}
}

// StartTrial sets both trial bounds together so TrialEndAt is always
// TrialStartAt plus d.
func StartTrial(u *domain.User, now time.Time, d time.Duration) {
	start := now.UTC()
	end := start.Add(d)
	u.TrialStartAt = &start
	u.TrialEndAt = &end
	u.TrialExpired = false
}

type WarningLevel int

const (
	WarnNone WarningLevel = iota
	WarnThreeDays
	WarnOneDay
)

// Warning maps an active trial onto the expiry warning the user should see.
func Warning(s Status) WarningLevel {
	if s.Kind != TrialActive {
		return WarnNone
	}
	switch {
	case s.DaysRemaining <= 1:
		return WarnOneDay
	case s.DaysRemaining <= 3:
		return WarnThreeDays
	default:
		return WarnNone
	}
}

// Store is the persistence the gate needs.
type Store interface {
	ExpireTrials(ctx context.Context, now time.Time) (int64, error)
	MarkTrialExpired(ctx context.Context, userID int64) error
	SetPremium(ctx context.Context, userID int64) error
}

// Sweeper flips every stale trial in one batch write.
type Sweeper struct {
	Store Store
	Log   logx.Logger
}

func (s Sweeper) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.Store.ExpireTrials(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info("trials expired", logx.Int64("count", n))
	}
	return int(n), nil
}

// Gate is the per-user read path that also persists a lazily observed
// expiry. Use Classify when no write is wanted.
type Gate struct {
	Store Store
	Log   logx.Logger
}

func (g Gate) Status(ctx context.Context, u *domain.User, now time.Time) Status {
	st := Classify(*u, now)
	if st.Kind == TrialExpired && !u.TrialExpired {
		if err := g.Store.MarkTrialExpired(ctx, u.ID); err != nil {
			g.Log.Warn("persist trial expiry failed", logx.Int64("user_id", u.ID), logx.Err(err))
			return st
		}
		u.TrialExpired = true
	}
	return st
}

// Upgrade grants premium and clears the expired flag.
func (g Gate) Upgrade(ctx context.Context, u *domain.User) error {
	if err := g.Store.SetPremium(ctx, u.ID); err != nil {
		return err
	}
	u.IsPremium = true
	u.TrialExpired = false
	return nil
}
