package activity

import (
	"context"
	"testing"
	"time"

	"remindbot/internal/domain"
)

func TestSuppressorWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) *time.Time {
		v := now.Add(-ago)
		return &v
	}
	tests := []struct {
		name string
		last *time.Time
		want bool
	}{
		{name: "never active", last: nil, want: false},
		{name: "just now", last: at(0), want: true},
		{name: "inside", last: at(10 * time.Minute), want: true},
		{name: "boundary inclusive", last: at(15 * time.Minute), want: true},
		{name: "outside", last: at(16 * time.Minute), want: false},
	}
	s := Suppressor{Window: DefaultWindow}
	for _, tt := range tests {
		if got := s.IsActive(domain.User{LastActivityAt: tt.last}, now); got != tt.want {
			t.Fatalf("%s: IsActive = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSuppressorZeroWindowUsesDefault(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-14 * time.Minute)
	if !(Suppressor{}).IsActive(domain.User{LastActivityAt: &last}, now) {
		t.Fatal("zero window should fall back to the default")
	}
}

type touchStore struct {
	chatID int64
	at     time.Time
}

func (s *touchStore) TouchActivity(_ context.Context, chatID int64, at time.Time) error {
	s.chatID, s.at = chatID, at
	return nil
}

func TestTrackerStoresUTC(t *testing.T) {
	t.Parallel()
	st := &touchStore{}
	now := time.Date(2026, 2, 1, 15, 0, 0, 0, time.FixedZone("x", 3*3600))
	if err := (Tracker{Store: st}).Touch(context.Background(), 42, now); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if st.chatID != 42 || st.at.Location() != time.UTC || !st.at.Equal(now) {
		t.Fatalf("stored %d at %v", st.chatID, st.at)
	}
}
