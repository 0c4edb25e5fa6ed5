package reminder

import (
	"testing"
	"time"
)

func TestSlotsFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		freq int
		want []string
	}{
		{0, nil},
		{1, []string{"16:00"}},
		{2, []string{"12:00", "17:00"}},
		{4, []string{"12:00", "15:00", "17:00", "20:00"}},
		{6, []string{"11:00", "13:00", "15:00", "17:00", "19:00", "21:00"}},
		{3, nil},
	}
	for _, tt := range tests {
		got := SlotsFor(tt.freq)
		if len(got) != len(tt.want) {
			t.Fatalf("SlotsFor(%d) = %v, want %v", tt.freq, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("SlotsFor(%d) = %v, want %v", tt.freq, got, tt.want)
			}
		}
	}

	// Callers cannot mutate the table.
	s := SlotsFor(1)
	s[0] = "00:00"
	if SlotsFor(1)[0] != "16:00" {
		t.Fatal("slot table mutated through returned slice")
	}
}

func TestMatchPeriodic(t *testing.T) {
	t.Parallel()
	at := func(h, m int) time.Time { return time.Date(2026, 5, 6, h, m, 30, 0, time.UTC) }
	if slot, ok := MatchPeriodic(2, at(12, 0)); !ok || slot != "12:00" {
		t.Fatalf("MatchPeriodic(2, 12:00) = %q, %v", slot, ok)
	}
	if _, ok := MatchPeriodic(2, at(12, 1)); ok {
		t.Fatal("12:01 must not match")
	}
	if _, ok := MatchPeriodic(0, at(16, 0)); ok {
		t.Fatal("frequency 0 must never match")
	}
	if _, ok := MatchPeriodic(1, at(12, 0)); ok {
		t.Fatal("frequency 1 has no 12:00 slot")
	}
}

func TestWeeklyMatches(t *testing.T) {
	t.Parallel()
	sunday10 := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	if !WeeklyMotivation.Matches(sunday10) {
		t.Fatal("motivation should match Sunday 10:00")
	}
	if WeeklyReflection.Matches(sunday10) {
		t.Fatal("reflection should not match at 10:00")
	}
	if !WeeklyReflection.Matches(sunday10.Add(7 * time.Hour)) {
		t.Fatal("reflection should match Sunday 17:00")
	}
	if WeeklyMotivation.Matches(sunday10.AddDate(0, 0, 1)) {
		t.Fatal("motivation should not match Monday")
	}
	if WeeklyMotivation.Slot == WeeklyReflection.Slot {
		t.Fatal("weekly slots must differ")
	}
	for _, s := range SlotsFor(6) {
		if s == WeeklyMotivation.Slot || s == WeeklyReflection.Slot {
			t.Fatalf("weekly slot %q collides with a periodic slot", s)
		}
	}
}

func TestBucket(t *testing.T) {
	t.Parallel()
	tests := map[int]TimeBucket{
		0: Other, 5: Other, 6: Morning, 11: Morning, 12: Day, 16: Day,
		17: Evening, 21: Evening, 22: Other, 23: Other,
	}
	for h, want := range tests {
		if got := Bucket(h); got != want {
			t.Fatalf("Bucket(%d) = %s, want %s", h, got, want)
		}
	}
}
