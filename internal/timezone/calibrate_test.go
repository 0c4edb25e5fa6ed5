package timezone

import (
	"errors"
	"testing"
	"time"
)

func TestCalibrate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		user, server string
		serverOffset int
		want         int
		label        string
	}{
		{name: "ahead of server", user: "16:54", server: "13:54", serverOffset: 3, want: 6, label: "UTC+6"},
		{name: "same clock", user: "13:54", server: "13:54", serverOffset: 3, want: 3, label: "UTC+3"},
		{name: "behind server", user: "05:00", server: "13:00", serverOffset: 3, want: -5, label: "UTC-5"},
		{name: "user past midnight", user: "00:30", server: "23:30", serverOffset: 3, want: 4, label: "UTC+4"},
		{name: "user before midnight", user: "23:30", server: "00:30", serverOffset: 3, want: 2, label: "UTC+2"},
		{name: "utc", user: "10:00", server: "13:00", serverOffset: 3, want: 0, label: "UTC+0"},
		{name: "clamp high", user: "01:00", server: "13:30", serverOffset: 3, want: 14, label: "UTC+14"},
		{name: "clamp low", user: "01:00", server: "12:00", serverOffset: -8, want: -12, label: "UTC-12"},
		{name: "half hour rounds to even", user: "15:24", server: "13:54", serverOffset: 0, want: 2, label: "UTC+2"},
		{name: "minutes round", user: "17:35", server: "13:54", serverOffset: 3, want: 7, label: "UTC+7"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Calibrate(tt.user, tt.server, tt.serverOffset)
			if err != nil {
				t.Fatalf("Calibrate error: %v", err)
			}
			if got.Hours != tt.want {
				t.Fatalf("Hours = %d, want %d", got.Hours, tt.want)
			}
			if got.Label() != tt.label {
				t.Fatalf("Label = %q, want %q", got.Label(), tt.label)
			}
		})
	}
}

func TestCalibrateRangeAndDeterminism(t *testing.T) {
	t.Parallel()
	for _, off := range []int{-12, -3, 0, 3, 14} {
		for u := 0; u < minutesPerDay; u += 37 {
			for s := 0; s < minutesPerDay; s += 53 {
				user := clock(u)
				server := clock(s)
				a, err := Calibrate(user, server, off)
				if err != nil {
					t.Fatalf("Calibrate(%s,%s,%d): %v", user, server, off, err)
				}
				b, _ := Calibrate(user, server, off)
				if a != b {
					t.Fatalf("non-deterministic: %v vs %v", a, b)
				}
				if a.Hours < MinOffset || a.Hours > MaxOffset {
					t.Fatalf("offset %d out of range", a.Hours)
				}
			}
		}
	}
}

func clock(m int) string {
	return time.Date(2000, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
}

func TestCalibrateInvalid(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "24:00", "12:60", "1200", "ab:cd", "12:5", "-1:30", "12:30:00", "123:00"} {
		if _, err := Calibrate(in, "12:00", 3); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("Calibrate(%q) err = %v, want ErrInvalidFormat", in, err)
		}
		if _, err := Calibrate("12:00", in, 3); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("Calibrate(server %q) err = %v, want ErrInvalidFormat", in, err)
		}
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	got, err := ParseClock("9:05")
	if err != nil || got != 545 {
		t.Fatalf("ParseClock(9:05) = %d, %v", got, err)
	}
	got, err = ParseClock(" 23:59 ")
	if err != nil || got != 1439 {
		t.Fatalf("ParseClock(23:59) = %d, %v", got, err)
	}
}

func TestManualFrames(t *testing.T) {
	t.Parallel()
	m := Manual{ServerOffsetHours: 3}
	now := time.Date(2026, 5, 10, 7, 0, 0, 0, time.UTC)

	if got := m.ServerNow(now).Format("2006-01-02 15:04"); got != "2026-05-10 10:00" {
		t.Fatalf("ServerNow = %s", got)
	}
	local := m.UserNow(now, 5)
	if got := local.Format("2006-01-02 15:04"); got != "2026-05-10 12:00" {
		t.Fatalf("UserNow = %s", got)
	}
	if !local.Equal(now) {
		t.Fatalf("UserNow changed the instant: %v vs %v", local, now)
	}
	if got := m.UserNow(now, -9).Format("2006-01-02 15:04"); got != "2026-05-09 22:00" {
		t.Fatalf("UserNow(-9) = %s", got)
	}
}

func TestManualCalibrate(t *testing.T) {
	t.Parallel()
	m := Manual{ServerOffsetHours: 3}
	// Server clock reads 13:54 at 10:54 UTC.
	now := time.Date(2026, 5, 10, 10, 54, 0, 0, time.UTC)
	off, err := m.Calibrate("16:54", now)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if off.Hours != 6 {
		t.Fatalf("Hours = %d, want 6", off.Hours)
	}
	if got := m.UserNow(now, off.Hours).Format("15:04"); got != "16:54" {
		t.Fatalf("round trip local clock = %s, want 16:54", got)
	}
}
