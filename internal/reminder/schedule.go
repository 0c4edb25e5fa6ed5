package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type ScheduleKind int

const (
	ScheduleCron ScheduleKind = iota
	ScheduleInterval
)

// Schedule is a parsed tick schedule.
//
// Accepted forms:
//   - cron: "* * * * *", "@every 1m", "@hourly" (or forced with "cron:")
//   - interval: "60s", "1m30s" (or forced with "every:")
//   - interval as HH:MM: "00:01" is one minute
type Schedule struct {
	Kind  ScheduleKind
	Cron  string
	Every time.Duration
}

func (s Schedule) String() string {
	if s.Kind == ScheduleCron {
		return s.Cron
	}
	return "every " + s.Every.String()
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Schedule{}, fmt.Errorf("cron expression required after 'cron:'")
		}
		return Schedule{Kind: ScheduleCron, Cron: expr}, nil
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(s[len("every:"):])
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{Kind: ScheduleInterval, Every: d}, nil
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return Schedule{Kind: ScheduleCron, Cron: s}, nil
	}
	d, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q (use cron like '* * * * *', HH:MM like '00:01', or duration like '60s')", raw)
	}
	return Schedule{Kind: ScheduleInterval, Every: d}, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		v = (time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute).String()
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", v)
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be at least 1s")
	}
	return d, nil
}
