package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

func scrape(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	b, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(b)
}

func TestObserveReminderEvents(t *testing.T) {
	t.Parallel()
	m := New()
	now := time.Now()
	m.Observe(eventbus.Event{Type: reminder.EventSent, Data: reminder.Delivery{Kind: reminder.KindPeriodic}})
	m.Observe(eventbus.Event{Type: reminder.EventSent, Data: reminder.Delivery{Kind: reminder.KindPeriodic}})
	m.Observe(eventbus.Event{Type: reminder.EventFailed, Data: reminder.Delivery{Kind: reminder.KindMotivation}})
	m.Observe(eventbus.Event{Type: reminder.EventTickDone, Time: now, Data: reminder.TickReport{
		Expired: 3, Duration: 40 * time.Millisecond, DedupEntries: 7,
	}})
	m.Observe(eventbus.Event{Type: "unrelated", Data: 1})

	_, body := scrape(t, NewServer(ServerConfig{}, m, logx.Nop()).Handler(), "/metrics")
	for _, want := range []string{
		`remindbot_reminders_sent_total{kind="periodic"} 2`,
		`remindbot_reminders_failed_total{kind="weekly_motivation"} 1`,
		`remindbot_trials_expired_total 3`,
		`remindbot_ticks_total 1`,
		`remindbot_dedup_entries 7`,
		`remindbot_tick_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
	if ok, last := m.Healthy(now.Add(time.Minute), 3*time.Minute); !ok || !last.Equal(now) {
		t.Fatalf("Healthy = %v, %v", ok, last)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	m := New()
	srv := NewServer(ServerConfig{MaxTickAge: time.Minute}, m, logx.Nop())

	// Fresh process counts as healthy.
	if code, body := scrape(t, srv.Handler(), "/healthz"); code != http.StatusOK || body != "ok\n" {
		t.Fatalf("healthz = %d %q", code, body)
	}

	m.Observe(eventbus.Event{Type: reminder.EventTickDone, Time: time.Now().Add(-time.Hour), Data: reminder.TickReport{}})
	code, body := scrape(t, srv.Handler(), "/healthz")
	if code != http.StatusServiceUnavailable || !strings.HasPrefix(body, "stale") {
		t.Fatalf("healthz = %d %q, want 503 stale", code, body)
	}
}

func TestRunConsumesBus(t *testing.T) {
	t.Parallel()
	m := New()
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.Publish(eventbus.Event{Type: reminder.EventTickDone, Data: reminder.TickReport{Expired: 1}})
		if _, last := m.Healthy(time.Now(), time.Hour); !last.IsZero() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tick event never observed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestServerStartStop(t *testing.T) {
	t.Parallel()
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, New(), logx.Nop())
	srv.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server never bound")
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPprofIsOptIn(t *testing.T) {
	t.Parallel()
	m := New()
	if code, _ := scrape(t, NewServer(ServerConfig{}, m, logx.Nop()).Handler(), "/debug/pprof/"); code != http.StatusNotFound {
		t.Fatalf("pprof disabled: code = %d, want 404", code)
	}
	code, body := scrape(t, NewServer(ServerConfig{Pprof: true}, m, logx.Nop()).Handler(), "/debug/pprof/")
	if code != http.StatusOK || !strings.Contains(body, "goroutine") {
		t.Fatalf("pprof enabled: code = %d", code)
	}
}
