package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	at    []time.Time
	opts  []*kit.SendOptions
	fails int
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error { return nil }
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error {
	return nil
}

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, _ string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.at = append(f.at, time.Now())
	f.opts = append(f.opts, opt)
	if f.fails > 0 {
		f.fails--
		return kit.MessageRef{}, errors.New("flood wait")
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.at)}, nil
}

func TestSendSpacing(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	s := New(fa, Config{SendInterval: 40 * time.Millisecond}, logx.Nop())
	for i := 0; i < 3; i++ {
		if err := s.Send(context.Background(), 1, "hi", nil); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if len(fa.at) != 3 {
		t.Fatalf("sends = %d", len(fa.at))
	}
	if gap := fa.at[2].Sub(fa.at[0]); gap < 70*time.Millisecond {
		t.Fatalf("three sends took %v, want spacing of ~40ms", gap)
	}
}

func TestSendPassesKeyboard(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	s := New(fa, Config{SendInterval: time.Millisecond}, logx.Nop())
	kb := (&kit.Keyboard{}).Row(kit.Button{Text: "Yes", Data: "y"})
	if err := s.Send(context.Background(), 1, "hi", kb); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fa.opts[0].Keyboard != kb {
		t.Fatal("keyboard not forwarded")
	}
}

func TestSendRetries(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{fails: 2}
	s := New(fa, Config{SendInterval: time.Millisecond, RetryMax: 2, RetryBase: time.Millisecond}, logx.Nop())
	if err := s.Send(context.Background(), 1, "hi", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fa.at) != 3 {
		t.Fatalf("attempts = %d, want 3", len(fa.at))
	}

	fa2 := &fakeAdapter{fails: 5}
	s2 := New(fa2, Config{SendInterval: time.Millisecond}, logx.Nop())
	if err := s2.Send(context.Background(), 1, "hi", nil); err == nil {
		t.Fatal("expected error without retries")
	}
	if len(fa2.at) != 1 {
		t.Fatalf("attempts = %d, want 1", len(fa2.at))
	}
}

func TestSendDisabledAndStopped(t *testing.T) {
	t.Parallel()
	if err := New(nil, Config{}, logx.Nop()).Send(context.Background(), 1, "x", nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
	s := New(&fakeAdapter{}, Config{}, logx.Nop())
	s.Close()
	if err := s.Send(context.Background(), 1, "x", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	s := New(&fakeAdapter{}, Config{RetryMax: -1}, logx.Nop())
	if s.cfg.SendInterval != DefaultSendInterval || s.cfg.RetryMax != 0 {
		t.Fatalf("cfg = %+v", s.cfg)
	}
	s.Apply(Config{SendInterval: time.Second})
	if s.limiter.Limit() != 1 {
		t.Fatalf("limit = %v, want 1/s", s.limiter.Limit())
	}
}
