package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Sender is safe for concurrent use; sends share one limiter.
type Sender struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	adapter kit.Adapter
	closed  bool

	log logx.Logger
}

func New(adapter kit.Adapter, cfg Config, log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Sender{adapter: adapter, log: log}
	s.Apply(cfg)
	return s
}

// Apply swaps throttle and retry settings at runtime.
func (s *Sender) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Every(cfg.SendInterval), 1)
	} else if cfg.SendInterval != s.cfg.SendInterval {
		s.limiter.SetLimit(rate.Every(cfg.SendInterval))
	}
	s.cfg = cfg
}

func (s *Sender) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Send waits for its turn, then delivers text to chatID, retrying up to
// RetryMax times with linear backoff. The last error is returned.
func (s *Sender) Send(ctx context.Context, chatID int64, text string, kb *kit.Keyboard) error {
	// Snapshot mutable dependencies to avoid races with Apply().
	s.mu.Lock()
	lim, cfg, adapter, closed := s.limiter, s.cfg, s.adapter, s.closed
	s.mu.Unlock()

	if closed {
		return ErrStopped
	}
	if adapter == nil {
		return ErrDisabled
	}
	if err := lim.Wait(ctx); err != nil {
		return err
	}

	to := kit.ChatTarget{ChatID: chatID}
	opt := &kit.SendOptions{DisablePreview: true, Keyboard: kb}
	var last error
	for i := 0; i <= cfg.RetryMax; i++ {
		_, err := adapter.SendText(ctx, to, text, opt)
		if err == nil {
			return nil
		}
		last = err
		if i == cfg.RetryMax {
			break
		}
		delay := cfg.RetryBase * time.Duration(i+1)
		s.log.Debug("send retry scheduled", logx.Int64("chat_id", chatID), logx.Int("attempt", i+2), logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tmr.Stop()
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}
