package bot

import (
	"context"
	"strconv"

	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Run consumes updates until ctx ends or updates is closed. Updates are
// sharded by chat so one chat is always handled in order.
func (b *Bot) Run(ctx context.Context, updates <-chan kit.Update, workers int) error {
	if workers < 1 {
		workers = 2
	}
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(b.d.Log),
		rtsup.WithCancelOnError(false),
	)
	shards := make([]chan kit.Update, workers)
	for i := range shards {
		shards[i] = make(chan kit.Update, 64)
		ch := shards[i]
		sup.GoRestart("bot.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case u, ok := <-ch:
					if !ok {
						return nil
					}
					_ = b.Handle(c, u)
				}
			}
		})
	}
	b.d.Log.Info("update dispatcher started", logx.Int("workers", workers))

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		_ = sup.Wait(context.WithoutCancel(ctx))
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			ch := shards[shardOf(u, workers)]
			select {
			case ch <- u:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func shardOf(u kit.Update, n int) int {
	var chat int64
	switch {
	case u.Message != nil:
		chat = u.Message.ChatID
	case u.Callback != nil:
		chat = u.Callback.ChatID
	}
	if chat < 0 {
		chat = -chat
	}
	return int(chat % int64(n))
}
