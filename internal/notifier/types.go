package notifier

import (
	"errors"
	"time"
)

var (
	// ErrDisabled means no transport adapter is configured.
	ErrDisabled = errors.New("notifier: no transport configured")
	// ErrStopped is returned by Send after Close.
	ErrStopped = errors.New("notifier: stopped")
)

const (
	DefaultSendInterval = 500 * time.Millisecond
	DefaultRetryBase    = 200 * time.Millisecond
)

type Config struct {
	// SendInterval is the minimum gap between consecutive sends.
	SendInterval time.Duration
	// RetryMax is the number of extra attempts after a failed send.
	RetryMax  int
	RetryBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendInterval <= 0 {
		c.SendInterval = DefaultSendInterval
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	return c
}
