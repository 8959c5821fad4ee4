package ratelimiter

import (
	"context"
	"time"
)

// Store refills and consumes tokens atomically per key.
type Store interface {
	// ConsumeTokens refills the bucket for key, then takes tokens if enough
	// are left. A negative remaining means the request was denied and
	// nothing was taken. tokens == 0 only refreshes the state.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}
