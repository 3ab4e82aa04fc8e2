package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a token bucket limiter for outbound Telegram sends.
//
// The bucket starts full (maxRequests tokens), allowing an immediate burst,
// and is replenished one token at a time every interval/maxRequests. With
// maxRequests=25 and interval=1s that is one token every 40ms, which keeps
// a fan-out over many bots under the Telegram API's global send limit.
type RateLimiter struct {
	tokens    chan struct{}
	ticker    *time.Ticker
	maxTokens int
	interval  time.Duration
	mu        sync.RWMutex
	stopped   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewRateLimiter creates a rate limiter allowing maxRequests per interval
func NewRateLimiter(maxRequests int, interval time.Duration) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		tokens:    make(chan struct{}, maxRequests),
		maxTokens: maxRequests,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < maxRequests; i++ {
		rl.tokens <- struct{}{}
	}

	rl.ticker = time.NewTicker(interval / time.Duration(maxRequests))
	rl.wg.Add(1)
	go rl.replenishTokens()

	return rl
}

// Wait blocks until a token is available
func (rl *RateLimiter) Wait() error {
	return rl.WaitWithContext(context.Background())
}

// WaitWithContext blocks until a token is available or ctx is cancelled
func (rl *RateLimiter) WaitWithContext(ctx context.Context) error {
	rl.mu.RLock()
	if rl.stopped {
		rl.mu.RUnlock()
		return fmt.Errorf("rate limiter is stopped")
	}
	rl.mu.RUnlock()

	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops the rate limiter
func (rl *RateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.stopped {
		rl.stopped = true
		rl.cancel()
		rl.ticker.Stop()
		rl.wg.Wait()
		close(rl.tokens)
	}
}

// Available returns the number of available tokens
func (rl *RateLimiter) Available() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if rl.stopped {
		return 0
	}

	return len(rl.tokens)
}

func (rl *RateLimiter) replenishTokens() {
	defer rl.wg.Done()
	for {
		select {
		case <-rl.ctx.Done():
			return
		case <-rl.ticker.C:
			select {
			case <-rl.ctx.Done():
				return
			case rl.tokens <- struct{}{}:
			default:
				// Bucket is full, ignore
			}
		}
	}
}
