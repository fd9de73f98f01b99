// Package ratelimit throttles manual dashboard refreshes per client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	// PerMinute is the sustained number of refreshes per client (default: 6).
	PerMinute int
	// Burst is how many refreshes a quiet client may fire at once (default: 2).
	Burst int
	// IdleTTL drops clients not seen for this long (default: 10m).
	IdleTTL time.Duration

	// Clock for testing (nil uses real time)
	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		PerMinute: 6,
		Burst:     2,
		IdleTTL:   10 * time.Minute,
	}
}

type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

type client struct {
	limiter *rate.Limiter
	lastAt  time.Time
}

// Limiter holds one token bucket per client key.
type Limiter struct {
	config *Config
	clock  Clock
	limit  rate.Limit

	mu      sync.Mutex
	clients map[string]*client

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = defaults.PerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaults.IdleTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		limit:         rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		clients:       make(map[string]*client),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Allow consumes one token for key when available.
func (l *Limiter) Allow(key string) Result {
	l.startCleanup()
	now := l.clock.Now()

	l.mu.Lock()
	c := l.clients[key]
	if c == nil {
		c = &client{limiter: rate.NewLimiter(l.limit, l.config.Burst)}
		l.clients[key] = c
	}
	c.lastAt = now
	reservation := c.limiter.ReserveN(now, 1)
	l.mu.Unlock()

	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return Result{Allowed: true}
	}
	reservation.CancelAt(now)
	return Result{RetryAfter: delay}
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if now.Sub(c.lastAt) > l.config.IdleTTL {
			delete(l.clients, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// LogRefreshThrottled records a rejected manual refresh.
func LogRefreshThrottled(ctx context.Context, ip, scope string, retryAfter time.Duration) {
	log.Ctx(ctx).Warn().
		Str("event", "refresh_throttled").
		Str("ip", ip).
		Str("scope", scope).
		Dur("retry_after", retryAfter).
		Msg("Manual dashboard refresh throttled")
}
