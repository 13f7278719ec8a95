// Package ratelimit implements the admission gate's rate limiting decision.
//
// A Limiter answers one question: may this identifier proceed under this
// policy right now. When a Redis client is configured the decision is made by
// an atomic sliding-window script executed server-side, so the count is
// consistent across every instance of the gate. On any backend failure the
// limiter degrades transparently to a process-local fixed-window counter;
// callers only ever see the Source marker change, never a backend error.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Source identifies which backend produced a decision.
type Source string

const (
	SourceRedis  Source = "redis"
	SourceMemory Source = "memory"
)

// Policy describes one rate limit: at most Limit events per Window. Prefix
// namespaces the counter so the same identifier can be limited independently
// per operation.
type Policy struct {
	Limit  int
	Window time.Duration
	Prefix string
}

// Result is the decision contract returned by Check. RetryAfter is zero when
// the call is allowed.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetTime  time.Time
	Source     Source
}

// Limiter owns the counter state for both backends. Construct one at startup
// with New, call Start to begin sweeping expired in-process entries, and
// Close on shutdown.
type Limiter struct {
	rdb          *redis.Client
	script       *redis.Script
	redisTimeout time.Duration
	requireRedis bool

	mem *memoryStore
	now func() time.Time

	logger *slog.Logger

	seqMu sync.Mutex
	seq   uint64

	sweepEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	startOnce  sync.Once
	closeOnce  sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRedis enables the distributed backend.
func WithRedis(client *redis.Client) Option {
	return func(l *Limiter) { l.rdb = client }
}

// WithRedisTimeout bounds each distributed check. Default 250ms.
func WithRedisTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.redisTimeout = d
		}
	}
}

// WithRequireRedis disables the in-process fallback: backend failures deny
// instead of degrading. For deployments that need strict cross-instance
// limits.
func WithRequireRedis() Option {
	return func(l *Limiter) { l.requireRedis = true }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for backend degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithSweepInterval overrides how often expired in-process entries are
// removed. Default one hour.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.sweepEvery = d
		}
	}
}

// New constructs a Limiter. Without WithRedis every decision is served by the
// in-process window.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		redisTimeout: 250 * time.Millisecond,
		mem:          newMemoryStore(),
		now:          time.Now,
		logger:       slog.Default(),
		sweepEvery:   time.Hour,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rdb != nil {
		l.script = redis.NewScript(slidingWindowScript)
	}
	return l
}

// Check decides whether identifier may proceed under policy. It never
// returns an error: backend failures degrade to the in-process counter (or
// deny, when the limiter requires Redis).
func (l *Limiter) Check(ctx context.Context, identifier string, policy Policy) Result {
	key := policy.Prefix + ":" + identifier

	if l.rdb != nil {
		res, err := l.checkRedis(ctx, key, policy)
		if err == nil {
			return res
		}

		l.logger.Warn("rate limit backend degraded",
			"key", key,
			"error", err,
			"require_redis", l.requireRedis,
		)

		if l.requireRedis {
			now := l.now()
			return Result{
				Allowed:    false,
				Limit:      policy.Limit,
				Remaining:  0,
				RetryAfter: policy.Window,
				ResetTime:  now.Add(policy.Window),
				Source:     SourceRedis,
			}
		}
	}

	return l.mem.check(l.now(), key, policy)
}

// IsLimited reports whether identifier is currently over its in-process
// limit, without consuming quota. Administrative use only; the distributed
// backend's state is managed by its own tooling.
func (l *Limiter) IsLimited(identifier string, policy Policy) bool {
	return l.mem.isLimited(l.now(), policy.Prefix+":"+identifier, policy)
}

// Unblock clears the in-process counter for one identifier under one policy.
func (l *Limiter) Unblock(identifier string, policy Policy) {
	l.mem.remove(policy.Prefix + ":" + identifier)
}

// Reset clears every in-process counter under a policy prefix.
func (l *Limiter) Reset(prefix string) {
	l.mem.resetPrefix(prefix + ":")
}

// Start launches the background sweep of expired in-process entries.
func (l *Limiter) Start() {
	l.startOnce.Do(func() {
		go l.sweepLoop()
	})
}

// Close stops the sweeper and clears in-process state.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.startOnce.Do(func() { close(l.doneCh) }) // never started: unblock the wait below
		<-l.doneCh
		l.mem.clear()
	})
}

func (l *Limiter) sweepLoop() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			swept := l.mem.sweep(l.now())
			if swept > 0 {
				l.logger.Debug("rate limit sweep", "removed", swept)
			}
		case <-l.stopCh:
			return
		}
	}
}

// nextMember produces a member string unique within this process, used to
// record one event in the sliding-window set.
func (l *Limiter) nextMember(now time.Time) string {
	l.seqMu.Lock()
	l.seq++
	seq := l.seq
	l.seqMu.Unlock()
	return strconv.FormatInt(now.UnixNano(), 36) + "-" + strconv.FormatUint(seq, 36)
}
