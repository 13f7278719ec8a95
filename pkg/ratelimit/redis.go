package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"strconv"
	"time"
)

//go:embed sliding_window.lua
var slidingWindowScript string

var errBadScriptReply = errors.New("ratelimit: unexpected script reply shape")

// checkRedis runs the sliding-window script. The returned error is internal;
// Check translates it into either a fallback decision or a strict denial.
func (l *Limiter) checkRedis(ctx context.Context, key string, policy Policy) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, l.redisTimeout)
	defer cancel()

	now := l.now()
	reply, err := l.script.Run(ctx, l.rdb, []string{"ratelimit:" + key},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.Limit,
		l.nextMember(now),
	).Result()
	if err != nil {
		return Result{}, err
	}

	values, ok := reply.([]interface{})
	if !ok || len(values) != 4 {
		return Result{}, errBadScriptReply
	}

	allowed := asInt64(values[0]) == 1
	remaining := asInt64(values[1])
	retryMs := asInt64(values[2])
	resetMs := asInt64(values[3])

	return Result{
		Allowed:    allowed,
		Limit:      policy.Limit,
		Remaining:  int(remaining),
		RetryAfter: time.Duration(retryMs) * time.Millisecond,
		ResetTime:  time.UnixMilli(resetMs),
		Source:     SourceRedis,
	}, nil
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
