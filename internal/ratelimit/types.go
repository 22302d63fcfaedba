// Package ratelimit implements a fixed-window request limiter for the auth
// endpoints, backed by process memory or Redis.
package ratelimit

import (
	"context"
	"time"
)

// Result describes a rate limit decision.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter checks whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// windowSeconds is the fixed window length. Auth endpoints are limited
// per minute.
const windowSeconds = 60
