// Package ratelimit paces dispatches with a token bucket.
//
// The simulate command uses a Bucket shared by all workers so --rate bounds
// the total dispatch throughput, not the per-worker one.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Bucket is a token bucket backed by a rate.Limiter. It is safe for
// concurrent use.
type Bucket struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// BucketStats contains token bucket statistics.
type BucketStats struct {
	Available float64 `json:"available"`
	Max       float64 `json:"max"`
	Rate      float64 `json:"rate"`
}

// NewBucket creates a bucket refilling at r tokens per second and holding at
// most burst tokens. A burst below one defaults to one. The bucket starts
// full.
func NewBucket(r float64, burst int) (*Bucket, error) {
	if r <= 0 {
		return nil, fmt.Errorf("ratelimit: rate must be positive, got %v", r)
	}
	return &Bucket{
		limiter: rate.NewLimiter(rate.Limit(r), max(burst, 1)),
		now:     time.Now,
	}, nil
}

// Allow consumes a token if one is available.
func (b *Bucket) Allow() bool {
	return b.limiter.AllowN(b.now(), 1)
}

// Wait blocks until a token is available or ctx is done. A wait that cannot
// finish before the ctx deadline fails at once and takes no token.
func (b *Bucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Available returns the tokens available now, negative while waiters hold
// reservations.
func (b *Bucket) Available() float64 {
	return b.limiter.TokensAt(b.now())
}

// Stats returns the current bucket statistics.
func (b *Bucket) Stats() BucketStats {
	return BucketStats{
		Available: b.Available(),
		Max:       float64(b.limiter.Burst()),
		Rate:      float64(b.limiter.Limit()),
	}
}
