package throttle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Default bounds between two consecutive mutations.
const (
	DefaultMin = 6 * time.Second
	DefaultMax = 8 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Jitter delays the caller for a duration drawn uniformly from [Min, Max].
// There is no backoff: every wait samples the same distribution.
type Jitter struct {
	min, max time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// Option configures a Jitter.
type Option func(*Jitter)

// WithSeed makes the sampled delays reproducible.
func WithSeed(seed uint64) Option {
	return func(j *Jitter) { j.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithSleep replaces the timer-based sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(j *Jitter) { j.sleep = fn }
}

// New returns a Jitter over [min, max].
func New(min, max time.Duration, opts ...Option) (*Jitter, error) {
	if min < 0 || max < min {
		return nil, fmt.Errorf("invalid throttle bounds [%s, %s]", min, max)
	}
	j := &Jitter{
		min:   min,
		max:   max,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Default returns a Jitter over [6s, 8s].
func Default(opts ...Option) *Jitter {
	j, _ := New(DefaultMin, DefaultMax, opts...)
	return j
}

// Bounds returns the configured range.
func (j *Jitter) Bounds() (time.Duration, time.Duration) { return j.min, j.max }

// Next samples the next delay without waiting.
func (j *Jitter) Next() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	span := int64(j.max - j.min)
	if span == 0 {
		return j.min
	}
	return j.min + time.Duration(j.rng.Int64N(span+1))
}

// Wait blocks for one sampled delay and returns it. A cancelled context
// ends the wait early with ctx.Err().
func (j *Jitter) Wait(ctx context.Context) (time.Duration, error) {
	d := j.Next()
	return d, j.sleep(ctx, d)
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
