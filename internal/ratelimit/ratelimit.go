package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrBusy is returned when a slot could not be obtained before the acquire
// timeout elapsed.
var ErrBusy = errors.New("too many concurrent extractions")

type Options struct {
	MaxConcurrent     int
	LaunchesPerMinute int
	AcquireTimeout    time.Duration
}

// Gate bounds the number of browsers running at once and the rate at which
// new ones start.
type Gate struct {
	slots   chan struct{}
	limiter *rate.Limiter
	timeout time.Duration
}

func NewGate(opts Options) *Gate {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}

	limit := rate.Inf
	if opts.LaunchesPerMinute > 0 {
		limit = rate.Limit(float64(opts.LaunchesPerMinute) / 60)
	}

	return &Gate{
		slots:   make(chan struct{}, opts.MaxConcurrent),
		limiter: rate.NewLimiter(limit, opts.MaxConcurrent),
		timeout: opts.AcquireTimeout,
	}
}

// Acquire blocks until a slot is free and the launch rate allows another
// start. The returned release func must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	waitCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	select {
	case g.slots <- struct{}{}:
	case <-waitCtx.Done():
		return nil, g.waitErr(ctx, waitCtx)
	}

	if err := g.limiter.Wait(waitCtx); err != nil {
		<-g.slots
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: launch rate exceeded: %v", ErrBusy, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-g.slots
	}, nil
}

// InUse reports how many slots are currently held.
func (g *Gate) InUse() int {
	return len(g.slots)
}

func (g *Gate) waitErr(parent, waitCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBusy, waitCtx.Err())
}
