package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	refreshFailureLimit  = 3
	refreshFailureWindow = 30 * time.Second
)

// RefreshFunc exchanges a refresh token for a new token pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (access, refresh string, err error)

// refreshCoordinator owns all refresh state. Callers ask for a refresh and
// await a shared result: concurrent 401s collapse into a single upstream
// refresh call instead of a refresh-token reuse burst. A rolling failure
// window (3 failures / 30s) aborts further attempts and forces sign-out.
type refreshCoordinator struct {
	requests  chan refreshRequest
	quit      chan struct{}
	closeOnce sync.Once
	fn        RefreshFunc
	store     TokenStore
	onExpire  func()
	logger    *zap.Logger
	now       func() time.Time
	failures  []time.Time
}

type refreshRequest struct {
	ctx   context.Context
	reply chan error
}

func newRefreshCoordinator(fn RefreshFunc, store TokenStore, onExpire func(), logger *zap.Logger, now func() time.Time) *refreshCoordinator {
	c := &refreshCoordinator{
		requests: make(chan refreshRequest),
		quit:     make(chan struct{}),
		fn:       fn,
		store:    store,
		onExpire: onExpire,
		logger:   logger,
		now:      now,
	}
	go c.loop()
	return c
}

// Close stops the coordinator goroutine. Pending Refresh callers and any
// later ones get ErrClientClosed. Safe to call more than once.
func (c *refreshCoordinator) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// Refresh blocks until a refresh attempt (possibly one already in flight when
// the call arrived) resolves. On success the new token pair has already been
// written to the token store.
func (c *refreshCoordinator) Refresh(ctx context.Context) error {
	select {
	case <-c.quit:
		return ErrClientClosed
	default:
	}

	req := refreshRequest{ctx: ctx, reply: make(chan error, 1)}
	select {
	case c.requests <- req:
	case <-c.quit:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-c.quit:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop is the coordinator actor. While an attempt is in flight it keeps
// accepting callers and attaches them to the same result, so concurrent 401s
// produce exactly one upstream refresh call.
func (c *refreshCoordinator) loop() {
	for {
		var req refreshRequest
		select {
		case req = <-c.requests:
		case <-c.quit:
			return
		}

		waiters := []refreshRequest{req}
		done := make(chan error, 1)
		go func(ctx context.Context) {
			done <- c.attempt(ctx)
		}(req.ctx)

		inflight := true
		for inflight {
			select {
			case extra := <-c.requests:
				waiters = append(waiters, extra)
			case err := <-done:
				for _, w := range waiters {
					w.reply <- err
				}
				inflight = false
			}
		}
	}
}

func (c *refreshCoordinator) attempt(ctx context.Context) error {
	if c.failuresInWindow() >= refreshFailureLimit {
		c.expire()
		return ErrSessionExpired
	}

	_, refreshToken := c.store.Tokens()
	if refreshToken == "" {
		c.expire()
		return ErrSessionExpired
	}

	access, refresh, err := c.fn(ctx, refreshToken)
	if err != nil {
		c.recordFailure()
		c.logger.Warn("token refresh failed", zap.Error(err))
		c.expire()
		return fmt.Errorf("client: refresh token: %w", ErrSessionExpired)
	}

	c.store.SetTokens(access, refresh)
	c.logger.Debug("token refreshed")
	return nil
}

func (c *refreshCoordinator) recordFailure() {
	c.failures = append(c.failures, c.now())
}

// failuresInWindow counts failures inside the rolling window, pruning older
// entries as a side effect. Only the coordinator goroutine touches failures.
func (c *refreshCoordinator) failuresInWindow() int {
	cutoff := c.now().Add(-refreshFailureWindow)
	kept := c.failures[:0]
	for _, ts := range c.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.failures = kept
	return len(kept)
}

func (c *refreshCoordinator) expire() {
	c.store.Clear()
	if c.onExpire != nil {
		c.onExpire()
	}
}
