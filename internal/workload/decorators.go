package workload

import (
	"context"
	"time"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/perf"
)

// FailureLogger logs failed operations.
type FailureLogger interface {
	LogFailure(op string, err error)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// retryOp wraps an Op with retry logic.
type retryOp struct {
	inner  Op
	policy RetryPolicy
}

// WithRetry wraps an Op with retry capability.
func WithRetry(op Op, policy RetryPolicy) Op {
	if policy.MaxAttempts <= 1 {
		return op // no retries needed
	}
	return &retryOp{
		inner:  op,
		policy: policy,
	}
}

func (r *retryOp) Name() string { return r.inner.Name() }

func (r *retryOp) Do(ctx context.Context, a *arena.Arena) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = r.inner.Do(ctx, a)
		if lastErr == nil {
			return nil // success
		}

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
				return lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

// loggingOp wraps an Op with failure logging.
type loggingOp struct {
	inner  Op
	logger FailureLogger
}

// WithFailureLog wraps an Op to log failures.
func WithFailureLog(op Op, logger FailureLogger) Op {
	if logger == nil {
		return op
	}
	return &loggingOp{
		inner:  op,
		logger: logger,
	}
}

func (l *loggingOp) Name() string { return l.inner.Name() }

func (l *loggingOp) Do(ctx context.Context, a *arena.Arena) error {
	err := l.inner.Do(ctx, a)
	if err != nil && l.logger != nil {
		l.logger.LogFailure(l.inner.Name(), err)
	}
	return err
}

// timedOp commits one duration per call, covering any retries made by
// inner decorators.
type timedOp struct {
	inner Op
	c     *perf.Counter
	h     *perf.Histogram
}

// WithTiming wraps an Op so every call is timed into c and, when given,
// recorded into h as well.
func WithTiming(op Op, c *perf.Counter, h *perf.Histogram) Op {
	if c == nil && h == nil {
		return op
	}
	return &timedOp{
		inner: op,
		c:     c,
		h:     h,
	}
}

func (t *timedOp) Name() string { return t.inner.Name() }

func (t *timedOp) Do(ctx context.Context, a *arena.Arena) error {
	if t.c == nil {
		start := time.Now()
		err := t.inner.Do(ctx, a)
		t.h.Record(time.Since(start))
		return err
	}
	sw := t.c.Time()
	err := t.inner.Do(ctx, a)
	if d := sw.Stop(); t.h != nil {
		t.h.Record(d)
	}
	return err
}
