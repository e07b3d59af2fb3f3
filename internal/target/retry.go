package target

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

// RetryTarget wraps another Target and retries transient errors with
// jittered backoff.
type RetryTarget struct {
	inner      Target
	maxRetries int
	backoff    string // "exponential" or "linear"
}

// NewRetryTarget creates a Target that retries transient errors up to
// maxRetries times. Unknown backoff names fall back to exponential.
func NewRetryTarget(inner Target, maxRetries int, backoff string) Target {
	if backoff != "exponential" && backoff != "linear" {
		backoff = "exponential"
	}
	return &RetryTarget{
		inner:      inner,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

func (r *RetryTarget) Name() string { return r.inner.Name() }

func (r *RetryTarget) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	return r.retry(ctx, "put", key, func() error {
		return r.inner.Put(ctx, key, data, opts)
	})
}

func (r *RetryTarget) Get(ctx context.Context, key string) ([]byte, ObjectMeta, error) {
	var (
		data []byte
		meta ObjectMeta
	)
	err := r.retry(ctx, "get", key, func() error {
		var e error
		data, meta, e = r.inner.Get(ctx, key)
		return e
	})
	return data, meta, err
}

func (r *RetryTarget) Head(ctx context.Context, key string) (ObjectMeta, error) {
	var meta ObjectMeta
	err := r.retry(ctx, "head", key, func() error {
		var e error
		meta, e = r.inner.Head(ctx, key)
		return e
	})
	return meta, err
}

func (r *RetryTarget) Delete(ctx context.Context, key string) error {
	return r.retry(ctx, "delete", key, func() error {
		return r.inner.Delete(ctx, key)
	})
}

func (r *RetryTarget) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var items []ObjectInfo
	err := r.retry(ctx, "list", prefix, func() error {
		var e error
		items, e = r.inner.List(ctx, prefix)
		return e
	})
	return items, err
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (r *RetryTarget) retry(ctx context.Context, op, key string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		lastErr = fn()
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == r.maxRetries {
			break
		}

		delay := r.delay(attempt)
		hclog.FromContext(ctx).Warn("retrying storage operation",
			"target", r.inner.Name(), "op", op, "key", key,
			"attempt", attempt+1, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// delay computes the wait before retry number attempt+1, with +/-25% jitter.
func (r *RetryTarget) delay(attempt int) time.Duration {
	var d time.Duration
	switch r.backoff {
	case "linear":
		d = retryBaseDelay * time.Duration(attempt+1)
	default:
		d = retryBaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	}
	if d > retryMaxDelay {
		d = retryMaxDelay
	}

	d += time.Duration(rand.Int63n(int64(d/2))) - d/4
	if d < 0 {
		d = retryBaseDelay
	}
	return d
}
