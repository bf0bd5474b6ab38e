package sdk

import "time"

// Board tools answer from the server's in-memory state, so calls are short.
// A move the server already applied is a no-op when retried.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxAttempts  = 2
	DefaultInitialDelay = 200 * time.Millisecond
)

type options struct {
	timeout      time.Duration
	maxAttempts  int
	initialDelay time.Duration
}

func defaultOptions() options {
	return options{
		timeout:      DefaultTimeout,
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
	}
}

// Option configures the SDK client.
type Option func(*options)

// WithTimeout sets the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetry sets the total number of attempts per tool call and the first
// backoff delay. WithRetry(1, 0) disables retries.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(o *options) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		o.maxAttempts = maxAttempts
		o.initialDelay = initialDelay
	}
}
